package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunedeck/internal/model"
)

// SongServiceInterface は楽曲ハンドラーが必要とするサービスインターフェース。
type SongServiceInterface interface {
	CreateSong(ctx context.Context, in songForm, filename string, audio io.Reader) (*model.Song, error)
	ListSongs(ctx context.Context) ([]model.Song, error)
}

// SongMetrics は楽曲ハンドラーが記録するメトリクス。
type SongMetrics interface {
	RecordSongUploaded()
}

// SongHandlerConfig は楽曲ハンドラーの設定。
type SongHandlerConfig struct {
	// MaxUploadSize は音声ファイルの上限（バイト）。
	// multipartのオーバーヘッド分を加えた値をリクエストボディの上限にする。
	MaxUploadSize int64
}

// SongHandler は楽曲カタログのHTTPハンドラー。
type SongHandler struct {
	service   SongServiceInterface
	validator RequestValidator
	metrics   SongMetrics
	config    SongHandlerConfig
}

// NewSongHandler はSongHandlerを生成する。
func NewSongHandler(service SongServiceInterface, validator RequestValidator, metrics SongMetrics, config SongHandlerConfig) *SongHandler {
	return &SongHandler{
		service:   service,
		validator: validator,
		metrics:   metrics,
		config:    config,
	}
}

// songForm は楽曲登録フォームのメタデータ部分。
type songForm struct {
	Name   string `form:"name" validate:"notblank,max=200"`
	Artist string `form:"artist" validate:"notblank,max=200"`
	Genre  string `form:"genre" validate:"notblank,max=100"`
}

// songResponse は楽曲情報のAPIレスポンス。
type songResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Artist    string    `json:"artist"`
	Genre     string    `json:"genre"`
	FilePath  string    `json:"filePath"`
	MimeType  string    `json:"mimeType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// createSongResponse は楽曲登録成功時のAPIレスポンス。
type createSongResponse struct {
	Message string       `json:"message"`
	Song    songResponse `json:"song"`
}

const (
	// multipartOverhead は音声以外のフォーム項目と境界文字列の見積もり。
	multipartOverhead = 1 << 20
	// multipartMemory はParseMultipartFormがメモリに保持する上限。超過分は一時ファイルになる。
	multipartMemory = 8 << 20
)

// ListSongs は全楽曲を返す。
// GET /api/songs
func (h *SongHandler) ListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.service.ListSongs(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]songResponse, len(songs))
	for i := range songs {
		resp[i] = toSongResponse(&songs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSong はmultipartフォームから楽曲を登録する。
// POST /api/songs (name, artist, genre, audio)
func (h *SongHandler) CreateSong(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxUploadSize > 0 {
		limit := h.config.MaxUploadSize + multipartOverhead
		if r.ContentLength > limit {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewAssetTooLargeError(h.config.MaxUploadSize))
			return
		}
		// Content-Lengthが無い（chunked）場合もここで打ち切る
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewAssetTooLargeError(h.config.MaxUploadSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}()

	form := songForm{
		Name:   r.FormValue("name"),
		Artist: r.FormValue("artist"),
		Genre:  r.FormValue("genre"),
	}
	if err := h.validator.Struct(form); err != nil {
		handleServiceError(w, err)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("audio is required"))
		return
	}
	defer file.Close()

	song, err := h.service.CreateSong(r.Context(), form, header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSongUploaded()
	writeJSON(w, http.StatusCreated, createSongResponse{
		Message: "Song created successfully",
		Song:    toSongResponse(song),
	})
}

// SetupSongRoutes は楽曲カタログ関連のルーティングを設定したchi.Routerを返す。
func SetupSongRoutes(service SongServiceInterface, validator RequestValidator, metrics SongMetrics, config SongHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewSongHandler(service, validator, metrics, config)

	r.Route("/api/songs", func(r chi.Router) {
		r.Get("/", h.ListSongs)
		r.Post("/", h.CreateSong)
	})

	return r
}

// toSongResponse はmodel.SongからAPIレスポンスに変換する。
func toSongResponse(song *model.Song) songResponse {
	return songResponse{
		ID:        song.ID,
		Name:      song.Name,
		Artist:    song.Artist,
		Genre:     song.Genre,
		FilePath:  song.FilePath,
		MimeType:  song.MimeType,
		CreatedAt: song.CreatedAt,
	}
}
