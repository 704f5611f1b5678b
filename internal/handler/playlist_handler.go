package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunedeck/internal/metrics"
	"github.com/hitoshi/tunedeck/internal/middleware"
	"github.com/hitoshi/tunedeck/internal/model"
)

// PlaylistServiceInterface はプレイリストハンドラーが必要とするサービスインターフェース。
// playlist.Serviceが満たす。
type PlaylistServiceInterface interface {
	Create(ctx context.Context, identity model.Identity, name string, songIDs []string) (*model.PlaylistWithSongs, error)
	ListForOwner(ctx context.Context, identity model.Identity) ([]model.PlaylistWithSongs, error)
	Get(ctx context.Context, identity model.Identity, playlistID string) (*model.PlaylistWithSongs, error)
	AddSongs(ctx context.Context, identity model.Identity, playlistID string, songIDs []string) (*model.PlaylistWithSongs, error)
	Delete(ctx context.Context, identity model.Identity, playlistID string) error
}

// PlaylistMetrics はプレイリストハンドラーが記録するメトリクス。
type PlaylistMetrics interface {
	RecordPlaylistMutation(op string)
}

// PlaylistHandler はプレイリスト管理のHTTPハンドラー。
// すべてのエンドポイントはセッションミドルウェアの内側に置く。
type PlaylistHandler struct {
	service   PlaylistServiceInterface
	validator RequestValidator
	metrics   PlaylistMetrics
}

// NewPlaylistHandler はPlaylistHandlerを生成する。
func NewPlaylistHandler(service PlaylistServiceInterface, validator RequestValidator, recorder PlaylistMetrics) *PlaylistHandler {
	return &PlaylistHandler{
		service:   service,
		validator: validator,
		metrics:   recorder,
	}
}

// createPlaylistRequest はプレイリスト作成リクエストのボディ。
type createPlaylistRequest struct {
	Name  string   `json:"name" validate:"notblank,max=200"`
	Songs []string `json:"songs" validate:"max=1000,dive,notblank"`
}

// addSongsRequest は楽曲追加リクエストのボディ。
type addSongsRequest struct {
	Songs []string `json:"songs" validate:"required,max=1000,dive,notblank"`
}

// playlistResponse はプレイリストのAPIレスポンス。
// songIdsは登録された楽曲IDの集合、songsはカタログに存在するものを展開した結果。
type playlistResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"ownerId"`
	SongIDs   []string       `json:"songIds"`
	Songs     []songResponse `json:"songs"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// createPlaylistResponse はプレイリスト作成成功時のAPIレスポンス。
type createPlaylistResponse struct {
	Message  string           `json:"message"`
	Playlist playlistResponse `json:"playlist"`
}

// CreatePlaylist はプレイリストを作成する。
// POST /api/playlists
func (h *PlaylistHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createPlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.Create(r.Context(), identity, req.Name, req.Songs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordPlaylistMutation(metrics.PlaylistOpCreate)
	writeJSON(w, http.StatusCreated, createPlaylistResponse{
		Message:  "Playlist created successfully",
		Playlist: toPlaylistResponse(p),
	})
}

// ListPlaylists はログインユーザーのプレイリスト一覧を返す。
// GET /api/playlists
func (h *PlaylistHandler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	playlists, err := h.service.ListForOwner(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]playlistResponse, len(playlists))
	for i := range playlists {
		resp[i] = toPlaylistResponse(&playlists[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPlaylist はプレイリスト1件を返す。
// GET /api/playlists/{id}
func (h *PlaylistHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlaylistResponse(p))
}

// AddSongs はプレイリストに楽曲を和集合で追加する。
// PUT /api/playlists/{id}/songs
func (h *PlaylistHandler) AddSongs(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req addSongsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.AddSongs(r.Context(), identity, chi.URLParam(r, "id"), req.Songs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordPlaylistMutation(metrics.PlaylistOpAddSongs)
	writeJSON(w, http.StatusOK, toPlaylistResponse(p))
}

// DeletePlaylist はプレイリストを削除する。
// DELETE /api/playlists/{id}
func (h *PlaylistHandler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordPlaylistMutation(metrics.PlaylistOpDelete)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Playlist deleted successfully"})
}

// SetupPlaylistRoutes はプレイリスト関連のルーティングを設定したchi.Routerを返す。
func SetupPlaylistRoutes(service PlaylistServiceInterface, validator RequestValidator, recorder PlaylistMetrics, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	h := NewPlaylistHandler(service, validator, recorder)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(verifier))
		mountPlaylistRoutes(r, h)
	})

	return r
}

func mountPlaylistRoutes(r chi.Router, h *PlaylistHandler) {
	r.Route("/api/playlists", func(r chi.Router) {
		r.Get("/", h.ListPlaylists)
		r.Post("/", h.CreatePlaylist)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPlaylist)
			r.Delete("/", h.DeletePlaylist)
			r.Put("/songs", h.AddSongs)
		})
	})
}

// toPlaylistResponse はmodel.PlaylistWithSongsからAPIレスポンスに変換する。
// 空のプレイリストでもsongIds・songsは空配列で返す。
func toPlaylistResponse(p *model.PlaylistWithSongs) playlistResponse {
	songIDs := p.SongIDs
	if songIDs == nil {
		songIDs = []string{}
	}
	songs := make([]songResponse, len(p.Songs))
	for i := range p.Songs {
		songs[i] = toSongResponse(&p.Songs[i])
	}
	return playlistResponse{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		SongIDs:   songIDs,
		Songs:     songs,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
