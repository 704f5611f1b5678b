package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunedeck/internal/metrics"
	"github.com/hitoshi/tunedeck/internal/middleware"
)

// RequestValidator はリクエストボディの検証を行うインターフェース。
// validation.Validatorが満たす。
type RequestValidator interface {
	Struct(v any) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 入力検証
	Validator RequestValidator

	// 認証
	AuthService AuthServiceInterface

	// 楽曲
	SongService SongServiceInterface
	SongConfig  SongHandlerConfig

	// プレイリスト
	PlaylistService PlaylistServiceInterface

	// アップロード済みファイルの配信元ディレクトリ。空の場合は配信しない。
	UploadDir string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → (Session)
//
// Sessionは/api/playlists/*と/api/auth/meにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var recorder metrics.MetricsCollector = metrics.Nop{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Validator, recorder)
	songHandler := NewSongHandler(deps.SongService, deps.Validator, recorder, deps.SongConfig)
	playlistHandler := NewPlaylistHandler(deps.PlaylistService, deps.Validator, recorder)
	sessionMiddleware := middleware.NewSessionMiddleware(deps.TokenVerifier)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker).ServeHTTP)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", newAssetFileServer(deps.UploadDir)))
	}

	// --- 認証不要のルート ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(sessionMiddleware).Get("/me", authHandler.Me)
	})

	r.Route("/api/songs", func(r chi.Router) {
		r.Get("/", songHandler.ListSongs)
		r.Post("/", songHandler.CreateSong)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		mountPlaylistRoutes(r, playlistHandler)
	})

	return r
}
