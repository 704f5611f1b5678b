// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunedeck/internal/middleware"
	"github.com/hitoshi/tunedeck/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*loginResult, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクス。
type AuthMetrics interface {
	RecordRegistration()
	RecordLogin(success bool)
}

// loginResult はログイン成功時にハンドラーが受け取る結果。
type loginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthHandler はユーザー登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	validator RequestValidator
	metrics   AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, validator RequestValidator, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator,
		metrics:   metrics,
	}
}

// credentialsRequest は登録リクエストのボディ。
// パスワードの上限はbcryptが扱える72バイトに合わせる。
type credentialsRequest struct {
	Username string `json:"username" validate:"notblank,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

// loginRequest はログインリクエストのボディ。
// パスワードの形式は検証せず、照合失敗は全てInvalidCredentialsになる。
type loginRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// meResponse はトークンに対応するユーザー情報のAPIレスポンス。
type meResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	if _, err := h.service.Register(r.Context(), req.Username, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordRegistration()
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// Login は資格情報を検証し、セッショントークンを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			h.metrics.RecordLogin(false)
		}
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordLogin(true)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
	})
}

// Me はトークンに対応するユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{ID: user.ID, Username: user.Username})
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
// /meのみセッションミドルウェアを通す。
func SetupAuthRoutes(service AuthServiceInterface, validator RequestValidator, metrics AuthMetrics, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, validator, metrics)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.NewSessionMiddleware(verifier)).Get("/me", h.Me)
	})

	return r
}
