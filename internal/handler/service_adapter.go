package handler

import (
	"context"
	"io"

	"github.com/hitoshi/tunedeck/internal/auth"
	"github.com/hitoshi/tunedeck/internal/catalog"
	"github.com/hitoshi/tunedeck/internal/model"
	"github.com/hitoshi/tunedeck/internal/playlist"
)

// AuthServiceAdapter は auth.Service を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.Service
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.Service) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// Register はユーザーを登録する。
func (a *AuthServiceAdapter) Register(ctx context.Context, username, password string) (*model.User, error) {
	return a.svc.Register(ctx, username, password)
}

// Login はログインしhandlerの結果型で返す。
func (a *AuthServiceAdapter) Login(ctx context.Context, username, password string) (*loginResult, error) {
	result, err := a.svc.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &loginResult{Token: result.Token, ExpiresAt: result.ExpiresAt}, nil
}

// CurrentUser はユーザーIDに対応するユーザーを返す。
func (a *AuthServiceAdapter) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	return a.svc.CurrentUser(ctx, userID)
}

// SongServiceAdapter は catalog.Service を SongServiceInterface に適合させるアダプタ。
type SongServiceAdapter struct {
	svc *catalog.Service
}

// NewSongServiceAdapter はSongServiceAdapterを生成する。
func NewSongServiceAdapter(svc *catalog.Service) *SongServiceAdapter {
	return &SongServiceAdapter{svc: svc}
}

// CreateSong はフォーム入力をカタログの入力型に変換して楽曲を登録する。
func (a *SongServiceAdapter) CreateSong(ctx context.Context, in songForm, filename string, audio io.Reader) (*model.Song, error) {
	return a.svc.Create(ctx,
		catalog.SongInput{Name: in.Name, Artist: in.Artist, Genre: in.Genre},
		catalog.Asset{Filename: filename, Reader: audio},
	)
}

// ListSongs は全楽曲を返す。
func (a *SongServiceAdapter) ListSongs(ctx context.Context) ([]model.Song, error) {
	return a.svc.List(ctx)
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*AuthServiceAdapter)(nil)
var _ SongServiceInterface = (*SongServiceAdapter)(nil)
var _ PlaylistServiceInterface = (*playlist.Service)(nil)
