// Package catalog は楽曲カタログのドメインロジックを提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tunedeck/internal/model"
	"github.com/hitoshi/tunedeck/internal/repository"
	"github.com/hitoshi/tunedeck/internal/storage"
)

// Sanitizer はメタデータ文字列のサニタイズを行うインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// SongInput は楽曲登録時のメタデータ。
type SongInput struct {
	Name   string
	Artist string
	Genre  string
}

// Asset はアップロードされた音声ファイル。
type Asset struct {
	Filename string
	Reader   io.Reader
}

// ServiceConfig はカタログサービスの設定。
type ServiceConfig struct {
	// MaxAssetSize はエラーメッセージに表示するアップロード上限（バイト）。
	MaxAssetSize int64
}

// Service は楽曲の登録と一覧を提供する。
type Service struct {
	songRepo  repository.SongRepository
	store     storage.AssetStore
	sanitizer Sanitizer
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	songRepo repository.SongRepository,
	store storage.AssetStore,
	sanitizer Sanitizer,
	config ServiceConfig,
) *Service {
	return &Service{
		songRepo:  songRepo,
		store:     store,
		sanitizer: sanitizer,
		config:    config,
		now:       time.Now,
	}
}

// Create は音声ファイルをアセットストアに保存し、楽曲メタデータを登録する。
// メタデータの登録に失敗した場合は保存済みのアセットを削除する。
// 音声フォーマットの検証は行わない。
func (s *Service) Create(ctx context.Context, in SongInput, asset Asset) (*model.Song, error) {
	name := s.sanitizer.Sanitize(in.Name)
	artist := s.sanitizer.Sanitize(in.Artist)
	genre := s.sanitizer.Sanitize(in.Genre)

	var missing []string
	if name == "" {
		missing = append(missing, "name is required")
	}
	if artist == "" {
		missing = append(missing, "artist is required")
	}
	if genre == "" {
		missing = append(missing, "genre is required")
	}
	if asset.Reader == nil {
		missing = append(missing, "audio is required")
	}
	if len(missing) > 0 {
		return nil, model.NewValidationError(missing...)
	}

	stored, err := s.store.Save(ctx, asset.Filename, asset.Reader)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, model.NewAssetTooLargeError(s.config.MaxAssetSize)
		}
		return nil, fmt.Errorf("failed to store audio asset: %w", err)
	}

	song := &model.Song{
		ID:        uuid.New().String(),
		Name:      name,
		Artist:    artist,
		Genre:     genre,
		FilePath:  stored.Path,
		MimeType:  stored.MimeType,
		CreatedAt: s.now(),
	}

	if err := s.songRepo.Create(ctx, song); err != nil {
		// contextがキャンセルされていても孤立ファイルは消す
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), stored.Path); rmErr != nil {
			slog.Warn("failed to remove orphaned asset",
				slog.String("path", stored.Path),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create song: %w", err)
	}

	slog.Info("song created",
		slog.String("song_id", song.ID),
		slog.String("path", song.FilePath),
		slog.String("mime_type", song.MimeType),
		slog.Int64("size", stored.Size),
	)
	return song, nil
}

// List は全楽曲を返す。ページングは行わない。
func (s *Service) List(ctx context.Context) ([]model.Song, error) {
	songs, err := s.songRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	return songs, nil
}
