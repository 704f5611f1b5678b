// Package playlist はプレイリスト管理のドメインロジックを提供する。
//
// プレイリストは所有者1人に属し、一覧・変更・削除は所有者本人に限る。
// 収録曲は重複のない楽曲IDの集合として扱い、追加は和集合でマージする。
// カタログに存在しない楽曲IDも受け付け、展開時のSongsからは除外する。
package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tunedeck/internal/model"
	"github.com/hitoshi/tunedeck/internal/repository"
)

// Sanitizer はプレイリスト名のサニタイズを行うインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// Service はプレイリスト管理のサービス層。
type Service struct {
	playlistRepo repository.PlaylistRepository
	songRepo     repository.SongRepository
	sanitizer    Sanitizer
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	playlistRepo repository.PlaylistRepository,
	songRepo repository.SongRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		playlistRepo: playlistRepo,
		songRepo:     songRepo,
		sanitizer:    sanitizer,
		now:          time.Now,
	}
}

// Create はidentityを所有者とするプレイリストを作成する。
// 楽曲IDのカタログ存在確認は行わない。
func (s *Service) Create(ctx context.Context, identity model.Identity, name string, songIDs []string) (*model.PlaylistWithSongs, error) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, model.NewValidationError("name is required")
	}

	now := s.now()
	p := &model.Playlist{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   identity.UserID,
		SongIDs:   normalizeSongIDs(songIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.playlistRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プレイリストの作成に失敗しました: %w", err)
	}

	slog.Info("playlist created",
		slog.String("user_id", identity.UserID),
		slog.String("playlist_id", p.ID),
		slog.Int("songs_count", len(p.SongIDs)),
	)

	expanded, err := s.expand(ctx, []*model.Playlist{p})
	if err != nil {
		return nil, err
	}
	return &expanded[0], nil
}

// ListForOwner はidentityが所有するプレイリストを楽曲展開して返す。
func (s *Service) ListForOwner(ctx context.Context, identity model.Identity) ([]model.PlaylistWithSongs, error) {
	playlists, err := s.playlistRepo.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("プレイリスト一覧の取得に失敗しました: %w", err)
	}
	return s.expand(ctx, playlists)
}

// Get は所有者本人のプレイリストを楽曲展開して返す。
func (s *Service) Get(ctx context.Context, identity model.Identity, playlistID string) (*model.PlaylistWithSongs, error) {
	p, err := s.findOwned(ctx, identity, playlistID)
	if err != nil {
		return nil, err
	}
	expanded, err := s.expand(ctx, []*model.Playlist{p})
	if err != nil {
		return nil, err
	}
	return &expanded[0], nil
}

// AddSongs は楽曲IDを和集合としてマージし、更新後のプレイリストを展開して返す。
// 既に含まれるIDは無視され、既存の順序は保たれる。
func (s *Service) AddSongs(ctx context.Context, identity model.Identity, playlistID string, songIDs []string) (*model.PlaylistWithSongs, error) {
	if _, err := s.findOwned(ctx, identity, playlistID); err != nil {
		return nil, err
	}

	ids := normalizeSongIDs(songIDs)
	if err := s.playlistRepo.AddSongs(ctx, playlistID, ids); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPlaylistNotFoundError(playlistID)
		}
		return nil, fmt.Errorf("収録曲の追加に失敗しました: %w", err)
	}

	slog.Info("songs added to playlist",
		slog.String("user_id", identity.UserID),
		slog.String("playlist_id", playlistID),
		slog.Int("songs_count", len(ids)),
	)

	return s.Get(ctx, identity, playlistID)
}

// Delete は所有者本人のプレイリストを削除する。
func (s *Service) Delete(ctx context.Context, identity model.Identity, playlistID string) error {
	if _, err := s.findOwned(ctx, identity, playlistID); err != nil {
		return err
	}

	if err := s.playlistRepo.Delete(ctx, playlistID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPlaylistNotFoundError(playlistID)
		}
		return fmt.Errorf("プレイリストの削除に失敗しました: %w", err)
	}

	slog.Info("playlist deleted",
		slog.String("user_id", identity.UserID),
		slog.String("playlist_id", playlistID),
	)
	return nil
}

// findOwned はプレイリストを取得し、所有者を確認する。
// 他ユーザーのプレイリストは存在しないものとして扱う。
func (s *Service) findOwned(ctx context.Context, identity model.Identity, playlistID string) (*model.Playlist, error) {
	p, err := s.playlistRepo.FindByID(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("プレイリストの取得に失敗しました: %w", err)
	}
	if p == nil || p.OwnerID != identity.UserID {
		return nil, model.NewPlaylistNotFoundError(playlistID)
	}
	return p, nil
}

// expand は全プレイリストの楽曲IDを1回の問い合わせで解決し、SongIDsの順にSongsを埋める。
func (s *Service) expand(ctx context.Context, playlists []*model.Playlist) ([]model.PlaylistWithSongs, error) {
	result := make([]model.PlaylistWithSongs, 0, len(playlists))
	if len(playlists) == 0 {
		return result, nil
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, p := range playlists {
		for _, id := range p.SongIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	byID := make(map[string]model.Song, len(ids))
	if len(ids) > 0 {
		songs, err := s.songRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("楽曲の取得に失敗しました: %w", err)
		}
		for _, song := range songs {
			byID[song.ID] = song
		}
	}

	for _, p := range playlists {
		pw := model.PlaylistWithSongs{Playlist: *p, Songs: []model.Song{}}
		if pw.SongIDs == nil {
			pw.SongIDs = []string{}
		}
		for _, id := range p.SongIDs {
			if song, ok := byID[id]; ok {
				pw.Songs = append(pw.Songs, song)
			}
		}
		result = append(result, pw)
	}
	return result, nil
}

// normalizeSongIDs は前後の空白を除去し、空要素と重複を取り除く。順序は最初の出現順。
func normalizeSongIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
