// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tunedeck/internal/model"
)

// UserRepository はユーザー（資格情報）の永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SongRepository は楽曲メタデータの永続化インターフェース。
type SongRepository interface {
	// Create は楽曲を作成する。
	Create(ctx context.Context, song *model.Song) error

	// List は全楽曲を登録順に返す。
	List(ctx context.Context) ([]model.Song, error)

	// FindByIDs は指定IDの楽曲を返す。存在しないIDは無視する。
	// 戻り値の順序は保証しない。
	FindByIDs(ctx context.Context, ids []string) ([]model.Song, error)

	// ListFilePaths は全楽曲が参照するアセットパスを返す。
	ListFilePaths(ctx context.Context) ([]string, error)
}

// PlaylistRepository はプレイリストの永続化インターフェース。
type PlaylistRepository interface {
	// Create はプレイリストと収録曲を同一トランザクションで作成する。
	Create(ctx context.Context, playlist *model.Playlist) error

	// FindByID は指定IDのプレイリストを収録曲IDつきで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Playlist, error)

	// ListByOwner は指定ユーザーが所有するプレイリストを作成順に返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Playlist, error)

	// AddSongs は収録曲IDを集合として追加する。既に含まれるIDは無視する。
	// プレイリストが存在しない場合はErrNotFoundを返す。
	AddSongs(ctx context.Context, playlistID string, songIDs []string) error

	// Delete はプレイリストを削除する。収録曲はCASCADE削除される。
	// プレイリストが存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}
