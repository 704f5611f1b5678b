package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/tunedeck/internal/model"
)

// PostgresPlaylistRepo はPostgreSQLを使用したプレイリストリポジトリ。
// 収録曲はplaylist_songsテーブルに(playlist_id, song_id)を主キーとして保持し、
// 挿入はON CONFLICT DO NOTHINGで集合として扱う。
type PostgresPlaylistRepo struct {
	db *sql.DB
}

// NewPostgresPlaylistRepo はPostgresPlaylistRepoを生成する。
func NewPostgresPlaylistRepo(db *sql.DB) *PostgresPlaylistRepo {
	return &PostgresPlaylistRepo{db: db}
}

// execer はsql.DBとsql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create はプレイリストと収録曲を同一トランザクションで作成する。
func (r *PostgresPlaylistRepo) Create(ctx context.Context, p *model.Playlist) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlists (id, name, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プレイリストの作成に失敗しました: %w", err)
	}

	if err := insertSongIDs(ctx, tx, p.ID, p.SongIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのプレイリストを収録曲IDつきで取得する。見つからない場合はnilを返す。
func (r *PostgresPlaylistRepo) FindByID(ctx context.Context, id string) (*model.Playlist, error) {
	if !isUUID(id) {
		return nil, nil
	}

	p := &model.Playlist{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM playlists WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プレイリストの取得に失敗しました: %w", err)
	}

	songIDs, err := r.songIDsByPlaylist(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.SongIDs = songIDs[p.ID]
	if p.SongIDs == nil {
		p.SongIDs = []string{}
	}

	return p, nil
}

// ListByOwner は指定ユーザーが所有するプレイリストを作成順に返す。
func (r *PostgresPlaylistRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Playlist, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at, updated_at
		 FROM playlists WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("プレイリスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	playlists := []*model.Playlist{}
	var ids []string
	for rows.Next() {
		p := &model.Playlist{}
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("プレイリスト行の読み取りに失敗しました: %w", err)
		}
		playlists = append(playlists, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プレイリスト一覧の走査に失敗しました: %w", err)
	}
	if len(playlists) == 0 {
		return playlists, nil
	}

	songIDs, err := r.songIDsByPlaylist(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		p.SongIDs = songIDs[p.ID]
		if p.SongIDs == nil {
			p.SongIDs = []string{}
		}
	}

	return playlists, nil
}

// AddSongs は収録曲IDを集合として追加する。既に含まれるIDは無視する。
// 先にplaylists行を更新して行ロックを取るため、同一プレイリストへの同時追加は直列化される。
func (r *PostgresPlaylistRepo) AddSongs(ctx context.Context, playlistID string, songIDs []string) error {
	if !isUUID(playlistID) {
		return ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE playlists SET updated_at = now() WHERE id = $1`,
		playlistID,
	)
	if err != nil {
		return fmt.Errorf("プレイリストの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := insertSongIDs(ctx, tx, playlistID, songIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Delete はプレイリストを削除する。収録曲はCASCADE削除される。
func (r *PostgresPlaylistRepo) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("プレイリストの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// songIDsByPlaylist は複数プレイリストの収録曲IDを追加順にまとめて取得する。
func (r *PostgresPlaylistRepo) songIDsByPlaylist(ctx context.Context, playlistIDs []string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT playlist_id, song_id FROM playlist_songs
		 WHERE playlist_id = ANY($1::uuid[]) ORDER BY position ASC`,
		pq.Array(playlistIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("収録曲の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string, len(playlistIDs))
	for rows.Next() {
		var playlistID, songID string
		if err := rows.Scan(&playlistID, &songID); err != nil {
			return nil, fmt.Errorf("収録曲行の読み取りに失敗しました: %w", err)
		}
		result[playlistID] = append(result[playlistID], songID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("収録曲の走査に失敗しました: %w", err)
	}
	return result, nil
}

// insertSongIDs は収録曲IDを配列順に挿入する。既存のIDはスキップされる。
func insertSongIDs(ctx context.Context, ex execer, playlistID string, songIDs []string) error {
	if len(songIDs) == 0 {
		return nil
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO playlist_songs (playlist_id, song_id)
		 SELECT $1, s.id FROM unnest($2::text[]) WITH ORDINALITY AS s(id, ord)
		 ORDER BY s.ord
		 ON CONFLICT (playlist_id, song_id) DO NOTHING`,
		playlistID, pq.Array(songIDs),
	)
	if err != nil {
		return fmt.Errorf("収録曲の追加に失敗しました: %w", err)
	}
	return nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// compile-time interface check
var _ PlaylistRepository = (*PostgresPlaylistRepo)(nil)
