package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/tunedeck/internal/model"
)

// PostgresSongRepo はPostgreSQLを使用した楽曲リポジトリ。
type PostgresSongRepo struct {
	db *sql.DB
}

// NewPostgresSongRepo はPostgresSongRepoを生成する。
func NewPostgresSongRepo(db *sql.DB) *PostgresSongRepo {
	return &PostgresSongRepo{db: db}
}

const songColumns = `id, name, artist, genre, file_path, mime_type, created_at`

// Create は楽曲を作成する。
func (r *PostgresSongRepo) Create(ctx context.Context, song *model.Song) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO songs (id, name, artist, genre, file_path, mime_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		song.ID, song.Name, song.Artist, song.Genre, song.FilePath, song.MimeType, song.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert song: %w", err)
	}
	return nil
}

// List は全楽曲を登録順に返す。
func (r *PostgresSongRepo) List(ctx context.Context) ([]model.Song, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+songColumns+` FROM songs ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	return scanSongs(rows)
}

// FindByIDs は指定IDの楽曲を返す。存在しないIDは無視する。
// UUID形式でないIDはカタログに存在し得ないため問い合わせ前に除外する。
func (r *PostgresSongRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Song, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []model.Song{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE id = ANY($1::uuid[])`,
		pq.Array(valid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find songs by IDs: %w", err)
	}
	defer rows.Close()

	return scanSongs(rows)
}

// ListFilePaths は全楽曲が参照するアセットパスを返す。
func (r *PostgresSongRepo) ListFilePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM songs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list song file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file paths: %w", err)
	}
	return paths, nil
}

func scanSongs(rows *sql.Rows) ([]model.Song, error) {
	songs := []model.Song{}
	for rows.Next() {
		var s model.Song
		if err := rows.Scan(&s.ID, &s.Name, &s.Artist, &s.Genre, &s.FilePath, &s.MimeType, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate songs: %w", err)
	}
	return songs, nil
}

// compile-time interface check
var _ SongRepository = (*PostgresSongRepo)(nil)
