package model

import "time"

// Playlist はユーザーが所有するプレイリストを表す。
// SongIDsは重複を含まない楽曲IDの集合で、追加順に並ぶ。
type Playlist struct {
	ID        string
	Name      string
	OwnerID   string
	SongIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaylistWithSongs はプレイリストと、SongIDsを解決した楽曲レコードを結合したモデル。
// カタログに存在しないIDはSongsに含まれない。
type PlaylistWithSongs struct {
	Playlist
	Songs []Song
}
