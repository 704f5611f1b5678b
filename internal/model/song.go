// Package model はドメインモデルを定義する。
package model

import "time"

// Song はカタログに登録された楽曲を表す。
// 登録後は読み取り専用。
type Song struct {
	ID        string
	Name      string
	Artist    string
	Genre     string
	FilePath  string // アセットストア上の相対パス
	MimeType  string // アップロード時に判定したMIMEタイプ（検証には使わない）
	CreatedAt time.Time
}
