// Package storage は音声アセットファイルの保存先を提供する。
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrTooLarge はアセットが上限サイズを超えたことを表す。
var ErrTooLarge = errors.New("asset exceeds maximum size")

// ErrInvalidPath は保存先の外を指すパスが渡されたことを表す。
var ErrInvalidPath = errors.New("invalid asset path")

// StoredAsset は保存済みアセットの情報を表す。
type StoredAsset struct {
	Path     string // ストア内の相対パス
	Size     int64
	MimeType string // 先頭バイトから判定したMIMEタイプ
}

// AssetInfo は一覧取得時のアセット情報を表す。
type AssetInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// AssetStore はアセットの保存・削除・一覧を行うインターフェース。
type AssetStore interface {
	// Save はrの内容を保存する。filenameは拡張子の決定にのみ使う。
	Save(ctx context.Context, filename string, r io.Reader) (*StoredAsset, error)
	// Remove はアセットを削除する。存在しない場合はnilを返す。
	Remove(ctx context.Context, path string) error
	// List は保存済みのアセットを返す。
	List(ctx context.Context) ([]AssetInfo, error)
}

// ctxReader はcontextがキャンセルされた時点で読み込みを中断する。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
