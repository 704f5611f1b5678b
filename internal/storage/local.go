package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen はMIME判定に使う先頭バイト数。
const sniffLen = 3072

// tempPrefix は書き込み途中の一時ファイルの接頭辞。List対象から除外する。
const tempPrefix = ".upload-"

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// LocalStore はローカルディレクトリにアセットを保存するAssetStore実装。
// ファイル名はUUIDで採番し、元のファイル名は保存しない。
type LocalStore struct {
	dir     string
	maxSize int64
}

// NewLocalStore はLocalStoreを生成する。dirが無ければ作成する。
// maxSizeが0以下の場合は上限なし。
func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *LocalStore) Dir() string {
	return s.dir
}

// MaxSize はアセットの上限サイズを返す。
func (s *LocalStore) MaxSize() int64 {
	return s.maxSize
}

// Save はrの内容を一時ファイルに書き込み、完了後にリネームして確定する。
// 上限サイズを超えた場合は書き込んだ内容を破棄してErrTooLargeを返す。
// 音声フォーマットの検証は行わない。
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (*StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r = &ctxReader{ctx: ctx, r: r}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	head = head[:n]
	mtype := mimetype.Detect(head)

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	src := io.MultiReader(bytes.NewReader(head), r)
	if s.maxSize > 0 {
		src = io.LimitReader(src, s.maxSize+1)
	}
	size, err := io.Copy(tmp, src)
	if err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close asset: %w", err)
	}

	name := uuid.New().String() + extensionFor(filename, mtype)
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return nil, fmt.Errorf("failed to commit asset: %w", err)
	}
	committed = true

	return &StoredAsset{
		Path:     name,
		Size:     size,
		MimeType: mtype.String(),
	}, nil
}

// Remove はアセットを削除する。存在しない場合はnilを返す。
func (s *LocalStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	return nil
}

// List は保存済みのアセットを返す。書き込み途中の一時ファイルは含めない。
func (s *LocalStore) List(ctx context.Context) ([]AssetInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	assets := make([]AssetInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat asset: %w", err)
		}
		assets = append(assets, AssetInfo{
			Path:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return assets, nil
}

// resolve は相対パスを保存先ディレクトリ直下のファイルパスに変換する。
func (s *LocalStore) resolve(path string) (string, error) {
	if path == "" || path != filepath.Base(path) || path == "." || path == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.dir, path), nil
}

// extensionFor は元ファイル名の拡張子を優先し、使えない場合は判定したMIMEタイプの拡張子を返す。
func extensionFor(filename string, mtype *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if safeExt.MatchString(ext) {
		return ext
	}
	return mtype.Extension()
}

var _ AssetStore = (*LocalStore)(nil)
