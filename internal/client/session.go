package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Session はログイン中のクライアントセッション。
// ログインで生成し、ログアウトで破棄する。
type Session struct {
	Token     string    `toml:"token"`
	Username  string    `toml:"username"`
	ExpiresAt time.Time `toml:"expires_at"`
}

// Expired はnow時点でトークンの有効期限が切れているかを返す。
// 期限が不明な場合は切れていないものとして扱い、判定はサーバーに任せる。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// SessionStore はSessionをTOMLファイルに永続化する。
type SessionStore struct {
	path string
}

// sessionFile はセッションファイルのレイアウト。
type sessionFile struct {
	Session *Session `toml:"session"`
}

// DefaultSessionPath は~/.tunedeck/session.tomlを返す。
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tunedeck", "session.toml"), nil
}

// NewSessionStore はpathに保存するSessionStoreを生成する。
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Path はセッションファイルのパスを返す。
func (s *SessionStore) Path() string {
	return s.path
}

// Load は保存済みのセッションを読み込む。
// ファイルが無い場合は(nil, nil)を返す。
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var f sessionFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if f.Session == nil || f.Session.Token == "" {
		return nil, nil
	}
	return f.Session, nil
}

// Save はセッションを書き込む。トークンを含むため所有者のみ読み書き可能にする。
func (s *SessionStore) Save(session *Session) error {
	if session == nil || session.Token == "" {
		return errors.New("session token must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(sessionFile{Session: session}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to restrict session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Clear はセッションファイルを削除する。存在しない場合はnilを返す。
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
