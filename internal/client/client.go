// Package client はtunedeck APIの型付きHTTPクライアントを提供する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotLoggedIn はセッションが必要な操作をセッション無しで呼んだ場合に返す。
var ErrNotLoggedIn = errors.New("not logged in")

// APIError はサーバーが返したエラーレスポンス。
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Song は楽曲情報。
type Song struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Artist    string    `json:"artist"`
	Genre     string    `json:"genre"`
	FilePath  string    `json:"filePath"`
	MimeType  string    `json:"mimeType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Playlist はプレイリストと展開済みの楽曲。
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	SongIDs   []string  `json:"songIds"`
	Songs     []Song    `json:"songs"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User はログイン中のユーザー。
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SongUpload は楽曲登録の入力。
type SongUpload struct {
	Name     string
	Artist   string
	Genre    string
	Filename string
	Audio    io.Reader
}

// Config はClientの設定。
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Session は初期セッション。nilの場合は未ログイン。
	Session *Session
}

// Client はtunedeck APIのクライアント。
// 並行利用はしない前提で、セッションの差し替えは呼び出し側で直列化する。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *Session
}

// New はClientを生成する。
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL must not be empty")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme: %q", u.Scheme)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: u, httpClient: httpClient, session: cfg.Session}, nil
}

// Session は現在のセッションを返す。未ログインの場合はnil。
func (c *Client) Session() *Session {
	return c.session
}

// SetSession はセッションを差し替える。nilでログアウト状態になる。
func (c *Client) SetSession(s *Session) {
	c.session = s
}

// AssetURL はfilePathを再生用のURLに変換する。
func (c *Client) AssetURL(filePath string) string {
	return c.baseURL.JoinPath("uploads", filePath).String()
}

// Health はサーバーのヘルスチェックを行う。
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", false, nil)
}

// Register はユーザーを登録する。登録後のログインは行わない。
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, false, nil)
}

// Login はログインし、取得したセッションをClientに設定して返す。
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, false, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login response did not include a token")
	}
	c.session = &Session{Token: resp.Token, Username: username, ExpiresAt: resp.ExpiresAt}
	return c.session, nil
}

// Logout はClientのセッションを破棄する。トークンはサーバー側で失効しない。
func (c *Client) Logout() {
	c.session = nil
}

// Me はトークンが示すユーザーを返す。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListSongs は全楽曲を返す。
func (c *Client) ListSongs(ctx context.Context) ([]Song, error) {
	var songs []Song
	if err := c.doJSON(ctx, http.MethodGet, "/api/songs", nil, false, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// UploadSong は音声ファイルとメタデータをmultipartで送信する。
// ボディはパイプで逐次書き込むため、大きなファイルでもメモリに載せない。
func (c *Client) UploadSong(ctx context.Context, in SongUpload) (*Song, error) {
	if in.Audio == nil {
		return nil, errors.New("audio must not be nil")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSongForm(mw, in))
	}()

	var resp struct {
		Song Song `json:"song"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/songs", pr, mw.FormDataContentType(), false, &resp); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &resp.Song, nil
}

func writeSongForm(mw *multipart.Writer, in SongUpload) error {
	for _, f := range [][2]string{{"name", in.Name}, {"artist", in.Artist}, {"genre", in.Genre}} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("audio", in.Filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, in.Audio); err != nil {
		return err
	}
	return mw.Close()
}

// ListPlaylists はログインユーザーのプレイリストを返す。
func (c *Client) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	if err := c.doJSON(ctx, http.MethodGet, "/api/playlists", nil, true, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// GetPlaylist はプレイリストを返す。
func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var p Playlist
	if err := c.doJSON(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(id), nil, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlaylist はプレイリストを作成する。songIDsは空でもよい。
func (c *Client) CreatePlaylist(ctx context.Context, name string, songIDs []string) (*Playlist, error) {
	if songIDs == nil {
		songIDs = []string{}
	}
	body := map[string]any{"name": name, "songs": songIDs}
	var resp struct {
		Playlist Playlist `json:"playlist"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/playlists", body, true, &resp); err != nil {
		return nil, err
	}
	return &resp.Playlist, nil
}

// AddSongs はプレイリストに楽曲を追加する。既に含まれる楽曲は無視される。
func (c *Client) AddSongs(ctx context.Context, id string, songIDs []string) (*Playlist, error) {
	body := map[string]any{"songs": songIDs}
	var p Playlist
	if err := c.doJSON(ctx, http.MethodPut, "/api/playlists/"+url.PathEscape(id)+"/songs", body, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePlaylist はプレイリストを削除する。
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/playlists/"+url.PathEscape(id), nil, true, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, auth, out)
}

// do はリクエストを送信し、2xxならoutにデコードする。
// 2xx以外は*APIErrorを返す。
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		if c.session == nil || c.session.Token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsUnauthorized はerrがトークン不足・無効によるものかを返す。
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotLoggedIn) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
