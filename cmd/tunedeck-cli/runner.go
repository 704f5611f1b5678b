package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/hitoshi/tunedeck/internal/client"
)

// Runner はCLIコマンドの依存関係を保持する。
type Runner struct {
	sessionPath string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       *bufio.Reader
	now         func() time.Time
}

// RunnerOpts はRunnerの生成オプション。
type RunnerOpts struct {
	// SessionPath が空の場合は--sessionフラグ、それも無ければ~/.tunedeck/session.tomlを使う。
	SessionPath string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
}

// NewRunner はRunnerを生成する。
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Runner{
		sessionPath: opts.SessionPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       bufio.NewReader(opts.Input),
		now:         time.Now,
	}
}

// store はセッションの保存先を解決する。
func (r *Runner) store(cmd *cli.Command) (*client.SessionStore, error) {
	path := r.sessionPath
	if p := cmd.String("session"); p != "" {
		path = p
	}
	if path == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return client.NewSessionStore(path), nil
}

// client は保存済みセッションを読み込んだAPIクライアントを返す。
// 期限切れのセッションは破棄する。
func (r *Runner) client(cmd *cli.Command) (*client.Client, *client.SessionStore, error) {
	store, err := r.store(cmd)
	if err != nil {
		return nil, nil, err
	}

	session, err := store.Load()
	if err != nil {
		r.logger.Warn("ignoring unreadable session file", "path", store.Path(), "err", err)
		session = nil
	}
	if session != nil && session.Expired(r.now()) {
		r.logger.Info("session expired; please log in again", "username", session.Username)
		if err := store.Clear(); err != nil {
			r.logger.Warn("failed to clear expired session", "err", err)
		}
		session = nil
	}

	c, err := client.New(client.Config{
		BaseURL:    cmd.String("server"),
		HTTPClient: r.httpClient,
		Session:    session,
	})
	if err != nil {
		return nil, nil, err
	}
	r.logger.Debug("using server", "url", cmd.String("server"), "session", store.Path())
	return c, store, nil
}

// authFailed は認証エラーを利用者向けの文言に変換する。
// サーバーがトークンを拒否した場合は保存済みセッションを消す。
func (r *Runner) authFailed(store *client.SessionStore, err error) error {
	if !client.IsUnauthorized(err) {
		return err
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if clearErr := store.Clear(); clearErr != nil {
			r.logger.Warn("failed to clear rejected session", "err", clearErr)
		}
	}
	return fmt.Errorf("not logged in (run `tunedeck-cli login <username>`): %w", err)
}

// readPassword は--passwordフラグ、無ければ入力の1行目をパスワードとして返す。
func (r *Runner) readPassword(cmd *cli.Command) (string, error) {
	if p := cmd.String("password"); p != "" {
		return p, nil
	}
	if err := r.writePlain("Password: "); err != nil {
		return "", err
	}
	line, err := r.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password must not be empty")
	}
	return line, nil
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
