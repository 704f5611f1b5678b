package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tunedeck/internal/auth"
	"github.com/hitoshi/tunedeck/internal/catalog"
	"github.com/hitoshi/tunedeck/internal/config"
	"github.com/hitoshi/tunedeck/internal/database"
	"github.com/hitoshi/tunedeck/internal/handler"
	"github.com/hitoshi/tunedeck/internal/logger"
	"github.com/hitoshi/tunedeck/internal/metrics"
	"github.com/hitoshi/tunedeck/internal/playlist"
	"github.com/hitoshi/tunedeck/internal/repository"
	"github.com/hitoshi/tunedeck/internal/security"
	"github.com/hitoshi/tunedeck/internal/storage"
	"github.com/hitoshi/tunedeck/internal/token"
	"github.com/hitoshi/tunedeck/internal/validation"
	"github.com/hitoshi/tunedeck/internal/worker/sweeper"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを読み込む（既存の環境変数が優先）
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再初期化する
	logger.SetupDefaultWithLevel(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// help と healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHelp:
		writeUsage(w)
		return nil
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("log_level", cfg.LogLevel.String()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newMetricsRegistry はプロセス・ランタイムのコレクターを含むレジストリと
// アプリケーションメトリクスのコレクターを生成する。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// buildRouterDeps はserveモードの全依存関係をワイヤリングする。
func buildRouterDeps(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, collector *metrics.Collector) (*handler.RouterDeps, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	songRepo := repository.NewPostgresSongRepo(db)
	playlistRepo := repository.NewPostgresPlaylistRepo(db)

	// 2. トークン・ストレージ・サニタイザーの初期化
	tokens, err := token.NewService(token.Config{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init token service: %w", err)
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadMaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to init asset store: %w", err)
	}

	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	authService, err := auth.NewService(userRepo, tokens, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
	if err != nil {
		return nil, fmt.Errorf("failed to init auth service: %w", err)
	}
	catalogService := catalog.NewService(songRepo, store, sanitizer, catalog.ServiceConfig{
		MaxAssetSize: cfg.UploadMaxSize,
	})
	playlistService := playlist.NewService(playlistRepo, songRepo, sanitizer)

	// 4. ハンドラー依存関係の構築
	return &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		HealthChecker:     db,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		Validator:         validation.New(),

		AuthService:     handler.NewAuthServiceAdapter(authService),
		SongService:     handler.NewSongServiceAdapter(catalogService),
		SongConfig:      handler.SongHandlerConfig{MaxUploadSize: cfg.UploadMaxSize},
		PlaylistService: playlistService,
		UploadDir:       store.Dir(),
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetricsRegistry()
	deps, err := buildRouterDeps(cfg, db, reg, collector)
	if err != nil {
		return err
	}

	server := newHTTPServer(cfg.ServerPort, handler.NewRouter(deps))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveUntilDone(ctx, server, "API server")
}

// runWorker はワーカーモードで起動する。
// 孤立アセットのスイープを定期実行し、/healthと/metricsをSERVER_PORTで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadMaxSize)
	if err != nil {
		return fmt.Errorf("failed to init asset store: %w", err)
	}

	reg, collector := newMetricsRegistry()

	job := sweeper.NewSweepJob(
		repository.NewPostgresSongRepo(db),
		store,
		slog.Default(),
		collector,
		sweeper.Config{
			GracePeriod: cfg.SweepGracePeriod,
			DeleteRate:  cfg.SweepDeleteRate,
		},
	)

	r := chi.NewRouter()
	r.Handle("/health", handler.NewHealthHandler(db))
	r.Handle("/metrics", metrics.Handler(reg))
	server := newHTTPServer(cfg.ServerPort, r)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.String("upload_dir", store.Dir()),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Start(ctx, cfg.SweepInterval)
	}()

	err = serveUntilDone(ctx, server, "worker")
	<-done

	slog.Info("worker stopped gracefully")
	return err
}

func newHTTPServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// アップロードを考慮してボディ読み込みは長めに取る
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// serveUntilDone はctxがキャンセルされるまでサーバーを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrationsWithVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
