// Package app はアプリケーションの初期化と起動モードごとの実行を提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/fintrack/internal/auth"
	"github.com/hitoshi/fintrack/internal/config"
	"github.com/hitoshi/fintrack/internal/database"
	"github.com/hitoshi/fintrack/internal/handler"
	"github.com/hitoshi/fintrack/internal/ledger"
	"github.com/hitoshi/fintrack/internal/logger"
	"github.com/hitoshi/fintrack/internal/metrics"
	"github.com/hitoshi/fintrack/internal/middleware"
	"github.com/hitoshi/fintrack/internal/repository"
	"github.com/hitoshi/fintrack/internal/security"
	"github.com/hitoshi/fintrack/internal/token"
	"github.com/hitoshi/fintrack/internal/user"
)

const (
	shutdownTimeout = 30 * time.Second
	breakerName     = "google-oauth"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("METRICS_PORT")
		if port == "" {
			port = "9090"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("metrics_port", cfg.MetricsPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// apiComponents はAPIサーバーの構成要素。
type apiComponents struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンド処理を停止する。
func (c *apiComponents) Close() {
	c.rateLimiter.Stop()
}

// buildAPI は設定とDB接続から全依存関係をワイヤリングし、APIのHTTPハンドラーを構築する。
func buildAPI(cfg *config.Config, db *sql.DB, reg prometheus.Registerer) (*apiComponents, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	repos := ledger.Repositories{
		Categories:          repository.NewPostgresCategoryRepo(db),
		Transactions:        repository.NewPostgresTransactionRepo(db),
		FinancePeriods:      repository.NewPostgresFinancePeriodRepo(db),
		Wallets:             repository.NewPostgresWalletRepo(db),
		References:          repository.NewPostgresReferenceRepo(db),
		CapitalTransactions: repository.NewPostgresCapitalTransactionRepo(db),
	}

	// 2. セッショントークン
	codec, err := token.NewCodec(token.Config{
		Secret:    cfg.JWTSecret,
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	// 3. IdP（外向き通信の制限、タイムアウト、サーキットブレーカー付きのHTTPクライアント）
	var egress http.RoundTripper
	if cfg.ProviderEgressGuard {
		egress = security.NewEgressTransport(cfg.ProviderTimeout)
	}
	providerClient := auth.NewProviderHTTPClient(
		egress,
		cfg.ProviderTimeout,
		auth.DefaultBreakerConfig(breakerName),
		collector.SetBreakerState,
	)
	provider := auth.NewGoogleProvider(auth.GoogleProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		Issuer:       cfg.OIDCIssuer,
		JWKSURL:      cfg.OIDCJWKSURL,
	}, auth.WithHTTPClient(providerClient))

	// 4. ドメインサービスの初期化
	authService := auth.NewService(provider, provider, userRepo, codec, auth.WithMetrics(collector))
	userService := user.NewService(userRepo)
	ledgerService := ledger.NewService(repos, security.NewTextSanitizer())

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Gate:           middleware.NewGate(codec, collector),
		RateLimiter:    rateLimiter,
		HTTPMetrics:    collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:   cfg.FrontendURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: int(codec.TTL().Seconds()),
		},

		UserService:   userService,
		LedgerService: ledgerService,
	})

	return &apiComponents{handler: router, rateLimiter: rateLimiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、APIサーバーと管理用サーバー（/metrics, /health）を起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
	)

	// 2. メトリクスレジストリ
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. 依存関係のワイヤリング
	api, err := buildAPI(cfg, db, reg)
	if err != nil {
		return err
	}
	defer api.Close()

	// 4. HTTPサーバーの起動
	apiServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.ServerPort),
		Handler:           api.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	adminServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.MetricsPort),
		Handler:           metrics.SetupAdminRoutes(reg, db),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return serve(ctx, apiServer, adminServer)
}

// serve は複数のHTTPサーバーを起動し、ctxのキャンセルまたはいずれかの起動失敗で全サーバーを停止する。
func serve(ctx context.Context, servers ...*http.Server) error {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			slog.Info("HTTP server starting", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP servers...")
	case runErr = <-errCh:
		slog.Error("server listen error", slog.String("error", runErr.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server %s shutdown failed: %w", srv.Addr, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("HTTP servers stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", database.MaskURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// 管理用ポートの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
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
