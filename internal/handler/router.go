package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fintrack/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger         *slog.Logger
	AllowedOrigins []string
	Gate           *middleware.Gate
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    middleware.HTTPMetrics // nilの場合は計測しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 家計簿
	LedgerService LedgerServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → Metrics → SecurityHeaders → CORS → CSRF → Gate → RateLimit
//
// ゲートはルーター全体に適用するため、未定義のルートも認証されるまで404を返さない。
// /api/v1/auth 配下とOPTIONSリクエストはゲートを素通りする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigins))
	r.Use(middleware.NewCSRFMiddleware(deps.AllowedOrigins))
	r.Use(deps.Gate.Middleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	ledgerHandler := NewLedgerHandler(deps.LedgerService)

	r.Route("/api/v1", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Get("/oauth", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
		})

		// --- 認証が必要なルート ---
		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.Me)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListTransactions)
			r.Post("/", ledgerHandler.CreateTransaction)
		})

		r.Route("/transaction-category", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListCategories)
			r.Post("/", ledgerHandler.CreateCategory)
		})

		r.Route("/finance-period", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListFinancePeriods)
			r.Post("/", ledgerHandler.CreateFinancePeriod)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListWallets)
			r.Post("/", ledgerHandler.CreateWallet)
		})

		r.Get("/currencies/", ledgerHandler.ListCurrencies)
		r.Get("/capital-storing-places/", ledgerHandler.ListCapitalStoringPlaces)

		r.Route("/capital-transactions", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListCapitalTransactions)
			r.Post("/", ledgerHandler.CreateCapitalTransaction)
		})
	})

	return r
}
