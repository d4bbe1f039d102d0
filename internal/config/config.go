// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回だけ読み込み、イミュータブルとして各コンポーネントのコンストラクタに渡す。
type Config struct {
	// Server
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8000"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// Frontend
	FrontendOrigins []string `env:"FE_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	FrontendURL     string   `env:"FE_URL,required,notEmpty"`

	// Database
	// DatabaseURL が空の場合は DB_* から組み立てる。
	DatabaseURL string `env:"DATABASE_URL"`
	DBUsername  string `env:"DB_USERNAME"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST"`
	DBPort      int    `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME"`
	DBSSLMode   string `env:"DB_SSL_MODE" envDefault:"require"`

	// OAuth
	GoogleClientID     string        `env:"CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string        `env:"CLIENT_SECRET,required,notEmpty"`
	GoogleRedirectURL  string        `env:"REDIRECT_URL,required,notEmpty"`
	GoogleAuthURL      string        `env:"AUTH_URI" envDefault:"https://accounts.google.com/o/oauth2/auth"`
	GoogleTokenURL     string        `env:"TOKEN_URI" envDefault:"https://oauth2.googleapis.com/token"`
	OIDCIssuer         string        `env:"OIDC_ISSUER" envDefault:"https://accounts.google.com"`
	OIDCJWKSURL        string        `env:"OIDC_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`

	// ProviderEgressGuard が有効な場合、IdPへの通信はhttps:443の公開アドレスに限る。
	ProviderEgressGuard bool `env:"PROVIDER_EGRESS_GUARD" envDefault:"true"`

	// Session
	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	JWTAlgorithm string        `env:"JWT_ALGO" envDefault:"HS256"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	// Rate Limit (req/min/user)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// supportedJWTAlgorithms はセッショントークンの署名に使用できるアルゴリズム。
// 秘密鍵は共有シークレットのため、HMAC系のみを許可する。
var supportedJWTAlgorithms = []string{"HS256", "HS384", "HS512"}

// Load は環境変数からConfigを読み込む。
// 必須環境変数の未設定や不正な値がある場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		dsn, err := cfg.composeDatabaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は読み込んだ設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(supportedJWTAlgorithms, c.JWTAlgorithm) {
		errs = append(errs, fmt.Errorf("JWT_ALGO must be one of %v, got %q", supportedJWTAlgorithms, c.JWTAlgorithm))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", c.RateLimitGeneral))
	}

	for name, raw := range map[string]string{
		"FE_URL":        c.FrontendURL,
		"REDIRECT_URL":  c.GoogleRedirectURL,
		"AUTH_URI":      c.GoogleAuthURL,
		"TOKEN_URI":     c.GoogleTokenURL,
		"OIDC_JWKS_URL": c.OIDCJWKSURL,
	} {
		if _, err := parseAbsoluteURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// ProviderOrigin はIdPの認可エンドポイントのオリジン（scheme://host）を返す。
func (c *Config) ProviderOrigin() string {
	u, err := parseAbsoluteURL(c.GoogleAuthURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// AllowedOrigins はCORSで許可するオリジンの一覧を返す。
// フロントエンドのオリジンとIdPのオリジンを重複なしで含む。
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.FrontendOrigins)+1)
	for _, o := range c.FrontendOrigins {
		if o != "" && !slices.Contains(origins, o) {
			origins = append(origins, o)
		}
	}
	if p := c.ProviderOrigin(); p != "" && !slices.Contains(origins, p) {
		origins = append(origins, p)
	}
	return origins
}

// composeDatabaseURL は DB_* 環境変数から PostgreSQL の接続URLを組み立てる。
func (c *Config) composeDatabaseURL() (string, error) {
	var missing []string
	if c.DBUsername == "" {
		missing = append(missing, "DB_USERNAME")
	}
	if c.DBHost == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("required environment variables are not set (DATABASE_URL or): %v", missing)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String(), nil
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("URL must be absolute, got %q", raw)
	}
	return u, nil
}
