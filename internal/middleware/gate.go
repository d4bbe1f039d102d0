// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/fintrack/internal/token"
)

const (
	// SessionCookieName はセッショントークンを保持するCookieの名前。
	SessionCookieName = "jwt_token"

	// AuthPathPrefix は認証不要のルートのプレフィックス。
	AuthPathPrefix = "/api/v1/auth"

	unauthenticatedMessage = "No authentication credentials provided"
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidCredentials = errors.New("invalid credentials")
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションのクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はセッショントークンの検証インターフェース。
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// GateMetrics はゲートでの拒否を計測するインターフェース。
type GateMetrics interface {
	RecordGateRejection(reason string)
}

// Gate はリクエストごとに認証の要否を判定し、セッショントークンを検証する。
type Gate struct {
	verifier TokenVerifier
	metrics  GateMetrics
}

// NewGate はGateを生成する。metricsはnilでもよい。
func NewGate(verifier TokenVerifier, metrics GateMetrics) *Gate {
	return &Gate{verifier: verifier, metrics: metrics}
}

// IsPublic は認証不要のリクエストかどうかを判定する。
// OPTIONSリクエストと /api/v1/auth 配下のパスが対象。
// パスは正規化してから判定するため、/api/v1/auth/../users のような迂回は通らない。
func IsPublic(method, urlPath string) bool {
	if method == http.MethodOptions {
		return true
	}
	cleaned := path.Clean("/" + urlPath)
	return cleaned == AuthPathPrefix || strings.HasPrefix(cleaned, AuthPathPrefix+"/")
}

// Authorize はCookieの値を検証してクレームを返す。
// 公開ルートの場合はクレームなしで許可する。
func (g *Gate) Authorize(method, urlPath, cookieValue string) (*token.Claims, error) {
	if IsPublic(method, urlPath) {
		return nil, nil
	}
	if cookieValue == "" {
		return nil, errMissingCredentials
	}
	claims, err := g.verifier.Verify(cookieValue)
	if err != nil {
		return nil, errInvalidCredentials
	}
	return claims, nil
}

// Middleware はゲートをHTTPミドルウェアとして返す。
// 検証済みのクレームをリクエストコンテキストに注入し、
// 未認証のリクエストには401を返してハンドラーを呼ばない。
func (g *Gate) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookieValue string
			if c, err := r.Cookie(SessionCookieName); err == nil {
				cookieValue = c.Value
			}

			claims, err := g.Authorize(r.Method, r.URL.Path, cookieValue)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, errMissingCredentials) {
					reason = "missing"
				}
				slog.WarnContext(r.Context(), "request rejected by auth gate",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if g.metrics != nil {
					g.metrics.RecordGateRejection(reason)
				}
				writeUnauthenticated(w)
				return
			}

			if claims != nil {
				annotateUser(r.Context(), claims.UserID)
				r = r.WithContext(ContextWithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": unauthenticatedMessage})
}

// ClaimsFromContext はリクエストコンテキストからクレームを取得する。
// ゲートを通過した非公開ルートでのみ存在する。
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok && claims != nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
