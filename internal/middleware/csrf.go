package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/hitoshi/fintrack/internal/model"
)

// NewCSRFMiddleware は状態変更リクエストの送信元オリジンを検証するミドルウェアを返す。
// POST, PUT, PATCH, DELETE でOriginヘッダーが付いている場合、許可リストにないオリジンは403とする。
// Originヘッダーのないリクエスト（ブラウザ以外のクライアント）は検証しない。
func NewCSRFMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && !slices.Contains(allowedOrigins, origin) {
				slog.WarnContext(r.Context(), "CSRF validation failed: origin not allowed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenOriginError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
