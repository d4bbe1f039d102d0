// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fintrack/internal/auth"
	"github.com/hitoshi/fintrack/internal/middleware"
	"github.com/hitoshi/fintrack/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL() string
	HandleCallback(ctx context.Context, code string) (*auth.CallbackResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL   string // ログイン完了後のリダイレクト先
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type loginURLResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// Login はGoogleの認可URLを返す。フロントエンドがこのURLへ遷移する。
// GET /api/v1/auth/oauth
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loginURLResponse{RedirectURL: h.service.GetLoginURL()})
}

// Callback はOAuthコールバックを処理する。
// 成功時はセッションCookieを設定してフロントエンドへ302でリダイレクトする。
// GET /api/v1/auth/callback?code=xxx
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// ユーザーが同意しなかった場合など、IdPがエラーを返してきたケース
	if reason := query.Get("error"); reason != "" {
		slog.WarnContext(r.Context(), "authorization denied by provider",
			slog.String("reason", reason),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewAuthorizationDeniedError(reason))
		return
	}

	result, err := h.service.HandleCallback(r.Context(), query.Get("code"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.SessionToken, h.config.SessionMaxAge))
	http.Redirect(w, r, h.config.FrontendURL, http.StatusFound)
}

// Logout はセッションCookieを削除する。
// トークンはステートレスなため、サーバー側で破棄する状態はない。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
