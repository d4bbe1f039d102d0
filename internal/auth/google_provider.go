package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"golang.org/x/oauth2"
)

// maxTokenResponseSize はトークンレスポンスの最大読み込みサイズ。
const maxTokenResponseSize = 1 << 20

// Identity はid_tokenから取り出した検証済みのユーザー情報。
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleProviderConfig はGoogle OAuth/OIDCプロバイダーの設定。
type GoogleProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL  string
	TokenURL string
	Issuer   string
	JWKSURL  string
}

// GoogleProvider は認可コードの交換とid_tokenの検証を行う。
type GoogleProvider struct {
	oauth    *oauth2.Config
	client   *http.Client
	verifier *oidc.IDTokenVerifier
	keySet   oidc.KeySet
}

// idTokenSigningAlgs はid_tokenの署名として受け入れるアルゴリズム。
var idTokenSigningAlgs = []jose.SignatureAlgorithm{jose.RS256}

// ProviderOption はGoogleProviderのオプション。
type ProviderOption func(*providerOptions)

type providerOptions struct {
	client *http.Client
	keySet oidc.KeySet
	now    func() time.Time
}

// WithHTTPClient はトークン交換と公開鍵取得に使うHTTPクライアントを指定する。
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(o *providerOptions) { o.client = c }
}

// WithKeySet はid_tokenの署名検証に使う鍵セットを差し替える。
func WithKeySet(ks oidc.KeySet) ProviderOption {
	return func(o *providerOptions) { o.keySet = ks }
}

// WithNow は有効期限の検証に使う時刻関数を差し替える。
func WithNow(now func() time.Time) ProviderOption {
	return func(o *providerOptions) { o.now = now }
}

// NewGoogleProvider はGoogleProviderを生成する。
// 鍵セットを指定しない場合はJWKSURLから公開鍵を取得し、キャッシュする。
// 公開鍵の取得にもトークン交換と同じHTTPクライアントを使う。
func NewGoogleProvider(cfg GoogleProviderConfig, opts ...ProviderOption) *GoogleProvider {
	o := &providerOptions{client: http.DefaultClient, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	keySet := o.keySet
	if keySet == nil {
		keySet = newJWKSKeySet(cfg.JWKSURL, o.client, o.now)
	}

	// 署名はVerifyIDTokenでkeySetを使って検証する
	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID:                   cfg.ClientID,
		Now:                        o.now,
		InsecureSkipSignatureCheck: true,
	})

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: []string{oidc.ScopeOpenID, "email", "profile"},
		},
		client:   o.client,
		verifier: verifier,
		keySet:   keySet,
	}
}

// GetLoginURL は認可エンドポイントのURLを生成する。
// スコープは openid, email, profile。
func (p *GoogleProvider) GetLoginURL() string {
	return p.oauth.AuthCodeURL("")
}

type tokenResponse struct {
	IDToken string `json:"id_token"`
}

// ExchangeCode は認可コードをトークンエンドポイントに送り、id_tokenを返す。
// レスポンスがアクセストークンを含まなくてもid_tokenがあれば成功とする。
// リトライは行わない。
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.oauth.ClientID},
		"client_secret": {p.oauth.ClientSecret},
		"redirect_uri":  {p.oauth.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.oauth.Endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create token request: %w", ErrUpstreamExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %w", ErrUpstreamExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token response: %w", ErrUpstreamExchange, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrUpstreamExchange, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: failed to parse token response: %w", ErrUpstreamExchange, err)
	}

	if tr.IDToken == "" {
		return "", ErrMissingIDToken
	}

	return tr.IDToken, nil
}

// idTokenClaims はid_tokenのペイロードのうち利用するクレーム。
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// VerifyIDToken はid_tokenの発行者、audience、有効期限、署名を検証し、ユーザー情報を返す。
// 検証に失敗した場合は *InvalidIDTokenError を返す。
// 公開鍵を取得できなかった場合は ErrKeyFetch をラップしたエラーを返す。
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &InvalidIDTokenError{Reason: err.Error()}
	}

	if _, err := jose.ParseSigned(rawIDToken, idTokenSigningAlgs); err != nil {
		return nil, &InvalidIDTokenError{Reason: "unsupported signing algorithm"}
	}
	if _, err := p.keySet.VerifySignature(ctx, rawIDToken); err != nil {
		if errors.Is(err, ErrKeyFetch) {
			return nil, err
		}
		return nil, &InvalidIDTokenError{Reason: "failed to verify signature"}
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, &InvalidIDTokenError{Reason: "malformed claims"}
	}
	if idToken.Subject == "" {
		return nil, &InvalidIDTokenError{Reason: "missing subject"}
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

var (
	_ OAuthProvider   = (*GoogleProvider)(nil)
	_ IDTokenVerifier = (*GoogleProvider)(nil)
)
