// Package token はセッショントークン（JWT）の発行と検証を提供する。
//
// セッショントークンはステートレスで、サーバー側にセッションストアを持たない。
// 失効は有効期限によってのみ行われる。
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/fintrack/internal/model"
)

// DefaultTTL はセッショントークンの既定の有効期間。
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken は署名不正、形式不正、期限切れのいずれかで検証に失敗したことを表す。
// 呼び出し元に失敗理由を区別させないため、すべての検証失敗はこのエラーでラップされる。
var ErrInvalidToken = errors.New("invalid session token")

// Claims はセッショントークンに埋め込むユーザー情報。
// 有効期限は RegisteredClaims.ExpiresAt（exp）に格納される。
type Claims struct {
	UserID        int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	SubID         string `json:"sub_id"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
	jwt.RegisteredClaims
}

// ClaimsForUser はユーザーからクレームを組み立てる。有効期限は含まない。
func ClaimsForUser(u *model.User) Claims {
	return Claims{
		UserID:        u.ID,
		Name:          u.Name,
		Email:         u.Email,
		SubID:         u.SubID,
		Picture:       u.Picture,
		VerifiedEmail: u.VerifiedEmail,
	}
}

// Config はCodecの設定。
type Config struct {
	Secret    string
	Algorithm string        // HS256, HS384, HS512
	TTL       time.Duration // 0の場合はDefaultTTL
}

// Option はCodecの生成オプション。
type Option func(*Codec)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec はセッショントークンの発行と検証を行う。
// 生成後は不変で、複数のgoroutineから同時に使用できる。
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec はCodecを生成する。
// 共有シークレットで署名するため、HMAC系以外のアルゴリズムはエラーとする。
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}

	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Codec{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL はトークンの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue はユーザー情報を埋め込んだ署名付きトークンを発行する。
// 有効期限は発行時刻 + TTL。
func (c *Codec) Issue(u *model.User) (string, error) {
	claims := ClaimsForUser(u)
	claims.ExpiresAt = jwt.NewNumericDate(c.now().Add(c.ttl))

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、埋め込まれたクレームを返す。
// 設定されたアルゴリズム以外で署名されたトークン、expを持たないトークンは拒否する。
func (c *Codec) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
