// Package authtest はOIDCプロバイダーのテスト用スタブを提供する。
package authtest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer   = "https://accounts.google.com"
	ClientID = "test-client-id"
)

// Signer はRS256でid_tokenに署名する。
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner は新しいRSA鍵でSignerを生成する。
func NewSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return &Signer{key: key}
}

// KeySet は署名検証用の鍵セットを返す。
func (s *Signer) KeySet() oidc.KeySet {
	return &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&s.key.PublicKey}}
}

// JWKS は公開鍵をJWKS形式で返す。
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &s.key.PublicKey,
		KeyID:     "test-key",
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

// Sign は指定クレームに署名したid_tokenを返す。
func (s *Signer) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		t.Fatalf("failed to sign id_token: %v", err)
	}
	return raw
}

// Claims はsubjectを持つ有効なid_tokenクレームを返す。
func Claims(subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            Issuer,
		"aud":            ClientID,
		"sub":            subject,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "a@b.com",
		"email_verified": true,
		"name":           "A",
		"picture":        "p",
	}
}

// TokenEndpoint はトークンエンドポイントのスタブ。
type TokenEndpoint struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
}

// NewTokenEndpoint は固定のステータスとJSONボディを返すトークンエンドポイントを起動する。
func NewTokenEndpoint(t *testing.T, status int, body any) *TokenEndpoint {
	t.Helper()
	te := &TokenEndpoint{}
	te.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			te.mu.Lock()
			te.requests = append(te.requests, r.PostForm)
			te.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch b := body.(type) {
		case string:
			_, _ = w.Write([]byte(b))
		default:
			_ = json.NewEncoder(w).Encode(b)
		}
	}))
	t.Cleanup(te.Close)
	return te
}

// Requests はこれまでに受け取ったフォームを返す。
func (te *TokenEndpoint) Requests() []url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]url.Values(nil), te.requests...)
}

// KeysEndpoint はJWKSエンドポイントのスタブ。
type KeysEndpoint struct {
	*httptest.Server

	mu     sync.Mutex
	status int
	body   any
	hits   int
}

// NewKeysEndpoint は指定のステータスとJSONボディを返すJWKSエンドポイントを起動する。
func NewKeysEndpoint(t *testing.T, status int, body any) *KeysEndpoint {
	t.Helper()
	ke := &KeysEndpoint{status: status, body: body}
	ke.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ke.mu.Lock()
		ke.hits++
		status, body := ke.status, ke.body
		ke.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ke.Close)
	return ke
}

// Respond は以降のレスポンスを差し替える。
func (ke *KeysEndpoint) Respond(status int, body any) {
	ke.mu.Lock()
	defer ke.mu.Unlock()
	ke.status, ke.body = status, body
}

// Hits はこれまでに受け取ったリクエスト数を返す。
func (ke *KeysEndpoint) Hits() int {
	ke.mu.Lock()
	defer ke.mu.Unlock()
	return ke.hits
}
