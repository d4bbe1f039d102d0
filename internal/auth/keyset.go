package auth

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
)

// maxJWKSResponseSize はJWKSレスポンスの最大読み込みサイズ。
const maxJWKSResponseSize = 1 << 20

// minKeyRefreshInterval は未知の鍵で署名されたトークンを受けたときに
// JWKSを再取得する最短間隔。
const minKeyRefreshInterval = time.Minute

// jwksKeySet はJWKSエンドポイントから取得した公開鍵でid_tokenの署名を検証する。
// 鍵の取得に失敗した場合は ErrKeyFetch を返し、署名の不一致とは区別する。
type jwksKeySet struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu          sync.Mutex
	keys        []crypto.PublicKey
	lastRefresh time.Time
}

func newJWKSKeySet(url string, client *http.Client, now func() time.Time) *jwksKeySet {
	return &jwksKeySet{url: url, client: client, now: now}
}

// VerifySignature はキャッシュ済みの鍵で署名を検証し、
// 一致する鍵がなければJWKSを再取得してもう一度検証する。
func (k *jwksKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	keys, stale := k.cached()
	if len(keys) > 0 {
		payload, err := (&oidc.StaticKeySet{PublicKeys: keys}).VerifySignature(ctx, jwt)
		if err == nil || !stale {
			return payload, err
		}
	}

	keys, err := k.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return (&oidc.StaticKeySet{PublicKeys: keys}).VerifySignature(ctx, jwt)
}

// cached はキャッシュ済みの鍵と、再取得してよいかどうかを返す。
func (k *jwksKeySet) cached() ([]crypto.PublicKey, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys, k.now().Sub(k.lastRefresh) >= minKeyRefreshInterval
}

func (k *jwksKeySet) refresh(ctx context.Context) ([]crypto.PublicKey, error) {
	keys, err := k.fetch(ctx)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.keys = keys
	k.lastRefresh = k.now()
	k.mu.Unlock()
	return keys, nil
}

func (k *jwksKeySet) fetch(ctx context.Context) ([]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create jwks request: %w", ErrKeyFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: jwks request failed: %w", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read jwks response: %w", ErrKeyFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: jwks endpoint returned status %d", ErrKeyFetch, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: failed to parse jwks response: %w", ErrKeyFetch, err)
	}

	keys := make([]crypto.PublicKey, 0, len(set.Keys))
	for _, key := range set.Keys {
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		keys = append(keys, key.Key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: jwks contains no signing keys", ErrKeyFetch)
	}
	return keys, nil
}
