package auth

import "errors"

var (
	// ErrMissingIDToken はトークン交換レスポンスにid_tokenが含まれないことを表す。
	ErrMissingIDToken = errors.New("missing id_token in token response")

	// ErrUpstreamExchange はトークンエンドポイントとの通信失敗、非2xx応答、解析不能な応答を表す。
	ErrUpstreamExchange = errors.New("token exchange failed")

	// ErrKeyFetch はid_tokenの署名検証に使う公開鍵をIdPから取得できなかったことを表す。
	ErrKeyFetch = errors.New("failed to fetch id_token signing keys")
)

// InvalidIDTokenError はid_tokenの署名、発行者、audience、有効期限のいずれかの検証失敗を表す。
type InvalidIDTokenError struct {
	Reason string
}

func (e *InvalidIDTokenError) Error() string {
	return "invalid id_token: " + e.Reason
}
