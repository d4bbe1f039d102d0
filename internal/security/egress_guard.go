package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// egressSchemes はIdPへの外向き通信で許可するURLスキーム。
var egressSchemes = []string{"https"}

// egressPorts はIdPへの外向き通信で許可するポート。
var egressPorts = []int{443}

// NewEgressTransport はIdP呼び出し用のRoundTripperを生成する。
// safeurlがDNS解決後のIPアドレスをDialerで検証するため、
// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は拒否される。
func NewEgressTransport(timeout time.Duration) http.RoundTripper {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(egressSchemes...).
		SetAllowedPorts(egressPorts...).
		Build()

	return &egressTransport{client: safeurl.Client(config)}
}

// egressTransport はsafeurlのクライアントをRoundTripperとして使うためのアダプタ。
// URLの検証はsafeurl側のDoで行われる。
type egressTransport struct {
	client *safeurl.WrappedClient
}

func (t *egressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}
