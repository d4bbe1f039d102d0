package auth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen はIdPへの呼び出しがサーキットブレーカーで遮断されたことを表す。
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig はIdP呼び出し用サーキットブレーカーの設定。
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // half-open時に許可するリクエスト数
	Interval     time.Duration // closed時にカウントをリセットする周期
	Timeout      time.Duration // openからhalf-openに移るまでの時間
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig はデフォルトのBreakerConfigを返す。
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerStateFunc はブレーカーの状態変化を受け取る（0=closed, 1=half-open, 2=open）。
type BreakerStateFunc func(name string, state float64)

type breakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreakerTransport はサーキットブレーカーを挟んだRoundTripperを返す。
// 通信エラーと5xx応答を失敗として数える。
func NewBreakerTransport(next http.RoundTripper, cfg BreakerConfig, onState BreakerStateFunc) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if onState == nil {
		onState = func(string, float64) {}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			onState(name, stateValue(to))
		},
	}

	onState(cfg.Name, 0)

	return &breakerTransport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenResponseSize))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("server error %d from %s", resp.StatusCode, req.URL.Host)
		}
		return resp, nil
	})
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// NewProviderHTTPClient はIdP呼び出し用のHTTPクライアントを生成する。
// baseの前段にサーキットブレーカーを挟み、タイムアウトを設定する。
// baseがnilの場合はhttp.DefaultTransportを使う。
func NewProviderHTTPClient(base http.RoundTripper, timeout time.Duration, cfg BreakerConfig, onState BreakerStateFunc) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewBreakerTransport(base, cfg, onState),
	}
}
