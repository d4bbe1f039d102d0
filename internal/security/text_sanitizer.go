// Package security はユーザー入力の無害化とIdPへの外向き通信の制限を提供する。
//
// 家計簿の名前、コメント、説明などの自由入力はプレーンテキストとして保存する。
// bluemondayのStrictPolicyで全てのタグを除去し、実体参照を戻した文字列を保存値とする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力の無害化インターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxPasses は多重に実体参照化された入力を処理する最大回数。
const maxPasses = 4

// Sanitize はHTMLタグを除去する。
// 実体参照で書かれたタグも除去対象とするため、戻してからポリシーを適用し、結果が変わらなくなるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for range maxPasses {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(html.UnescapeString(out))))
		if next == out {
			break
		}
		out = next
	}
	return out
}

// SanitizePtr はnilを保ったままSanitizeを適用する。
// 無害化の結果が空文字列になった場合はnilを返す。
func SanitizePtr(s TextSanitizer, raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := s.Sanitize(*raw)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
