package security

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Groceries", "Groceries"},
		{"日本語", "食費", "食費"},
		{"前後の空白を除去", "  Rent  ", "Rent"},
		{"タグを除去して本文を残す", "<b>Food</b> and <i>Drink</i>", "Food and Drink"},
		{"アンパサンドはエスケープしない", "Food & Drink", "Food & Drink"},
		{"scriptは内容ごと除去", "Lunch<script>alert(1)</script>", "Lunch"},
		{"実体参照のscriptも除去", "&lt;script&gt;alert(1)&lt;/script&gt;Lunch", "Lunch"},
		{"イベント属性付きのタグを除去", `<img src=x onerror="alert(1)">Taxi`, "Taxi"},
		{"比較記号は残す", "a < b", "a < b"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		"<p>Salary &amp; bonus</p>",
		"&amp;lt;b&amp;gt;x",
		"Coffee <3",
	}
	for _, in := range inputs {
		once := sanitizer.Sanitize(in)
		twice := sanitizer.Sanitize(once)
		if strings.Contains(once, "<p>") {
			t.Errorf("Sanitize(%q) = %q, tags should be removed", in, once)
		}
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitizePtr(t *testing.T) {
	sanitizer := NewTextSanitizer()

	if got := SanitizePtr(sanitizer, nil); got != nil {
		t.Errorf("SanitizePtr(nil) = %q, want nil", *got)
	}

	onlyMarkup := "<script>x</script>"
	if got := SanitizePtr(sanitizer, &onlyMarkup); got != nil {
		t.Errorf("SanitizePtr(markup only) = %q, want nil", *got)
	}

	comment := " <em>weekly</em> shopping "
	got := SanitizePtr(sanitizer, &comment)
	if got == nil || *got != "weekly shopping" {
		t.Errorf("SanitizePtr() = %v, want %q", got, "weekly shopping")
	}
}
