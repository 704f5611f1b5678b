// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は楽曲メタデータやプレイリスト名などの利用者入力から
// HTMLタグを取り除き、プレーンテキストとして保存できる形にする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト入力のサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いた文字列を返す。
	// エンティティはデコード済みの形で返す（"Rock &amp; Roll" ではなく "Rock & Roll"）。
	Sanitize(s string) string
}

// TextSanitizer はbluemondayのStrictPolicyを使ったTextSanitizerServiceの実装。
// bluemonday.Policyは並行利用に対して安全。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす回数の上限。
const maxSanitizePasses = 8

// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
// "&lt;b&gt;" のようにエスケープ済みのタグもデコード後に除去されるよう、
// 出力が変化しなくなるまで除去とデコードを繰り返す。
// 上限回数で収束しない入力は空文字列になる。
func (s *TextSanitizer) Sanitize(in string) string {
	cur := strings.TrimSpace(in)
	for range maxSanitizePasses {
		if cur == "" {
			return ""
		}
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(cur)))
		if next == cur {
			return cur
		}
		cur = next
	}
	return ""
}

var _ TextSanitizerService = (*TextSanitizer)(nil)
