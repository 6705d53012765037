// Package security は入力値のサニタイズと正規化を提供する。
//
// NameSanitizerService は検査地名・実施者名・メールアドレスなど、
// 後で画面に描画される自由入力文字列からHTMLを除去し、
// 格納型XSSからユーザーを保護する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名サニタイズ機能のインターフェースを定義する。
// 登録・改名の保存前に使用される。
type NameSanitizerService interface {
	// Sanitize は表示名からタグとマークアップを全て除去し、
	// 前後の空白を落としたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグを除去し、テキストノードのみを残す。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は表示名からタグとマークアップを全て除去する。
// bluemondayはテキストをHTMLエスケープして返すため、
// プレーンテキストとして保存できるようアンエスケープしてから返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
