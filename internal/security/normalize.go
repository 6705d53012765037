package security

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer はNFD分解で結合文字（ダイアクリティカルマーク）を
// 分離して除去し、NFCへ再合成する変換チェーン。
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName は名称の一意性判定用キーを生成する。
// 小文字化・ダイアクリティカルマーク除去・連続空白の畳み込みを行い、
// "São Paulo" と "sao  paulo" が同じキーに写像されるようにする。
// 変換に失敗した場合は小文字化のみにフォールバックする。
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	folded, _, err := transform.String(foldTransformer, lowered)
	if err != nil {
		folded = lowered
	}
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeEmail はメールアドレスの一意性判定用キーを生成する。
// メールの大文字小文字は区別しない。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
