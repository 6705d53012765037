package security

import "testing"

// TestNormalizeName_CaseAndDiacritics は大文字小文字とダイアクリティカルマークを
// 無視した同値類に写像されることを検証する。
func TestNormalizeName_CaseAndDiacritics(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"case only", "Hospital Central", "hospital central"},
		{"diacritics", "São Paulo", "sao paulo"},
		{"both", "Clínica São José", "clinica SAO jose"},
		{"cedilla", "Coração", "coracao"},
		{"umlaut", "Zürich Lab", "zurich lab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NormalizeName(tt.a) != NormalizeName(tt.b) {
				t.Errorf("NormalizeName(%q) = %q, NormalizeName(%q) = %q; want equal",
					tt.a, NormalizeName(tt.a), tt.b, NormalizeName(tt.b))
			}
		})
	}
}

// TestNormalizeName_WhitespaceFolding は連続空白と前後空白の畳み込みを検証する。
func TestNormalizeName_WhitespaceFolding(t *testing.T) {
	if got := NormalizeName("  Hospital   Central  "); got != "hospital central" {
		t.Errorf("NormalizeName = %q, want %q", got, "hospital central")
	}
	if got := NormalizeName("a\tb\nc"); got != "a b c" {
		t.Errorf("NormalizeName = %q, want %q", got, "a b c")
	}
}

// TestNormalizeName_DistinctNamesStayDistinct は実質的に異なる名称が
// 衝突しないことを検証する。
func TestNormalizeName_DistinctNamesStayDistinct(t *testing.T) {
	if NormalizeName("Hospital Norte") == NormalizeName("Hospital Sul") {
		t.Error("distinct names must not collide")
	}
}

// TestNormalizeEmail はメールの正規化を検証する。
func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Admin@Example.COM "); got != "admin@example.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "admin@example.com")
	}
}
