package roster

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Alice", "alice"},
		{"diacritics", "Jiří Novák", "jiri novak"},
		{"dashes", "Jan-Novak", "jan novak"},
		{"mixed case", "BOB Smith", "bob smith"},
		{"extra whitespace", "  Anna   Marie ", "anna marie"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeName(tc.input); got != tc.want {
				t.Errorf("NormalizeName(%q) = %q; want %q", tc.input, got, tc.want)
			}
		})
	}
}
