package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"render_save.toml", "render_save.toml"},
		{"  shots/010:final.toml ", "shots-010-final.toml"},
		{"what?<is>|this\".toml", "whatisthis.toml"},
		{"../escape.toml", "-escape.toml"},
		{"", "fallback.toml"},
		{"..", "fallback.toml"},
		{"?|", "fallback.toml"},
	}
	for _, tc := range tests {
		if got := SanitizeFileName(tc.in, "fallback.toml"); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
