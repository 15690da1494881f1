package storage

import "testing"

func TestPlainTextExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "just some prose", "just some prose"},
		{"strips html tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"trims whitespace", "  <div>padded</div>  ", "padded"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlainTextExcerpt(tt.in)
			if got != tt.want {
				t.Errorf("PlainTextExcerpt(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
