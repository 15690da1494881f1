package model

import "testing"

func TestMakeAbsoluteURL(t *testing.T) {
	cases := []struct {
		name     string
		relative string
		base     string
		want     string
	}{
		{"absolute passthrough", "https://other.test/x", "https://ex.test/n/1", "https://other.test/x"},
		{"scheme relative", "//cdn.test/img.png", "https://ex.test/n/1", "https://cdn.test/img.png"},
		{"root relative", "/n/2", "https://ex.test/n/1", "https://ex.test/n/2"},
		{"path relative", "c/1", "https://ex.test/n/1", "https://ex.test/n/c/1"},
		{"path relative trailing dir", "c/1", "https://ex.test/n/1/", "https://ex.test/n/1/c/1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MakeAbsoluteURL(tc.relative, tc.base)
			if got != tc.want {
				t.Errorf("MakeAbsoluteURL(%q, %q) = %q, want %q", tc.relative, tc.base, got, tc.want)
			}
		})
	}
}
