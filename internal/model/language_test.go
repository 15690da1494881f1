package model

import (
	"reflect"
	"testing"
)

func TestNormalizeLanguageTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"canonicalizes case", []string{"EN", "en-us"}, []string{"en", "en-US"}},
		{"drops garbage", []string{"not a tag!", "fr"}, []string{"fr"}},
		{"dedupes equivalent tags", []string{"en", "EN"}, []string{"en"}},
		{"empty input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLanguageTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLanguageTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
