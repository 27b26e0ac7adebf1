package directory

import "testing"

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"bogo", `%bogo%`},
		{"%", `%\%%`},
		{"san_an", `%san\_an%`},
		{`a\b`, `%a\\b%`},
		{"Bogotá", `%Bogotá%`},
	}
	for _, tt := range tests {
		if got := containsPattern(tt.term); got != tt.want {
			t.Errorf("containsPattern(%q) = %q, want %q", tt.term, got, tt.want)
		}
	}
}
