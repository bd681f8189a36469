package sanitizer

import (
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Dr. Asha Menon  ",
			want:  "Dr. Asha Menon",
		},
		{
			name:  "multiple spaces between words",
			input: "Asha    Menon",
			want:  "Asha Menon",
		},
		{
			name:  "tabs and newlines",
			input: "Asha\t\nMenon",
			want:  "Asha Menon",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Zoë O'Brien-Łukasz ",
			want:  "Zoë O'Brien-Łukasz",
		},
		{
			name:  "non-latin script",
			input: " തോമസ്  കോശി ",
			want:  "തോമസ് കോശി",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimAndNormalize_LongInput(t *testing.T) {
	input := strings.Repeat("a  ", 10000)
	got := TrimAndNormalize(input)
	if want := strings.TrimSpace(strings.Repeat("a ", 10000)); got != want {
		t.Errorf("TrimAndNormalize long input length = %d, want %d", len(got), len(want))
	}
}
