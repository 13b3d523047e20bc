package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{
			name:  "under limit",
			input: "short",
			limit: 10,
			want:  "short",
		},
		{
			name:  "exact limit",
			input: "exact",
			limit: 5,
			want:  "exact",
		},
		{
			name:  "over limit",
			input: "truncated here",
			limit: 9,
			want:  "truncated",
		},
		{
			name:  "multibyte runes counted once",
			input: "äöüß",
			limit: 2,
			want:  "äö",
		},
		{
			name:  "zero limit",
			input: "anything",
			limit: 0,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.limit)
			if got != tt.want {
				t.Fatalf("unexpected truncated value: got %q, want %q", got, tt.want)
			}
		})
	}
}
