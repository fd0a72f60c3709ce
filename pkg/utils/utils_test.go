package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID("conn")
	id2 := GenerateID("conn")

	if !strings.HasPrefix(id1, "conn_") {
		t.Errorf("GenerateID() = %v, want conn_ prefix", id1)
	}
	if id1 == id2 {
		t.Error("GenerateID() should produce unique values")
	}
}

func TestGenerateMessageID(t *testing.T) {
	id1 := GenerateMessageID()
	id2 := GenerateMessageID()

	if id1 == "" || id1 == id2 {
		t.Errorf("GenerateMessageID() should produce unique non-empty values, got %q and %q", id1, id2)
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"line\nbreak", "line\nbreak"},
		{"null\x00byte", "nullbyte"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in); got != tt.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString() = %v, want unchanged", got)
	}
	if got := TruncateString("a very long chat message", 10); got != "a very ..." {
		t.Errorf("TruncateString() = %v, want 'a very ...'", got)
	}
	if got := TruncateString("abcdef", 2); got != "ab" {
		t.Errorf("TruncateString() = %v, want 'ab'", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{2 * time.Second, "2.00s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}
