package log

import (
	"strings"
	"testing"
)

func TestSanitizeResource(t *testing.T) {
	long := "user:alice@example.com:invoice:2024"

	tests := []struct {
		name     string
		mode     SanitizationMode
		input    string
		expected string
		prefix   string
	}{
		{name: "empty", mode: ProductionMode, input: "", expected: ""},
		{name: "debug shows all", mode: DebugMode, input: long, expected: long},
		{name: "development short", mode: DevelopmentMode, input: "job:42", expected: "job:42"},
		{name: "development long", mode: DevelopmentMode, input: long, expected: "user:alice...ce:2024"},
		{name: "production hashes", mode: ProductionMode, input: "job:42", prefix: "hash:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeResource(tt.mode, tt.input)
			if tt.prefix != "" {
				if !strings.HasPrefix(got, tt.prefix) || strings.Contains(got, tt.input) {
					t.Errorf("expected hashed value, got %q", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("Debug") != DebugMode {
		t.Error("expected debug mode")
	}
	if ParseMode("development") != DevelopmentMode {
		t.Error("expected development mode")
	}
	if ParseMode("bogus") != ProductionMode {
		t.Error("expected production fallback")
	}
}
