package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain value", "hello", "hello"},
		{"angle brackets stripped", "<script>alert</script>", "scriptalert/script"},
		{"control characters stripped", "line1\nline2\tend\x00", "line1line2end"},
		{"del stripped", "a\x7fb", "ab"},
		{"unicode kept", "пример@example.com", "пример@example.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"long local part masked", "someone@example.com", "so***@example.com"},
		{"short local part fully masked", "ab@example.com", "***@example.com"},
		{"not an email", "not-an-email", "***"},
		{"markup in domain sanitized", "user@<evil>.com", "us***@evil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Email(tt.input))
		})
	}
}
