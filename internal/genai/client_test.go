// ABOUTME: Tests for generation client types and the token estimator
// ABOUTME: Covers EstimateTokens determinism and UpstreamError wrapping

package genai

import (
	"errors"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single rune", "a", 1},
		{"four runes", "abcd", 1},
		{"five runes rounds up", "abcde", 2},
		{"eight runes", "abcdefgh", 2},
		{"multibyte counted as runes", "héllo", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens_Deterministic(t *testing.T) {
	text := "the same text every time"
	first := EstimateTokens(text)
	for i := 0; i < 10; i++ {
		if got := EstimateTokens(text); got != first {
			t.Fatalf("estimate changed between calls: %d vs %d", got, first)
		}
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &UpstreamError{Op: "chat completion", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	var ue *UpstreamError
	if !errors.As(error(err), &ue) {
		t.Error("expected errors.As to match *UpstreamError")
	}
	if ue.Op != "chat completion" {
		t.Errorf("Op mismatch: got %q", ue.Op)
	}
}
