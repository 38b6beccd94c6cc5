package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrCodeInvalidInput, "bad name %q", "x y"),
			want: `INVALID_INPUT: bad name "x y"`,
		},
		{
			name: "with cause",
			err:  Wrap(ErrCodeNetwork, stderrors.New("timeout"), "fetching serde"),
			want: "NETWORK_ERROR: fetching serde: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeQuotaExceeded, "monthly quota exhausted")
	if !Is(err, ErrCodeQuotaExceeded) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrCodeRateLimited) {
		t.Error("Is() = true for non-matching code")
	}
	if Is(stderrors.New("plain"), ErrCodeQuotaExceeded) {
		t.Error("Is() = true for non-structured error")
	}

	// Wrapped chains still resolve to the inner code.
	wrapped := fmt.Errorf("handler: %w", err)
	if !Is(wrapped, ErrCodeQuotaExceeded) {
		t.Error("Is() = false for wrapped structured error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeUnauthorized, "no key")); got != ErrCodeUnauthorized {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeUnauthorized)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode() = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeKeyExpired, "key expired on 2025-01-01")); got != "key expired on 2025-01-01" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(stderrors.New("boom")); got != "boom" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestRateLimitError(t *testing.T) {
	reset := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	err := &RateLimitError{Limit: 10, Used: 10, Reset: reset}

	if err.Code() != ErrCodeRateLimited {
		t.Errorf("Code() = %q", err.Code())
	}
	if !strings.Contains(err.Error(), "10 requests per minute") {
		t.Errorf("Error() = %q, missing limit", err.Error())
	}
	if !strings.Contains(err.Error(), "2025-06-01T12:05:00Z") {
		t.Errorf("Error() = %q, missing reset time", err.Error())
	}
}

func TestTierError(t *testing.T) {
	err := &TierError{Required: "enterprise", Message: "deep extraction"}
	if err.Code() != ErrCodeTierForbidden {
		t.Errorf("Code() = %q", err.Code())
	}
	if got := err.Error(); got != "deep extraction (requires enterprise tier)" {
		t.Errorf("Error() = %q", got)
	}

	bare := &TierError{Required: "pro"}
	if got := bare.Error(); got != "requires pro tier" {
		t.Errorf("Error() = %q", got)
	}
}
