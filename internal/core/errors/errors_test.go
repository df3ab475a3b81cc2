package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name        string
		domainError *DomainError
		want        string
	}{
		{
			name: "simple error",
			domainError: &DomainError{
				Code:    "BIND_FAILED",
				Message: "failed to bind local listener",
			},
			want: "BIND_FAILED: failed to bind local listener",
		},
		{
			name: "error with wrapped error",
			domainError: &DomainError{
				Code:    "CONNECTION_FAILED",
				Message: "failed to establish connection",
				Err:     errors.New("connection refused"),
			},
			want: "CONNECTION_FAILED: failed to establish connection: connection refused",
		},
		{
			name: "empty message",
			domainError: &DomainError{
				Code:    "UNKNOWN",
				Message: "",
			},
			want: "UNKNOWN: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.domainError.Error()
			if got != tt.want {
				t.Errorf("DomainError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	domainErr := &DomainError{
		Code:    "TEST_ERROR",
		Message: "Test error message",
		Err:     originalErr,
	}

	if unwrapped := domainErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("DomainError.Unwrap() = %v, want %v", unwrapped, originalErr)
	}

	domainErrNoWrap := &DomainError{Code: "TEST_ERROR"}
	if unwrapped := domainErrNoWrap.Unwrap(); unwrapped != nil {
		t.Errorf("DomainError.Unwrap() = %v, want nil", unwrapped)
	}
}

func TestNewDomainError_MatchesSentinel(t *testing.T) {
	cause := errors.New("remote error: tls: protocol version not supported")
	err := fmt.Errorf("client: %w", NewDomainError(ErrHandshakeFailed, cause))

	if !errors.Is(err, ErrHandshakeFailed) {
		t.Error("wrapped handshake error should match ErrHandshakeFailed")
	}
	if errors.Is(err, ErrCertificateRejected) {
		t.Error("handshake error must not match ErrCertificateRejected")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should still reach the underlying cause")
	}

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatal("errors.As should find the DomainError")
	}
	if domainErr.Code != "HANDSHAKE_FAILED" {
		t.Errorf("code = %q, want HANDSHAKE_FAILED", domainErr.Code)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []*DomainError{
		ErrBindFailed,
		ErrConnectionFailed,
		ErrHandshakeFailed,
		ErrCertificateRejected,
		ErrProtocol,
		ErrInvalidOptions,
		ErrServerUsed,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(NewDomainError(a, nil), b) {
				t.Errorf("%s should not match %s", a.Code, b.Code)
			}
		}
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "Protocols",
		Value:   "tls1.0|tls1.2",
		Message: "protocol set must be contiguous",
	}

	want := "validation failed for field 'Protocols': protocol set must be contiguous (value: tls1.0|tls1.2)"
	if got := err.Error(); got != want {
		t.Errorf("ValidationError.Error() = %v, want %v", got, want)
	}
	if !errors.Is(err, ErrInvalidOptions) {
		t.Error("ValidationError should match ErrInvalidOptions")
	}
}
