package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"handshake", NewDomainError(ErrHandshakeFailed, errors.New("protocol version not supported")), ClassHandshake},
		{"validation", fmt.Errorf("get: %w", NewDomainError(ErrCertificateRejected, nil)), ClassValidation},
		{"bind", NewDomainError(ErrBindFailed, errors.New("address in use")), ClassBind},
		{"protocol", NewDomainError(ErrProtocol, errors.New("unexpected EOF")), ClassProtocol},
		{"connection", NewDomainError(ErrConnectionFailed, errors.New("refused")), ClassConnection},
		{"invalid", &ValidationError{Field: "Protocols"}, ClassInvalid},
		{"reused server", NewDomainError(ErrServerUsed, nil), ClassInvalid},
		{"unknown", errors.New("boom"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_RejectionWinsOverHandshake(t *testing.T) {
	err := NewDomainError(ErrHandshakeFailed, NewDomainError(ErrCertificateRejected, nil))
	if got := Classify(err); got != ClassValidation {
		t.Errorf("Classify() = %v, want %v", got, ClassValidation)
	}
}

func TestParseClass(t *testing.T) {
	if c, err := ParseClass(""); err != nil || c != ClassNone {
		t.Errorf("ParseClass(\"\") = %v, %v", c, err)
	}
	if c, err := ParseClass("Handshake"); err != nil || c != ClassHandshake {
		t.Errorf("ParseClass(Handshake) = %v, %v", c, err)
	}
	if _, err := ParseClass("teapot"); err == nil {
		t.Error("expected error for unknown class")
	}
}
