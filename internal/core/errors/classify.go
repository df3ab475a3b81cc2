package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the coarse failure category a scenario expects.
type Class string

const (
	ClassNone       Class = "success"
	ClassBind       Class = "bind"
	ClassConnection Class = "connection"
	ClassHandshake  Class = "handshake"
	ClassValidation Class = "validation"
	ClassProtocol   Class = "protocol"
	ClassInvalid    Class = "invalid"
	ClassUnknown    Class = "unknown"
)

var classes = []Class{
	ClassNone,
	ClassBind,
	ClassConnection,
	ClassHandshake,
	ClassValidation,
	ClassProtocol,
	ClassInvalid,
	ClassUnknown,
}

// ParseClass parses an expectation from configuration.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return ClassNone, nil
	}
	for _, known := range classes {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown outcome class %q", s)
}

// Classify maps err onto the taxonomy. A certificate rejection is checked
// before handshake failure so the two are never conflated.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrCertificateRejected):
		return ClassValidation
	case errors.Is(err, ErrHandshakeFailed):
		return ClassHandshake
	case errors.Is(err, ErrBindFailed):
		return ClassBind
	case errors.Is(err, ErrProtocol):
		return ClassProtocol
	case errors.Is(err, ErrConnectionFailed):
		return ClassConnection
	case errors.Is(err, ErrInvalidOptions), errors.Is(err, ErrServerUsed):
		return ClassInvalid
	default:
		return ClassUnknown
	}
}
