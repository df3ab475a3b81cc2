// Package domain provides TLS protocol types and validation using
// go-playground/validator/v10 with probe-specific custom validators.
package domain

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spiffe/go-spiffe/v2/spiffeid"

	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
)

// Validator wraps go-playground/validator with probe-specific validators.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a new validation instance with custom validators.
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("protocols", validateProtocolsCustom)
	_ = validate.RegisterValidation("duration", validateDurationCustom)
	_ = validate.RegisterValidation("spiffe_id", validateSPIFFEIDCustom)
	_ = validate.RegisterValidation("https_url", validateHTTPSURLCustom)
	_ = validate.RegisterValidation("listen_addr", validateListenAddrCustom)

	return &Validator{
		validator: validate,
	}
}

var defaultValidator = NewValidator()

// Validate validates a struct and converts failures into ValidationErrors
// joined together.
func (v *Validator) Validate(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	converted := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		converted = append(converted, &coreErrors.ValidationError{
			Field:   fe.Namespace(),
			Value:   fe.Value(),
			Message: messageForTag(fe),
		})
	}
	return errors.Join(converted...)
}

// ValidateStruct validates s with the shared validator.
func ValidateStruct(s interface{}) error {
	return defaultValidator.Validate(s)
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "protocols":
		return "protocol set must be contiguous and contain only known TLS versions"
	case "duration":
		return "must be a valid non-negative duration"
	case "spiffe_id":
		return "must be a valid SPIFFE ID"
	case "https_url":
		return "must be an absolute https URL"
	case "listen_addr":
		return "must be host:port with a port between 0 and 65535"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

// validateProtocolsCustom accepts ProtocolSet values and strings that parse
// into a contiguous set.
func validateProtocolsCustom(fl validator.FieldLevel) bool {
	field := fl.Field()

	switch field.Kind() {
	case reflect.String:
		set, err := ParseProtocolSet(field.String())
		return err == nil && set.IsContiguous()
	case reflect.Uint8:
		set := ProtocolSet(field.Uint())
		return set <= Protocols(VersionTLS10, VersionTLS11, VersionTLS12, VersionTLS13) && set.IsContiguous()
	default:
		return false
	}
}

func validateDurationCustom(fl validator.FieldLevel) bool {
	field := fl.Field()

	switch field.Kind() {
	case reflect.String:
		if field.String() == "" {
			return true // Empty durations handled by 'required' tag
		}
		d, err := time.ParseDuration(field.String())
		return err == nil && d >= 0
	case reflect.Int64:
		return time.Duration(field.Int()) >= 0
	default:
		return false
	}
}

// SPIFFE ID custom validator that uses go-spiffe/v2 library for proper validation.
func validateSPIFFEIDCustom(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return true // Empty values handled by 'required' tag
	}
	_, err := spiffeid.FromString(id)
	return err == nil
}

func validateHTTPSURLCustom(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

// validateListenAddrCustom accepts host:port listen addresses. Port 0 asks
// the kernel for an ephemeral port, and an empty host binds all interfaces.
func validateListenAddrCustom(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	if addr == "" {
		return true
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	return err == nil && n <= 65535
}
