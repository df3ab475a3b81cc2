package cli

import (
	"regexp"
)

var redactionPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	// Bearer tokens and authorization headers
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`Authorization:\s*[^\s]+`), "Authorization: [REDACTED]"},

	// Tokens in URLs or query parameters
	{regexp.MustCompile(`([?&])token=[A-Za-z0-9\-._~+/]+=*`), "${1}token=[REDACTED]"},

	// Userinfo in URLs
	{regexp.MustCompile(`(https?://)[^/\s:@]+:[^/\s@]+@`), "${1}[REDACTED]@"},

	// Home directories in certificate file paths
	{regexp.MustCompile(`/home/[^/\s]+`), "/home/[USER]"},
	{regexp.MustCompile(`/Users/[^/\s]+`), "/Users/[USER]"},

	// Certificate data (PEM blocks)
	{regexp.MustCompile(`-----BEGIN [A-Z ]*CERTIFICATE-----[^-]+-----END [A-Z ]*CERTIFICATE-----`), "[CERTIFICATE REDACTED]"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[^-]+-----END [A-Z ]*PRIVATE KEY-----`), "[PRIVATE KEY REDACTED]"},

	// Password-like patterns
	{regexp.MustCompile(`[Pp]assword[\s:=]+[^\s]+`), "password=[REDACTED]"},
}

// redactSensitiveInfo removes or masks sensitive information from error messages and output
func redactSensitiveInfo(message string) string {
	result := message
	for _, p := range redactionPatterns {
		result = p.pattern.ReplaceAllString(result, p.replace)
	}
	return result
}

// RedactError redacts sensitive information from error messages
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return redactSensitiveInfo(err.Error())
}
