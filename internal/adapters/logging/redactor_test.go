package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
)

func TestRedactorHandler_SensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewRedactorHandler(slog.NewTextHandler(&buf, nil)))

	tests := []struct {
		name         string
		logFunc      func()
		shouldRedact bool
	}{
		{
			name: "private_key field redacted",
			logFunc: func() {
				logger.Info("Identity loaded", "private_key", "MHcCAQEEI")
			},
			shouldRedact: true,
		},
		{
			name: "compound sensitive field redacted",
			logFunc: func() {
				logger.Info("Auth data", "bearer_token", "eyJhbGciOiJSUzI1NiJ9")
			},
			shouldRedact: true,
		},
		{
			name: "certificate kind not redacted",
			logFunc: func() {
				logger.Info("Scenario", "cert_kind", "expired")
			},
			shouldRedact: false,
		},
		{
			name: "negotiated version not redacted",
			logFunc: func() {
				logger.Info("Handshake complete", "version", "tls1.2", "server_name", "localhost")
			},
			shouldRedact: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			output := buf.String()

			if tt.shouldRedact {
				if !strings.Contains(output, logging.RedactedValue) {
					t.Errorf("Expected [REDACTED] in output, got: %s", output)
				}
				if strings.Contains(output, "MHcCAQEEI") || strings.Contains(output, "eyJhbGciOiJSUzI1NiJ9") {
					t.Errorf("Sensitive data was not redacted: %s", output)
				}
			} else if strings.Contains(output, logging.RedactedValue) {
				t.Errorf("Non-sensitive field was incorrectly redacted: %s", output)
			}
		})
	}
}

func TestRedactorHandler_GroupAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewRedactorHandler(slog.NewTextHandler(&buf, nil)))

	logger.Info("Server options",
		slog.Group("identity",
			slog.String("subject", "localhost"),
			slog.String("private_key", "secret123"),
		),
	)

	output := buf.String()
	if !strings.Contains(output, logging.RedactedValue) {
		t.Error("Expected private key to be redacted in group")
	}
	if !strings.Contains(output, "localhost") {
		t.Error("Subject should not be redacted")
	}
	if strings.Contains(output, "secret123") {
		t.Error("Key material should not appear in output")
	}
}

func TestRedactorHandler_PEMContent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewRedactorHandler(slog.NewTextHandler(&buf, nil)))

	certContent := `-----BEGIN CERTIFICATE-----
MIIDETCCAfmgAwIBAgIRAK+RuNhJjJRQqQoA5X0l+bIwDQYJKoZIhvcNAQELBQAw
-----END CERTIFICATE-----`

	logger.Info("Certificate loaded", "leaf", certContent)

	output := buf.String()
	if !strings.Contains(output, logging.RedactedValue) {
		t.Error("PEM content should be redacted")
	}
	if strings.Contains(output, "BEGIN CERTIFICATE") {
		t.Error("PEM content should not appear in output")
	}
}

func TestRedactorHandler_WithAttrsKeepsRedacting(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewRedactorHandler(slog.NewTextHandler(&buf, nil))).
		With("run_id", "abc").
		WithGroup("client")

	logger.Info("Request", "authorization", "Basic Zm9vOmJhcg==")

	output := buf.String()
	if strings.Contains(output, "Zm9vOmJhcg==") {
		t.Errorf("authorization leaked: %s", output)
	}
	if !strings.Contains(output, "run_id=abc") {
		t.Errorf("expected persistent attribute, got: %s", output)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(&buf, slog.LevelInfo, logging.FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("shown", "password", "hunter2")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(output, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got: %s", output)
	}
	if strings.Contains(output, "hunter2") {
		t.Error("password should be redacted")
	}

	if _, err := logging.NewLogger(&buf, slog.LevelInfo, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
