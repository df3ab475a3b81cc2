package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/sufield/tlsprobe/internal/client"
	"github.com/sufield/tlsprobe/internal/core/domain"
	"github.com/sufield/tlsprobe/internal/scenario"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	skipLabel = color.New(color.FgYellow).SprintFunc()
	dimText   = color.New(color.Faint).SprintFunc()
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("%w: unsupported format %q, use 'text', 'json' or 'yaml'", ErrUsage, format)
	}
}

func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("%w: failed to encode JSON: %v", ErrInternal, err)
		}
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("%w: failed to encode YAML: %v", ErrInternal, err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("%w: failed to encode YAML: %v", ErrInternal, err)
		}
	default:
		return checkFormat(format)
	}
	return nil
}

func writeSummary(w io.Writer, format string, summary scenario.Summary) error {
	if format != formatText {
		return writeStructured(w, format, summary)
	}

	for _, r := range summary.Reports {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "%s  %s %s\n", skipLabel("SKIP"), r.Name, dimText("(outer loop disabled)"))
		case r.Passed:
			fmt.Fprintf(w, "%s  %s %s\n", passLabel("PASS"), r.Name, dimText(reportDetail(r)))
		default:
			fmt.Fprintf(w, "%s  %s expected %s, got %s %s\n", failLabel("FAIL"), r.Name, r.Expect, r.Got, dimText(reportDetail(r)))
			if r.Error != "" {
				fmt.Fprintf(w, "      %s\n", r.Error)
			}
		}
	}
	fmt.Fprintf(w, "\nrun %s: %d passed, %d failed, %d skipped\n",
		summary.RunID, summary.Passed, summary.Failed, summary.Skipped)
	return nil
}

func reportDetail(r scenario.Report) string {
	detail := fmt.Sprintf("[%s", r.Got)
	if r.Handshake != nil {
		detail += " " + r.Handshake.Version.String()
	}
	return detail + " " + r.Duration.Round(time.Millisecond).String() + "]"
}

func writeHandshake(w io.Writer, hs *domain.HandshakeResult) {
	if hs == nil {
		fmt.Fprintln(w, "TLS: none")
		return
	}
	fmt.Fprintf(w, "TLS version: %s\n", hs.Version)
	fmt.Fprintf(w, "Cipher suite: %s\n", hs.CipherSuite)
	if hs.ServerName != "" {
		fmt.Fprintf(w, "Server name: %s\n", hs.ServerName)
	}
	fmt.Fprintf(w, "Peer certificates: %d\n", hs.PeerCerts)
}

func writeResult(w io.Writer, format string, result *client.Result) error {
	if format != formatText {
		return writeStructured(w, format, result)
	}
	fmt.Fprintf(w, "%s %s %d\n", passLabel("OK"), result.URL, result.StatusCode)
	fmt.Fprintf(w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	writeHandshake(w, result.Handshake)
	return nil
}
