// tlsprobe is the command-line interface for exercising TLS clients against
// single-use loopback servers.
//
// Usage:
//
//	tlsprobe run [--config file] [--format text|json|yaml] [--outerloop]
//	tlsprobe serve --protocols tls1.2 --cert-kind expired
//	tlsprobe get URL --policy accept-any
//	tlsprobe --help
package main

import (
	"fmt"
	"os"

	"github.com/sufield/tlsprobe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.RedactError(err))
		os.Exit(cli.ExitCode(err))
	}
}
