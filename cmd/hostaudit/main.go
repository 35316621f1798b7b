// hostaudit runs a privileged Linux inspection script, parses its output into
// numbered sections and renders them as a PDF report.
//
// Usage:
//
//	hostaudit serve  [--listen :3001]          # HTTP API for the web front-end
//	hostaudit run    [--pdf report.pdf]         # one audit from the terminal
//	hostaudit parse  <file|-> [--json]          # parse saved script output
//	hostaudit render <file|-> -o report.pdf     # render saved output offline
//	hostaudit mcp                               # MCP server over stdio
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hostaudit/hostaudit/pkg/cli"
	"github.com/hostaudit/hostaudit/pkg/duration"
)

func main() {
	ctx, cancel := cli.SignalContext(context.Background(), duration.ShutdownGrace, nil)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
