// Package wpcli implements the SiteTool port by shelling out to WP-CLI.
package wpcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SiteTool = (*Runner)(nil)

// DefaultBinary is the WP-CLI executable looked up on PATH.
const DefaultBinary = "wp"

// CommandError is a WP-CLI invocation that exited unsuccessfully.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("wp-cli %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("wp-cli %q: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes WP-CLI commands.
type Runner struct {
	binary  string
	workDir string
}

// NewRunner creates a Runner for the given WP-CLI binary. An empty binary
// falls back to DefaultBinary. workDir, when set, is the WordPress install
// the commands run in.
func NewRunner(binary, workDir string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{binary: binary, workDir: workDir}
}

// Run executes `wp <args...> [--url=<url>]` and returns its standard output.
// Arguments are passed directly to the process, never through a shell.
func (r *Runner) Run(ctx context.Context, url string, args ...string) (string, error) {
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, args...)
	if url != "" {
		argv = append(argv, "--url="+url)
	}

	cmd := exec.CommandContext(ctx, r.binary, argv...)
	cmd.Dir = r.workDir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	commandLine := strings.TrimSpace(r.binary + " " + strings.Join(argv, " "))
	slog.Debug("running wp-cli", "command", commandLine)

	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Command: commandLine,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}

	return stdout.String(), nil
}
