package driven

import "context"

// SiteTool defines the driven port for running WP-CLI against a site.
type SiteTool interface {
	// Run executes a WP-CLI command. url, when non-empty, is passed as --url.
	// It returns the command's standard output.
	Run(ctx context.Context, url string, args ...string) (string, error)
}
