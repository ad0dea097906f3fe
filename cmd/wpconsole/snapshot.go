package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/ericfisherdev/wpdispatch/internal/adapter/driven/wpcli"
	"github.com/ericfisherdev/wpdispatch/internal/application"
)

func snapshotFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Usage:   "directory the snapshot is written to",
			Value:   application.DefaultSnapshotDir,
			Sources: cli.EnvVars("BACKUP_DIR"),
		},
		&cli.StringFlag{
			Name:    "wp",
			Usage:   "WP-CLI executable",
			Value:   wpcli.DefaultBinary,
			Sources: cli.EnvVars("WP_CLI_BIN"),
		},
		&cli.StringFlag{
			Name:    "path",
			Usage:   "WordPress install WP-CLI runs in",
			Sources: cli.EnvVars("WP_PATH"),
		},
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "export a site's database and content and prune old backups",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "site-url",
				Usage:    "site to back up",
				Sources:  cli.EnvVars("SITE_URL"),
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "retention",
				Usage: "delete backups older than this",
				Value: application.DefaultBackupRetention,
			},
		}, snapshotFlags()...),
		Action: runBackup,
	}
}

func cloneCommand() *cli.Command {
	return &cli.Command{
		Name:  "clone",
		Usage: "export a site for cloning into another repository",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "source-url",
				Usage:    "site to clone",
				Sources:  cli.EnvVars("SOURCE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "target-repo",
				Usage:   "repository the clone is pushed to",
				Sources: cli.EnvVars("TARGET_REPO"),
			},
			&cli.StringFlag{
				Name:    "target-branch",
				Usage:   "branch the clone is pushed to",
				Value:   "main",
				Sources: cli.EnvVars("TARGET_BRANCH"),
			},
		}, snapshotFlags()...),
		Action: runClone,
	}
}

func newSnapshotService(cmd *cli.Command) *application.SnapshotService {
	runner := wpcli.NewRunner(cmd.String("wp"), cmd.String("path"))
	return application.NewSnapshotService(runner, cmd.String("dir"), cmd.Duration("retention"))
}

func runBackup(ctx context.Context, cmd *cli.Command) error {
	result, err := newSnapshotService(cmd).Backup(ctx, cmd.String("site-url"))
	if err != nil {
		return err
	}
	printBackup(cmd.Root().Writer, result)
	return nil
}

func runClone(ctx context.Context, cmd *cli.Command) error {
	result, err := newSnapshotService(cmd).Clone(ctx, application.CloneRequest{
		SourceURL:    cmd.String("source-url"),
		TargetRepo:   cmd.String("target-repo"),
		TargetBranch: cmd.String("target-branch"),
	})
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "clone export of %s ready\n", result.Manifest.SourceURL)
	fmt.Fprintf(w, "  database: %s\n", result.Manifest.Files.Database)
	fmt.Fprintf(w, "  content:  %s\n", result.Manifest.Files.Content)
	fmt.Fprintf(w, "  manifest: %s\n", result.ManifestPath)
	return nil
}

func printBackup(w io.Writer, r *application.BackupResult) {
	fmt.Fprintf(w, "backup of %s (WordPress %s) at %s\n", r.Manifest.SiteURL, r.Manifest.Version, r.Manifest.Timestamp)
	fmt.Fprintf(w, "  database: %s\n", r.Manifest.Files.Database)
	fmt.Fprintf(w, "  content:  %s\n", r.Manifest.Files.Content)
	fmt.Fprintf(w, "  manifest: %s\n", r.ManifestPath)
	if len(r.Removed) > 0 {
		fmt.Fprintf(w, "  pruned %s old %s\n", humanize.Comma(int64(len(r.Removed))), pluralEntry(len(r.Removed)))
	}
}

func pluralEntry(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
