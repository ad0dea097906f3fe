package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/ericfisherdev/wpdispatch/internal/domain/port/driven"
)

// DefaultSnapshotDir is used when no snapshot directory is configured.
const DefaultSnapshotDir = "backups"

// DefaultBackupRetention is how long backup artifacts are kept.
const DefaultBackupRetention = 7 * 24 * time.Hour

// cloneManifestName is overwritten by every clone.
const cloneManifestName = "manifest.json"

// SnapshotFiles lists the artifacts of one snapshot.
type SnapshotFiles struct {
	Database string `json:"database"`
	Content  string `json:"content"`
}

// BackupManifest describes a site backup.
type BackupManifest struct {
	Timestamp string        `json:"timestamp"`
	SiteURL   string        `json:"siteUrl"`
	Files     SnapshotFiles `json:"files"`
	Version   string        `json:"version"`
}

// BackupResult is the outcome of a backup run.
type BackupResult struct {
	ManifestPath string
	Manifest     BackupManifest
	Removed      []string // Entries deleted by retention.
}

// CloneRequest names the source site and the repository the clone is for.
type CloneRequest struct {
	SourceURL    string
	TargetRepo   string
	TargetBranch string
}

// CloneManifest describes a site export prepared for a clone.
type CloneManifest struct {
	SourceURL    string        `json:"sourceUrl"`
	TargetRepo   string        `json:"targetRepo"`
	TargetBranch string        `json:"targetBranch"`
	Timestamp    string        `json:"timestamp"`
	Files        SnapshotFiles `json:"files"`
}

// CloneResult is the outcome of a clone export.
type CloneResult struct {
	ManifestPath string
	Manifest     CloneManifest
}

// SnapshotService exports WordPress sites through WP-CLI into a local
// directory and writes a JSON manifest next to the artifacts.
type SnapshotService struct {
	tool      driven.SiteTool
	dir       string
	retention time.Duration
	now       func() time.Time
}

// NewSnapshotService creates a SnapshotService writing into dir, or
// DefaultSnapshotDir when dir is empty. A non-positive retention means
// DefaultBackupRetention.
func NewSnapshotService(tool driven.SiteTool, dir string, retention time.Duration) *SnapshotService {
	if dir == "" {
		dir = DefaultSnapshotDir
	}
	if retention <= 0 {
		retention = DefaultBackupRetention
	}
	return &SnapshotService{
		tool:      tool,
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

// Backup exports the database and content of siteURL, records the WordPress
// version in a manifest, and prunes artifacts older than the retention.
// All artifact names and the manifest share one timestamp taken at the start.
func (s *SnapshotService) Backup(ctx context.Context, siteURL string) (*BackupResult, error) {
	if siteURL == "" {
		return nil, fmt.Errorf("backup: site url is required")
	}

	started := s.now().UTC()
	stamp := fileStamp(started)

	files, err := s.export(ctx, siteURL, stamp)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", siteURL, err)
	}

	version, err := s.tool.Run(ctx, siteURL, "core", "version")
	if err != nil {
		return nil, fmt.Errorf("backup %s: read core version: %w", siteURL, err)
	}

	manifest := BackupManifest{
		Timestamp: started.Format(manifestTimeLayout),
		SiteURL:   siteURL,
		Files:     files,
		Version:   strings.TrimSpace(version),
	}

	manifestPath, err := s.writeManifest("manifest_"+stamp+".json", manifest)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", siteURL, err)
	}

	removed, err := s.prune(started, files.Database, files.Content, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("backup %s: prune old backups: %w", siteURL, err)
	}

	slog.Info("site backup completed", "site", siteURL, "manifest", manifestPath, "pruned", len(removed))

	return &BackupResult{
		ManifestPath: manifestPath,
		Manifest:     manifest,
		Removed:      removed,
	}, nil
}

// Clone exports the source site and writes manifest.json describing where
// the export should be pushed.
func (s *SnapshotService) Clone(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	if req.SourceURL == "" {
		return nil, fmt.Errorf("clone: source url is required")
	}

	started := s.now().UTC()

	files, err := s.export(ctx, req.SourceURL, fileStamp(started))
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", req.SourceURL, err)
	}

	manifest := CloneManifest{
		SourceURL:    req.SourceURL,
		TargetRepo:   req.TargetRepo,
		TargetBranch: req.TargetBranch,
		Timestamp:    started.Format(manifestTimeLayout),
		Files:        files,
	}

	manifestPath, err := s.writeManifest(cloneManifestName, manifest)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", req.SourceURL, err)
	}

	slog.Info("site clone export completed", "source", req.SourceURL, "target_repo", req.TargetRepo, "manifest", manifestPath)

	return &CloneResult{ManifestPath: manifestPath, Manifest: manifest}, nil
}

// export dumps the database and content of siteURL into the snapshot dir.
func (s *SnapshotService) export(ctx context.Context, siteURL, stamp string) (SnapshotFiles, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return SnapshotFiles{}, fmt.Errorf("create snapshot dir: %w", err)
	}

	dbFile, err := securejoin.SecureJoin(s.dir, "db_backup_"+stamp+".sql")
	if err != nil {
		return SnapshotFiles{}, fmt.Errorf("resolve database dump path: %w", err)
	}
	contentDir, err := securejoin.SecureJoin(s.dir, "files_backup_"+stamp)
	if err != nil {
		return SnapshotFiles{}, fmt.Errorf("resolve content export path: %w", err)
	}

	if _, err := s.tool.Run(ctx, siteURL, "db", "export", dbFile); err != nil {
		return SnapshotFiles{}, fmt.Errorf("export database: %w", err)
	}

	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return SnapshotFiles{}, fmt.Errorf("create content export dir: %w", err)
	}
	if _, err := s.tool.Run(ctx, siteURL, "export", "--all", "--dir="+contentDir); err != nil {
		return SnapshotFiles{}, fmt.Errorf("export content: %w", err)
	}

	return SnapshotFiles{Database: dbFile, Content: contentDir}, nil
}

func (s *SnapshotService) writeManifest(name string, manifest any) (string, error) {
	path, err := securejoin.SecureJoin(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("resolve manifest path: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// prune deletes entries of the snapshot dir last modified more than the
// retention before now. Paths in keep are never deleted.
func (s *SnapshotService) prune(now time.Time, keep ...string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(keep))
	for _, p := range keep {
		kept[filepath.Base(p)] = true
	}

	cutoff := now.Add(-s.retention)
	removed := []string{}

	for _, entry := range entries {
		if kept[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return removed, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path, err := securejoin.SecureJoin(s.dir, entry.Name())
		if err != nil {
			return removed, err
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}

		slog.Info("deleted old backup", "path", path)
		removed = append(removed, entry.Name())
	}

	return removed, nil
}

const manifestTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// fileStamp renders t as an ISO-8601 instant safe for file names,
// e.g. 2026-10-16T09-30-00-123Z.
func fileStamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s-%03dZ", t.Format("2006-01-02T15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

