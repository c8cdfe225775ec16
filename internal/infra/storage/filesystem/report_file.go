package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

const defaultReportPerm os.FileMode = 0o644

var _ scanning.ReportSink = (*ReportFile)(nil)

// ReportFile writes report bytes to a path, replacing what was there. The
// data goes to a temp file in the same directory first and is renamed over
// the destination, so a failed write never leaves a truncated report.
type ReportFile struct {
	fs   afero.Fs
	path string
	perm os.FileMode
}

// NewReportFile creates a sink for path on fs.
func NewReportFile(fs afero.Fs, path string) *ReportFile {
	return &ReportFile{fs: fs, path: path, perm: defaultReportPerm}
}

// Location returns the destination path.
func (r *ReportFile) Location() string { return r.path }

// WriteReport persists data in full.
func (r *ReportFile) WriteReport(_ context.Context, data []byte) error {
	dir := filepath.Dir(r.path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := afero.TempFile(r.fs, dir, ".tmp-report-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			_ = r.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmp = nil

	if err := r.fs.Chmod(tmpPath, r.perm); err != nil {
		_ = r.fs.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := r.fs.Rename(tmpPath, r.path); err != nil {
		_ = r.fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
