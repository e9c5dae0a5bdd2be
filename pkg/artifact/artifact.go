// Package artifact applies external-artifact rebaselines: a freshly produced
// output artifact replaces the reference file it was compared against. The
// source text is never touched. Before a reference file is overwritten its
// previous content is archived so the rebaseline can be undone.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Apply copies the artifact at src over dst, creating parent directories as
// needed. When archive is non-nil and dst already exists, the old baseline
// is archived first.
func Apply(src, dst string, archive *Archive) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("apply artifact: %w", err)
	}

	if archive != nil {
		prev, err := os.ReadFile(dst)
		switch {
		case err == nil:
			if err := archive.Put(dst, prev); err != nil {
				return fmt.Errorf("apply artifact: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// First baseline for this path; nothing to archive.
		default:
			return fmt.Errorf("apply artifact: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("apply artifact: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("apply artifact: %w", err)
	}
	return nil
}
