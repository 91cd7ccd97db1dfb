package hub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kbukum/modelkit/logger"
)

// writeFile streams a file into destPath through a temp file and rename,
// so a partial download never appears under the final name.
func writeFile(ctx context.Context, destPath string, fetch func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tempFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	closed, renamed := false, false
	defer func() {
		if !closed {
			_ = tempFile.Close()
		}
		if !renamed {
			if rmErr := os.Remove(tempFile.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Get("hub").WithContext(ctx).Warn("removing temp file", logger.Fields(
					"path", tempFile.Name(), logger.FieldError, rmErr.Error(),
				))
			}
		}
	}()

	if err := fetch(tempFile); err != nil {
		return err
	}
	closed = true
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	renamed = true
	return nil
}

// localPath maps a repository-relative file path into root, rejecting
// paths that would escape it.
func localPath(root, rel string) (string, error) {
	p := filepath.FromSlash(rel)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("file path %q escapes the artifact directory", rel)
	}
	return filepath.Join(root, p), nil
}
