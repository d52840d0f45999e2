// Package walker traverses scan roots and yields the media files eligible
// for fingerprinting. Traversal is deterministic, never follows symlinks,
// and reports unreadable paths without aborting the walk.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"culler/internal/config"
	"culler/internal/logging"
)

// File is one media file discovered during traversal.
type File struct {
	// Path is the absolute location of the file.
	Path string
	// Root is the scan root the file was found under.
	Root string
	// RelativePath is Path relative to Root, preserved so quarantine can
	// mirror the source tree.
	RelativePath string
	// Info is the file's stat metadata at discovery time.
	Info fs.FileInfo
}

// Walker applies the configured media and exclusion filters to scan roots.
type Walker struct {
	cfg       *config.Config
	recursive bool
	logger    *slog.Logger
}

// New constructs a Walker. recursive=false limits traversal to each root's
// top level.
func New(cfg *config.Config, recursive bool, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Walker{cfg: cfg, recursive: recursive, logger: logger}
}

// Walk traverses one root, invoking emit for every eligible media file and
// onError for every path that could not be read. emit returning an error
// aborts the walk; per-path read failures do not.
func (w *Walker) Walk(ctx context.Context, root string, emit func(File) error, onError func(path string, err error)) error {
	resolved, err := NormalizeRoot(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			w.logger.Warn("unreadable path during walk",
				logging.String(logging.FieldPath, path), logging.Error(walkErr))
			if onError != nil {
				onError(path, walkErr)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == resolved {
				return nil
			}
			if !w.recursive {
				return fs.SkipDir
			}
			if w.cfg.SkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if w.cfg.SkipFile(d.Name()) {
			return nil
		}
		if !w.cfg.IsMediaFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.logger.Warn("stat failed during walk",
				logging.String(logging.FieldPath, path), logging.Error(err))
			if onError != nil {
				onError(path, err)
			}
			return nil
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			rel = d.Name()
		}

		return emit(File{
			Path:         path,
			Root:         resolved,
			RelativePath: rel,
			Info:         info,
		})
	})
}

// NormalizeRoot resolves a scan root to an absolute, existing directory.
func NormalizeRoot(root string) (string, error) {
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return "", fmt.Errorf("expand root %q: %w", root, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("scan root %q: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan root %q is not a directory", root)
	}
	return abs, nil
}
