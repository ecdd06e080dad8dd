package importer

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"refboard/internal/analysis"
	"refboard/internal/filesystem"
	"refboard/internal/logging"
)

// Collect expands paths into the image files to import. Files named
// explicitly are kept whatever their extension; directories are walked
// recursively for supported images, skipping hidden entries. The result
// is de-duplicated and keeps the order paths were given in.
func Collect(ctx context.Context, paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := filesystem.StatWithRetry(ctx, p, filesystem.DefaultRetryConfig())
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logging.Warn("Skipping %s: %v", path, err)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && analysis.IsImage(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		slices.Sort(found)
		logging.Debug("Found %d images under %s", len(found), p)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}
