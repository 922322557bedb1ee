package regions

import (
	"errors"
	"io/fs"
	"log/slog"
	"path"
)

// DiscoverRegions scans dir in fsys for subdirectories containing a
// region.yaml manifest. Invalid manifests are logged and skipped so that one
// bad file does not take the whole catalogue down.
func DiscoverRegions(fsys fs.FS, dir string) ([]*RegionMetadata, error) {
	var found []*RegionMetadata

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := path.Join(dir, entry.Name(), "region.yaml")
		if _, err := fs.Stat(fsys, manifestPath); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		meta, err := LoadRegionMetadata(fsys, manifestPath)
		if err != nil {
			slog.Warn("Skipping invalid region manifest", "dir", entry.Name(), "error", err)
			continue
		}

		found = append(found, meta)
	}

	return found, nil
}
