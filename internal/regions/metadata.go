package regions

import (
	"bytes"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"
)

// RegionMetadata is the parsed region.yaml manifest.
type RegionMetadata struct {
	Name     string           `yaml:"name"`
	Country  string           `yaml:"country"`
	Timezone string           `yaml:"timezone"`
	Suburbs  []SuburbMetadata `yaml:"suburbs"`
}

// SuburbMetadata is one suburb entry. Coordinates are optional centroids.
type SuburbMetadata struct {
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
}

// LoadRegionMetadata reads a manifest from fsys and parses it.
func LoadRegionMetadata(fsys fs.FS, path string) (*RegionMetadata, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region manifest: %w", err)
	}
	return ParseRegionMetadata(data)
}

// ParseRegionMetadata validates data against the manifest schema, then
// decodes it strictly. Unknown keys are rejected and the timezone must be a
// loadable IANA name.
func ParseRegionMetadata(data []byte) (*RegionMetadata, error) {
	if err := ValidateManifest(data); err != nil {
		return nil, err
	}

	var meta RegionMetadata
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to parse region manifest: %w", err)
	}

	if meta.Name == "" {
		return nil, fmt.Errorf("region manifest missing required field: name")
	}
	if meta.Timezone == "" {
		return nil, fmt.Errorf("region manifest %s missing required field: timezone", meta.Name)
	}
	if _, err := time.LoadLocation(meta.Timezone); err != nil {
		return nil, fmt.Errorf("region %s has unknown timezone %q: %w", meta.Name, meta.Timezone, err)
	}

	return &meta, nil
}
