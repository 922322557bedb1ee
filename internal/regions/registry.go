package regions

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"
	_ "time/tzdata" // regions must resolve without host zoneinfo

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
)

//go:embed defaults/*/region.yaml
var defaultsFS embed.FS

// Suburb is a bookable sub-region. Centroid is nil when the manifest has no coordinates.
type Suburb struct {
	Name     string
	Centroid *geo.Point
}

// Region is a major city with its IANA timezone. All "today" and "current
// hour" questions about a region are answered in Location.
type Region struct {
	Name     string
	Country  string
	Location *time.Location
	Suburbs  []Suburb
}

// Local converts an instant into the region's wall clock.
func (r *Region) Local(t time.Time) time.Time {
	return t.In(r.Location)
}

// Today is the region-local calendar date of now.
func (r *Region) Today(now time.Time) string {
	return models.FormatDate(r.Local(now))
}

// Suburb looks up a suburb by exact name.
func (r *Region) Suburb(name string) (Suburb, bool) {
	for _, s := range r.Suburbs {
		if s.Name == name {
			return s, true
		}
	}
	return Suburb{}, false
}

// SuburbNames lists suburb names in manifest order.
func (r *Region) SuburbNames() []string {
	names := make([]string, 0, len(r.Suburbs))
	for _, s := range r.Suburbs {
		names = append(names, s.Name)
	}
	return names
}

func newRegion(meta *RegionMetadata) (*Region, error) {
	loc, err := time.LoadLocation(meta.Timezone)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", meta.Name, err)
	}

	region := &Region{Name: meta.Name, Country: meta.Country, Location: loc}
	for _, s := range meta.Suburbs {
		suburb := Suburb{Name: s.Name}
		if s.Lat != nil && s.Lon != nil {
			suburb.Centroid = &geo.Point{Lat: *s.Lat, Lon: *s.Lon}
		}
		region.Suburbs = append(region.Suburbs, suburb)
	}
	return region, nil
}

// Registry holds the region catalogue in memory, indexed by city name.
// It is read-only once loaded.
type Registry struct {
	regions map[string]*Region
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[string]*Region)}
}

// Register adds a region built from meta. Duplicate names are rejected.
func (r *Registry) Register(meta *RegionMetadata) error {
	if _, exists := r.regions[meta.Name]; exists {
		return fmt.Errorf("region already registered: %s", meta.Name)
	}
	region, err := newRegion(meta)
	if err != nil {
		return err
	}
	r.regions[meta.Name] = region
	return nil
}

// Get retrieves a region by name.
func (r *Registry) Get(name string) (*Region, bool) {
	region, ok := r.regions[name]
	return region, ok
}

// List returns all regions sorted by name.
func (r *Registry) List() []*Region {
	list := make([]*Region, 0, len(r.regions))
	for _, region := range r.regions {
		list = append(list, region)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Names returns the sorted region names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.regions))
	for _, region := range r.List() {
		names = append(names, region.Name)
	}
	return names
}

// Count returns the number of registered regions.
func (r *Registry) Count() int {
	return len(r.regions)
}

// LoadRegistry discovers manifests under dir of fsys. Duplicates are logged and skipped.
func LoadRegistry(fsys fs.FS, dir string) (*Registry, error) {
	discovered, err := DiscoverRegions(fsys, dir)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, meta := range discovered {
		if err := registry.Register(meta); err != nil {
			slog.Warn("Skipping region", "region", meta.Name, "error", err)
			continue
		}
	}
	return registry, nil
}

// Default loads the catalogue shipped with the binary.
func Default() (*Registry, error) {
	return LoadRegistry(defaultsFS, "defaults")
}

// Load uses dir on disk when set, otherwise the embedded defaults.
func Load(dir string) (*Registry, error) {
	if dir == "" {
		return Default()
	}
	registry, err := LoadRegistry(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load regions from %s: %w", dir, err)
	}
	if registry.Count() == 0 {
		return nil, fmt.Errorf("no regions found in %s", dir)
	}
	return registry, nil
}
