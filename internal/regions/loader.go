package regions

import (
	"encoding/json"
	"errors"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InitRegions loads the catalogue (from dir, or the embedded defaults) and
// syncs every region into the regions table.
//
// Sync failures are logged per region and do not fail startup; the in-memory
// registry stays authoritative for scheduling.
func InitRegions(db *gorm.DB, dir string) (*Registry, error) {
	registry, err := Load(dir)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded region catalogue", "regions", registry.Count(), "dir", dir)

	if db == nil {
		return registry, nil
	}

	for _, region := range registry.List() {
		if err := syncRegionToDB(db, region); err != nil {
			slog.Warn("Failed to sync region to database", "region", region.Name, "error", err)
			continue
		}
	}

	return registry, nil
}

type suburbJSON struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// syncRegionToDB creates the region row if missing, otherwise updates it.
func syncRegionToDB(db *gorm.DB, region *Region) error {
	suburbs := make([]suburbJSON, 0, len(region.Suburbs))
	for _, s := range region.Suburbs {
		entry := suburbJSON{Name: s.Name}
		if s.Centroid != nil {
			lat, lon := s.Centroid.Lat, s.Centroid.Lon
			entry.Lat, entry.Lon = &lat, &lon
		}
		suburbs = append(suburbs, entry)
	}
	suburbsJSON, err := json.Marshal(suburbs)
	if err != nil {
		return err
	}

	var record RegionRecord
	result := db.Where("name = ?", region.Name).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		record = RegionRecord{
			Name:     region.Name,
			Country:  region.Country,
			Timezone: region.Location.String(),
			Suburbs:  datatypes.JSON(suburbsJSON),
			Enabled:  true,
		}
		return db.Create(&record).Error
	} else if result.Error != nil {
		return result.Error
	}

	return db.Model(&record).Updates(map[string]interface{}{
		"country":  region.Country,
		"timezone": region.Location.String(),
		"suburbs":  datatypes.JSON(suburbsJSON),
	}).Error
}
