package regions

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RegionRecord mirrors the in-memory catalogue in the database so reporting
// queries and admin tooling can join against it.
type RegionRecord struct {
	gorm.Model
	Name     string         `gorm:"uniqueIndex;not null"`
	Country  string         `gorm:"not null;default:''"`
	Timezone string         `gorm:"not null"`
	Suburbs  datatypes.JSON `gorm:"type:jsonb"`
	Enabled  bool           `gorm:"default:true"`
}

// TableName pins the table to "regions".
func (RegionRecord) TableName() string {
	return "regions"
}
