package models

import "gorm.io/gorm"

// AutoMigrate creates the ladder tables. Production schemas come from the
// embedded SQL migrations; this keeps tests and local sqlite runs in sync.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &AuthIdentity{}, &Event{})
}
