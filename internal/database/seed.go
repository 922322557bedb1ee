package database

import (
	"log"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"gorm.io/gorm"
)

// Seed users
const (
	SeedUsername  = "dev_runner"
	SeedAdminName = "dev_admin"
)

// SeedDevData populates the database with development data: a runner with a
// stub Strava identity, an admin, and a couple of bookings around today in
// Brisbane. Idempotent: skips if the runner already exists.
func SeedDevData(db *gorm.DB, now time.Time) error {
	var existing models.User
	result := db.Where("username = ?", SeedUsername).First(&existing)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		runner := models.User{
			Username:  SeedUsername,
			Email:     "runner@laddr.local",
			FirstName: "Dev",
			LastName:  "Runner",
			HomeCity:  "Brisbane",
			Role:      models.RoleUser,
			Bucks:     models.StartingBucks,
		}
		if err := tx.Create(&runner).Error; err != nil {
			return err
		}

		admin := models.User{
			Username:  SeedAdminName,
			Email:     "admin@laddr.local",
			FirstName: "Dev",
			LastName:  "Admin",
			HomeCity:  "Sydney",
			Role:      models.RoleAdmin,
			Bucks:     models.StartingBucks,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}

		identity := models.AuthIdentity{
			UserID:         runner.ID,
			Provider:       models.ProviderStrava,
			ProviderUserID: "dev-strava-athlete-1",
			AccessToken:    "dev-access-token-placeholder",
			RefreshToken:   "dev-refresh-token-placeholder",
		}
		if err := tx.Create(&identity).Error; err != nil {
			return err
		}

		brisbane := time.FixedZone("AEST", 10*3600)
		today := models.FormatDate(now.In(brisbane))
		tomorrow, _ := models.AddDays(today, 1)

		lat, lon := -27.4570, 153.0340
		events := []models.Event{
			{UserID: &runner.ID, MajorCity: "Brisbane", Suburb: "Fortitude Valley", EventType: models.EventTypePublic, Date: tomorrow, StartHour: 6, Latitude: &lat, Longitude: &lon, Radius: 1},
			{MajorCity: "Brisbane", Suburb: "Fortitude Valley", EventType: models.EventTypeCommunity, Date: tomorrow, StartHour: 18, Latitude: &lat, Longitude: &lon, Radius: 1},
		}
		if err := tx.Create(&events).Error; err != nil {
			return err
		}

		log.Printf("Seeded dev data: runner=%d admin=%d events=%d", runner.ID, admin.ID, len(events))
		return nil
	})
}
