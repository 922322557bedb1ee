package models

import (
	"time"

	"github.com/activityladdr/laddr/internal/crypto"
	"gorm.io/gorm"
)

// ProviderStrava is the only identity provider the ladder links today.
const ProviderStrava = "strava"

const sealerSetting = "laddr:token_sealer"

// WithTokenSealer returns a handle on which AuthIdentity tokens are sealed on
// write and opened on read with s. Handles without a sealer store tokens as
// given.
func WithTokenSealer(db *gorm.DB, s *crypto.Sealer) *gorm.DB {
	return db.Set(sealerSetting, s).Session(&gorm.Session{})
}

func sealerOf(tx *gorm.DB) *crypto.Sealer {
	v, ok := tx.Get(sealerSetting)
	if !ok {
		return nil
	}
	s, _ := v.(*crypto.Sealer)
	return s
}

// AuthIdentity holds the fitness-provider credentials of a user. The tokens
// are opaque to the ladder core and only read by the Strava client.
type AuthIdentity struct {
	gorm.Model
	UserID         uint   `gorm:"not null;index"`
	User           User   `gorm:"constraint:OnDelete:CASCADE;"`
	Provider       string `gorm:"not null"`
	ProviderUserID string `gorm:"not null;uniqueIndex:idx_auth_identities_provider_user,where:deleted_at IS NULL"`
	AccessToken    string `gorm:"type:text"` // sealed at rest
	RefreshToken   string `gorm:"type:text"` // sealed at rest
	TokenExpiry    *time.Time
}

// Expired reports whether the access token is past its expiry at now.
func (a *AuthIdentity) Expired(now time.Time) bool {
	return a.TokenExpiry == nil || !now.Before(*a.TokenExpiry)
}

// BeforeSave seals tokens that are not sealed yet.
func (a *AuthIdentity) BeforeSave(tx *gorm.DB) error {
	sealer := sealerOf(tx)
	if sealer == nil {
		return nil
	}

	var err error
	if a.AccessToken, err = sealer.Seal(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = sealer.Seal(a.RefreshToken); err != nil {
		return err
	}
	return nil
}

// AfterFind opens sealed tokens after loading from the database.
func (a *AuthIdentity) AfterFind(tx *gorm.DB) error {
	sealer := sealerOf(tx)
	if sealer == nil {
		return nil
	}

	var err error
	if a.AccessToken, err = sealer.Open(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = sealer.Open(a.RefreshToken); err != nil {
		return err
	}
	return nil
}
