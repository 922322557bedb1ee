package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role values
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// StartingBucks is both the balance of a new account and the weekly regeneration amount.
const StartingBucks = 5

// User is a ladder participant with their wallet, private-event window and cached totals.
type User struct {
	gorm.Model
	Username  string `gorm:"uniqueIndex:idx_users_username_not_deleted,where:deleted_at IS NULL;not null"`
	Email     string `gorm:"index;not null;default:''"`
	FirstName string `gorm:"not null;default:''"`
	LastName  string `gorm:"not null;default:''"`
	HomeCity  string `gorm:"not null;default:'Brisbane'"`
	Role      string `gorm:"not null;default:'user'"` // enum: 'user' or 'admin'

	Bucks           int `gorm:"not null;default:5;check:chk_users_bucks_non_negative,bucks >= 0"`
	LastBucksUpdate *time.Time

	OverallPoints    int                              `gorm:"not null;default:0;index"`
	MonthlyData      datatypes.JSONType[PeriodTotals] `gorm:"type:jsonb"`
	MonthlyUpdatedAt *time.Time

	LastActivated    *time.Time
	PrivateEventEnds *time.Time

	LastLoginAt *time.Time

	// Associations
	AuthIdentities []AuthIdentity `gorm:"constraint:OnDelete:CASCADE;"`
	Events         []Event        `gorm:"constraint:OnDelete:SET NULL;"`
}

// DisplayName joins first and last name, falling back to the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// Totals returns the cached totals, or an empty set when nothing has been computed yet.
func (u *User) Totals() PeriodTotals {
	t := u.MonthlyData.Data()
	if t.Version == 0 {
		return EmptyPeriodTotals("")
	}
	return t
}
