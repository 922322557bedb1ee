// Package store is the persistence collaborator of the ladder. Every balance
// mutation is a single conditional UPDATE so concurrent requests cannot
// overdraw a wallet; the partial unique index on events backstops double
// booking.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrSlotTaken         = errors.New("slot already booked")
	ErrInsufficientFunds = errors.New("insufficient bucks")
	ErrStaleWallet       = errors.New("wallet changed concurrently")
)

// Store wraps a gorm handle.
type Store struct {
	db *gorm.DB
}

// New creates a Store. db should be opened with TranslateError enabled so
// unique violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// ListUsers returns every user in id order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

// DeleteUser removes a user and their linked identities. Their events stay
// on the calendar without an owner.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.AuthIdentity{}).Error; err != nil {
			return fmt.Errorf("delete identities: %w", err)
		}
		if err := tx.Model(&models.Event{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("detach events: %w", err)
		}
		return tx.Delete(&user).Error
	})
}

// Leaderboard returns users by overall points, highest first, ties by id.
// limit <= 0 returns everyone.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("overall_points DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var users []models.User
	err := q.Find(&users).Error
	return users, err
}

// RegenerateBucks resets the balance to amount when the last regeneration is
// at least interval old. It reports whether this call performed the reset.
func (s *Store) RegenerateBucks(ctx context.Context, userID uint, now time.Time, interval time.Duration, amount int) (bool, error) {
	now = now.UTC()
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Where("last_bucks_update IS NULL OR last_bucks_update <= ?", now.Add(-interval)).
		Updates(map[string]interface{}{
			"bucks":             amount,
			"last_bucks_update": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SaveTotals replaces the cached totals and overall points of a user.
func (s *Store) SaveTotals(ctx context.Context, userID uint, totals models.PeriodTotals, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"monthly_data":       newTotalsColumn(totals),
			"overall_points":     totals.TotalPoints,
			"monthly_updated_at": now.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetCooldown clears the private event cooldown and window.
func (s *Store) ResetCooldown(ctx context.Context, userID uint) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_activated":     nil,
			"private_event_ends": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
