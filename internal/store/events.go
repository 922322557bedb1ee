package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SlotTaken reports whether (region, date, hour) already holds a live event.
func (s *Store) SlotTaken(ctx context.Context, region, date string, hour int) (bool, error) {
	return slotTaken(s.db.WithContext(ctx), region, date, hour)
}

func slotTaken(tx *gorm.DB, region, date string, hour int) (bool, error) {
	var count int64
	err := tx.Model(&models.Event{}).
		Where("major_city = ? AND date = ? AND start_hour = ?", region, date, hour).
		Where("event_type <> ?", models.EventTypePrivate).
		Count(&count).Error
	return count > 0, err
}

// BookEvent inserts event and debits cost from payerID in one transaction.
// The slot is re-checked before any debit; the debit only applies while the
// balance covers it. A zero cost still requires the payer to exist.
func (s *Store) BookEvent(ctx context.Context, payerID uint, cost int, event *models.Event) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payer models.User
		if err := tx.Select("id", "bucks").First(&payer, payerID).Error; err != nil {
			return notFound(err)
		}

		taken, err := slotTaken(tx, event.MajorCity, event.Date, event.StartHour)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotTaken
		}

		if cost > 0 {
			if err := debit(tx, payerID, cost, nil); err != nil {
				return err
			}
		}

		return tx.Create(event).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlotTaken
	}
	return err
}

// ActivatePrivate persists a private activation: it debits cost, stamps the
// window and inserts event. The update only applies while the cooldown has
// elapsed and the balance covers cost; otherwise ErrStaleWallet is returned
// and nothing changes.
func (s *Store) ActivatePrivate(ctx context.Context, userID uint, cost int, activatedAt, endsAt time.Time, cooldown time.Duration, event *models.Event) error {
	activatedAt, endsAt = activatedAt.UTC(), endsAt.UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := func(db *gorm.DB) *gorm.DB {
			return db.Where("last_activated IS NULL OR last_activated <= ?", activatedAt.Add(-cooldown))
		}
		if err := debit(tx, userID, cost, cutoff); err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return ErrStaleWallet
			}
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"last_activated":     activatedAt,
			"private_event_ends": endsAt,
		}).Error; err != nil {
			return err
		}
		return tx.Create(event).Error
	})
}

// debit subtracts cost when the balance covers it and the optional extra
// condition holds.
func debit(tx *gorm.DB, userID uint, cost int, extra func(*gorm.DB) *gorm.DB) error {
	q := tx.Model(&models.User{}).Where("id = ? AND bucks >= ?", userID, cost)
	if extra != nil {
		q = q.Scopes(extra)
	}
	result := q.Update("bucks", gorm.Expr("bucks - ?", cost))
	if result.Error != nil {
		return fmt.Errorf("debit bucks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// EventsBetween returns events with from <= date < to, owners preloaded,
// ordered by date then hour. An empty region matches every region.
func (s *Store) EventsBetween(ctx context.Context, region, from, to string) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Preload("User").
		Where("date >= ? AND date < ?", from, to)
	if region != "" {
		q = q.Where("major_city = ?", region)
	}
	var events []models.Event
	err := q.Order("date ASC").Order("start_hour ASC").Order("id ASC").Find(&events).Error
	return events, err
}

// ListEvents returns every live event, newest date first.
func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).Preload("User").
		Order("date DESC").Order("start_hour DESC").Find(&events).Error
	return events, err
}

// DeleteUserEvents removes every event owned by userID.
func (s *Store) DeleteUserEvents(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Event{})
	return result.RowsAffected, result.Error
}

func newTotalsColumn(t models.PeriodTotals) datatypes.JSONType[models.PeriodTotals] {
	return datatypes.NewJSONType(t)
}
