// Package slots builds the bookable 3-hour slot grid of a region and prices
// bookings by how far ahead they are made.
package slots

import (
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/matching"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
)

// Slot states
const (
	StatusAvailable   = "available"
	StatusBooked      = "booked"
	StatusUnavailable = "unavailable"
)

// DefaultCostCap is the most a single slot booking can cost.
const DefaultCostCap = 5

// ValidHours are the slot start hours of every day.
var ValidHours = []int{0, 3, 6, 9, 12, 15, 18, 21}

var (
	ErrInvalidHour = errors.New("hour must be one of 0, 3, 6, ..., 21")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrElapsed     = errors.New("slot is in the past")
)

// Occupant identifies who booked a slot. UserID is nil for community events.
type Occupant struct {
	UserID *uint  `json:"user_id,omitempty"`
	Name   string `json:"name"`
}

// Slot is one cell of the calendar.
type Slot struct {
	Hour       int       `json:"hour"`
	Status     string    `json:"status"`
	Cost       int       `json:"cost,omitempty"`
	EventID    uint      `json:"event_id,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	Suburb     string    `json:"suburb,omitempty"`
	Occupant   *Occupant `json:"occupant,omitempty"`
	Multiplier int       `json:"multiplier,omitempty"`
}

// Day is one calendar row in hour order.
type Day struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// Calendar is the ordered grid for a region.
type Calendar struct {
	Region string `json:"region"`
	Today  string `json:"today"`
	Days   []Day  `json:"days"`
}

// Pricing computes booking cost by days ahead.
type Pricing struct {
	Cap int // 0 disables the cap
}

// Cost is free for today and tomorrow, then one buck per extra day.
func (p Pricing) Cost(daysAhead int) int {
	cost := 0
	if daysAhead > 1 {
		cost = daysAhead - 1
	}
	if p.Cap > 0 && cost > p.Cap {
		cost = p.Cap
	}
	return cost
}

// IsValidHour reports whether hour starts a slot.
func IsValidHour(hour int) bool {
	return hour >= 0 && hour < 24 && hour%models.SlotHours == 0
}

// Elapsed reports whether the slot (date, hour) has fully ended in the
// region's local time. Past dates have always elapsed; future dates never.
func Elapsed(region *regions.Region, date string, hour int, now time.Time) bool {
	today := region.Today(now)
	switch {
	case date < today:
		return true
	case date > today:
		return false
	}
	return hour+models.SlotHours <= region.Local(now).Hour()
}

// DaysAhead counts region-local calendar days between today and date.
func DaysAhead(region *regions.Region, date string, now time.Time) (int, error) {
	n, err := models.DaysBetween(region.Today(now), date)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return n, nil
}

// ValidateBooking checks hour, date format and that the slot has not elapsed.
func ValidateBooking(region *regions.Region, date string, hour int, now time.Time) error {
	if !IsValidHour(hour) {
		return ErrInvalidHour
	}
	if _, err := models.ParseDate(date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if Elapsed(region, date, hour, now) {
		return ErrElapsed
	}
	return nil
}

// Build returns the calendar for horizonDays days starting today in the
// region. booked should hold the region's events in the horizon; events of
// other regions and private activations are ignored. Owners should be
// preloaded on booked events so occupants can be named.
func Build(region *regions.Region, now time.Time, horizonDays int, booked []models.Event, pricing Pricing) Calendar {
	today := region.Today(now)
	index := make(map[string]*models.Event, len(booked))
	for i := range booked {
		e := &booked[i]
		if e.MajorCity != region.Name || e.IsPrivate() {
			continue
		}
		index[slotKey(e.Date, e.StartHour)] = e
	}

	cal := Calendar{Region: region.Name, Today: today}
	for offset := 0; offset < horizonDays; offset++ {
		date, _ := models.AddDays(today, offset)
		day := Day{Date: date, Slots: make([]Slot, 0, len(ValidHours))}

		for _, hour := range ValidHours {
			if e, ok := index[slotKey(date, hour)]; ok {
				day.Slots = append(day.Slots, bookedSlot(e, hour, now))
				continue
			}
			if Elapsed(region, date, hour, now) {
				day.Slots = append(day.Slots, Slot{Hour: hour, Status: StatusUnavailable})
				continue
			}
			day.Slots = append(day.Slots, Slot{Hour: hour, Status: StatusAvailable, Cost: pricing.Cost(offset)})
		}

		cal.Days = append(cal.Days, day)
	}
	return cal
}

func bookedSlot(e *models.Event, hour int, now time.Time) Slot {
	occupant := &Occupant{UserID: e.UserID, Name: "Community"}
	if e.User != nil {
		occupant.Name = e.User.DisplayName()
	}
	return Slot{
		Hour:       hour,
		Status:     StatusBooked,
		EventID:    e.ID,
		EventType:  e.EventType,
		Suburb:     e.Suburb,
		Occupant:   occupant,
		Multiplier: matching.Multiplier(e, e.User, now),
	}
}

func slotKey(date string, hour int) string {
	return fmt.Sprintf("%s/%02d", date, hour)
}
