package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Event types
const (
	EventTypePublic    = "public"
	EventTypeCommunity = "community"
	EventTypePrivate   = "private"
)

// Private events are not bound to a bookable region.
const (
	PrivateRegion = "Private"
	PrivateSuburb = "N/A"
)

// SlotHours is the length of one bookable slot.
const SlotHours = 3

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

// Event is a booked slot. The partial unique index enforces one public or
// community event per (region, date, start hour); private activations sit
// outside the grid and are excluded from it.
type Event struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    *uint    `gorm:"index" json:"user_id"`
	User      *User    `gorm:"constraint:OnDelete:SET NULL;" json:"-"`
	MajorCity string   `gorm:"not null;uniqueIndex:idx_events_slot,where:deleted_at IS NULL AND event_type <> 'private'" json:"major_city"`
	Suburb    string   `gorm:"not null" json:"suburb"`
	EventType string   `gorm:"not null;default:'public';index" json:"event_type"`
	Date      string   `gorm:"type:varchar(10);not null;uniqueIndex:idx_events_slot;index" json:"date"`
	StartHour int      `gorm:"not null;uniqueIndex:idx_events_slot" json:"start_hour"`
	Latitude  *float64 `json:"latitude"` // required for public/community, nil for private
	Longitude *float64 `json:"longitude"`
	Radius    float64  `gorm:"not null;default:1" json:"radius"`
}

// SlotEndHour is the hour a slot starting at start finishes, wrapping at
// midnight.
func SlotEndHour(start int) int {
	return (start + SlotHours) % 24
}

// EndHour is the hour the event's slot finishes.
func (e *Event) EndHour() int {
	return SlotEndHour(e.StartHour)
}

// MarshalJSON adds the derived end_hour to the stored columns.
func (e Event) MarshalJSON() ([]byte, error) {
	type columns Event
	return json.Marshal(struct {
		columns
		EndHour int `json:"end_hour"`
	}{columns(e), e.EndHour()})
}

// IsPrivate reports whether the event is a private activation.
func (e *Event) IsPrivate() bool {
	return e.EventType == EventTypePrivate
}

// HasLocation reports whether both coordinates are present.
func (e *Event) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// CreationCost prices event creation by type: community slots cost more.
func CreationCost(eventType string) int {
	if eventType == EventTypeCommunity {
		return 5
	}
	return 3
}

// FormatDate renders the wall-clock date of t in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DaysBetween returns the number of calendar days from a to b (both YYYY-MM-DD).
func DaysBetween(a, b string) (int, error) {
	da, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	db, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(db.Sub(da).Hours() / 24), nil
}

// AddDays shifts a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}
