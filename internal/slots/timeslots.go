package slots

import (
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
)

// Timeslot is a free slot on a given date with display labels.
type Timeslot struct {
	Hour      int    `json:"hour"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DateOption is a selectable booking date.
type DateOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AvailableTimeslots lists slots on date that have neither elapsed nor been
// booked in the region.
func AvailableTimeslots(region *regions.Region, date string, now time.Time, booked []models.Event) ([]Timeslot, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	taken := make(map[int]bool)
	for _, e := range booked {
		if e.MajorCity == region.Name && e.Date == date && !e.IsPrivate() {
			taken[e.StartHour] = true
		}
	}

	var out []Timeslot
	for _, hour := range ValidHours {
		if taken[hour] || Elapsed(region, date, hour, now) {
			continue
		}
		out = append(out, Timeslot{
			Hour:      hour,
			StartTime: fmt.Sprintf("%02d:00", hour),
			EndTime:   fmt.Sprintf("%02d:00", models.SlotEndHour(hour)),
		})
	}
	return out, nil
}

// ValidDates returns today and tomorrow in the region.
func ValidDates(region *regions.Region, now time.Time) []DateOption {
	local := region.Local(now)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]DateOption, 0, 2)
	for _, d := range []time.Time{today, today.AddDate(0, 0, 1)} {
		out = append(out, DateOption{
			Value: d.Format(models.DateLayout),
			Label: d.Format("Monday, 02 January 2006"),
		})
	}
	return out
}
