package models

import (
	"time"

	"github.com/activityladdr/laddr/internal/geo"
)

// ActivityType is the scoring category of a recorded activity.
type ActivityType string

const (
	ActivityRun  ActivityType = "run"
	ActivityRide ActivityType = "ride"
)

// Activity is a recorded workout fetched from the fitness provider. It is
// never persisted.
type Activity struct {
	ID                int64
	Name              string
	Type              ActivityType
	DistanceMeters    float64
	MovingTimeSeconds int64
	// Start is the local start time; its location carries the activity's own UTC offset.
	Start time.Time
	Track []geo.Point
}

// ActivityTypeFor maps a provider sport type onto a scoring category.
func ActivityTypeFor(sport string) (ActivityType, bool) {
	switch sport {
	case "Run", "TrailRun", "VirtualRun":
		return ActivityRun, true
	case "Ride", "VirtualRide", "EBikeRide", "GravelRide", "MountainBikeRide":
		return ActivityRide, true
	}
	return "", false
}

// DistanceKm converts the distance to kilometres.
func (a *Activity) DistanceKm() float64 {
	return a.DistanceMeters / 1000
}

// MovingHours converts the moving time to hours.
func (a *Activity) MovingHours() float64 {
	return float64(a.MovingTimeSeconds) / 3600
}

// PaceKmh is average speed in km/h, or 0 for an activity without moving time.
func (a *Activity) PaceKmh() float64 {
	h := a.MovingHours()
	if h <= 0 {
		return 0
	}
	return a.DistanceKm() / h
}

// Qualifies reports whether the activity has both distance and moving time.
func (a *Activity) Qualifies() bool {
	return a.DistanceMeters > 0 && a.MovingTimeSeconds > 0
}

// LocalDate is the activity's own wall-clock date.
func (a *Activity) LocalDate() string {
	return FormatDate(a.Start)
}

// LocalHour is the activity's own wall-clock hour.
func (a *Activity) LocalHour() int {
	return a.Start.Hour()
}
