// Package scoring turns matched activities into points and folds them into
// per-period totals.
package scoring

import (
	"math"
	"time"

	"github.com/activityladdr/laddr/internal/matching"
	"github.com/activityladdr/laddr/internal/models"
)

// RideFactor scales ride points down relative to runs.
const RideFactor = 0.1

// MatchFunc resolves the multiplier for one activity.
type MatchFunc func(activity *models.Activity) int

// ComputePoints scores one activity: pace (km/h) times distance (km) times
// multiplier, with rides scaled by RideFactor. Activities without distance or
// moving time score nothing.
func ComputePoints(activity *models.Activity, multiplier int) int {
	if !activity.Qualifies() {
		return 0
	}
	raw := activity.PaceKmh() * activity.DistanceKm() * float64(multiplier)
	if activity.Type == models.ActivityRide {
		raw *= RideFactor
	}
	return int(math.Round(raw))
}

// Aggregate recomputes the totals of a period from scratch. Activities that
// do not qualify or have an unknown type are skipped. The result depends only
// on its inputs, so recomputing an unchanged period yields identical totals.
func Aggregate(period string, activities []models.Activity, match MatchFunc) models.PeriodTotals {
	totals := models.EmptyPeriodTotals(period)
	for i := range activities {
		a := &activities[i]
		if !scorable(a) {
			continue
		}
		multiplier := match(a)
		Add(&totals, a, multiplier)
	}
	Finalize(&totals)
	return totals
}

// AggregateEvents scores activities against the events of the period using
// matcher, crediting private activations only to user. It also counts the
// looser interactions reported by matcher.Interacts.
func AggregateEvents(period string, activities []models.Activity, events []models.Event, user *models.User, matcher *matching.Matcher) models.PeriodTotals {
	totals := Aggregate(period, activities, func(a *models.Activity) int {
		return matcher.Match(a, events, user).Multiplier
	})
	for i := range activities {
		a := &activities[i]
		if scorable(a) && matcher.Interacts(a.Track, events) != nil {
			totals.Interactions++
		}
	}
	return totals
}

func scorable(a *models.Activity) bool {
	return a.Qualifies() && (a.Type == models.ActivityRun || a.Type == models.ActivityRide)
}

// Add folds one scored activity into the running sums.
func Add(totals *models.PeriodTotals, activity *models.Activity, multiplier int) {
	bucket := totals.ForType(activity.Type)
	bucket.DistanceKm += activity.DistanceKm()
	bucket.MovingTimeSeconds += activity.MovingTimeSeconds
	bucket.Points += ComputePoints(activity, multiplier)
	bucket.MultiplierSum += multiplier
	bucket.Count++
}

// Finalize derives averages and the period total from the running sums.
func Finalize(totals *models.PeriodTotals) {
	for _, bucket := range []*models.ActivityTypeTotals{&totals.Run, &totals.Ride} {
		bucket.Pace = 0
		if hours := float64(bucket.MovingTimeSeconds) / 3600; hours > 0 {
			bucket.Pace = bucket.DistanceKm / hours
		}
		bucket.AvgMultiplier = 1
		if bucket.Count > 0 {
			bucket.AvgMultiplier = float64(bucket.MultiplierSum) / float64(bucket.Count)
		}
	}

	totals.TotalPoints = totals.Run.Points + totals.Ride.Points
	totals.AvgMultiplier = 1
	if count := totals.Run.Count + totals.Ride.Count; count > 0 {
		totals.AvgMultiplier = float64(totals.Run.MultiplierSum+totals.Ride.MultiplierSum) / float64(count)
	}
}

// Month is a calendar month in a region's timezone.
type Month struct {
	Label string    // YYYY-MM
	Start time.Time // inclusive
	End   time.Time // exclusive
}

// StartDate is the first calendar day of the month as YYYY-MM-DD.
func (m Month) StartDate() string {
	return models.FormatDate(m.Start)
}

// EndDate is the first day of the following month as YYYY-MM-DD.
func (m Month) EndDate() string {
	return models.FormatDate(m.End)
}

// MonthOf returns the calendar month containing now in loc.
func MonthOf(now time.Time, loc *time.Location) Month {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Month{
		Label: start.Format("2006-01"),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// PastMonths returns n months ending with the month containing now, oldest first.
func PastMonths(now time.Time, loc *time.Location, n int) []Month {
	current := MonthOf(now, loc)
	months := make([]Month, n)
	for i := 0; i < n; i++ {
		start := current.Start.AddDate(0, -(n - 1 - i), 0)
		months[i] = Month{Label: start.Format("2006-01"), Start: start, End: start.AddDate(0, 1, 0)}
	}
	return months
}
