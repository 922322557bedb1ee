package scoring

import (
	"testing"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/matching"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func run(km float64, seconds int64) models.Activity {
	return models.Activity{Type: models.ActivityRun, DistanceMeters: km * 1000, MovingTimeSeconds: seconds}
}

func ride(km float64, seconds int64) models.Activity {
	return models.Activity{Type: models.ActivityRide, DistanceMeters: km * 1000, MovingTimeSeconds: seconds}
}

func TestComputePoints(t *testing.T) {
	tenK := run(10, 3600)
	require.Equal(t, 100, ComputePoints(&tenK, 1))
	require.Equal(t, 1000, ComputePoints(&tenK, 10))
	require.Equal(t, 300, ComputePoints(&tenK, 3))

	fortyK := ride(40, 3600) // 40 km/h * 40 km * 0.1
	require.Equal(t, 160, ComputePoints(&fortyK, 1))
	require.Equal(t, 1600, ComputePoints(&fortyK, 10))

	stopped := run(5, 0)
	require.Equal(t, 0, ComputePoints(&stopped, 10))

	rounding := run(5, 1800+60) // 5 km in 31 min: 9.677 km/h * 5 = 48.39
	require.Equal(t, 48, ComputePoints(&rounding, 1))
}

func TestAggregate(t *testing.T) {
	activities := []models.Activity{
		run(10, 3600),
		run(5, 1800),
		ride(40, 3600),
		// skipped: no moving time, then an unknown type
		run(3, 0),
		{Type: "swim", DistanceMeters: 1000, MovingTimeSeconds: 600},
	}
	multipliers := map[float64]int{10000: 10, 5000: 1, 40000: 3}
	match := func(a *models.Activity) int { return multipliers[a.DistanceMeters] }

	totals := Aggregate("2024-05", activities, match)

	require.Equal(t, models.TotalsSchemaVersion, totals.Version)
	require.Equal(t, "2024-05", totals.Period)

	require.Equal(t, 2, totals.Run.Count)
	require.InDelta(t, 15.0, totals.Run.DistanceKm, 1e-9)
	require.EqualValues(t, 5400, totals.Run.MovingTimeSeconds)
	require.InDelta(t, 10.0, totals.Run.Pace, 1e-9)
	require.Equal(t, 1000+50, totals.Run.Points)
	require.InDelta(t, 5.5, totals.Run.AvgMultiplier, 1e-9)

	require.Equal(t, 1, totals.Ride.Count)
	require.Equal(t, 480, totals.Ride.Points)
	require.InDelta(t, 3.0, totals.Ride.AvgMultiplier, 1e-9)

	require.Equal(t, 1530, totals.TotalPoints)
	require.InDelta(t, 14.0/3.0, totals.AvgMultiplier, 1e-9)
}

func TestAggregateIsIdempotent(t *testing.T) {
	activities := []models.Activity{run(10, 3600), ride(20, 3600)}
	match := func(*models.Activity) int { return 1 }

	first := Aggregate("2024-05", activities, match)
	second := Aggregate("2024-05", activities, match)
	require.Equal(t, first, second)
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate("2024-05", nil, func(*models.Activity) int { return 1 })
	require.Equal(t, models.EmptyPeriodTotals("2024-05"), totals)
	require.Equal(t, 1.0, totals.Run.AvgMultiplier)
	require.Equal(t, 0.0, totals.Ride.Pace)
}

func TestMonthOfUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)

	// 30 April 16:00 UTC is already 1 May in Brisbane.
	m := MonthOf(time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC), loc)
	require.Equal(t, "2024-05", m.Label)
	require.Equal(t, "2024-05-01", m.StartDate())
	require.Equal(t, "2024-06-01", m.EndDate())
}

func TestPastMonths(t *testing.T) {
	months := PastMonths(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.UTC, 12)
	require.Len(t, months, 12)
	require.Equal(t, "2023-04", months[0].Label)
	require.Equal(t, "2024-03", months[11].Label)
	require.Equal(t, months[10].End, months[11].Start)
}

func TestAggregateEventsUsesMatcher(t *testing.T) {
	reg, err := regions.Default()
	require.NoError(t, err)
	matcher := matching.New(reg, matching.DefaultInteractionBufferKm)

	user := &models.User{Model: gorm.Model{ID: 4}}
	owner := user.ID
	events := []models.Event{
		{UserID: &owner, MajorCity: models.PrivateRegion, Suburb: models.PrivateSuburb, EventType: models.EventTypePrivate, Date: "2024-05-01", StartHour: 22},
	}
	aest := time.FixedZone("AEST", 10*3600)

	activities := []models.Activity{
		{Type: models.ActivityRun, DistanceMeters: 10000, MovingTimeSeconds: 3600, Start: time.Date(2024, 5, 2, 5, 0, 0, 0, aest)},
		{Type: models.ActivityRun, DistanceMeters: 10000, MovingTimeSeconds: 3600, Start: time.Date(2024, 5, 2, 23, 0, 0, 0, aest)},
	}

	totals := AggregateEvents("2024-05", activities, events, user, matcher)
	require.Equal(t, 300+100, totals.Run.Points)
	require.InDelta(t, 2.0, totals.Run.AvgMultiplier, 1e-9)

	stranger := &models.User{Model: gorm.Model{ID: 5}}
	totals = AggregateEvents("2024-05", activities, events, stranger, matcher)
	require.Equal(t, 200, totals.TotalPoints)
	require.Zero(t, totals.Interactions)
}

func TestAggregateEventsCountsInteractions(t *testing.T) {
	reg, err := regions.Default()
	require.NoError(t, err)
	lat, lon := -27.4440, 153.0440
	events := []models.Event{
		{MajorCity: "Brisbane", Suburb: "Newstead", EventType: models.EventTypePublic, Date: "2024-05-01", StartHour: 6, Latitude: &lat, Longitude: &lon, Radius: 1},
	}
	aest := time.FixedZone("AEST", 10*3600)
	// about 4 km north: outside the event radius, inside radius plus buffer
	passing := []geo.Point{{Lat: -27.4080, Lon: 153.0440}}
	activities := []models.Activity{
		{Type: models.ActivityRun, DistanceMeters: 10000, MovingTimeSeconds: 3600, Start: time.Date(2024, 5, 3, 18, 0, 0, 0, aest), Track: passing},
		{Type: models.ActivityRun, DistanceMeters: 0, MovingTimeSeconds: 600, Start: time.Date(2024, 5, 3, 18, 0, 0, 0, aest), Track: passing},
		{Type: models.ActivityRun, DistanceMeters: 10000, MovingTimeSeconds: 3600, Start: time.Date(2024, 5, 3, 18, 0, 0, 0, aest)},
	}
	user := &models.User{Model: gorm.Model{ID: 4}}

	totals := AggregateEvents("2024-05", activities, events, user, matching.New(reg, matching.DefaultInteractionBufferKm))
	require.Equal(t, 1, totals.Interactions)
	require.Equal(t, 200, totals.TotalPoints) // interactions never change points

	totals = AggregateEvents("2024-05", activities, events, user, matching.New(reg, 0.5))
	require.Zero(t, totals.Interactions)
}
