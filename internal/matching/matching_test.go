package matching

import (
	"testing"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var brisbane = mustLocation("Australia/Brisbane")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newMatcher(t *testing.T) *Matcher {
	t.Helper()
	reg, err := regions.Default()
	require.NoError(t, err)
	return New(reg, DefaultInteractionBufferKm)
}

func ptr[T any](v T) *T { return &v }

func privateEvent(owner uint, date string, hour int) models.Event {
	return models.Event{
		ID:        100 + uint(hour),
		UserID:    ptr(owner),
		MajorCity: models.PrivateRegion,
		Suburb:    models.PrivateSuburb,
		EventType: models.EventTypePrivate,
		Date:      date,
		StartHour: hour,
	}
}

func publicEvent(date string, hour int, lat, lon float64) models.Event {
	return models.Event{
		ID:        200 + uint(hour),
		MajorCity: "Brisbane",
		Suburb:    "Newstead",
		EventType: models.EventTypePublic,
		Date:      date,
		StartHour: hour,
		Latitude:  ptr(lat),
		Longitude: ptr(lon),
		Radius:    1,
	}
}

func activityAt(t time.Time, track ...geo.Point) *models.Activity {
	return &models.Activity{
		ID:                1,
		Type:              models.ActivityRun,
		DistanceMeters:    10000,
		MovingTimeSeconds: 3600,
		Start:             t,
		Track:             track,
	}
}

func TestPrivateWindowSpansMidnight(t *testing.T) {
	event := privateEvent(1, "2024-05-01", 22)

	tests := []struct {
		date string
		hour int
		want bool
	}{
		{"2024-05-01", 23, true},
		{"2024-05-01", 22, true},
		{"2024-05-01", 21, false},
		{"2024-05-02", 5, true},
		{"2024-05-02", 21, true},
		{"2024-05-02", 22, false},
		{"2024-05-02", 23, false},
		{"2024-05-03", 1, false},
	}

	for _, tt := range tests {
		got := PrivateWindowCovers(&event, tt.date, tt.hour)
		require.Equalf(t, tt.want, got, "%s %02d:00", tt.date, tt.hour)
	}
}

func TestMatchPrivateEventOwnerOnly(t *testing.T) {
	m := newMatcher(t)
	owner := &models.User{Model: gorm.Model{ID: 1}}
	stranger := &models.User{Model: gorm.Model{ID: 2}}
	events := []models.Event{privateEvent(1, "2024-05-01", 22)}

	act := activityAt(time.Date(2024, 5, 2, 5, 0, 0, 0, brisbane))

	res := m.Match(act, events, owner)
	require.Equal(t, MultiplierPrivate, res.Multiplier)
	require.NotNil(t, res.Event)

	res = m.Match(act, events, stranger)
	require.Equal(t, MultiplierNone, res.Multiplier)
	require.Nil(t, res.Event)
}

func TestMatchPublicEvent(t *testing.T) {
	m := newMatcher(t)
	user := &models.User{Model: gorm.Model{ID: 1}}
	events := []models.Event{publicEvent("2024-05-01", 6, -27.4440, 153.0440)}
	near := geo.Point{Lat: -27.4445, Lon: 153.0445}
	far := geo.Point{Lat: -27.60, Lon: 153.20}

	t.Run("inside window and radius", func(t *testing.T) {
		res := m.Match(activityAt(time.Date(2024, 5, 1, 7, 15, 0, 0, brisbane), far, near), events, user)
		require.Equal(t, MultiplierPublic, res.Multiplier)
		require.Equal(t, events[0].ID, res.Event.ID)
	})

	t.Run("window end is exclusive", func(t *testing.T) {
		res := m.Match(activityAt(time.Date(2024, 5, 1, 9, 0, 0, 0, brisbane), near), events, user)
		require.Equal(t, MultiplierNone, res.Multiplier)
	})

	t.Run("outside radius", func(t *testing.T) {
		res := m.Match(activityAt(time.Date(2024, 5, 1, 7, 0, 0, 0, brisbane), far), events, user)
		require.Equal(t, MultiplierNone, res.Multiplier)
	})

	t.Run("empty track", func(t *testing.T) {
		res := m.Match(activityAt(time.Date(2024, 5, 1, 7, 0, 0, 0, brisbane)), events, user)
		require.Equal(t, MultiplierNone, res.Multiplier)
	})

	t.Run("other day", func(t *testing.T) {
		res := m.Match(activityAt(time.Date(2024, 5, 2, 7, 0, 0, 0, brisbane), near), events, user)
		require.Equal(t, MultiplierNone, res.Multiplier)
	})

	t.Run("activity offset differs from region", func(t *testing.T) {
		// 21:30 UTC on 30 April is 07:30 on 1 May in Brisbane.
		start := time.Date(2024, 4, 30, 21, 30, 0, 0, time.UTC)
		res := m.Match(activityAt(start, near), events, user)
		require.Equal(t, MultiplierPublic, res.Multiplier)
	})
}

func TestMatchSkipsEventsWithoutCoordinates(t *testing.T) {
	m := newMatcher(t)
	event := publicEvent("2024-05-01", 6, 0, 0)
	event.Latitude = nil
	res := m.Match(activityAt(time.Date(2024, 5, 1, 7, 0, 0, 0, brisbane), geo.Point{}), []models.Event{event}, nil)
	require.Equal(t, MultiplierNone, res.Multiplier)
}

func TestPrivateMatchShortCircuitsPublic(t *testing.T) {
	m := newMatcher(t)
	user := &models.User{Model: gorm.Model{ID: 1}}
	near := geo.Point{Lat: -27.4440, Lon: 153.0440}
	events := []models.Event{
		publicEvent("2024-05-01", 6, -27.4440, 153.0440),
		privateEvent(1, "2024-05-01", 5),
	}

	res := m.Match(activityAt(time.Date(2024, 5, 1, 7, 0, 0, 0, brisbane), near), events, user)
	require.Equal(t, MultiplierPrivate, res.Multiplier)
	require.True(t, res.Event.IsPrivate())
}

func TestInteractsUsesBuffer(t *testing.T) {
	m := newMatcher(t)
	events := []models.Event{publicEvent("2024-05-01", 6, -27.4440, 153.0440)}
	// roughly 4 km north of the event: outside the 1 km radius, inside radius+5.
	track := []geo.Point{{Lat: -27.4080, Lon: 153.0440}}

	require.NotNil(t, m.Interacts(track, events))
	require.Nil(t, New(m.regions, 0).Interacts(track, events))
}

func TestGenericMultiplier(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	active := &models.User{PrivateEventEnds: ptr(now.Add(time.Hour))}
	expired := &models.User{PrivateEventEnds: ptr(now.Add(-time.Hour))}

	pub := publicEvent("2024-05-01", 6, 0, 0)
	community := pub
	community.EventType = models.EventTypeCommunity
	private := privateEvent(1, "2024-05-01", 6)

	require.Equal(t, MultiplierPublic, Multiplier(&pub, nil, now))
	require.Equal(t, MultiplierPublic, Multiplier(&community, nil, now))
	require.Equal(t, MultiplierPrivate, Multiplier(&private, active, now))
	require.Equal(t, MultiplierNone, Multiplier(&private, expired, now))
	require.Equal(t, MultiplierNone, Multiplier(&private, nil, now))
}
