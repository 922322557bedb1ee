// Package matching decides whether a recorded activity interacts with a
// booked event and which scoring multiplier applies.
package matching

import (
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
)

// Multipliers
const (
	MultiplierNone    = 1
	MultiplierPrivate = 3
	MultiplierPublic  = 10
)

// DefaultInteractionBufferKm widens event radii for the loose interaction check.
const DefaultInteractionBufferKm = 5.0

// Result is the outcome of matching one activity.
type Result struct {
	Multiplier int
	Event      *models.Event // nil when nothing matched
}

// Matcher resolves region timezones for public and community events.
type Matcher struct {
	regions  *regions.Registry
	bufferKm float64
}

// New creates a Matcher. bufferKm only affects Interacts.
func New(reg *regions.Registry, bufferKm float64) *Matcher {
	return &Matcher{regions: reg, bufferKm: bufferKm}
}

// Match runs the activity against candidates. Private events of user win
// over everything; then public and community events need a GPS sample inside
// the event radius during the event's region-local window. The first match in
// candidate order wins within each tier.
func (m *Matcher) Match(activity *models.Activity, candidates []models.Event, user *models.User) Result {
	for i := range candidates {
		event := &candidates[i]
		if !event.IsPrivate() || !ownedBy(event, user) {
			continue
		}
		if PrivateWindowCovers(event, activity.LocalDate(), activity.LocalHour()) {
			return Result{Multiplier: MultiplierPrivate, Event: event}
		}
	}

	for i := range candidates {
		event := &candidates[i]
		if event.IsPrivate() {
			continue
		}
		if m.inPublicWindow(event, activity.Start) && withinRadius(event, activity.Track, event.Radius) {
			return Result{Multiplier: MultiplierPublic, Event: event}
		}
	}

	return Result{Multiplier: MultiplierNone}
}

// Interacts is the looser check used for display: any non-private event whose
// buffered radius is touched by the track, ignoring the time window.
func (m *Matcher) Interacts(track []geo.Point, candidates []models.Event) *models.Event {
	for i := range candidates {
		event := &candidates[i]
		if event.IsPrivate() {
			continue
		}
		if withinRadius(event, track, event.Radius+m.bufferKm) {
			return event
		}
	}
	return nil
}

// PrivateWindowCovers reports whether a wall-clock (date, hour) lies inside
// the 24-hour activation window that opens at the event's date and start hour.
func PrivateWindowCovers(event *models.Event, date string, hour int) bool {
	if event.Date == date && event.StartHour <= hour {
		return true
	}
	nextDay, err := models.AddDays(event.Date, 1)
	if err != nil {
		return false
	}
	return date == nextDay && hour < event.StartHour
}

// inPublicWindow checks the activity start against [start_hour, start_hour+3)
// on the event's date, on the wall clock of the event's region.
func (m *Matcher) inPublicWindow(event *models.Event, start time.Time) bool {
	region, ok := m.regions.Get(event.MajorCity)
	if !ok {
		return false
	}

	local := region.Local(start)
	if models.FormatDate(local) != event.Date {
		return false
	}
	hour := local.Hour()
	return event.StartHour <= hour && hour < event.StartHour+models.SlotHours
}

// Multiplier is the generic accessor used by calendar display: public and
// community events are always worth the public multiplier, a private event is
// worth the private multiplier only while its owner's window is open.
func Multiplier(event *models.Event, owner *models.User, now time.Time) int {
	switch event.EventType {
	case models.EventTypePublic, models.EventTypeCommunity:
		return MultiplierPublic
	}
	if owner != nil && owner.PrivateEventEnds != nil && now.Before(*owner.PrivateEventEnds) {
		return MultiplierPrivate
	}
	return MultiplierNone
}

func withinRadius(event *models.Event, track []geo.Point, radiusKm float64) bool {
	if !event.HasLocation() {
		return false
	}
	return geo.AnyWithin(track, geo.Point{Lat: *event.Latitude, Lon: *event.Longitude}, radiusKm)
}

func ownedBy(event *models.Event, user *models.User) bool {
	return user != nil && event.UserID != nil && *event.UserID == user.ID
}
