package ladder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/activityladdr/laddr/internal/slots"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/streams"
)

// SlotRequest identifies a slot in a region's grid. Hour is a pointer so an
// absent hour is told apart from midnight.
type SlotRequest struct {
	Region string `json:"major_city"`
	Suburb string `json:"suburb"`
	Date   string `json:"date"`
	Hour   *int   `json:"hour"`
}

// StartHour returns the requested hour, or -1 when none was given.
func (r SlotRequest) StartHour() int {
	if r.Hour == nil {
		return -1
	}
	return *r.Hour
}

// EventRequest creates a public or community event.
type EventRequest struct {
	SlotRequest
	EventType string `json:"event_type"`
}

// BuildCalendar returns the slot grid of a region over the configured horizon.
func (l *Ladder) BuildCalendar(ctx context.Context, regionName string) (*slots.Calendar, error) {
	region, err := l.region(regionName)
	if err != nil {
		return nil, err
	}

	now := l.now()
	today := region.Today(now)
	end, _ := models.AddDays(today, l.horizonDays)

	booked, err := l.store.EventsBetween(ctx, region.Name, today, end)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load events.", err)
	}

	cal := slots.Build(region, now, l.horizonDays, booked, l.pricing)
	return &cal, nil
}

// BookSlot books a public slot priced by days ahead. Checks run in a fixed
// order: hour, region and suburb, time, slot availability, coordinates, then
// funds, so a taken slot is reported as a conflict even when the user is
// also short of bucks. Nothing is debited unless the event is inserted.
func (l *Ladder) BookSlot(ctx context.Context, userID uint, req SlotRequest) (*models.Event, error) {
	region, err := l.validateSlot(ctx, req)
	if err != nil {
		l.metrics.RecordBooking(models.EventTypePublic, outcomeOf(err))
		return nil, err
	}

	now := l.now()
	daysAhead, _ := slots.DaysAhead(region, req.Date, now)
	cost := l.pricing.Cost(daysAhead)

	event, err := l.insertEvent(ctx, userID, cost, region, req, models.EventTypePublic, &userID)
	l.metrics.RecordBooking(models.EventTypePublic, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	l.metrics.RecordSpend(cost)
	l.publish(ctx, streams.KindSlotBooked, userID, map[string]interface{}{
		"event_id": event.ID, "region": event.MajorCity, "date": event.Date, "hour": event.StartHour, "cost": cost,
	})
	slog.Info("Slot booked", "user_id", userID, "event_id", event.ID, "region", event.MajorCity, "date", event.Date, "hour", event.StartHour, "cost", cost)
	return event, nil
}

// CreateEvent creates a public or community event at the flat creation cost.
// Community events have no owner; the creator still pays.
func (l *Ladder) CreateEvent(ctx context.Context, userID uint, req EventRequest) (*models.Event, error) {
	eventType := strings.ToLower(strings.TrimSpace(req.EventType))
	if eventType != models.EventTypePublic && eventType != models.EventTypeCommunity {
		return nil, apperr.New(apperr.KindInvalidInput, "Event type must be public or community.")
	}

	region, err := l.validateSlot(ctx, req.SlotRequest)
	if err != nil {
		l.metrics.RecordBooking(eventType, outcomeOf(err))
		return nil, err
	}

	var owner *uint
	if eventType == models.EventTypePublic {
		owner = &userID
	}

	cost := models.CreationCost(eventType)
	event, err := l.insertEvent(ctx, userID, cost, region, req.SlotRequest, eventType, owner)
	l.metrics.RecordBooking(eventType, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	l.metrics.RecordSpend(cost)
	l.publish(ctx, streams.KindEventCreated, userID, map[string]interface{}{
		"event_id": event.ID, "event_type": eventType, "region": event.MajorCity, "date": event.Date, "hour": event.StartHour,
	})
	return event, nil
}

// validateSlot runs the checks that need no balance: hour, region, suburb,
// elapsed time and slot availability.
func (l *Ladder) validateSlot(ctx context.Context, req SlotRequest) (*regions.Region, error) {
	hour := req.StartHour()
	if !slots.IsValidHour(hour) {
		return nil, apperr.New(apperr.KindInvalidInput, "Invalid or missing hour. Must be 0, 3, 6, ..., 21.")
	}
	region, err := l.region(req.Region)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Suburb) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "Suburb is missing.")
	}
	if _, ok := region.Suburb(req.Suburb); !ok {
		return nil, apperr.New(apperr.KindInvalidInput, fmt.Sprintf("Unknown suburb %q in %s.", req.Suburb, region.Name))
	}

	switch err := slots.ValidateBooking(region, req.Date, hour, l.now()); {
	case errors.Is(err, slots.ErrInvalidDate):
		return nil, apperr.Wrap(apperr.KindInvalidInput, fmt.Sprintf("Invalid date format: %s. Expected format: YYYY-MM-DD.", req.Date), err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindInvalidInput, "Invalid date or time.", err)
	}

	taken, err := l.store.SlotTaken(ctx, region.Name, req.Date, hour)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to check slot.", err)
	}
	if taken {
		return nil, apperr.New(apperr.KindConflict, "Slot already booked in this city.")
	}
	return region, nil
}

// insertEvent geocodes the suburb and then debits and inserts atomically.
func (l *Ladder) insertEvent(ctx context.Context, payerID uint, cost int, region *regions.Region, req SlotRequest, eventType string, owner *uint) (*models.Event, error) {
	point, err := l.geocoder.Lookup(ctx, region.Name, req.Suburb)
	if err != nil {
		l.metrics.RecordUpstreamError("geocoder")
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Unable to fetch coordinates for the location. Please try again.", err)
	}

	event := newSlotEvent(region.Name, req, eventType, owner, point)
	switch err := l.store.BookEvent(ctx, payerID, cost, event); {
	case errors.Is(err, store.ErrSlotTaken):
		return nil, apperr.Wrap(apperr.KindConflict, "Slot already booked in this city.", err)
	case errors.Is(err, store.ErrInsufficientFunds):
		return nil, apperr.Wrap(apperr.KindInsufficientFunds, fmt.Sprintf("Insufficient bucks. You need %d bucks.", cost), err)
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.Wrap(apperr.KindNotFound, "User not found.", err)
	case err != nil:
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to book slot.", err)
	}
	return event, nil
}

func newSlotEvent(region string, req SlotRequest, eventType string, owner *uint, p geo.Point) *models.Event {
	lat, lon := p.Lat, p.Lon
	return &models.Event{
		UserID:    owner,
		MajorCity: region,
		Suburb:    req.Suburb,
		EventType: eventType,
		Date:      req.Date,
		StartHour: req.StartHour(),
		Latitude:  &lat,
		Longitude: &lon,
		Radius:    1,
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
