package slots

import (
	"errors"
	"testing"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func region(t *testing.T, name string) *regions.Region {
	t.Helper()
	reg, err := regions.Default()
	require.NoError(t, err)
	r, ok := reg.Get(name)
	require.True(t, ok)
	return r
}

// brisbaneTime builds an instant from a Brisbane wall clock (UTC+10, no DST).
func brisbaneTime(y int, m time.Month, d, h, minute int) time.Time {
	return time.Date(y, m, d, h, minute, 0, 0, time.FixedZone("AEST", 10*3600)).UTC()
}

func TestPricingCost(t *testing.T) {
	tests := []struct {
		daysAhead int
		cap       int
		want      int
	}{
		{0, 5, 0},
		{1, 5, 0},
		{2, 5, 1},
		{4, 5, 3},
		{9, 5, 5},
		{9, 0, 8},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Pricing{Cap: tt.cap}.Cost(tt.daysAhead), "daysAhead=%d cap=%d", tt.daysAhead, tt.cap)
	}
}

func TestBuildCalendarStates(t *testing.T) {
	bne := region(t, "Brisbane")
	now := brisbaneTime(2024, 5, 1, 10, 30) // 10:30 local

	owner := &models.User{Model: gorm.Model{ID: 7}, FirstName: "Ada", LastName: "Lovelace"}
	ownerID := owner.ID
	booked := []models.Event{
		{ID: 1, UserID: &ownerID, User: owner, MajorCity: "Brisbane", Suburb: "Newstead", EventType: models.EventTypePublic, Date: "2024-05-02", StartHour: 6},
		{ID: 2, MajorCity: "Brisbane", Suburb: "Toowong", EventType: models.EventTypeCommunity, Date: "2024-05-01", StartHour: 3},
		{ID: 3, MajorCity: "Sydney", Suburb: "Manly", EventType: models.EventTypePublic, Date: "2024-05-01", StartHour: 12},
	}

	cal := Build(bne, now, 5, booked, Pricing{Cap: DefaultCostCap})
	require.Equal(t, "2024-05-01", cal.Today)
	require.Len(t, cal.Days, 5)
	require.Equal(t, "2024-05-05", cal.Days[4].Date)

	today := cal.Days[0].Slots
	require.Len(t, today, len(ValidHours))
	require.Equal(t, StatusUnavailable, today[0].Status) // 00-03 over
	require.Equal(t, StatusBooked, today[1].Status)      // booked beats elapsed
	require.Equal(t, "Community", today[1].Occupant.Name)
	require.Equal(t, 10, today[1].Multiplier)
	require.Equal(t, StatusUnavailable, today[2].Status) // 06-09 over
	require.Equal(t, StatusAvailable, today[3].Status)   // 09-12 still running
	require.Equal(t, StatusAvailable, today[4].Status)   // Sydney booking ignored
	require.Equal(t, 0, today[4].Cost)

	tomorrow := cal.Days[1].Slots
	require.Equal(t, StatusBooked, tomorrow[2].Status)
	require.Equal(t, "Ada Lovelace", tomorrow[2].Occupant.Name)
	require.Equal(t, "Newstead", tomorrow[2].Suburb)
	require.Equal(t, 0, tomorrow[0].Cost)

	require.Equal(t, 1, cal.Days[2].Slots[0].Cost)
	require.Equal(t, 3, cal.Days[4].Slots[0].Cost)
}

func TestFutureDatesNeverUnavailable(t *testing.T) {
	bne := region(t, "Brisbane")
	now := brisbaneTime(2024, 5, 1, 23, 59)

	cal := Build(bne, now, 3, nil, Pricing{})
	for _, day := range cal.Days[1:] {
		for _, slot := range day.Slots {
			require.Equal(t, StatusAvailable, slot.Status, "%s %d", day.Date, slot.Hour)
		}
	}
	// the 21:00 slot never elapses on its own day
	require.Equal(t, StatusAvailable, cal.Days[0].Slots[7].Status)
	require.Equal(t, StatusUnavailable, cal.Days[0].Slots[6].Status)
}

func TestTodayUsesRegionTimezone(t *testing.T) {
	bne := region(t, "Brisbane")
	// 14:30 UTC on 1 May is 00:30 on 2 May in Brisbane.
	now := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

	cal := Build(bne, now, 1, nil, Pricing{})
	require.Equal(t, "2024-05-02", cal.Today)
	require.Equal(t, StatusAvailable, cal.Days[0].Slots[0].Status)
}

func TestValidateBooking(t *testing.T) {
	bne := region(t, "Brisbane")
	now := brisbaneTime(2024, 5, 1, 10, 30)

	require.NoError(t, ValidateBooking(bne, "2024-05-01", 9, now))
	require.NoError(t, ValidateBooking(bne, "2024-05-03", 0, now))
	require.True(t, errors.Is(ValidateBooking(bne, "2024-05-01", 4, now), ErrInvalidHour))
	require.True(t, errors.Is(ValidateBooking(bne, "2024-05-01", 24, now), ErrInvalidHour))
	require.True(t, errors.Is(ValidateBooking(bne, "01/05/2024", 9, now), ErrInvalidDate))
	require.True(t, errors.Is(ValidateBooking(bne, "2024-05-01", 6, now), ErrElapsed))
	require.True(t, errors.Is(ValidateBooking(bne, "2024-04-30", 21, now), ErrElapsed))
}

func TestAvailableTimeslots(t *testing.T) {
	bne := region(t, "Brisbane")
	now := brisbaneTime(2024, 5, 1, 10, 30)
	booked := []models.Event{
		{MajorCity: "Brisbane", EventType: models.EventTypePublic, Date: "2024-05-01", StartHour: 12},
		{MajorCity: models.PrivateRegion, EventType: models.EventTypePrivate, Date: "2024-05-01", StartHour: 15},
	}

	slots, err := AvailableTimeslots(bne, "2024-05-01", now, booked)
	require.NoError(t, err)

	var hours []int
	for _, s := range slots {
		hours = append(hours, s.Hour)
	}
	require.Equal(t, []int{9, 15, 18, 21}, hours)
	require.Equal(t, "21:00", slots[3].StartTime)
	require.Equal(t, "00:00", slots[3].EndTime)

	_, err = AvailableTimeslots(bne, "tomorrow", now, nil)
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestValidDates(t *testing.T) {
	bne := region(t, "Brisbane")
	dates := ValidDates(bne, time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC))
	require.Equal(t, []DateOption{
		{Value: "2024-05-02", Label: "Thursday, 02 May 2024"},
		{Value: "2024-05-03", Label: "Friday, 03 May 2024"},
	}, dates)
}
