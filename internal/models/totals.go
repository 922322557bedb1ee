package models

// TotalsSchemaVersion is bumped whenever PeriodTotals changes shape.
const TotalsSchemaVersion = 2

// ActivityTypeTotals accumulates one activity type over a period.
type ActivityTypeTotals struct {
	DistanceKm        float64 `json:"distance"`
	MovingTimeSeconds int64   `json:"time"`
	Pace              float64 `json:"pace"` // km/h over the whole period
	Points            int     `json:"points"`
	MultiplierSum     int     `json:"multiplier_sum"`
	AvgMultiplier     float64 `json:"avg_multiplier"`
	Count             int     `json:"count"`
}

// PeriodTotals is the cached per-period summary stored on a user.
type PeriodTotals struct {
	Version       int                `json:"version"`
	Period        string             `json:"period"` // YYYY-MM
	Run           ActivityTypeTotals `json:"run"`
	Ride          ActivityTypeTotals `json:"ride"`
	TotalPoints   int                `json:"total_points"`
	AvgMultiplier float64            `json:"avg_multiplier"`
	// Interactions counts scored activities whose track came within the
	// buffered radius of a public or community event, at any time.
	Interactions int `json:"interactions"`
}

// EmptyPeriodTotals returns zeroed totals with the neutral multiplier.
func EmptyPeriodTotals(period string) PeriodTotals {
	return PeriodTotals{
		Version:       TotalsSchemaVersion,
		Period:        period,
		Run:           ActivityTypeTotals{AvgMultiplier: 1},
		Ride:          ActivityTypeTotals{AvgMultiplier: 1},
		AvgMultiplier: 1,
	}
}

// ForType returns the bucket for an activity type.
func (p *PeriodTotals) ForType(t ActivityType) *ActivityTypeTotals {
	if t == ActivityRide {
		return &p.Ride
	}
	return &p.Run
}
