// Package strava is the fitness-activity collaborator: it lists a user's
// activities and their GPS tracks, refreshing OAuth credentials as needed.
package strava

import (
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
)

const (
	DefaultBaseURL  = "https://www.strava.com/api/v3"
	DefaultAuthURL  = "https://www.strava.com/oauth/authorize"
	DefaultTokenURL = "https://www.strava.com/oauth/token"

	// PerPage is the largest page Strava serves.
	PerPage = 200
)

var (
	// ErrUnauthorized means the credentials were rejected even after a refresh.
	ErrUnauthorized = errors.New("strava credentials rejected")
	// ErrUnavailable means Strava could not be reached or failed.
	ErrUnavailable = errors.New("strava unavailable")
)

// Credentials are the stored OAuth tokens of one athlete.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// summaryActivity is the subset of /athlete/activities the ladder reads.
type summaryActivity struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	SportType      string  `json:"sport_type"`
	Distance       float64 `json:"distance"`
	MovingTime     int64   `json:"moving_time"`
	StartDate      string  `json:"start_date"`
	StartDateLocal string  `json:"start_date_local"`
}

// streamSet is the key_by_type response of /activities/{id}/streams.
type streamSet struct {
	LatLng *struct {
		Data [][]float64 `json:"data"`
	} `json:"latlng"`
}

// toActivity converts a summary into a scoring activity. ok is false for
// sport types the ladder does not score.
func (s summaryActivity) toActivity() (models.Activity, bool, error) {
	sport := s.SportType
	if sport == "" {
		sport = s.Type
	}
	kind, ok := models.ActivityTypeFor(sport)
	if !ok {
		return models.Activity{}, false, nil
	}

	start, err := localStart(s.StartDate, s.StartDateLocal)
	if err != nil {
		return models.Activity{}, false, fmt.Errorf("activity %d: %w", s.ID, err)
	}

	return models.Activity{
		ID:                s.ID,
		Name:              s.Name,
		Type:              kind,
		DistanceMeters:    s.Distance,
		MovingTimeSeconds: s.MovingTime,
		Start:             start,
	}, true, nil
}

// localStart rebuilds the start instant in the activity's own offset.
// start_date_local carries the wall clock with a misleading Z suffix, so the
// offset is the difference between the two timestamps.
func localStart(startDate, startDateLocal string) (time.Time, error) {
	utc, err := time.Parse(time.RFC3339, startDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start_date: %w", err)
	}
	if startDateLocal == "" {
		return utc, nil
	}
	wall, err := time.Parse(time.RFC3339, startDateLocal)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start_date_local: %w", err)
	}
	offset := int(wall.Sub(utc).Round(time.Minute) / time.Second)
	return utc.In(time.FixedZone("", offset)), nil
}

func (s streamSet) track() []geo.Point {
	if s.LatLng == nil {
		return nil
	}
	track := make([]geo.Point, 0, len(s.LatLng.Data))
	for _, sample := range s.LatLng.Data {
		if len(sample) != 2 {
			continue
		}
		track = append(track, geo.Point{Lat: sample[0], Lon: sample[1]})
	}
	return track
}
