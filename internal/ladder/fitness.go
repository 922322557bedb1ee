package ladder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/strava"
)

// ErrNotLinked means the user has no fitness account connected.
var ErrNotLinked = errors.New("no fitness account linked")

// FitnessSource opens per-user sessions against the fitness provider.
type FitnessSource interface {
	Open(ctx context.Context, userID uint) (FitnessSession, error)
}

// FitnessSession lists one user's activities and tracks. Close persists any
// credentials refreshed during the session.
type FitnessSession interface {
	ListActivities(ctx context.Context, after, before time.Time) ([]models.Activity, error)
	Track(ctx context.Context, activityID int64) ([]geo.Point, error)
	Close(ctx context.Context) error
}

// StravaSource adapts the Strava client to FitnessSource using tokens kept
// on the user's AuthIdentity.
type StravaSource struct {
	client *strava.Client
	store  *store.Store
	stub   bool
}

// NewStravaSource creates a FitnessSource. In stub mode users need no linked identity.
func NewStravaSource(client *strava.Client, st *store.Store, stub bool) *StravaSource {
	return &StravaSource{client: client, store: st, stub: stub}
}

// Open loads the user's Strava credentials and starts a session.
func (s *StravaSource) Open(ctx context.Context, userID uint) (FitnessSession, error) {
	identity, err := s.store.Identity(ctx, userID, models.ProviderStrava)
	switch {
	case errors.Is(err, store.ErrNotFound) && s.stub:
		return &stravaSession{client: s.client, session: s.client.NewSession(ctx, strava.Credentials{})}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotLinked
	case err != nil:
		return nil, fmt.Errorf("load strava identity: %w", err)
	}

	creds := strava.Credentials{AccessToken: identity.AccessToken, RefreshToken: identity.RefreshToken}
	if identity.TokenExpiry != nil {
		creds.Expiry = *identity.TokenExpiry
	}
	return &stravaSession{
		client:   s.client,
		store:    s.store,
		identity: identity,
		session:  s.client.NewSession(ctx, creds),
	}, nil
}

type stravaSession struct {
	client   *strava.Client
	store    *store.Store
	identity *models.AuthIdentity
	session  *strava.Session
}

func (s *stravaSession) ListActivities(ctx context.Context, after, before time.Time) ([]models.Activity, error) {
	return s.client.ListActivities(ctx, s.session, after, before)
}

func (s *stravaSession) Track(ctx context.Context, activityID int64) ([]geo.Point, error) {
	return s.client.Track(ctx, s.session, activityID)
}

func (s *stravaSession) Close(ctx context.Context) error {
	if s.identity == nil {
		return nil
	}
	creds, changed := s.session.Credentials()
	if !changed {
		return nil
	}
	s.identity.AccessToken = creds.AccessToken
	s.identity.RefreshToken = creds.RefreshToken
	expiry := creds.Expiry
	s.identity.TokenExpiry = &expiry
	return s.store.SaveTokens(ctx, s.identity)
}
