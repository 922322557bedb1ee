// Package ladder is the application context of the activity ladder. It wires
// the slot calendar, event matcher, scoring engine and wallet ledger to the
// store and the external collaborators, and reports failures as apperr kinds.
package ladder

import (
	"context"
	"log/slog"
	"time"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/matching"
	"github.com/activityladdr/laddr/internal/metrics"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/activityladdr/laddr/internal/slots"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/streams"
)

// Geocoder resolves suburb coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, region, suburb string) (geo.Point, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event streams.DomainEvent) (string, error)
}

// Options tune the ladder. Zero values fall back to defaults.
type Options struct {
	HorizonDays   int
	CostCap       int
	BufferKm      float64
	DefaultRegion string
	Now           func() time.Time
}

// Deps are the collaborators of the ladder. Publisher and Metrics are optional.
type Deps struct {
	Store     *store.Store
	Regions   *regions.Registry
	Geocoder  Geocoder
	Fitness   FitnessSource
	Publisher Publisher
	Metrics   *metrics.LadderMetrics
}

// Ladder exposes the core operations to the request layer and the worker.
type Ladder struct {
	store         *store.Store
	regions       *regions.Registry
	matcher       *matching.Matcher
	geocoder      Geocoder
	fitness       FitnessSource
	publisher     Publisher
	metrics       *metrics.LadderMetrics
	pricing       slots.Pricing
	horizonDays   int
	defaultRegion string
	now           func() time.Time
}

// New builds a Ladder.
func New(deps Deps, opts Options) *Ladder {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 5
	}
	if opts.BufferKm <= 0 {
		opts.BufferKm = matching.DefaultInteractionBufferKm
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = "Brisbane"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Ladder{
		store:         deps.Store,
		regions:       deps.Regions,
		matcher:       matching.New(deps.Regions, opts.BufferKm),
		geocoder:      deps.Geocoder,
		fitness:       deps.Fitness,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		pricing:       slots.Pricing{Cap: opts.CostCap},
		horizonDays:   opts.HorizonDays,
		defaultRegion: opts.DefaultRegion,
		now:           opts.Now,
	}
}

// Regions returns the region catalogue.
func (l *Ladder) Regions() *regions.Registry {
	return l.regions
}

func (l *Ladder) region(name string) (*regions.Region, error) {
	if name == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "Invalid or missing major city.")
	}
	r, ok := l.regions.Get(name)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "Invalid or missing major city.")
	}
	return r, nil
}

// homeRegion resolves a user's home city, falling back to the default region.
func (l *Ladder) homeRegion(city string) *regions.Region {
	if r, ok := l.regions.Get(city); ok {
		return r
	}
	if r, ok := l.regions.Get(l.defaultRegion); ok {
		return r
	}
	return l.regions.List()[0]
}

func (l *Ladder) publish(ctx context.Context, kind string, userID uint, data map[string]interface{}) {
	if l.publisher == nil {
		return
	}
	event := streams.DomainEvent{Kind: kind, UserID: userID, OccurredAt: l.now().UTC(), Data: data}
	if _, err := l.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish domain event", "kind", kind, "user_id", userID, "error", err)
	}
}
