package streams

import "time"

// Stream names
const (
	StreamLadderEvents   = "laddr:events"
	StreamStravaWebhooks = "strava:webhooks"
)

// Consumer group constants
const (
	GroupRefreshers = "laddr-refreshers"
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// Domain event kinds published on StreamLadderEvents.
const (
	KindSlotBooked       = "slot_booked"
	KindEventCreated     = "event_created"
	KindPrivateActivated = "private_activated"
	KindTotalsRefreshed  = "totals_refreshed"
)

// DomainEvent is a fact about the ladder that downstream consumers may react to.
type DomainEvent struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	UserID     uint                   `json:"user_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// WebhookEvent is a Strava push subscription event.
type WebhookEvent struct {
	ObjectType     string            `json:"object_type"` // activity/athlete
	ObjectID       int64             `json:"object_id"`
	AspectType     string            `json:"aspect_type"` // create/update/delete
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	EventTime      int64             `json:"event_time"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Deauthorized reports whether the athlete revoked access.
func (e WebhookEvent) Deauthorized() bool {
	return e.ObjectType == "athlete" && e.Updates["authorized"] == "false"
}
