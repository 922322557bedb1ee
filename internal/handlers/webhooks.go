package handlers

import (
	"log/slog"
	"net/http"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/streams"
	"github.com/gin-gonic/gin"
)

// VerifyWebhook answers Strava's subscription validation handshake.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.Status(http.StatusNotFound)
		return
	}
	if c.Query("hub.mode") != "subscribe" || h.verifyToken == "" || c.Query("hub.verify_token") != h.verifyToken {
		c.Status(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hub.challenge": c.Query("hub.challenge")})
}

// ReceiveWebhook queues a push event on the webhook stream and acknowledges
// immediately; the refresh runs in the consumer.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.Status(http.StatusNotFound)
		return
	}

	var event streams.WebhookEvent
	if !bindJSON(c, &event) {
		return
	}

	id, err := h.webhooks.PublishWebhook(c.Request.Context(), event)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindUpstreamUnavailable, "Failed to queue webhook event.", err))
		return
	}

	slog.Debug("Webhook queued", "stream_id", id, "object_type", event.ObjectType, "owner_id", event.OwnerID)
	c.Status(http.StatusOK)
}
