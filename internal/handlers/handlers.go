// Package handlers exposes the ladder over JSON HTTP endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/auth"
	"github.com/activityladdr/laddr/internal/ladder"
	"github.com/activityladdr/laddr/internal/streams"
	"github.com/gin-gonic/gin"
)

// WebhookSink queues Strava webhook events for asynchronous processing.
type WebhookSink interface {
	PublishWebhook(ctx context.Context, event streams.WebhookEvent) (string, error)
}

// Handler serves the ladder API.
type Handler struct {
	ladder      *ladder.Ladder
	enqueue     func(ctx context.Context, userID uint) error
	webhooks    WebhookSink
	verifyToken string
}

// Option configures a Handler.
type Option func(*Handler)

// WithRefreshQueue enables asynchronous refreshes via enqueue.
func WithRefreshQueue(enqueue func(ctx context.Context, userID uint) error) Option {
	return func(h *Handler) { h.enqueue = enqueue }
}

// WithWebhooks enables the Strava webhook endpoints.
func WithWebhooks(sink WebhookSink, verifyToken string) Option {
	return func(h *Handler) {
		h.webhooks = sink
		h.verifyToken = verifyToken
	}
}

// New creates a Handler.
func New(l *ladder.Ladder, opts ...Option) *Handler {
	h := &Handler{ladder: l}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes. requireAuth must set the user id the way
// auth.RequireAuth does; requireAdmin runs after it on admin routes.
func (h *Handler) Register(r gin.IRouter, requireAuth, requireAdmin gin.HandlerFunc) {
	r.GET("/calendar", h.Calendar)
	r.GET("/leaderboard", h.Leaderboard)
	r.GET("/available-timeslots", h.AvailableTimeslots)
	r.GET("/valid-dates", h.ValidDates)
	r.GET("/suburbs/:city", h.Suburbs)

	r.GET("/webhooks/strava", h.VerifyWebhook)
	r.POST("/webhooks/strava", h.ReceiveWebhook)

	user := r.Group("/", requireAuth)
	user.GET("/account", h.Account)
	user.POST("/book-slot", h.BookSlot)
	user.POST("/events", h.CreateEvent)
	user.POST("/activate-private-event", h.ActivatePrivateEvent)
	user.POST("/reset-private-event-cooldown", h.ResetPrivateEventCooldown)
	user.POST("/refresh-data", h.RefreshData)
	user.GET("/past-year", h.PastYear)

	admin := r.Group("/admin", requireAuth, requireAdmin)
	admin.GET("/users", h.ListUsers)
	admin.DELETE("/users/:id", h.DeleteUser)
	admin.GET("/events", h.ListEvents)
	admin.POST("/delete-all-events", h.DeleteAllEvents)
}

// respondError writes the failure envelope for err.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{
		"success": false,
		"kind":    kind,
		"message": apperr.MessageOf(err),
	})
}

// respond writes the success envelope merged with data.
func respond(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

func currentUser(c *gin.Context) (uint, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthenticated, "Authentication required."))
	}
	return id, ok
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, apperr.Wrap(apperr.KindInvalidInput, "Invalid request body.", err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// Calendar renders the slot grid of ?city=.
func (h *Handler) Calendar(c *gin.Context) {
	cal, err := h.ladder.BuildCalendar(c.Request.Context(), c.Query("city"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"calendar": cal})
}

// Leaderboard ranks users by overall points.
func (h *Handler) Leaderboard(c *gin.Context) {
	entries, err := h.ladder.LeaderboardSnapshot(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// AvailableTimeslots lists the free slots of ?city= on ?date=.
func (h *Handler) AvailableTimeslots(c *gin.Context) {
	slots, err := h.ladder.AvailableTimeslots(c.Request.Context(), c.Query("city"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"timeslots": slots})
}

// ValidDates lists today and tomorrow in ?city=.
func (h *Handler) ValidDates(c *gin.Context) {
	dates, err := h.ladder.ValidDates(c.Query("city"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"dates": dates})
}

// Suburbs lists the suburbs of a city.
func (h *Handler) Suburbs(c *gin.Context) {
	suburbs, err := h.ladder.Suburbs(c.Param("city"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"suburbs": suburbs})
}
