package handlers

import (
	"net/http"
	"strconv"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/ladder"
	"github.com/gin-gonic/gin"
)

// Account shows the wallet and cached totals of the current user.
func (h *Handler) Account(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.ladder.Account(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"account": view})
}

// BookSlot books a public slot for the current user.
func (h *Handler) BookSlot(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req ladder.SlotRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.ladder.BookSlot(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Slot booked successfully.", "event": event})
}

// CreateEvent creates a public or community event.
func (h *Handler) CreateEvent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req ladder.EventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.ladder.CreateEvent(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Event created successfully.", "event": event})
}

// ActivatePrivateEvent opens the current user's private bonus window.
func (h *Handler) ActivatePrivateEvent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	event, err := h.ladder.ActivatePrivateEvent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Private event activated.", "event": event})
}

// ResetPrivateEventCooldown clears the current user's cooldown.
func (h *Handler) ResetPrivateEventCooldown(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.ladder.ResetPrivateEventCooldown(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Cooldown reset."})
}

// RefreshData recomputes the current month's totals. With ?async=1 the
// refresh is queued for the worker and 202 is returned.
func (h *Handler) RefreshData(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.enqueue == nil {
			respondError(c, apperr.New(apperr.KindUpstreamUnavailable, "Background refresh is not available."))
			return
		}
		if err := h.enqueue(c.Request.Context(), userID); err != nil {
			respondError(c, apperr.Wrap(apperr.KindUpstreamUnavailable, "Failed to queue refresh.", err))
			return
		}
		respond(c, http.StatusAccepted, gin.H{"message": "Refresh queued."})
		return
	}

	totals, err := h.ladder.RefreshUserTotals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Data refreshed successfully.", "totals": totals})
}

// PastYear scores the last twelve months of the current user.
func (h *Handler) PastYear(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	months, err := h.ladder.PastYearTotals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"months": months})
}
