package handlers

import (
	"net/http"
	"strconv"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/gin-gonic/gin"
)

type userSummary struct {
	ID            uint   `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	HomeCity      string `json:"home_city"`
	Role          string `json:"role"`
	Bucks         int    `json:"bucks"`
	OverallPoints int    `json:"overall_points"`
}

// ListUsers lists every account.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.ladder.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{
			ID:            u.ID,
			Username:      u.Username,
			Name:          u.DisplayName(),
			HomeCity:      u.HomeCity,
			Role:          u.Role,
			Bucks:         u.Bucks,
			OverallPoints: u.OverallPoints,
		})
	}
	respond(c, http.StatusOK, gin.H{"users": out})
}

// DeleteUser removes the account in :id.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperr.New(apperr.KindInvalidInput, "Invalid user id."))
		return
	}
	if err := h.ladder.DeleteUser(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "User deleted successfully."})
}

// ListEvents lists every live event.
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.ladder.ListEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"events": events})
}

// DeleteAllEvents removes every event owned by the current admin.
func (h *Handler) DeleteAllEvents(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.ladder.DeleteAllEvents(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "All your events have been deleted.", "deleted": n})
}
