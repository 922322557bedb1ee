package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/activityladdr/laddr/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

// Session keys
const (
	SessionUserID   = "user_id"
	SessionUserName = "user_name"
	SessionRole     = "user_role"
)

// IdentityLinker finds or creates the user behind an external account and
// stores its latest tokens.
type IdentityLinker interface {
	LinkIdentity(ctx context.Context, template *models.User, identity *models.AuthIdentity, now time.Time) (*models.User, error)
}

// HandleLogin initiates the Strava OAuth flow
func HandleLogin(c *gin.Context) {
	// Gothic requires the "provider" query parameter
	q := c.Request.URL.Query()
	q.Add("provider", ProviderName)
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, links the Strava identity to a
// ladder user and stores the user in the session. Usernames listed in admins
// are granted the admin role for the session.
func HandleCallback(linker IdentityLinker, admins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gothic requires the "provider" query parameter
		q := c.Request.URL.Query()
		q.Add("provider", ProviderName)
		c.Request.URL.RawQuery = q.Encode()

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			log.Printf("Auth error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=auth_failed")
			return
		}

		template, identity := fromGothUser(gothUser)
		user, err := linker.LinkIdentity(c.Request.Context(), template, identity, time.Now())
		if err != nil {
			log.Printf("Link identity error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=link_failed")
			return
		}

		role := user.Role
		if slices.Contains(admins, user.Username) {
			role = models.RoleAdmin
		}

		session := sessions.Default(c)
		session.Set(SessionUserID, user.ID)
		session.Set(SessionUserName, user.DisplayName())
		session.Set(SessionRole, role)

		if err := session.Save(); err != nil {
			log.Printf("Session save error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=session_failed")
			return
		}

		log.Printf("User authenticated: %s (user %d, athlete %s)", user.DisplayName(), user.ID, gothUser.UserID)
		c.Redirect(http.StatusFound, "/account")
	}
}

// HandleLogout clears the session and redirects to login
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		log.Printf("Session clear error: %v", err)
	}

	c.Redirect(http.StatusFound, "/login")
}

// fromGothUser maps a completed Strava login onto a new-user template and
// the identity to store.
func fromGothUser(u goth.User) (*models.User, *models.AuthIdentity) {
	username := u.NickName
	if username == "" {
		username = fmt.Sprintf("strava_%s", u.UserID)
	}

	template := &models.User{
		Username:  username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		HomeCity:  cityOrDefault(u.Location),
		Role:      models.RoleUser,
		Bucks:     models.StartingBucks,
	}

	identity := &models.AuthIdentity{
		Provider:       models.ProviderStrava,
		ProviderUserID: u.UserID,
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
	}
	if !u.ExpiresAt.IsZero() {
		expiry := u.ExpiresAt.UTC()
		identity.TokenExpiry = &expiry
	}
	return template, identity
}

// cityOrDefault keeps the athlete's city only when it is a ladder region.
func cityOrDefault(location string) string {
	for _, city := range []string{"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide"} {
		if location == city {
			return city
		}
	}
	return "Brisbane"
}
