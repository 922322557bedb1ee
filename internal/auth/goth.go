package auth

import (
	"log/slog"
	"net/http"

	"github.com/activityladdr/laddr/internal/config"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	gothstrava "github.com/markbates/goth/providers/strava"
)

// ProviderName is the goth provider used for login.
const ProviderName = "strava"

// Scopes requested at login. activity:read_all is needed to read private
// activities and their streams.
var Scopes = []string{"read", "activity:read_all"}

// oauthStateMaxAge bounds how long the gothic state cookie lives; it only
// has to survive the round trip to Strava.
const oauthStateMaxAge = 15 * 60

// InitProviders registers the Strava provider and points gothic at a cookie
// store of its own. Without a client id login stays disabled.
func InitProviders(cfg *config.Config) {
	gothic.Store = newStateStore(cfg.SessionSecret, cfg.IsProduction())

	if cfg.StravaClientID == "" {
		slog.Warn("STRAVA_CLIENT_ID not set, Strava login disabled")
		return
	}

	goth.UseProviders(gothstrava.New(
		cfg.StravaClientID,
		cfg.StravaClientSecret,
		cfg.StravaCallbackURL,
		Scopes...,
	))
	slog.Info("OAuth provider registered", "provider", ProviderName, "callback", cfg.StravaCallbackURL)
}

// newStateStore builds the gorilla store gothic keeps OAuth state in. The
// library default is Secure, which breaks plain-HTTP local development.
func newStateStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
