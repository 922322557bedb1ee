package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// errNoStreams marks a 404 from the streams endpoint: the activity has no GPS.
var errNoStreams = errors.New("no streams recorded")

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	StubMode     bool
	// RequestsPerSecond throttles outgoing calls; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
	// MaxElapsed bounds the retries of a single call.
	MaxElapsed time.Duration
}

// Client talks to the Strava v3 API on behalf of any number of athletes.
type Client struct {
	baseURL    string
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	stubMode   bool
	maxElapsed time.Duration
}

// NewClient creates a Strava client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   DefaultAuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		stubMode:   cfg.StubMode,
		maxElapsed: cfg.MaxElapsed,
	}
}

// Session holds one athlete's token source for the duration of a refresh.
type Session struct {
	client  *Client
	ctx     context.Context
	mu      sync.Mutex
	source  oauth2.TokenSource
	current *oauth2.Token
	initial string
}

// NewSession starts a session from stored credentials. Expired tokens are
// refreshed on first use.
func (c *Client) NewSession(ctx context.Context, creds Credentials) *Session {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}
	return &Session{
		client:  c,
		ctx:     ctx,
		source:  c.oauth.TokenSource(ctx, tok),
		current: tok,
		initial: creds.AccessToken,
	}
}

// Credentials returns the latest tokens and whether they changed since the
// session started, so the caller can persist refreshed tokens.
func (s *Session) Credentials() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := Credentials{
		AccessToken:  s.current.AccessToken,
		RefreshToken: s.current.RefreshToken,
		Expiry:       s.current.Expiry,
	}
	return creds, creds.AccessToken != s.initial
}

func (s *Session) token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	s.current = tok
	return tok, nil
}

// forceRefresh discards the access token after the API rejected it.
func (s *Session) forceRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = s.client.oauth.TokenSource(s.ctx, &oauth2.Token{RefreshToken: s.current.RefreshToken})
}

// ListActivities returns the scorable activities started in [after, before).
// A zero before means no upper bound.
func (c *Client) ListActivities(ctx context.Context, sess *Session, after, before time.Time) ([]models.Activity, error) {
	if c.stubMode {
		return stubActivities(after), nil
	}

	var out []models.Activity
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
		if !before.IsZero() {
			params.Set("before", strconv.FormatInt(before.Unix(), 10))
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(PerPage))

		var batch []summaryActivity
		if err := c.get(ctx, sess, "/athlete/activities", params, &batch); err != nil {
			return nil, err
		}

		for _, s := range batch {
			activity, ok, err := s.toActivity()
			if err != nil {
				slog.Warn("Skipping unparseable activity", "activity_id", s.ID, "error", err)
				continue
			}
			if ok {
				out = append(out, activity)
			}
		}

		if len(batch) < PerPage {
			break
		}
	}
	return out, nil
}

// Track returns the GPS samples of an activity. Activities recorded without
// GPS yield an empty track.
func (c *Client) Track(ctx context.Context, sess *Session, activityID int64) ([]geo.Point, error) {
	if c.stubMode {
		return nil, nil
	}

	params := url.Values{}
	params.Set("keys", "latlng")
	params.Set("key_by_type", "true")

	var streams streamSet
	err := c.get(ctx, sess, fmt.Sprintf("/activities/%d/streams", activityID), params, &streams)
	if errors.Is(err, errNoStreams) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return streams.track(), nil
}

// get performs an authenticated GET with throttling, one forced token
// refresh on 401 and exponential backoff on transient failures.
func (c *Client) get(ctx context.Context, sess *Session, path string, params url.Values, out interface{}) error {
	refreshed := false
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		tok, err := sess.token()
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			slog.Info("Strava access token rejected, refreshing", "path", path)
			refreshed = true
			sess.forceRefresh()
			return errors.New("access token rejected")
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(ErrUnauthorized)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(errNoStreams)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("strava returned status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("strava returned status %d: %s", resp.StatusCode, string(body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	notify := func(err error, wait time.Duration) {
		slog.Warn("Strava request failed, retrying", "path", path, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthorized), errors.Is(err, errNoStreams):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// stubActivities is a fixed week of training starting the day after since.
func stubActivities(since time.Time) []models.Activity {
	aest := time.FixedZone("", 10*3600)
	day := since.In(aest).AddDate(0, 0, 1)
	morning := time.Date(day.Year(), day.Month(), day.Day(), 6, 30, 0, 0, aest)

	return []models.Activity{
		{ID: 1, Name: "Morning Run", Type: models.ActivityRun, DistanceMeters: 8000, MovingTimeSeconds: 2700, Start: morning},
		{ID: 2, Name: "Lunch Ride", Type: models.ActivityRide, DistanceMeters: 32000, MovingTimeSeconds: 4000, Start: morning.Add(6 * time.Hour)},
		{ID: 3, Name: "Long Run", Type: models.ActivityRun, DistanceMeters: 18000, MovingTimeSeconds: 6300, Start: morning.AddDate(0, 0, 2)},
	}
}
