package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/activityladdr/laddr/internal/auth"
	"github.com/activityladdr/laddr/internal/geo"
	"github.com/activityladdr/laddr/internal/ladder"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/streams"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGeocoder struct{}

func (stubGeocoder) Lookup(context.Context, string, string) (geo.Point, error) {
	return geo.Point{Lat: -27.457, Lon: 153.034}, nil
}

type stubFitness struct {
	activities []models.Activity
}

func (f *stubFitness) Open(context.Context, uint) (ladder.FitnessSession, error) { return f, nil }

func (f *stubFitness) ListActivities(_ context.Context, after, before time.Time) ([]models.Activity, error) {
	var out []models.Activity
	for _, a := range f.activities {
		if !a.Start.Before(after) && a.Start.Before(before) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *stubFitness) Track(context.Context, int64) ([]geo.Point, error) { return nil, nil }
func (f *stubFitness) Close(context.Context) error                        { return nil }

type mockSink struct {
	PublishFunc func(ctx context.Context, event streams.WebhookEvent) (string, error)
}

func (m *mockSink) PublishWebhook(ctx context.Context, event streams.WebhookEvent) (string, error) {
	return m.PublishFunc(ctx, event)
}

// testAuth trusts the X-User and X-Role headers in place of a session.
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.GetHeader("X-User"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "kind": "unauthenticated"})
			return
		}
		c.Set(auth.SessionUserID, uint(id))
		c.Set(auth.SessionRole, c.GetHeader("X-Role"))
		c.Next()
	}
}

type env struct {
	router *gin.Engine
	store  *store.Store
	queued []uint
	sink   []streams.WebhookEvent
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	reg, err := regions.Default()
	require.NoError(t, err)

	aest := time.FixedZone("AEST", 10*3600)
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, aest)
	fitness := &stubFitness{activities: []models.Activity{
		{ID: 1, Type: models.ActivityRun, DistanceMeters: 10000, MovingTimeSeconds: 3600, Start: time.Date(2024, 5, 1, 7, 0, 0, 0, aest)},
	}}

	e := &env{store: store.New(db)}
	l := ladder.New(ladder.Deps{Store: e.store, Regions: reg, Geocoder: stubGeocoder{}, Fitness: fitness},
		ladder.Options{CostCap: 5, Now: func() time.Time { return now }})

	sink := &mockSink{PublishFunc: func(_ context.Context, ev streams.WebhookEvent) (string, error) {
		e.sink = append(e.sink, ev)
		return "1-0", nil
	}}
	h := New(l,
		WithRefreshQueue(func(_ context.Context, id uint) error {
			e.queued = append(e.queued, id)
			return nil
		}),
		WithWebhooks(sink, "verify-me"),
	)

	e.router = gin.New()
	h.Register(e.router, testAuth(), auth.RequireAdmin())
	return e
}

func (e *env) user(t *testing.T, name string, bucks int) uint {
	t.Helper()
	recent := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	u := &models.User{Username: name, FirstName: name, HomeCity: "Brisbane", LastBucksUpdate: &recent}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	require.NoError(t, e.store.DB().Model(u).Update("bucks", bucks).Error)
	return u.ID
}

func (e *env) do(method, path string, user uint, role, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("X-User", strconv.Itoa(int(user)))
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestBookSlotEndpoint(t *testing.T) {
	e := newEnv(t)
	ada := e.user(t, "ada", 5)
	bob := e.user(t, "bob", 0)
	body := `{"major_city":"Brisbane","suburb":"Fortitude Valley","date":"2024-05-04","hour":9}`

	w, out := e.do(http.MethodPost, "/book-slot", ada, models.RoleUser, body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, true, out["success"])
	event := out["event"].(map[string]interface{})
	require.Equal(t, "2024-05-04", event["date"])
	require.EqualValues(t, 9, event["start_hour"])

	w, out = e.do(http.MethodPost, "/book-slot", bob, models.RoleUser, body)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, false, out["success"])
	require.Equal(t, "conflict", out["kind"])
	require.Equal(t, "Slot already booked in this city.", out["message"])

	w, out = e.do(http.MethodPost, "/book-slot", bob, models.RoleUser, `{"major_city":"Brisbane","suburb":"Toowong","date":"2024-05-05","hour":9}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "insufficient_funds", out["kind"])

	w, out = e.do(http.MethodPost, "/book-slot", ada, models.RoleUser, `{"hour":"nine"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_input", out["kind"])

	w, _ = e.do(http.MethodPost, "/book-slot", 0, "", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookSlotWithoutHourIsRejected(t *testing.T) {
	e := newEnv(t)
	ada := e.user(t, "ada", 5)

	w, out := e.do(http.MethodPost, "/book-slot", ada, models.RoleUser, `{"major_city":"Brisbane","suburb":"Fortitude Valley","date":"2024-05-03"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_input", out["kind"])

	w, out = e.do(http.MethodPost, "/events", ada, models.RoleUser, `{"major_city":"Brisbane","suburb":"Fortitude Valley","date":"2024-05-03","event_type":"public"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_input", out["kind"])

	u, err := e.store.GetUser(context.Background(), ada)
	require.NoError(t, err)
	require.Equal(t, 5, u.Bucks)

	taken, err := e.store.SlotTaken(context.Background(), "Brisbane", "2024-05-03", 0)
	require.NoError(t, err)
	require.False(t, taken)
}

func TestEventJSONKeys(t *testing.T) {
	e := newEnv(t)
	ada := e.user(t, "ada", 5)

	w, out := e.do(http.MethodPost, "/book-slot", ada, models.RoleUser, `{"major_city":"Brisbane","suburb":"Fortitude Valley","date":"2024-05-03","hour":0}`)
	require.Equal(t, http.StatusCreated, w.Code)
	event := out["event"].(map[string]interface{})
	require.EqualValues(t, 0, event["start_hour"])
	require.EqualValues(t, 3, event["end_hour"])
	require.NotZero(t, event["id"])
	require.Contains(t, event, "created_at")
	for _, key := range []string{"ID", "CreatedAt", "UpdatedAt", "DeletedAt", "deleted_at"} {
		require.NotContains(t, event, key)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	e := newEnv(t)

	w, out := e.do(http.MethodGet, "/calendar?city=Brisbane", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	cal := out["calendar"].(map[string]interface{})
	require.Equal(t, "2024-05-01", cal["today"])
	require.Len(t, cal["days"], 5)

	w, out = e.do(http.MethodGet, "/calendar?city=Gotham", 0, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid or missing major city.", out["message"])
}

func TestLookupEndpoints(t *testing.T) {
	e := newEnv(t)

	w, out := e.do(http.MethodGet, "/available-timeslots?city=Brisbane&date=2024-05-01", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["timeslots"], 5) // 09:00 onwards

	w, out = e.do(http.MethodGet, "/valid-dates?city=Perth", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["dates"], 2)

	w, out = e.do(http.MethodGet, "/suburbs/Brisbane", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, out["suburbs"], "Fortitude Valley")

	w, out = e.do(http.MethodGet, "/suburbs/Gotham", 0, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "City not found.", out["message"])
}

func TestAccountAndPrivateEvent(t *testing.T) {
	e := newEnv(t)
	ada := e.user(t, "ada", 5)

	w, out := e.do(http.MethodPost, "/activate-private-event", ada, models.RoleUser, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, out = e.do(http.MethodPost, "/activate-private-event", ada, models.RoleUser, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, out["message"], "Time left")

	w, out = e.do(http.MethodGet, "/account", ada, models.RoleUser, "")
	require.Equal(t, http.StatusOK, w.Code)
	account := out["account"].(map[string]interface{})
	require.EqualValues(t, 0, account["bucks"])
	require.Equal(t, true, account["private_event_active"])

	w, _ = e.do(http.MethodPost, "/reset-private-event-cooldown", ada, models.RoleUser, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshEndpoints(t *testing.T) {
	e := newEnv(t)
	ada := e.user(t, "ada", 5)

	w, out := e.do(http.MethodPost, "/refresh-data", ada, models.RoleUser, "")
	require.Equal(t, http.StatusOK, w.Code)
	totals := out["totals"].(map[string]interface{})
	require.EqualValues(t, 100, totals["total_points"])

	w, _ = e.do(http.MethodPost, "/refresh-data?async=1", ada, models.RoleUser, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, []uint{ada}, e.queued)

	w, out = e.do(http.MethodGet, "/leaderboard", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	first := out["leaderboard"].([]interface{})[0].(map[string]interface{})
	require.EqualValues(t, 100, first["overall_points"])

	w, out = e.do(http.MethodGet, "/past-year", ada, models.RoleUser, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["months"], 12)
}

func TestAdminEndpoints(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "root", 5)
	ada := e.user(t, "ada", 5)

	w, _ := e.do(http.MethodGet, "/admin/users", ada, models.RoleUser, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w, out := e.do(http.MethodGet, "/admin/users", admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["users"], 2)

	w, _ = e.do(http.MethodDelete, fmt.Sprintf("/admin/users/%d", ada), admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, out = e.do(http.MethodDelete, fmt.Sprintf("/admin/users/%d", ada), admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", out["kind"])
	w, _ = e.do(http.MethodDelete, "/admin/users/abc", admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := `{"major_city":"Brisbane","suburb":"Fortitude Valley","date":"2024-05-02","hour":9}`
	w, _ = e.do(http.MethodPost, "/book-slot", admin, models.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code)

	w, out = e.do(http.MethodPost, "/admin/delete-all-events", admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, out["deleted"])

	w, out = e.do(http.MethodGet, "/admin/events", admin, models.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, out["events"])
}

func TestStravaWebhook(t *testing.T) {
	e := newEnv(t)

	w, out := e.do(http.MethodGet, "/webhooks/strava?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc", 0, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc", out["hub.challenge"])

	w, _ = e.do(http.MethodGet, "/webhooks/strava?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=abc", 0, "", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(http.MethodPost, "/webhooks/strava", 0, "", `{"object_type":"activity","object_id":99,"aspect_type":"create","owner_id":1234}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, e.sink, 1)
	require.EqualValues(t, 1234, e.sink[0].OwnerID)
}

func TestStravaWebhookSinkFailure(t *testing.T) {
	sink := &mockSink{PublishFunc: func(context.Context, streams.WebhookEvent) (string, error) {
		return "", errors.New("redis down")
	}}
	h := New(nil, WithWebhooks(sink, "t"))
	r := gin.New()
	r.POST("/webhooks/strava", h.ReceiveWebhook)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/strava", strings.NewReader(`{"object_type":"activity"}`)))
	require.Equal(t, http.StatusBadGateway, w.Code)
}
