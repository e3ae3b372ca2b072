package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shafin96/pulsegram/backend/internal/models"
	"github.com/shafin96/pulsegram/backend/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memEventRepo is an in-memory event store for handler tests.
type memEventRepo struct {
	mu     sync.Mutex
	events []models.Notification
}

func (m *memEventRepo) Create(n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *n)
	return nil
}

func (m *memEventRepo) RecentByRecipient(recipientID uint, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, e := range m.events {
		if e.RecipientID == recipientID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEventRepo) UnreadCount(recipientID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, e := range m.events {
		if e.RecipientID == recipientID && e.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memEventRepo) MarkRead(recipientID uint, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i := range m.events {
		e := &m.events[i]
		if _, ok := wanted[e.ID]; ok && e.RecipientID == recipientID && e.ReadAt == nil {
			t := at
			e.ReadAt = &t
		}
	}
	return nil
}

func (m *memEventRepo) MarkAllRead(recipientID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		e := &m.events[i]
		if e.RecipientID == recipientID && e.ReadAt == nil {
			t := at
			e.ReadAt = &t
		}
	}
	return nil
}

// memUserRepo resolves identities from a fixed map.
type memUserRepo struct {
	users map[uint]models.User
}

func (m *memUserRepo) CreateUser(user *models.User) error { return nil }

func (m *memUserRepo) GetUserByID(id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (m *memUserRepo) GetUserByUsername(username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (m *memUserRepo) GetUsersByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUserRepo) UpdateUser(user *models.User) error { return nil }

// memSubsRepo is an in-memory subscription store with endpoint upsert.
type memSubsRepo struct {
	mu   sync.Mutex
	subs []models.PushSubscription
}

func (m *memSubsRepo) Upsert(sub *models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].Endpoint == sub.Endpoint {
			m.subs[i] = *sub
			return nil
		}
	}
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *memSubsRepo) ByRecipient(recipientID uint) ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.RecipientID == recipientID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubsRepo) DeleteByEndpoint(recipientID uint, endpoint string) error { return nil }

// setupNotificationServer wires the notification routes against in-memory
// stores, with a header-injected identity in place of the JWT middleware.
func setupNotificationServer(t *testing.T, events *memEventRepo, users *memUserRepo, subs *memSubsRepo) *echo.Echo {
	t.Helper()

	service := notifications.NewService(events, users, zap.NewNop())
	h := NewNotificationHandler(service, subs)

	e := echo.New()
	api := e.Group("/api/v1")
	api.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := c.Request().Header.Get("X-User-ID"); raw != "" {
				id, _ := strconv.ParseUint(raw, 10, 32)
				c.Set("user", &models.JwtCustomClaims{UserID: uint(id)})
			}
			return next(c)
		}
	})
	h.RegisterNotificationRoutes(api)
	return e
}

func seedEvent(id string, recipientID, actorID uint, eventType, postID string, t int) models.Notification {
	return models.Notification{
		ID:           id,
		RecipientID:  recipientID,
		ActorID:      actorID,
		Type:         eventType,
		TargetPostID: postID,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(t) * time.Second),
	}
}

func TestGetFeedRequiresAuthentication(t *testing.T) {
	e := setupNotificationServer(t, &memEventRepo{}, &memUserRepo{}, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetFeedReturnsAggregatedGroups(t *testing.T) {
	events := &memEventRepo{events: []models.Notification{
		seedEvent("e1", 1, 2, models.NotificationTypeLike, "p1", 10),
		seedEvent("e2", 1, 3, models.NotificationTypeComment, "p1", 9),
		seedEvent("e3", 1, 2, models.NotificationTypeLike, "p1", 8),
	}}
	users := &memUserRepo{users: map[uint]models.User{
		2: {ID: 2, Username: "alice"},
		3: {ID: 3, Username: "bob"},
	}}
	e := setupNotificationServer(t, events, users, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10&offset=0", nil)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                    `json:"success"`
		Data    models.NotificationFeed `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Items, 2)
	assert.Equal(t, models.NotificationTypeLike, body.Data.Items[0].Type)
	assert.Equal(t, models.NotificationTypeComment, body.Data.Items[1].Type)
	assert.False(t, body.Data.HasMore)
}

func TestGetFeedTreatsGarbageParamsAsDefaults(t *testing.T) {
	events := &memEventRepo{events: []models.Notification{
		seedEvent("e1", 1, 2, models.NotificationTypeFollow, "", 1),
	}}
	users := &memUserRepo{users: map[uint]models.User{2: {ID: 2, Username: "alice"}}}
	e := setupNotificationServer(t, events, users, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=banana&offset=-5", nil)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data models.NotificationFeed `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Items, 1)
}

func TestUnreadCountEndpoint(t *testing.T) {
	events := &memEventRepo{events: []models.Notification{
		seedEvent("e1", 1, 2, models.NotificationTypeLike, "p1", 1),
		seedEvent("e2", 1, 3, models.NotificationTypeFollow, "", 2),
		seedEvent("e3", 7, 2, models.NotificationTypeLike, "p9", 3),
	}}
	e := setupNotificationServer(t, events, &memUserRepo{}, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Count int64 `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Data.Count)
}

func TestMarkReadWithEmptyBodyMarksAll(t *testing.T) {
	events := &memEventRepo{events: []models.Notification{
		seedEvent("e1", 1, 2, models.NotificationTypeLike, "p1", 1),
		seedEvent("e2", 1, 3, models.NotificationTypeFollow, "", 2),
	}}
	e := setupNotificationServer(t, events, &memUserRepo{}, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read", nil)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := events.UnreadCount(1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadWithIDs(t *testing.T) {
	events := &memEventRepo{events: []models.Notification{
		seedEvent("e1", 1, 2, models.NotificationTypeLike, "p1", 1),
		seedEvent("e2", 1, 3, models.NotificationTypeFollow, "", 2),
	}}
	e := setupNotificationServer(t, events, &memUserRepo{}, &memSubsRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read",
		strings.NewReader(`{"ids":["e1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := events.UnreadCount(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegisterPushSubscriptionUpserts(t *testing.T) {
	subs := &memSubsRepo{}
	e := setupNotificationServer(t, &memEventRepo{}, &memUserRepo{}, subs)

	payload := `{"endpoint":"https://push.example.com/ep1","keys":{"p256dh":"key1","auth":"auth1"}}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/subscriptions",
			strings.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	got, err := subs.ByRecipient(1)
	require.NoError(t, err)
	assert.Len(t, got, 1, "registering the same endpoint twice updates, never duplicates")
}

func TestRegisterPushSubscriptionAcceptsDeviceToken(t *testing.T) {
	subs := &memSubsRepo{}
	e := setupNotificationServer(t, &memEventRepo{}, &memUserRepo{}, subs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/subscriptions",
		strings.NewReader(`{"token":"device-token-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := subs.ByRecipient(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.FCMTokenScheme+"device-token-1", got[0].Endpoint)
}

func TestRegisterPushSubscriptionRejectsMalformedDescriptor(t *testing.T) {
	e := setupNotificationServer(t, &memEventRepo{}, &memUserRepo{}, &memSubsRepo{})

	for _, payload := range []string{
		`{}`,
		`{"endpoint":"https://push.example.com/ep1"}`,
		`{"endpoint":"not a url","keys":{"p256dh":"k","auth":"a"}}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/subscriptions",
			strings.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload: %s", payload)
	}
}
