package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nclime/roomcast/internal/auth"
	"github.com/nclime/roomcast/internal/bus"
	"github.com/nclime/roomcast/internal/config"
	"github.com/nclime/roomcast/internal/domain"
	"github.com/nclime/roomcast/internal/store"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	mem.AddUser(domain.Author{ID: 7, Email: "a@b.com", Name: "A"})
	mem.AddRoom(domain.RoomRef{ID: 3, IsActive: true})
	mem.AddRoom(domain.RoomRef{ID: 4, IsActive: false})

	cfg := &config.Config{
		Mode:         "release",
		ReadLimit:    32768,
		PingPeriod:   50 * time.Second,
		WriteTimeout: 2 * time.Second,
		SendBuffer:   32,
		JWTSecret:    testSecret,
		ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.example.org:3478"}},
		},
	}
	localBus := bus.NewLocal()
	deps := Deps{
		Auth:        auth.New(testSecret, "", mem),
		Rooms:       mem,
		Store:       mem,
		Bus:         localBus,
		StoreHealth: mem,
		BusHealth:   localBus,
	}

	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, deps))
	t.Cleanup(srv.Close)
	return srv, mem
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	claims := jwt.MapClaims{"user_id": userID, "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func get(t *testing.T, srv *httptest.Server, path, authorization string) (int, map[string]any) {
	t.Helper()
	req, err := nethttp.NewRequest("GET", srv.URL+path, nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func seedMessages(t *testing.T, mem *store.Memory, contents ...string) {
	t.Helper()
	for _, c := range contents {
		_, err := mem.Append(context.Background(), 3, 7, c)
		require.NoError(t, err)
	}
}

func TestHistoryRequiresToken(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, _ := get(t, srv, "/api/rooms/3/messages", "")
	assert.Equal(t, 401, status)
}

func TestHistoryRoomNotFound(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, _ := get(t, srv, "/api/rooms/99999/messages", bearer(t, 7))
	assert.Equal(t, 404, status)
}

func TestHistoryRoomInactive(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, _ := get(t, srv, "/api/rooms/4/messages", bearer(t, 7))
	assert.Equal(t, 404, status)
}

func TestHistoryAscendingPage(t *testing.T) {
	srv, mem := newTestRouter(t)
	seedMessages(t, mem, "one", "two", "three")

	status, body := get(t, srv, "/api/rooms/3/messages", bearer(t, 7))
	require.Equal(t, 200, status)

	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)

	first := results[0].(map[string]any)
	last := results[2].(map[string]any)
	assert.Equal(t, "one", first["content"])
	assert.Equal(t, "three", last["content"])

	user := first["user"].(map[string]any)
	assert.EqualValues(t, 7, user["id"])
	assert.Equal(t, "a@b.com", user["email"])
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	srv, mem := newTestRouter(t)
	seedMessages(t, mem, "one", "two", "three")

	status, body := get(t, srv, "/api/rooms/3/messages?limit=2", bearer(t, 7))
	require.Equal(t, 200, status)

	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "two", results[0].(map[string]any)["content"])
	assert.Equal(t, "three", results[1].(map[string]any)["content"])
}

func TestHistoryInvalidBefore(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, _ := get(t, srv, "/api/rooms/3/messages?before=yesterday", bearer(t, 7))
	assert.Equal(t, 400, status)
}

func TestHistoryBeforeCursorExcludes(t *testing.T) {
	srv, mem := newTestRouter(t)
	seedMessages(t, mem, "old")
	cutoff := time.Now().UTC().Add(time.Minute).Format(time.RFC3339)

	status, body := get(t, srv, "/api/rooms/3/messages?before="+cutoff, bearer(t, 7))
	require.Equal(t, 200, status)
	assert.Len(t, body["results"].([]any), 1)

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	status, body = get(t, srv, "/api/rooms/3/messages?before="+past, bearer(t, 7))
	require.Equal(t, 200, status)
	assert.Empty(t, body["results"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, body := get(t, srv, "/healthz", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["status"])
}

func TestWebRTCConfig(t *testing.T) {
	srv, _ := newTestRouter(t)
	status, body := get(t, srv, "/api/webrtc/config", "")
	require.Equal(t, 200, status)

	servers, ok := body["iceServers"].([]any)
	require.True(t, ok)
	require.Len(t, servers, 1)
	urls := servers[0].(map[string]any)["urls"].([]any)
	assert.Equal(t, "stun:stun.example.org:3478", urls[0])
}
