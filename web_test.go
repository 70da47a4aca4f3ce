/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/analogy/games/analogy"
	"github.com/Seednode/analogy/store"
)

type testServer struct {
	cfg     *Config
	backend store.Store
	rm      *RoomManager
	clock   *clockwork.FakeClock
	handler http.Handler
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	cfg := validConfig()
	cfg.logger = zerolog.Nop()
	for _, m := range mutate {
		m(&cfg)
	}

	catalog, err := analogy.DefaultCatalog()
	require.NoError(t, err)

	backend := store.NewMemory()
	fc := clockwork.NewFakeClock()
	rm := newRoomManagerWithClock(&cfg, backend, catalog, fc)
	t.Cleanup(rm.Close)

	errs := make(chan error, 64)

	return &testServer{
		cfg:     &cfg,
		backend: backend,
		rm:      rm,
		clock:   fc,
		handler: newRouter(&cfg, rm, errs),
	}
}

func (ts *testServer) get(path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	return rec
}

func TestServeVersionAndHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analogy v"+releaseVersion+"\n", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ts.get("/healthz")
	assert.Equal(t, "Ok\n", rec.Body.String())

	rec = ts.get("/robots.txt")
	assert.Contains(t, rec.Body.String(), "User-agent")
}

func TestHomeRedirectsToNewRoom(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/analogy", rec.Header().Get("Location"))

	rec = ts.get("/analogy")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Regexp(t, `^/analogy/[A-Za-z0-9]{8}$`, rec.Header().Get("Location"))
}

func TestPrefixedRoutes(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.prefix = "/workshop" })

	rec := ts.get("/workshop/analogy")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/workshop/analogy/"))

	assert.Equal(t, http.StatusOK, ts.get("/workshop/healthz").Code)
}

func TestRoomPageAndAssets(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/analogy/room1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Analogy Game")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == clientCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, 36)

	rec = ts.get("/assets/analogy/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, ts.get("/assets/analogy/missing.js").Code)

	rec = ts.get("/favicon.svg")
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/analogy/room1/qr")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestExports(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/analogy/room1/export.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	id, _ := doc["id"].(string)
	assert.True(t, strings.HasPrefix(id, "session_"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), id+".json")

	pairs := doc["phase1"].(map[string]any)["pairs"].([]any)
	assert.Len(t, pairs, ts.cfg.pairCount)

	rec = ts.get("/analogy/room1/export.md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Analogy Game Session Report")
	assert.Contains(t, rec.Body.String(), id)
}

func TestRoomsAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	a := ts.rm.getHub(ctx, "a")
	b := ts.rm.getHub(ctx, "b")
	require.NotSame(t, a, b)
	assert.Same(t, a, ts.rm.getHub(ctx, "a"))

	a.ctrl.Vote(analogy.SideA)
	require.NoError(t, a.ctrl.Save(ctx))

	assert.Empty(t, b.ctrl.Winners())
	assert.NotEqual(t, a.ctrl.Document().ID, b.ctrl.Document().ID)

	_, err := ts.backend.Get(ctx, roomPrefix("a")+analogy.CurrentSessionKey)
	assert.NoError(t, err)
}

func TestRoomIDsAreValidated(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/analogy/a:b",
		"/analogy/a:b/ws",
		"/analogy/*/qr",
		"/analogy/a%3Ab/export.json",
		"/analogy/" + strings.Repeat("x", maxRoomIDLength+1),
	} {
		assert.Equal(t, http.StatusNotFound, ts.get(path).Code, path)
	}

	assert.Equal(t, http.StatusOK, ts.get("/analogy/Ab9").Code)

	assert.True(t, validRoomID(ts.rm.newRoomID()))
}

func TestClearStorageStaysInRoom(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	a := ts.rm.getHub(ctx, "a")
	ab := ts.rm.getHub(ctx, "ab")

	ab.ctrl.Vote(analogy.SideA)
	require.NoError(t, ab.ctrl.Save(ctx))
	saved := ab.ctrl.Document().ID

	require.NoError(t, a.ctrl.ClearStorage(ctx))

	raw, err := ts.backend.Get(ctx, roomPrefix("ab")+analogy.CurrentSessionKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), saved)
}

func TestReaperUnloadsIdleRooms(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	hub := ts.rm.getHub(ctx, "idle")
	hub.ctrl.Vote(analogy.SideB)
	require.True(t, hub.ctrl.Dirty())

	assert.Zero(t, ts.rm.reap())

	ts.clock.Advance(2 * ts.cfg.sessionTimeout)
	assert.Equal(t, 1, ts.rm.reap())

	raw, err := ts.backend.Get(ctx, roomPrefix("idle")+analogy.CurrentSessionKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"companyB":1`)

	reloaded := ts.rm.getHub(ctx, "idle")
	assert.NotSame(t, hub, reloaded)
	assert.Len(t, reloaded.ctrl.Winners(), 1)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.corsOrigin = "https://example.com" })

	rec := ts.get("/version", "Origin", "https://example.com")
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.get("/version", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type wsEnvelope struct {
	Type    string       `json:"type"`
	State   analogy.View `json:"state"`
	Message string       `json:"message"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(wsEnvelope) bool) wsEnvelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var msg wsEnvelope
		require.NoError(t, conn.ReadJSON(&msg))

		if match(msg) {
			return msg
		}
	}
}

func TestWebSocketCommands(t *testing.T) {
	ts := newTestServer(t)

	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/analogy/live/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	first := readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == "state" })
	assert.Equal(t, "1 / 5", first.State.Counter)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "vote", Side: "A"}))
	voted := readUntil(t, conn, func(m wsEnvelope) bool {
		return m.Type == "state" && m.State.Votes.CompanyA == 1
	})
	assert.Equal(t, analogy.StatusPending, voted.State.SaveStatus)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "next_pair"}))
	readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == "state" && m.State.Counter == "2 / 5" })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "update", Field: "teamName", Value: "Ops"}))
	readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == "state" && m.State.Session.TeamName == "Ops" })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "save"}))
	readUntil(t, conn, func(m wsEnvelope) bool {
		return m.Type == "state" && m.State.SaveStatus == analogy.StatusSaved
	})

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "bogus"}))
	failed := readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == "error" })
	assert.Contains(t, failed.Message, "unknown command")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "vote", Side: "C"}))
	readUntil(t, conn, func(m wsEnvelope) bool { return m.Type == "error" })
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}
