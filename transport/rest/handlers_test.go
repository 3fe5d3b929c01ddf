package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/registry"
)

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []entity.Snapshot
}

func (b *recordingBroadcaster) SessionUpdated(_ string, snapshot entity.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, snapshot)
}

type mockStatsReader struct {
	mock.Mock
}

func (m *mockStatsReader) GetByName(ctx context.Context, name string) (entity.PlayerStats, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(entity.PlayerStats), args.Error(1)
}

func (m *mockStatsReader) RecentResults(ctx context.Context, name string, limit int) ([]entity.MatchResult, error) {
	args := m.Called(ctx, name, limit)
	return args.Get(0).([]entity.MatchResult), args.Error(1)
}

type api struct {
	handler     http.Handler
	broadcaster *recordingBroadcaster
}

func newAPI(t *testing.T, stats statsReader) *api {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broadcaster := &recordingBroadcaster{}
	handlers := NewHandlers(logger, registry.New(logger), broadcaster, stats)

	return &api{
		handler:     Routes(handlers, []string{"http://localhost:5173"}),
		broadcaster: broadcaster,
	}
}

func (a *api) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	a.handler.ServeHTTP(rec, req)

	return rec
}

func (a *api) createSession(t *testing.T, hostName string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/sessions", `{"hostName":"`+hostName+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)

	return resp.SessionID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var body T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlers_Ping(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestHandlers_CreateSession(t *testing.T) {
	t.Run("Created session is listed as waiting", func(t *testing.T) {
		// Given: a fresh API
		a := newAPI(t, nil)

		// When: Alice creates a session
		id := a.createSession(t, "Alice")

		// Then: it shows up in the waiting list
		rec := a.do(t, http.MethodGet, "/api/sessions/waiting", "")
		require.Equal(t, http.StatusOK, rec.Code)
		waiting := decodeBody[[]entity.SessionSummary](t, rec)
		require.Len(t, waiting, 1)
		assert.Equal(t, id, waiting[0].ID)
		assert.Equal(t, "Alice", waiting[0].HostName)
	})

	t.Run("Missing host name is a bad request", func(t *testing.T) {
		a := newAPI(t, nil)

		rec := a.do(t, http.MethodPost, "/api/sessions", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Blank host name is a bad request", func(t *testing.T) {
		a := newAPI(t, nil)

		rec := a.do(t, http.MethodPost, "/api/sessions", `{"hostName":"   "}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid username", decodeBody[errorResponse](t, rec).Error)
	})

	t.Run("Malformed body is a bad request", func(t *testing.T) {
		a := newAPI(t, nil)

		rec := a.do(t, http.MethodPost, "/api/sessions", `{"hostName":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlers_Gameplay(t *testing.T) {
	// Given: Alice hosts a session
	a := newAPI(t, nil)
	id := a.createSession(t, "Alice")

	// When: Bob joins
	rec := a.do(t, http.MethodPost, "/api/sessions/"+id+"/join", `{"guestName":"Bob"}`)

	// Then: the session is playing and subscribers were notified
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.StatusPlaying, decodeBody[entity.Snapshot](t, rec).Status)
	require.Len(t, a.broadcaster.updates, 1)

	playing := decodeBody[[]entity.SessionSummary](t, a.do(t, http.MethodGet, "/api/sessions/playing", ""))
	require.Len(t, playing, 1)

	// When: Alice plays cell 0
	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/move", `{"playerName":"Alice","cellIndex":0}`)

	// Then: X is on cell 0
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeBody[entity.Snapshot](t, rec)
	assert.Equal(t, entity.SymbolX, snapshot.Cells[0])
	assert.Equal(t, entity.SymbolO, snapshot.CurrentTurn)

	// And: illegal moves are rejected
	for _, tc := range []struct {
		body   string
		status int
	}{
		{`{"playerName":"Bob","cellIndex":0}`, http.StatusConflict},
		{`{"playerName":"Alice","cellIndex":1}`, http.StatusConflict},
		{`{"playerName":"Bob","cellIndex":9}`, http.StatusBadRequest},
		{`{"playerName":"Mallory","cellIndex":1}`, http.StatusConflict},
		{`{"playerName":"Bob"}`, http.StatusBadRequest},
	} {
		rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/move", tc.body)
		assert.Equal(t, tc.status, rec.Code, tc.body)
	}

	// And: restarting an unfinished game conflicts
	rec = a.do(t, http.MethodPost, "/api/sessions/"+id+"/restart", `{"playerName":"Alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// And: the current state can be read back
	rec = a.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.SymbolX, decodeBody[entity.Snapshot](t, rec).Cells[0])
}

func TestHandlers_NotFound(t *testing.T) {
	a := newAPI(t, nil)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/sessions/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/api/sessions/missing/join", `{"guestName":"Bob"}`).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/api/sessions/missing/restart", `{"playerName":"Bob"}`).Code)
}

func TestHandlers_QuickMatch(t *testing.T) {
	// Given: nobody is waiting
	a := newAPI(t, nil)

	// When: P1 and then P2 ask for a quick match
	first := decodeBody[quickMatchResponse](t, a.do(t, http.MethodPost, "/api/sessions/quickmatch", `{"playerName":"P1"}`))
	second := decodeBody[quickMatchResponse](t, a.do(t, http.MethodPost, "/api/sessions/quickmatch", `{"playerName":"P2"}`))

	// Then: P1 hosts and P2 joins the same session
	assert.Equal(t, entity.RoleHost, first.Role)
	assert.Equal(t, entity.RoleGuest, second.Role)
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, a.broadcaster.updates, 2)
	assert.Equal(t, entity.StatusPlaying, a.broadcaster.updates[1].Status)
}

func TestHandlers_Stats(t *testing.T) {
	t.Run("Returns counters and recent games", func(t *testing.T) {
		// Given: a stats store with one win for Alice
		stats := &mockStatsReader{}
		stats.On("GetByName", mock.Anything, "Alice").
			Return(entity.PlayerStats{Name: "Alice", Wins: 1}, nil).Once()
		stats.On("RecentResults", mock.Anything, "Alice", recentResultsLimit).
			Return([]entity.MatchResult{{SessionID: "s1", HostName: "Alice", GuestName: "Bob", WinnerName: "Alice"}}, nil).Once()

		a := newAPI(t, stats)

		// When: her stats are requested
		rec := a.do(t, http.MethodGet, "/api/stats/Alice", "")

		// Then: both are returned
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[statsResponse](t, rec)
		assert.Equal(t, int64(1), body.Wins)
		require.Len(t, body.Recent, 1)
		assert.Equal(t, "Bob", body.Recent[0].LoserName())
		stats.AssertExpectations(t)
	})

	t.Run("Store failure is an internal error", func(t *testing.T) {
		stats := &mockStatsReader{}
		stats.On("GetByName", mock.Anything, "Alice").
			Return(entity.PlayerStats{}, errors.New("redis down")).Once()

		a := newAPI(t, stats)

		rec := a.do(t, http.MethodGet, "/api/stats/Alice", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Disabled statistics", func(t *testing.T) {
		a := newAPI(t, nil)

		rec := a.do(t, http.MethodGet, "/api/stats/Alice", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	a := newAPI(t, nil)

	t.Run("Allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()

		a.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Other origins get none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()

		a.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
