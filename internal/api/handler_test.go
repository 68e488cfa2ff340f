package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HoldemTable/internal/auth"
	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/game/manager"
	"HoldemTable/internal/game/table"
	"HoldemTable/internal/middleware"
	"HoldemTable/internal/storage"
	"HoldemTable/internal/websocket"
)

type nopHub struct{}

func (nopHub) BroadcastToPlayers([]string, websocket.OutgoingMessage) {}
func (nopHub) SendToPlayer(string, websocket.OutgoingMessage)         {}
func (nopHub) Connected(string) bool                                  { return false }

type fixture struct {
	router *gin.Engine
	jwt    *auth.JWTProvider
	mgr    *manager.GameManager
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard)
	clock := quartz.NewMock(t)
	store := storage.NewMemoryStore(logger)
	opts := engine.DefaultOptions()
	opts.NextHandDelay = 0
	opts.Seed = 11
	eng := engine.New(store, storage.NewMemoryCardStore(), clock, logger, opts)
	mgr := manager.NewGameManager(eng, store, nopHub{}, clock, logger)
	t.Cleanup(mgr.Close)
	t.Cleanup(eng.Close)

	jwt, err := auth.NewJWTProvider("test-secret", time.Hour, clock)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(eng, mgr, logger).Register(r.Group("/", middleware.JwtAuthMiddleware(jwt)))
	return &fixture{router: r, jwt: jwt, mgr: mgr}
}

func (f *fixture) do(t *testing.T, as, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		token, err := f.jwt.Issue(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) createAndSeat(t *testing.T, players ...string) string {
	t.Helper()
	w := f.do(t, players[0], http.MethodPost, "/tables", CreateTableRequest{Name: "friday"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tbl := decode[table.Table](t, w)
	for _, p := range players {
		w := f.do(t, p, http.MethodPost, "/tables/"+tbl.ID+"/join", JoinRequest{Name: p})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	return tbl.ID
}

func TestRequiresToken(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "", http.MethodGet, "/tables", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateListGet(t *testing.T) {
	f := newFixture(t)
	id := f.createAndSeat(t, "alice")

	assert.Contains(t, f.mgr.TableIDs(), id, "created tables are opened for push")

	list := decode[struct {
		Tables []table.Table `json:"tables"`
	}](t, f.do(t, "alice", http.MethodGet, "/tables", nil))
	require.Len(t, list.Tables, 1)
	assert.Equal(t, "friday", list.Tables[0].Name)

	w := f.do(t, "bob", http.MethodGet, "/tables/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[table.Table](t, w)
	assert.Equal(t, table.PhaseWaiting, got.Phase)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "alice", got.Players[0].ID)

	w = f.do(t, "bob", http.MethodGet, "/tables/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_not_found", decode[map[string]string](t, w)["code"])
}

func TestJoinTwice(t *testing.T) {
	f := newFixture(t)
	id := f.createAndSeat(t, "alice")
	w := f.do(t, "alice", http.MethodPost, "/tables/"+id+"/join", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartAndPlay(t *testing.T) {
	f := newFixture(t)
	id := f.createAndSeat(t, "alice", "bob", "carol")

	w := f.do(t, "dave", http.MethodPost, "/tables/"+id+"/start", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "alice", http.MethodPost, "/tables/"+id+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[table.Table](t, w)
	assert.Equal(t, table.PhasePreflop, started.Phase)
	assert.Empty(t, started.HoleCards, "hole cards never leave in table state")
	assert.Empty(t, started.Deck)

	w = f.do(t, "alice", http.MethodPost, "/tables/"+id+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "already running")

	for _, p := range []string{"alice", "bob", "carol"} {
		cards := decode[CardsResponse](t, f.do(t, p, http.MethodGet, "/tables/"+id+"/cards", nil))
		assert.Len(t, cards.Cards, 2, p)
	}
	w = f.do(t, "dave", http.MethodGet, "/tables/"+id+"/cards", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	turn := started.Players[started.CurrentPlayerIndex].ID
	other := started.Players[(started.CurrentPlayerIndex+1)%3].ID

	w = f.do(t, other, http.MethodPost, "/tables/"+id+"/action", ActionRequest{Action: "call"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "not_your_turn", decode[map[string]string](t, w)["code"])

	w = f.do(t, turn, http.MethodPost, "/tables/"+id+"/action", ActionRequest{Action: "raise", Amount: 30})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount_error", decode[map[string]string](t, w)["code"])

	w = f.do(t, turn, http.MethodPost, "/tables/"+id+"/action", ActionRequest{Action: "dance"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, turn, http.MethodPost, "/tables/"+id+"/action", map[string]any{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code, "action is required")

	w = f.do(t, turn, http.MethodPost, "/tables/"+id+"/action", ActionRequest{Action: "Raise", Amount: 60})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	after := decode[table.Table](t, w)
	assert.Equal(t, int64(60), after.CurrentBet)
	assert.Equal(t, other, after.Players[after.CurrentPlayerIndex].ID)
}

func TestLeaveMidHandFolds(t *testing.T) {
	f := newFixture(t)
	id := f.createAndSeat(t, "alice", "bob")
	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/tables/"+id+"/start", nil).Code)

	w := f.do(t, "bob", http.MethodPost, "/tables/"+id+"/leave", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	after := decode[table.Table](t, w)
	assert.Equal(t, table.PhaseShowdown, after.Phase)
	require.Len(t, after.Winners, 1)
	assert.Equal(t, "alice", after.Winners[0].PlayerID)
}

func TestChatRoute(t *testing.T) {
	f := newFixture(t)
	id := f.createAndSeat(t, "alice")

	w := f.do(t, "alice", http.MethodPost, "/tables/"+id+"/chat", ChatRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "hello", decode[table.ChatMessage](t, w).Text)

	w = f.do(t, "mallory", http.MethodPost, "/tables/"+id+"/chat", ChatRequest{Text: "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	got := decode[table.Table](t, f.do(t, "alice", http.MethodGet, "/tables/"+id, nil))
	require.Len(t, got.Chat, 1)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		table.ErrNotYourTurn:                           http.StatusConflict,
		table.ErrCannotCheck:                           http.StatusConflict,
		table.ErrRaiseTooSmall:                         http.StatusBadRequest,
		table.ErrInsufficientChips:                     http.StatusBadRequest,
		fmt.Errorf("load: %w", table.ErrTableNotFound): http.StatusNotFound,
		table.ErrPlayerNotFound:                        http.StatusNotFound,
		manager.ErrEmptyChat:                           http.StatusBadRequest,
		errors.New("redis down"):                       http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}
