package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/auth"
	"bonus-hunt/internal/broadcast"
	"bonus-hunt/internal/models"
	"bonus-hunt/internal/repository"
	"bonus-hunt/internal/services"
	"bonus-hunt/internal/testkit"
	"bonus-hunt/internal/widget"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testOwner   = "streamer-1"
	testBaseURL = "https://hunts.example"
)

type testEnv struct {
	router  *gin.Engine
	service *services.HuntService
	db      *gorm.DB
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, WidgetOptions{AllowedOrigins: []string{"*"}})
}

func newTestEnvWith(t *testing.T, widgetOpts WidgetOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	logger := log.New(io.Discard)
	b := broadcast.New(logger)
	t.Cleanup(b.Close)

	db := testkit.NewDB(t)
	var fetcher *widget.SharedFetcher
	svc := services.NewHuntService(
		repository.NewRepository(db),
		services.NotifierFunc(func(id uuid.UUID) int { return fetcher.Notify(id) }),
		logger,
		services.HuntOptions{},
	)
	fetcher = widget.NewSharedFetcher(svc, b)

	widgetHandler := NewWidgetHandler(fetcher, b, logger, widgetOpts)
	t.Cleanup(widgetHandler.Close)

	router := NewRouter(RouterConfig{
		Hunts:  NewHuntHandler(svc, testBaseURL, logger),
		Widget: widgetHandler,
		Logger: logger,
	})

	token, err := auth.GenerateToken(testOwner, time.Hour)
	require.NoError(t, err)

	return &testEnv{router: router, service: svc, db: db, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

type huntBody struct {
	Hunt      models.Hunt `json:"hunt"`
	Slot      models.Slot `json:"slot"`
	WidgetURL string      `json:"widgetUrl"`
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/hunts/active", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestOperatorFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/hunts", gin.H{"name": "Stream #12", "startAmount": 1000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[huntBody](t, w)
	huntID := created.Hunt.ID
	assert.Equal(t, testBaseURL+"/widget/"+huntID.String(), created.WidgetURL)
	assert.Equal(t, models.HuntPhaseCollecting, created.Hunt.Phase)

	w = env.do(t, http.MethodPost, "/api/hunts", gin.H{"startAmount": 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.CodeActiveHuntExists, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.CodeHuntHasNoSlots, decode[errorBody](t, w).Code)

	var slotIDs []uuid.UUID
	for _, bet := range []string{"10", "20", "30"} {
		w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/slots", gin.H{"name": "Gates of Olympus", "betSize": json.RawMessage(bet)})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		slotIDs = append(slotIDs, decode[huntBody](t, w).Slot.ID)
	}

	w = env.do(t, http.MethodPost, "/api/slots/"+slotIDs[0].String()+"/open", gin.H{"result": 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "15", decode[huntBody](t, w).Hunt.TotalResult.String())

	w = env.do(t, http.MethodPost, "/api/slots/"+slotIDs[0].String()+"/open", gin.H{"result": 15})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.CodeSlotAlreadyOpened, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/slots/"+slotIDs[1].String()+"/open", gin.H{"result": -4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeSlotNegativeResult, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/slots/"+slotIDs[1].String()+"/open", gin.H{"isSuper": true})
	assert.Equal(t, http.StatusBadRequest, w.Code, "result is required")

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.HuntPhaseOpening, decode[huntBody](t, w).Hunt.Phase)

	w = env.do(t, http.MethodDelete, "/api/slots/"+slotIDs[2].String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "30", decode[huntBody](t, w).Hunt.TotalCost.String())

	w = env.do(t, http.MethodGet, "/api/hunts/active", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	active := decode[models.HuntStateResponse](t, w)
	assert.Equal(t, huntID, active.Hunt.ID)
	assert.Len(t, active.Slots, 2)
	assert.Equal(t, "-985", active.Stats.Profit.String())
	assert.Equal(t, testBaseURL+"/widget/"+huntID.String(), active.WidgetURL)

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/hunts/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/slots", gin.H{"name": "Late", "betSize": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.CodeHuntCompleted, decode[errorBody](t, w).Code)
}

func TestOperatorRequestErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/hunts/not-a-uuid/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeInvalidID, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodDelete, "/api/slots/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeSlotNotFound, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/hunts", gin.H{"startAmount": -10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeHuntNegativeStartAmount, decode[errorBody](t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/hunts", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+env.token)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeInvalidRequest, decode[errorBody](t, w).Code)
}

func TestOperatorRejectsOutOfRangeAmounts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/hunts", json.RawMessage(`{"startAmount":1e200000000}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeAmountOutOfRange, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/hunts", gin.H{"startAmount": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	huntID := decode[huntBody](t, w).Hunt.ID

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/slots", json.RawMessage(`{"name":"A","betSize":1e200000000}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeAmountOutOfRange, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/slots", gin.H{"name": "A", "betSize": "12345678901234567"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeAmountOutOfRange, decode[errorBody](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/hunts/"+huntID.String()+"/slots", gin.H{"name": "A", "betSize": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	slotID := decode[huntBody](t, w).Slot.ID

	w = env.do(t, http.MethodPost, "/api/slots/"+slotID.String()+"/open", json.RawMessage(`{"result":1e-200000000}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeAmountOutOfRange, decode[errorBody](t, w).Code)
}

func TestOperatorStoreFailure(t *testing.T) {
	env := newTestEnv(t)

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	for _, w := range []*httptest.ResponseRecorder{
		env.do(t, http.MethodPost, "/api/hunts", gin.H{"startAmount": 100}),
		env.do(t, http.MethodGet, "/api/hunts/active", nil),
	} {
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode[errorBody](t, w)
		assert.Equal(t, apperr.CodeStoreFailure, body.Code)
		assert.Equal(t, "storage unavailable, please retry", body.Error)
	}
}

func TestWidgetState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hunt, err := env.service.CreateHunt(ctx, testOwner, &models.CreateHuntRequest{Name: "Live", StartAmount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, _, err = env.service.AddSlot(ctx, testOwner, hunt.ID, &models.AddSlotRequest{Name: "Book of Dead", BetSize: decimal.NewFromInt(4)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widget/"+hunt.ID.String()+"/state", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	snap := decode[widget.Snapshot](t, w)
	assert.Equal(t, widget.StatusLive, snap.Status)
	require.Len(t, snap.Slots, 1)
	assert.True(t, snap.Slots[0].IsCurrent)
	assert.Equal(t, "25", snap.Stats.BreakevenMultiplier.String())

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widget/"+uuid.NewString()+"/state", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, widget.StatusNotFound, decode[widget.Snapshot](t, w).Status)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widget/bogus/state", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWidgetWebSocketStream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hunt, err := env.service.CreateHunt(ctx, testOwner, &models.CreateHuntRequest{StartAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/widget/" + hunt.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() widget.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var snap widget.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		return snap
	}
	readLive := func(match func(widget.Snapshot) bool) widget.Snapshot {
		t.Helper()
		for {
			snap := read()
			if snap.Status == widget.StatusLive && match(snap) {
				return snap
			}
		}
	}

	initial := readLive(func(widget.Snapshot) bool { return true })
	assert.Equal(t, 0, initial.Stats.SlotCount)

	_, _, err = env.service.AddSlot(ctx, testOwner, hunt.ID, &models.AddSlotRequest{Name: "Sugar Rush", BetSize: decimal.NewFromInt(50)})
	require.NoError(t, err)

	updated := readLive(func(s widget.Snapshot) bool { return s.Stats.SlotCount == 1 })
	assert.Equal(t, "20", updated.Stats.BreakevenMultiplier.String())
	assert.Greater(t, updated.Revision, initial.Revision)

	_, err = env.service.CompleteHunt(ctx, testOwner, hunt.ID)
	require.NoError(t, err)

	for {
		snap := read()
		if snap.Status == widget.StatusConcluded {
			break
		}
	}
}

func TestWidgetWebSocketPings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	pingTrap := mClock.Trap().NewTicker("widget", "ping")
	defer pingTrap.Close()

	env := newTestEnvWith(t, WidgetOptions{Clock: mClock, ResyncInterval: time.Hour, AllowedOrigins: []string{"*"}})
	hunt, err := env.service.CreateHunt(ctx, testOwner, &models.CreateHuntRequest{StartAmount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/widget/" + hunt.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	pings := make(chan struct{}, 4)
	conn.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTrap.MustWait(ctx).MustRelease(ctx)

	select {
	case <-pings:
		t.Fatal("ping sent before the ping period elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	mClock.Advance(pingPeriod).MustWait(ctx)

	select {
	case <-pings:
	case <-ctx.Done():
		t.Fatal("no ping after the ping period")
	}
}

func TestWidgetEventStream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hunt, err := env.service.CreateHunt(ctx, testOwner, &models.CreateHuntRequest{Name: "SSE", StartAmount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	server := httptest.NewServer(env.router)
	defer server.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, server.URL+"/widget/"+hunt.ID.String()+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var snap widget.Snapshot
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &snap))
		if snap.Status == widget.StatusLive {
			assert.Equal(t, "SSE", snap.Name)
			return
		}
	}
	t.Fatalf("stream ended without a live snapshot: %v", scanner.Err())
}
