package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"meanrev-bot/internal/audit"
	"meanrev-bot/internal/bot"
	"meanrev-bot/internal/events"
	"meanrev-bot/pkg/db"
)

func newTestServer(t *testing.T) (*Server, *db.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	bus := events.NewBus()
	loop := &bot.Loop{
		Log:       audit.New(database, bus),
		Bus:       bus,
		Portfolio: []string{"ADA", "PHB", "FET"},
	}
	return NewServer(database, loop, bus, loop.Portfolio), database
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Router.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeMap(t, w)
	if body["status"] != "Online" {
		t.Fatalf("status=%v", body["status"])
	}
	if body["bot_active"] != false {
		t.Fatalf("bot_active=%v before start", body["bot_active"])
	}
	if tokens, ok := body["portfolio"].([]any); !ok || len(tokens) != 3 {
		t.Fatalf("portfolio=%v", body["portfolio"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if decodeMap(t, w)["status"] != "ok" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestStartStopEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/start")
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d", w.Code)
	}
	if body := decodeMap(t, w); body["bot_active"] != true {
		t.Fatalf("start body=%v", body)
	}
	if !s.Loop.Active() {
		t.Fatal("run flag not raised")
	}

	w = doRequest(s, http.MethodPost, "/stop")
	if w.Code != http.StatusOK {
		t.Fatalf("stop status=%d", w.Code)
	}
	if body := decodeMap(t, w); body["bot_active"] != false {
		t.Fatalf("stop body=%v", body)
	}
	if s.Loop.Active() {
		t.Fatal("run flag not lowered")
	}

	// Status reflects the flag after the flip.
	if body := decodeMap(t, doRequest(s, http.MethodGet, "/")); body["bot_active"] != false {
		t.Fatalf("status body=%v", body)
	}
}

func TestTradesEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/trades")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.String() != "[]" {
		t.Fatalf("body=%q, expected empty array", w.Body.String())
	}
}

func TestTradesNewestFirst(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	id, err := database.RecordBuy(ctx, db.Trade{Symbol: "ADAUSDT", Price: 10, Quantity: 9})
	if err != nil {
		t.Fatalf("RecordBuy: %v", err)
	}
	if err := database.RecordSell(ctx, db.Trade{Symbol: "ADAUSDT", Price: 10.3, Quantity: 9}, id); err != nil {
		t.Fatalf("RecordSell: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/trades")
	var trades []db.Trade
	if err := json.Unmarshal(w.Body.Bytes(), &trades); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades=%d", len(trades))
	}
	if trades[0].Side != db.SideSell || trades[1].Side != db.SideBuy {
		t.Fatalf("order wrong: %+v", trades)
	}
	if trades[1].Status != db.StatusClosed {
		t.Fatalf("buy not closed after round-trip: %+v", trades[1])
	}
}

func TestLogsEndpoint(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	if err := database.InsertLog(ctx, db.LevelInfo, "Checked ADA. Price: 10 Target: +Inf"); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}
	if err := database.InsertLog(ctx, db.LevelSuccess, "ADAUSDT Buy Executed at 10"); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/logs")
	var logs []db.LogEntry
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != 2 || logs[0].Level != db.LevelSuccess {
		t.Fatalf("logs=%+v", logs)
	}
}

func TestStatsCountsRoundTrips(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := database.RecordBuy(ctx, db.Trade{Symbol: "FETUSDT", Price: 1, Quantity: 100})
		if err != nil {
			t.Fatalf("RecordBuy: %v", err)
		}
		if err := database.RecordSell(ctx, db.Trade{Symbol: "FETUSDT", Price: 1.03, Quantity: 100}, id); err != nil {
			t.Fatalf("RecordSell: %v", err)
		}
	}

	body := decodeMap(t, doRequest(s, http.MethodGet, "/stats"))
	if body["total_trades"] != float64(3) {
		t.Fatalf("total_trades=%v", body["total_trades"])
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, http.MethodOptions, "/trades")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-id-1")
	s.Router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "test-id-1" {
		t.Fatalf("X-Request-ID=%q", got)
	}
}
