package predict

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coinarena/predict-engine/internal/broadcast"
	"github.com/coinarena/predict-engine/internal/market"
	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/stats"
	"github.com/coinarena/predict-engine/internal/store"
)

// newTestAPI builds the service with an in-memory store and chi router.
func newTestAPI(t *testing.T) (*testEnv, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore(d(10000))
	cache := market.NewCache()
	bus := broadcast.New(16)
	agg := stats.New(ms)
	engine := NewEngine(ms, cache, bus, agg, DefaultLimits(), time.Hour)
	rates := market.NewRateTracker()
	svc := NewService(engine, agg, ms, cache, rates)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return &testEnv{engine: engine, store: ms, cache: cache, bus: bus}, r
}

func postPrediction(t *testing.T, router chi.Router, req OpenRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/predictions", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

func TestStartPrediction_Created(t *testing.T) {
	env, router := newTestAPI(t)
	env.seedPrice(t, "binance", "BTCUSDT", 50000)

	w := postPrediction(t, router, openReq("alice", 1000))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var pos model.PredictionPosition
	json.Unmarshal(w.Body.Bytes(), &pos)
	if pos.ID == "" || pos.Status != model.StatusOpen {
		t.Errorf("unexpected position payload: %+v", pos)
	}
}

func TestStartPrediction_CombinedMarketKey(t *testing.T) {
	env, router := newTestAPI(t)
	env.seedPrice(t, "binance", "BTCUSDT", 50000)

	req := openReq("alice", 1000)
	req.Symbol, req.Exchange = "", ""
	req.Market = "binance:BTCUSDT"
	w := postPrediction(t, router, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var pos model.PredictionPosition
	json.Unmarshal(w.Body.Bytes(), &pos)
	if pos.Exchange != "binance" || pos.Symbol != "BTCUSDT" {
		t.Errorf("market key not resolved: %+v", pos)
	}

	// Malformed key → 400.
	req = openReq("bob", 1000)
	req.Market = "no-colon"
	if w := postPrediction(t, router, req); w.Code != http.StatusBadRequest {
		t.Errorf("malformed market key: expected 400, got %d", w.Code)
	}
}

func TestStartPrediction_ErrorMapping(t *testing.T) {
	env, router := newTestAPI(t)
	env.seedPrice(t, "binance", "BTCUSDT", 50000)

	// No price for this market → 404.
	req := openReq("alice", 1000)
	req.Symbol = "DOGEUSDT"
	if w := postPrediction(t, router, req); w.Code != http.StatusNotFound {
		t.Errorf("unknown market: expected 404, got %d", w.Code)
	}

	// Deposit above vault → 409.
	if w := postPrediction(t, router, openReq("alice", 99999)); w.Code != http.StatusConflict {
		t.Errorf("insufficient vault: expected 409, got %d", w.Code)
	}

	// Second open while one is live → 409.
	if w := postPrediction(t, router, openReq("alice", 1000)); w.Code != http.StatusCreated {
		t.Fatalf("first open failed: %d", w.Code)
	}
	if w := postPrediction(t, router, openReq("alice", 1000)); w.Code != http.StatusConflict {
		t.Errorf("already open: expected 409, got %d", w.Code)
	}

	// Bad leverage → 400.
	req = openReq("bob", 1000)
	req.Leverage = 0
	if w := postPrediction(t, router, req); w.Code != http.StatusBadRequest {
		t.Errorf("bad leverage: expected 400, got %d", w.Code)
	}

	// Malformed body → 400.
	httpReq := httptest.NewRequest("POST", "/api/v1/predictions", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestGetStats_FreshUser(t *testing.T) {
	_, router := newTestAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/stats/nobody", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var st model.UserStats
	json.Unmarshal(w.Body.Bytes(), &st)
	if st.Wins != 0 || st.Losses != 0 {
		t.Errorf("expected zero stats, got %+v", st)
	}
}

func TestGetOpenPosition_NotFound(t *testing.T) {
	_, router := newTestAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/predictions/alice/open", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no open position, got %d", w.Code)
	}
}

func TestGetPrices(t *testing.T) {
	env, router := newTestAPI(t)
	env.seedPrice(t, "binance", "BTCUSDT", 50000)
	env.seedPrice(t, "upbit", "KRW-BTC", 68000000)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/prices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var points []model.PricePoint
	json.Unmarshal(w.Body.Bytes(), &points)
	if len(points) != 2 {
		t.Errorf("expected 2 price points, got %d", len(points))
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/prices/binance/BTCUSDT", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for single price, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/prices/binance/NOPE", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown market, got %d", w.Code)
	}
}

func TestGetVault_SeededBalance(t *testing.T) {
	_, router := newTestAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/vault/alice", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Balance != "10000" {
		t.Errorf("expected seeded balance 10000, got %q", resp.Balance)
	}
}

func TestGetRate(t *testing.T) {
	_, router := newTestAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/rate", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any rate observed, got %d", w.Code)
	}
}
