// HTTP handlers for the prediction API. The API layer is thin: validation
// and error mapping here, all semantics in the engine.
package predict

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/coinarena/predict-engine/internal/market"
	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/stats"
	"github.com/coinarena/predict-engine/internal/store"
)

// Service handles prediction and market-data HTTP requests.
type Service struct {
	engine *Engine
	stats  *stats.Aggregator
	store  store.Store
	cache  *market.Cache
	rates  *market.RateTracker
}

// NewService creates the HTTP service.
func NewService(engine *Engine, agg *stats.Aggregator, st store.Store, cache *market.Cache, rates *market.RateTracker) *Service {
	return &Service{
		engine: engine,
		stats:  agg,
		store:  st,
		cache:  cache,
		rates:  rates,
	}
}

// Routes mounts all handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/predictions", s.StartPrediction)
	r.Get("/predictions/{userID}/open", s.GetOpenPosition)
	r.Get("/predictions/{userID}/history", s.GetHistory)
	r.Get("/stats/{userID}", s.GetStats)
	r.Get("/vault/{userID}", s.GetVault)
	r.Get("/prices", s.ListPrices)
	r.Get("/prices/{exchange}/{symbol}", s.GetPrice)
	r.Get("/rate", s.GetRate)
}

// StartPrediction handles POST /api/v1/predictions.
func (s *Service) StartPrediction(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Market != "" {
		key, err := market.ParseKey(req.Market)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Exchange, req.Symbol = key.Exchange, key.Symbol
	}

	pos, err := s.engine.Open(r.Context(), req)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pos)
}

// GetOpenPosition handles GET /api/v1/predictions/{userID}/open.
func (s *Service) GetOpenPosition(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	pos, err := s.store.GetOpenPositionByUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no open position", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get open position", "user", userID, "err", err)
		writeError(w, "failed to load position", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// GetHistory handles GET /api/v1/predictions/{userID}/history.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	positions, err := s.store.ListPositionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.PredictionPosition{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// GetStats handles GET /api/v1/stats/{userID}.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	st, err := s.stats.Get(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// GetVault handles GET /api/v1/vault/{userID}.
func (s *Service) GetVault(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := s.store.GetVault(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load vault", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user_id": userID, "balance": balance})
}

// ListPrices handles GET /api/v1/prices.
func (s *Service) ListPrices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.cache.Snapshot())
}

// GetPrice handles GET /api/v1/prices/{exchange}/{symbol}.
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	exchange := chi.URLParam(r, "exchange")
	symbol := chi.URLParam(r, "symbol")

	point, ok := s.cache.Get(exchange, symbol)
	if !ok {
		writeError(w, "no price for market", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(point)
}

// GetRate handles GET /api/v1/rate.
func (s *Service) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, ok := s.rates.Get()
	if !ok {
		writeError(w, "no exchange rate yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rate)
}

// statusFor maps engine errors to HTTP status codes. All four user-facing
// start failures are recoverable by retrying with corrected input.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAlreadyOpen), errors.Is(err, ErrInsufficientVault):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidMarket):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidDirection), errors.Is(err, ErrInvalidLeverage),
		errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrInvalidDeposit):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
