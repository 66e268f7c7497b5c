package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/broadcast"
	"github.com/coinarena/predict-engine/internal/feed"
	"github.com/coinarena/predict-engine/internal/market"
	"github.com/coinarena/predict-engine/internal/metrics"
	"github.com/coinarena/predict-engine/internal/model"
	"github.com/coinarena/predict-engine/internal/predict"
	"github.com/coinarena/predict-engine/internal/stats"
	"github.com/coinarena/predict-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	seedBalance := decimal.NewFromInt(10000)
	if v := os.Getenv("VAULT_SEED"); v != "" {
		if parsed, err := decimal.NewFromString(v); err == nil && parsed.IsPositive() {
			seedBalance = parsed
		}
	}

	staleAfter := 30 * time.Second
	if v := os.Getenv("PRICE_STALE_AFTER"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			staleAfter = parsed
		}
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool, seedBalance)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore(seedBalance)
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Market state + broadcaster ---
	cache := market.NewCache()
	rates := market.NewRateTracker()
	bus := broadcast.New(256)
	bus.OnDrop(metrics.BroadcastDrops.Inc)

	// --- Prediction engine ---
	agg := stats.New(st)
	engine := predict.NewEngine(st, cache, bus, agg, predict.DefaultLimits(), staleAfter)
	if err := engine.Recover(ctx); err != nil {
		slog.Error("recover open positions", "err", err)
		os.Exit(1)
	}
	defer engine.Scheduler().Stop()

	monitor := predict.NewMonitor(engine, 4096)
	go monitor.Run(ctx)

	// Fan accepted updates out to the bus and the liquidation monitor.
	cache.OnUpdate(func(p model.PricePoint) {
		metrics.TicksIngested.WithLabelValues(p.Exchange).Inc()
		bus.Publish(broadcast.PriceEvent(p))
		monitor.OnPrice(p)
	})
	rates.OnUpdate(func(r model.ExchangeRate) {
		bus.Publish(broadcast.RateEvent(r))
	})

	// --- Exchange feeds ---
	emit := func(ev model.PriceEvent) {
		if !cache.Update(ev) {
			metrics.TicksStale.Inc()
		}
	}

	binanceSymbols := splitEnv("BINANCE_SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT,XRPUSDT")
	if len(binanceSymbols) > 0 {
		adapter := feed.NewBinanceAdapter(os.Getenv("BINANCE_WS_URL"), binanceSymbols, emit)
		go adapter.Run(ctx)
	}

	upbitCodes := splitEnv("UPBIT_CODES", "KRW-BTC,KRW-ETH,KRW-SOL,KRW-XRP")
	if len(upbitCodes) > 0 {
		adapter := feed.NewUpbitAdapter(os.Getenv("UPBIT_WS_URL"), upbitCodes, emit)
		go adapter.Run(ctx)
	}

	ratePoller := feed.NewRatePoller(os.Getenv("RATE_FEED_URL"), os.Getenv("RATE_CURRENCY"),
		time.Minute, func(r model.ExchangeRate) { rates.Update(r) })
	go ratePoller.Run(ctx)

	// --- WebSocket hub ---
	wsHub := broadcast.NewWSHub(bus)
	wsHub.OnCountChange(func(n int) { metrics.WebSocketClients.Set(float64(n)) })

	// --- HTTP API ---
	svc := predict.NewService(engine, agg, st, cache, rates)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"predict-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price and result pushes.
		r.Get("/ws", wsHub.HandleWS)

		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("predict-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel() // stop feeds, monitor, rate poller

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down predict-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("predict-engine stopped")
}

// splitEnv reads a comma-separated env var with a default.
func splitEnv(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
