package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/coinarena/predict-engine/internal/model"
)

// RateFeedURL is the default USD→KRW quote endpoint.
const RateFeedURL = "https://api.frankfurter.app/latest?from=USD&to=KRW"

// RateEmitFunc receives each polled exchange rate.
type RateEmitFunc func(model.ExchangeRate)

// RatePoller polls a fiat exchange-rate REST endpoint on a fixed interval.
// Fiat rates move slowly, so polling (rather than streaming) is enough.
type RatePoller struct {
	url      string
	currency string
	interval time.Duration
	client   *http.Client
	emit     RateEmitFunc
}

// NewRatePoller creates a poller for the given endpoint and target currency.
func NewRatePoller(url, currency string, interval time.Duration, emit RateEmitFunc) *RatePoller {
	if url == "" {
		url = RateFeedURL
	}
	if currency == "" {
		currency = "KRW"
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &RatePoller{
		url:      url,
		currency: currency,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		emit:     emit,
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and retried
// on the next tick; the last good rate stays in the tracker meanwhile.
func (p *RatePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RatePoller) poll(ctx context.Context) {
	rate, err := p.fetch(ctx)
	if err != nil {
		slog.Warn("rate fetch failed", "err", err)
		return
	}
	p.emit(model.ExchangeRate{Rate: rate, Timestamp: time.Now().UTC()})
}

func (p *RatePoller) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}

	rate, ok := body.Rates[p.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate endpoint missing %s", p.currency)
	}
	return decimal.NewFromFloat(rate), nil
}
