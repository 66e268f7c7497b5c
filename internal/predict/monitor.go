package predict

import (
	"context"

	"github.com/coinarena/predict-engine/internal/metrics"
	"github.com/coinarena/predict-engine/internal/model"
)

// Monitor decouples price-cache notifications from liquidation checks.
// The cache listener enqueues without blocking; a dropped notification
// only delays liquidation until the next tick for the same symbol, since
// checks always read the latest price carried by the event stream.
type Monitor struct {
	engine *Engine
	events chan model.PricePoint
}

// NewMonitor creates a liquidation monitor with the given queue depth.
func NewMonitor(engine *Engine, buf int) *Monitor {
	if buf <= 0 {
		buf = 1024
	}
	return &Monitor{
		engine: engine,
		events: make(chan model.PricePoint, buf),
	}
}

// OnPrice enqueues an accepted price update. Never blocks the ingestion
// pipeline.
func (m *Monitor) OnPrice(p model.PricePoint) {
	select {
	case m.events <- p:
	default:
		metrics.MonitorDrops.Inc()
	}
}

// Run drains the queue and evaluates open positions until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-m.events:
			m.engine.OnPrice(p)
		}
	}
}
