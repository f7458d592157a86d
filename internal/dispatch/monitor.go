package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMonitorInterval is the hold-expiry poll interval, also the upper
// bound so an expired hold is never held past the minute.
const DefaultMonitorInterval = 60 * time.Second

// Monitor periodically scans busy ambulances for expired holds and releases
// them through the same path a manual release takes, so a stuck or lost
// vehicle never strands hospital capacity. Expiry is judged by the store
// clock, never by caller-supplied timestamps.
type Monitor struct {
	engine   *Engine
	log      zerolog.Logger
	interval time.Duration
	done     chan struct{}
}

// StartExpiryMonitor launches the scan loop. It stops when ctx is
// cancelled: the current release finishes (each is its own transaction, so
// nothing is ever left half-done) and the remainder of the scan is
// abandoned.
func StartExpiryMonitor(ctx context.Context, engine *Engine, log zerolog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 || interval > DefaultMonitorInterval {
		interval = DefaultMonitorInterval
	}
	m := &Monitor{
		engine:   engine,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
	go m.run(ctx)
	return m
}

// Done is closed once the loop has fully stopped.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.interval).Msg("hold expiry monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("hold expiry monitor stopped")
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

func (m *Monitor) scan(ctx context.Context) {
	expired, err := m.engine.ExpiredHolds(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("expired hold scan failed")
		return
	}
	for _, id := range expired {
		if ctx.Err() != nil {
			return
		}
		_, err := m.engine.ReleaseAmbulance(ctx, id, ReleaseOptions{Auto: true})
		switch {
		case err == nil:
		case IsKind(err, ErrAmbulanceNotBusy):
			// A manual release won the race between scan and release.
		default:
			m.log.Error().Err(err).Str("ambulance_id", id.String()).Msg("auto release failed")
		}
	}
}
