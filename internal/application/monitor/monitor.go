// Background monitor: periodic KSeF health probes and session cache sweeps.

package monitor

import (
	"context"
	"time"

	ksefapi "github.com/Mc-Beton/K-fun/internal/infrastructure/ksef"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

// Monitor runs the health probe and cache sweep on a fixed interval until its
// context is cancelled. Transition notifications are handled inside the
// client; the monitor only drives the schedule.
type Monitor struct {
	client   ksefapi.API
	cache    *ksefapi.SessionCache
	interval time.Duration
	log      *logger.Logger
}

// New builds the monitor. A non-positive interval defaults to one minute.
func New(client ksefapi.API, cache *ksefapi.SessionCache, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{client: client, cache: cache, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. One probe fires immediately so startup
// connectivity is reported without waiting a full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	up := m.client.CheckStatus(ctx)
	if removed := m.cache.Sweep(); removed > 0 {
		m.log.Debug().Int("removed", removed).Msg("swept expired session tokens")
	}
	m.log.Debug().Bool("ksef_up", up).Msg("health probe")
}
