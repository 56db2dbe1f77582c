package agent

import (
	"context"
	"time"

	"github.com/debuck1718/smartstudent/internal/message"
)

// Refresh handles the periodic wake-up: it pings the refresh endpoint and
// tells pages to reload on success. Failures are skipped silently.
func (a *Agent) Refresh(ctx context.Context) {
	if err := a.remote.PeriodicRefresh(ctx); err != nil {
		a.logger.Debug("periodic refresh skipped", "error", err)
		return
	}
	a.pages.Broadcast(message.Refresh{})
}

// registerPeriodic starts the wake-up loop. Registration is best-effort.
func (a *Agent) registerPeriodic() {
	if a.cfg.RefreshInterval <= 0 {
		a.logger.Warn("periodic refresh unavailable", "tag", RefreshTag)
		return
	}
	a.every(a.cfg.RefreshInterval, a.Refresh)
	a.logger.Info("periodic refresh registered", "tag", RefreshTag, "interval", a.cfg.RefreshInterval)
}

// startConnectivityMonitor probes the API and raises the sync signal when
// it comes back after being unreachable.
func (a *Agent) startConnectivityMonitor() {
	if a.cfg.ConnectivityInterval <= 0 {
		return
	}
	a.every(a.cfg.ConnectivityInterval, a.probe)
}

func (a *Agent) probe(ctx context.Context) {
	online := a.remote.Ping(ctx) == nil

	a.mu.Lock()
	restored := online && !a.online
	changed := online != a.online
	a.online = online
	a.mu.Unlock()

	if changed {
		a.logger.Info("connectivity changed", "online", online)
	}
	if restored {
		if _, err := a.Sync(ctx, SyncTag); err != nil {
			a.logger.Error("sync after reconnect", "error", err)
		}
	}
}

// Online reports the last observed connectivity.
func (a *Agent) Online() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

// every runs fn on a ticker until the agent stops.
func (a *Agent) every(interval time.Duration, fn func(context.Context)) {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()

	a.loops.Add(1)
	go func() {
		defer a.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}
