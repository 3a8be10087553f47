// Package sweeper provides the background worker that reaps dead sessions.
// A fast tick marks sessions with stale heartbeats as disconnected; a slower
// tick deletes sessions idle past their age limit.
package sweeper

import (
	"context"
	"time"

	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/sessions"
)

// Worker runs the periodic session sweeps.
type Worker struct {
	store       *sessions.Store
	broadcaster *messaging.ObserverBroadcaster
	config      *Config
	logger      *logging.ChanneledLogger
}

// NewWorker creates a sweeper with injected configuration.
func NewWorker(store *sessions.Store, broadcaster *messaging.ObserverBroadcaster, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		store:       store,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger,
	}
}

// Start begins the sweep loops and blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	heartbeat := time.NewTicker(w.config.HeartbeatInterval)
	defer heartbeat.Stop()
	full := time.NewTicker(w.config.FullSweepInterval)
	defer full.Stop()

	if w.logger != nil {
		w.logger.Sweep().Info("Session sweeper started",
			"heartbeatInterval", w.config.HeartbeatInterval,
			"heartbeatTimeout", w.config.HeartbeatTimeout,
			"fullSweepInterval", w.config.FullSweepInterval)
	}

	for {
		select {
		case <-ctx.Done():
			if w.logger != nil {
				w.logger.Sweep().Info("Session sweeper stopping")
			}
			return
		case <-heartbeat.C:
			w.sweepHeartbeats()
		case <-full.C:
			w.sweepExpired()
		}
	}
}

// sweepHeartbeats flags sessions whose heartbeat went quiet. The sessions
// stay in the store; only observers are told about the state change.
func (w *Worker) sweepHeartbeats() {
	start := time.Now()
	flipped := w.store.MarkStaleDisconnected(w.config.HeartbeatTimeout)
	for _, sess := range flipped {
		w.broadcaster.BroadcastSession(events.SessionUpdated, sess)
	}
	if w.logger != nil && (len(flipped) > 0 || w.config.VerboseReporting) {
		w.logger.Sweep().Debug("Heartbeat sweep completed", "disconnected", len(flipped), "duration", time.Since(start))
	}
}

// sweepExpired deletes sessions idle past their age limit and tells observers.
func (w *Worker) sweepExpired() {
	start := time.Now()
	removed := w.store.Sweep(w.config.PromotedMaxAge, w.config.PendingMaxAge)
	for _, sess := range removed {
		w.broadcaster.BroadcastSession(events.SessionRemoved, sess.Snapshot())
	}
	if w.logger != nil && (len(removed) > 0 || w.config.VerboseReporting) {
		w.logger.Sweep().Info("Expiry sweep completed", "removed", len(removed), "duration", time.Since(start))
	}
}
