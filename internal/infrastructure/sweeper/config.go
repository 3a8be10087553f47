package sweeper

import (
	"time"

	"github.com/sessionbridge/sessionbridge-go/pkg/config"
)

// Config holds sweeper timings, sourced from the central config package.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	FullSweepInterval time.Duration
	PromotedMaxAge    time.Duration
	PendingMaxAge     time.Duration
	VerboseReporting  bool
}

// NewConfig creates a sweeper configuration from the already-initialized
// variables in the centralized /pkg/config package.
func NewConfig() *Config {
	return &Config{
		HeartbeatInterval: config.HeartbeatInterval,
		HeartbeatTimeout:  config.HeartbeatTimeout,
		FullSweepInterval: config.FullSweepInterval,
		PromotedMaxAge:    config.PromotedMaxAge,
		PendingMaxAge:     config.PendingMaxAge,
		VerboseReporting:  config.SweepVerbose,
	}
}
