// Package simulation parses simulation command flags and composes the
// service entrypoint.
package simulation

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/urnalabs/apura/internal/platform/cmd"
	server "github.com/urnalabs/apura/internal/services/simulation/app"
)

// Config holds simulation command configuration.
type Config struct {
	HTTPAddr           string        `env:"APURA_SIMULATION_HTTP_ADDR"     envDefault:":8080"`
	StoragePath        string        `env:"APURA_STORAGE_PATH"             envDefault:"apura.db"`
	TickInterval       time.Duration `env:"APURA_SIMULATION_TICK_INTERVAL" envDefault:"500ms"`
	BaseReplayDuration time.Duration `env:"APURA_SIMULATION_BASE_DURATION" envDefault:"5m"`
	SessionTTL         time.Duration `env:"APURA_SIMULATION_SESSION_TTL"   envDefault:"10m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "simulation HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "election dataset sqlite path")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "replay tick interval")
	fs.DurationVar(&cfg.BaseReplayDuration, "base-duration", cfg.BaseReplayDuration, "full replay duration at speed 1")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "terminal session retention before eviction")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the simulation app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulation, func(context.Context) error {
		grants, err := server.LoadViewerGrantConfigFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load viewer grant config: %w", err)
		}
		if err := server.Run(ctx, server.Config{
			HTTPAddr:           cfg.HTTPAddr,
			StoragePath:        cfg.StoragePath,
			TickInterval:       cfg.TickInterval,
			BaseReplayDuration: cfg.BaseReplayDuration,
			SessionTTL:         cfg.SessionTTL,
			ViewerGrants:       grants,
		}); err != nil {
			return fmt.Errorf("serve simulation: %w", err)
		}
		return nil
	})
}
