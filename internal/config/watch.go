package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"seatflow/internal/models"
)

// WatchRules reloads the config file on change and swaps the booking
// rules the engines read. It performs an initial load before entering
// the watch loop and returns a RulesProvider backed by an atomic value.
func WatchRules(ctx context.Context, path string, interval time.Duration) (models.RulesProvider, error) {
	if path == "" {
		path = "configs/config.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	var current atomic.Value
	current.Store(cfg.BookingRules)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				current.Store(cfg.BookingRules)
			}
		}
	}()

	return func() models.BookingRules {
		return current.Load().(models.BookingRules)
	}, nil
}

// StaticRules wraps fixed rules in a RulesProvider. Tests and setups
// without hot reload use this.
func StaticRules(rules models.BookingRules) models.RulesProvider {
	return func() models.BookingRules { return rules }
}
