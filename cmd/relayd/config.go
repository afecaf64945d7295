package main

import "time"

// Config is relayd's environment-driven configuration, replacing the
// teacher's hardcoded loadConfig() literal in core/main.go with
// github.com/sethvargo/go-envconfig struct tags while keeping the same
// "one struct, sane defaults" shape.
type Config struct {
	MetricsAddr  string        `env:"RELAYD_METRICS_ADDR, default=:9090"`
	TickInterval time.Duration `env:"RELAYD_TICK_INTERVAL, default=50ms"`
	Demo         bool          `env:"RELAYD_DEMO, default=true"`
}
