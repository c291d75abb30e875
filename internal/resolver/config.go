package resolver

import "time"

const (
	defaultWorkers       = 4
	defaultDrainInterval = 2 * time.Second
)

// Config bounds the deferred-resolution fan-out.
type Config struct {
	// Workers caps concurrent directory lookups per drain.
	Workers int
	// DrainInterval is how often the periodic loop retries the
	// pending queue between feed events.
	DrainInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:       defaultWorkers,
		DrainInterval: defaultDrainInterval,
	}
}

func NormalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = defaults.Workers
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = defaults.DrainInterval
	}
	return cfg
}
