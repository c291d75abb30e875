package conn

import "time"

type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxAttempts       int
	BackoffSchedule   []time.Duration
	FrameBuffer       int
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		MaxAttempts:       5,
		BackoffSchedule: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
		},
		FrameBuffer: 256,
	}
}

func NormalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaults.HeartbeatTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if len(cfg.BackoffSchedule) == 0 {
		cfg.BackoffSchedule = defaults.BackoffSchedule
	}
	if cfg.FrameBuffer < 1 {
		cfg.FrameBuffer = defaults.FrameBuffer
	}
	return cfg
}
