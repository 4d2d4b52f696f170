package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	FlushBatchSize    int
	DispatchBatchSize int
	PendingOrderTTL   time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		JobTimeout:        30 * time.Second,
		FlushBatchSize:    500,
		DispatchBatchSize: 50,
		PendingOrderTTL:   24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.FlushBatchSize <= 0 {
		c.FlushBatchSize = defaults.FlushBatchSize
	}
	if c.DispatchBatchSize <= 0 {
		c.DispatchBatchSize = defaults.DispatchBatchSize
	}
	if c.PendingOrderTTL <= 0 {
		c.PendingOrderTTL = defaults.PendingOrderTTL
	}
	return c
}
