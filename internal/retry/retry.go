package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config bounds the retry loop. Zero values fall back to conservative
// defaults suitable for a remote HTTP API.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 3 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 100 * time.Millisecond
	}
	return c
}

// Do runs fn up to config.Attempts times, sleeping with exponential
// backoff plus jitter between attempts. The context cancels the sleep.
func Do(ctx context.Context, config Config, fn func() error) error {
	config = config.withDefaults()

	var lastErr error
	delay := config.BaseDelay
	for attempt := 1; attempt <= config.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == config.Attempts {
			break
		}

		sleep := delay + time.Duration(rand.Int63n(int64(config.Jitter)))
		if sleep > config.MaxDelay {
			sleep = config.MaxDelay
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
	return fmt.Errorf("retry failed: %w", lastErr)
}
