package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Event is one scheduled firing.
type Event struct {
	Timestamp time.Time
}

// Cron fires cleanup runs on a cron schedule.
type Cron struct {
	schedule string
	timezone string
	cron     *cron.Cron
	events   chan Event
}

func NewCron(schedule, timezone string) *Cron {
	return &Cron{schedule: schedule, timezone: timezone}
}

func (c *Cron) Validate() error {
	if c.schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	if c.timezone != "" {
		if _, err := time.LoadLocation(c.timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return nil
}

// Start begins the schedule and returns a channel of events. A firing that
// lands while a previous run is still in flight is dropped rather than
// queued.
func (c *Cron) Start(ctx context.Context) (<-chan Event, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	location := time.UTC
	if c.timezone != "" {
		tz, err := time.LoadLocation(c.timezone)
		if err != nil {
			return nil, err
		}
		location = tz
	}

	c.events = make(chan Event, 1)
	c.cron = cron.New(cron.WithLocation(location))
	_, err := c.cron.AddFunc(c.schedule, func() {
		select {
		case c.events <- Event{Timestamp: time.Now().UTC()}:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return c.events, nil
}

func (c *Cron) Stop() error {
	if c.cron != nil {
		ctx := c.cron.Stop()
		<-ctx.Done()
	}
	if c.events != nil {
		close(c.events)
	}
	return nil
}
