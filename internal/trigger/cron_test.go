package trigger

import (
	"context"
	"testing"
)

func TestCronValidate(t *testing.T) {
	if err := NewCron("", "").Validate(); err == nil {
		t.Fatalf("expected error for empty schedule")
	}
	if err := NewCron("0 6 * * *", "Mars/Olympus").Validate(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
	if err := NewCron("0 6 * * *", "America/New_York").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCronStartRejectsBadExpression(t *testing.T) {
	if _, err := NewCron("not a cron line", "").Start(context.Background()); err == nil {
		t.Fatalf("expected error for unparsable schedule")
	}
}

func TestCronStopClosesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := NewCron("0 6 * * *", "").Start(ctx)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()
	if _, ok := <-events; ok {
		t.Fatalf("expected events channel to close on context cancel")
	}
}
