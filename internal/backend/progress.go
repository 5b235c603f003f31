package backend

import (
	"context"
	"fmt"
	"time"
)

// ProgressFunc receives each rendered poll result. The progress value is
// monotonically non-decreasing across calls even when the backend reports a
// lower number (stale poll responses are clamped, never rendered).
type ProgressFunc func(progress float64, message, step string)

// ProgressPoller watches /status/{session} until processing completes.
// It is a scheduled task with an explicit stop condition, cancelable
// through its context.
type ProgressPoller struct {
	client    *Client
	sessionID string
	interval  time.Duration
}

// NewProgressPoller creates a poller for one session.
func NewProgressPoller(client *Client, sessionID string, interval time.Duration) *ProgressPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ProgressPoller{client: client, sessionID: sessionID, interval: interval}
}

// Run polls until the task finishes (progress >= 100 or finished flag), the
// task reports an error, or ctx is canceled. fn is called once per poll with
// the clamped progress value.
func (p *ProgressPoller) Run(ctx context.Context, fn ProgressFunc) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var highWater float64

	for {
		status, err := p.client.FetchStatus(ctx, p.sessionID)
		if err != nil {
			return err
		}

		progress := status.Progress
		if progress < highWater {
			progress = highWater
		} else {
			highWater = progress
		}

		if fn != nil {
			fn(progress, status.Message, status.Step)
		}

		if status.Error {
			return fmt.Errorf("processing failed: %s", status.Message)
		}
		if status.Finished || progress >= 100 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
