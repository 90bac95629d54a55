package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalhub/scheduling-platform/pkg/logging"
)

// Syncer wraps a Client with the platform's best-effort policy: each attempt
// is bounded by a timeout and retried at most once. Errors are returned for
// recording, never for rollback.
type Syncer struct {
	client  Client
	timeout time.Duration
	logger  *logging.Logger
}

// NewSyncer creates a best-effort calendar syncer. A nil client disables
// mirroring entirely.
func NewSyncer(client Client, timeout time.Duration, logger *logging.Logger) *Syncer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Syncer{client: client, timeout: timeout, logger: logger}
}

// Enabled reports whether a provider bridge is configured.
func (s *Syncer) Enabled() bool {
	return s != nil && s.client != nil
}

// Push mirrors an appointment: create when eventID is empty, update
// otherwise. Returns the provider event id on success.
func (s *Syncer) Push(ctx context.Context, eventID string, ev Event) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("calendar: sync disabled")
	}

	if eventID == "" {
		var id string
		err := s.attempt(ctx, func(ctx context.Context) error {
			var createErr error
			id, createErr = s.client.CreateEvent(ctx, ev)
			return createErr
		})
		if err != nil {
			return "", err
		}
		return id, nil
	}

	if err := s.attempt(ctx, func(ctx context.Context) error {
		return s.client.UpdateEvent(ctx, eventID, ev)
	}); err != nil {
		return "", err
	}
	return eventID, nil
}

// Remove deletes the mirrored event.
func (s *Syncer) Remove(ctx context.Context, eventID string) error {
	if !s.Enabled() || eventID == "" {
		return nil
	}
	return s.attempt(ctx, func(ctx context.Context) error {
		return s.client.DeleteEvent(ctx, eventID)
	})
}

// attempt runs fn with the sync timeout, retrying once on failure.
func (s *Syncer) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for try := 0; try < 2; try++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("calendar sync attempt failed", "try", try+1, "error", lastErr)
	}
	return lastErr
}
