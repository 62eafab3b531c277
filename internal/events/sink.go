package events

import (
	"context"
	"log/slog"
	"time"
)

// Sink adapts the AMQP client to the orchestrator's event interface. Publish
// failures are logged and swallowed so a broker outage never fails a sync.
type Sink struct {
	client *Client
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) SyncStarted(ctx context.Context, userID string, forced bool) {
	s.emit(ctx, &SyncEventMessage{
		UserID:    userID,
		Event:     EventSyncStarted,
		Forced:    forced,
		Timestamp: time.Now(),
	})
}

func (s *Sink) SyncCompleted(ctx context.Context, userID string, duration time.Duration) {
	s.emit(ctx, &SyncEventMessage{
		UserID:     userID,
		Event:      EventSyncCompleted,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now(),
	})
}

func (s *Sink) SyncFailed(ctx context.Context, userID, phase string, err error) {
	msg := &SyncEventMessage{
		UserID:    userID,
		Event:     EventSyncFailed,
		Phase:     phase,
		Timestamp: time.Now(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	s.emit(ctx, msg)
}

func (s *Sink) emit(ctx context.Context, msg *SyncEventMessage) {
	if err := s.client.PublishSyncEvent(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish sync event",
			"event", msg.Event, "user", msg.UserID, "error", err)
	}
}
