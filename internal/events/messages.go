package events

import (
	"encoding/json"
	"time"
)

// Lifecycle event kinds.
const (
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
)

// SyncEventMessage is published on every sync lifecycle transition. It
// carries enough for a consumer to display or alert on without a store read.
type SyncEventMessage struct {
	UserID     string    `json:"user_id"`
	Event      string    `json:"event"`
	Forced     bool      `json:"forced,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m *SyncEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncEventMessageFromJSON(data []byte) (*SyncEventMessage, error) {
	var msg SyncEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ForceSyncMessage asks the worker to run a forced sync for a user.
type ForceSyncMessage struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewForceSyncMessage(userID string) *ForceSyncMessage {
	return &ForceSyncMessage{UserID: userID, Timestamp: time.Now()}
}

func (m *ForceSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ForceSyncMessageFromJSON(data []byte) (*ForceSyncMessage, error) {
	var msg ForceSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
