package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSavedMessage announces that an owner's transaction set was
// persisted. It carries only the owner ID and row count; the worker loads
// the actual set from the database when mirroring it.
type SnapshotSavedMessage struct {
	OwnerID   string    `json:"owner_id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSavedMessage(ownerID string, count int) *SnapshotSavedMessage {
	return &SnapshotSavedMessage{
		OwnerID:   ownerID,
		Count:     count,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotSavedMessageFromJSON(data []byte) (*SnapshotSavedMessage, error) {
	var msg SnapshotSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
