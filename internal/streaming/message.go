package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type EventType string

const (
	EventTypeSnapshotRefreshed EventType = "snapshot.refreshed"
	EventTypeTextStored        EventType = "text.stored"
)

// Event is the JSON payload carried on the events topic.
type Event struct {
	Type       EventType `json:"type"`
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id,omitempty"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Address    string    `json:"address,omitempty"`
	TxCount    int       `json:"tx_count,omitempty"`
	TxHashes   []string  `json:"tx_hashes,omitempty"`
	Label      string    `json:"label,omitempty"`
	CID        string    `json:"cid,omitempty"`
}

// Key groups events of one (user, subject) pair onto one partition.
func (e Event) Key() string {
	switch e.Type {
	case EventTypeSnapshotRefreshed:
		return e.UserID + ":" + e.Address
	case EventTypeTextStored:
		return e.UserID + ":" + e.Label
	default:
		return e.UserID
	}
}

func Encode(event Event) ([]byte, error) {
	if err := validate(event); err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	if err := validate(event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func validate(event Event) error {
	if event.ID == "" {
		return errors.New("event id is required")
	}
	if event.UserID == "" {
		return errors.New("user_id is required")
	}
	switch event.Type {
	case EventTypeSnapshotRefreshed:
		if event.Address == "" {
			return errors.New("address is required")
		}
	case EventTypeTextStored:
		if event.Label == "" || event.CID == "" {
			return errors.New("label and cid are required")
		}
	case "":
		return errors.New("event type is required")
	default:
		return errors.New("unknown event type: " + string(event.Type))
	}
	return nil
}
