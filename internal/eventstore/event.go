package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded for a build. A build writes BuildStarted, one
// StageCompleted per stage that ran, then BuildCompleted or BuildFailed.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeStageCompleted = "StageCompleted"
	TypeBuildCompleted = "BuildCompleted"
	TypeBuildFailed    = "BuildFailed"
)

// Event is one stored build lifecycle record.
type Event interface {
	// ID is assigned by the store; it is 0 until the event is appended.
	ID() int64
	// BuildID is the uuid of the sitepack build.
	BuildID() string
	// Type is one of the Type* constants.
	Type() string
	Timestamp() time.Time
	// Payload is the JSON form of the matching *Data or *Meta struct.
	Payload() []byte
	// Metadata carries string labels such as the trigger.
	Metadata() map[string]string
}

// BaseEvent is the concrete Event produced by the constructors in this
// package and by SQLiteStore reads.
type BaseEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) BuildID() string             { return e.EventBuildID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }

// DecodePayload unmarshals the payload of e into v. An empty payload leaves
// v untouched.
func DecodePayload(e Event, v any) error {
	p := e.Payload()
	if len(p) == 0 {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("decode %s payload of build %s: %w", e.Type(), e.BuildID(), err)
	}
	return nil
}
