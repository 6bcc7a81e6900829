package core

import "encoding/json"

type EventKind string

const (
	EventChat   EventKind = "chat"
	EventSignal EventKind = "signal"
)

// Event is one unit of group fan-out. Payload is the exact JSON text
// written to every subscriber's socket: for chat events the serialized
// message, for signal events the client envelope with senderId stamped.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}
