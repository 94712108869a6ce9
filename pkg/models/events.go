package models

import "encoding/json"

type EventKind string

const (
	EventDataUpdate   EventKind = "DATA_UPDATE"
	EventConfigUpdate EventKind = "CONFIG_UPDATE"
)

// Envelope is the tagged message pushed to every realtime client. The
// payload always carries the complete new state for whatever changed; there
// are no delta payloads.
type Envelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DataUpdatePayload accompanies EventDataUpdate.
type DataUpdatePayload struct {
	Year int              `json:"year"`
	Data CalendarDocument `json:"data"`
}
