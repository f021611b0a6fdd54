package feed

import "time"

// Event types pushed to connected clients after each collection mutation.
const (
	EventAdd    = "record.add"
	EventUpdate = "record.update"
	EventDelete = "record.delete"
	EventRange  = "record.range"
)

// RecordEvent describes one collection mutation. For range registrations
// Count carries the number of volumes actually added and Volume the upper
// bound that was requested.
type RecordEvent struct {
	Type   string    `json:"type"`
	ID     string    `json:"id,omitempty"`
	Title  string    `json:"title,omitempty"`
	Volume int       `json:"volume,omitempty"`
	Count  int       `json:"count,omitempty"`
	At     time.Time `json:"at"`
}
