package database

import "encoding/json"

// EventKind says what changed at a listened location
type EventKind int

const (
	// EventValue carries the whole location after a change
	EventValue EventKind = iota
	EventChildAdded
	EventChildChanged
	EventChildRemoved
	// EventError ends the subscription; Err is an *admin.SdkError
	EventError
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventValue:
		return "value"
	case EventChildAdded:
		return "child_added"
	case EventChildChanged:
		return "child_changed"
	case EventChildRemoved:
		return "child_removed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from a Subscription
type Event struct {
	Kind     EventKind
	Key      string
	Snapshot Snapshot
	Err      error
}

// Snapshot is an immutable copy of a database value
type Snapshot struct {
	key   string
	value interface{}
}

// NewSnapshot wraps a decoded JSON value
func NewSnapshot(key string, value interface{}) Snapshot {
	return Snapshot{key: key, value: value}
}

// Key is the last path segment of the snapshot location
func (s Snapshot) Key() string {
	return s.key
}

// Exists reports whether the location held data
func (s Snapshot) Exists() bool {
	return s.value != nil
}

// Value returns the raw decoded value
func (s Snapshot) Value() interface{} {
	return s.value
}

// Unmarshal decodes the snapshot into v
func (s Snapshot) Unmarshal(v interface{}) error {
	data, err := json.Marshal(s.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
