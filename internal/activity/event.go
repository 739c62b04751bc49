// Package activity carries the admin activity log: the server side records
// events and fans them out to stream subscribers, the client side merges a
// snapshot with the live stream into a short recency-ordered feed.
package activity

import (
	"encoding/json"
	"strings"
	"time"
)

type Type string

const (
	TypeAppointment Type = "appointment"
	TypeDoctor      Type = "doctor"
	TypeFeedback    Type = "feedback"
	TypeNews        Type = "news"
	TypeOther       Type = "other"
)

// ParseType maps free text onto a known type, defaulting to TypeOther.
func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeAppointment, TypeDoctor, TypeFeedback, TypeNews:
		return t
	}
	return TypeOther
}

// Event is one entry of the activity log.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Message string    `json:"message"`
	TS      time.Time `json:"ts"`
}

// message is the shape pushed on the stream and by other services. ts may be
// an RFC 3339 string, epoch milliseconds, or missing.
type message struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	TS      json.RawMessage `json:"ts"`
}

// parseTS reads the ts field leniently. ok is false when it is absent or
// unreadable.
func parseTS(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
