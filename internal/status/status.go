package status

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Status is the canonical appointment status used for all portal decisions.
// Values outside the five constants below are lower-cased backend strings
// that the normalizer did not recognise.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Cancelled Status = "cancelled"
	Completed Status = "completed"
	Unknown   Status = "unknown"
)

var aliases = map[string]Status{
	"scheduled": Pending,
	"pending":   Pending,
	"confirmed": Confirmed,
	"cancelled": Cancelled,
	"canceled":  Cancelled,
	"completed": Completed,
	"complete":  Completed,
	"unknown":   Unknown,
}

// Normalize maps a raw backend status onto the canonical set. It never fails:
// an empty value is Unknown and an unrecognised value is returned lower-cased.
func Normalize(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Unknown
	}
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return Status(s)
}

// IsCanonical reports whether s is one of the five closed values.
func (s Status) IsCanonical() bool {
	switch s {
	case Pending, Confirmed, Cancelled, Completed, Unknown:
		return true
	}
	return false
}

// Raw returns the spelling the backend expects when this status is written.
func (s Status) Raw() string {
	switch s {
	case Pending:
		return "Scheduled"
	case Confirmed:
		return "Confirmed"
	case Cancelled:
		return "Cancelled"
	case Completed:
		return "Completed"
	}
	return string(s)
}

// Label is the human readable form shown in listings.
func (s Status) Label() string {
	if s == "" {
		return "Unknown"
	}
	r, size := utf8.DecodeRuneInString(string(s))
	return string(unicode.ToUpper(r)) + string(s[size:])
}
