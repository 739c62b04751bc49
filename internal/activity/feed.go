package activity

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// FeedLimit is the number of entries the feed keeps.
	FeedLimit = 20
	// TickInterval is how often time-ago labels are refreshed.
	TickInterval = 60 * time.Second
)

// Decoration is the icon and color an entry is displayed with.
type Decoration struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

var decorations = map[Type]Decoration{
	TypeAppointment: {Icon: "calendar-check", Color: "blue"},
	TypeDoctor:      {Icon: "user-md", Color: "green"},
	TypeFeedback:    {Icon: "comment", Color: "orange"},
	TypeNews:        {Icon: "newspaper", Color: "purple"},
}

var genericDecoration = Decoration{Icon: "bell", Color: "gray"}

// Decorate looks up the display decoration for t.
func Decorate(t Type) Decoration {
	if d, ok := decorations[t]; ok {
		return d
	}
	return genericDecoration
}

// Entry is an event as the feed shows it.
type Entry struct {
	Event
	Decoration
}

// Label renders the entry's age relative to now, e.g. "3 minutes ago".
func (e Entry) Label(now time.Time) string {
	return humanize.RelTime(e.TS, now, "ago", "from now")
}

// Feed merges a REST snapshot with a live stream into one list, newest
// first, never longer than FeedLimit.
type Feed struct {
	mu      sync.Mutex
	entries []Entry

	// OnChange receives a copy of the entries after every seed or accepted
	// message. OnTick receives a copy on every label refresh.
	OnChange func([]Entry)
	OnTick   func([]Entry)

	tickEvery time.Duration
	now       func() time.Time
	newID     func() string
	log       *logrus.Entry
}

func NewFeed(logger *logrus.Logger) *Feed {
	return &Feed{
		tickEvery: TickInterval,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.WithField("component", "activity-feed"),
	}
}

// Seed replaces the feed with a snapshot, already ordered newest first.
func (f *Feed) Seed(events []Event) {
	entries := make([]Entry, 0, len(events))
	for _, e := range events {
		if e.Type == "" {
			e.Type = TypeOther
		}
		entries = append(entries, Entry{Event: e, Decoration: Decorate(e.Type)})
	}
	if len(entries) > FeedLimit {
		entries = entries[:FeedLimit]
	}

	f.mu.Lock()
	f.entries = entries
	out := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(f.OnChange, out)
}

// Push parses one stream payload and prepends it. Payloads that are not a JSON
// object with a message, heartbeats among them, are ignored and Push reports
// false.
func (f *Feed) Push(raw []byte) bool {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil || strings.TrimSpace(msg.Message) == "" {
		f.log.WithField("payload", string(raw)).Debug("ignoring stream payload")
		return false
	}

	ts, ok := parseTS(msg.TS)
	if !ok {
		ts = f.now()
	}
	t := ParseType(msg.Type)
	entry := Entry{
		Event:      Event{ID: f.newID(), Type: t, Message: msg.Message, TS: ts},
		Decoration: Decorate(t),
	}

	f.mu.Lock()
	f.entries = append([]Entry{entry}, f.entries...)
	if len(f.entries) > FeedLimit {
		f.entries = f.entries[:FeedLimit]
	}
	out := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(f.OnChange, out)
	return true
}

// Entries returns a copy of the current feed.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Run consumes stream until it ends or ctx is done, refreshing labels every
// tick meanwhile. The stream is closed and the ticker stopped on return.
// Stream failures are logged and end the run without an error; there is no
// reconnect.
func (f *Feed) Run(ctx context.Context, stream io.ReadCloser) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		stream.Close()
	}()
	go func() {
		defer wg.Done()
		f.tick(ctx)
	}()

	err := ReadMessages(stream, func(_ string, data []byte) {
		f.Push(data)
	})
	if err != nil && ctx.Err() == nil {
		f.log.WithError(err).Warn("activity stream ended")
	}
	cancel()
	wg.Wait()
}

func (f *Feed) tick(ctx context.Context) {
	ticker := time.NewTicker(f.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.emit(f.OnTick, f.Entries())
		}
	}
}

func (f *Feed) emit(fn func([]Entry), entries []Entry) {
	if fn != nil {
		fn(entries)
	}
}

func (f *Feed) snapshotLocked() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}
