package activity

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"healthnexus-portal/internal/logging"
	"healthnexus-portal/internal/testutil"
)

func newTestFeed() *Feed {
	f := NewFeed(logging.Discard())
	n := 0
	f.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	f.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"appointment": TypeAppointment,
		" Doctor ":    TypeDoctor,
		"FEEDBACK":    TypeFeedback,
		"news":        TypeNews,
		"billing":     TypeOther,
		"":            TypeOther,
	}
	for in, want := range tests {
		if got := ParseType(in); got != want {
			t.Errorf("ParseType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeedCapsAtLimit(t *testing.T) {
	f := newTestFeed()

	for i := 1; i <= 25; i++ {
		raw := fmt.Sprintf(`{"type":"appointment","message":"event %d"}`, i)
		if !f.Push([]byte(raw)) {
			t.Fatalf("message %d was rejected", i)
		}
	}

	entries := f.Entries()
	if len(entries) != FeedLimit {
		t.Fatalf("Expected %d entries, got %d", FeedLimit, len(entries))
	}
	// Newest first: event 25 down to event 6.
	for i, e := range entries {
		want := fmt.Sprintf("event %d", 25-i)
		if e.Message != want {
			t.Errorf("entries[%d] = %q, want %q", i, e.Message, want)
		}
	}
}

func TestFeedIgnoresMalformedPayloads(t *testing.T) {
	f := newTestFeed()

	for _, raw := range []string{
		"ping",
		"keep-alive",
		"",
		`{"type":"news"}`,
		`["not","an","object"]`,
		`{"message": "   "}`,
	} {
		if f.Push([]byte(raw)) {
			t.Errorf("Push(%q) accepted a malformed payload", raw)
		}
	}
	if n := len(f.Entries()); n != 0 {
		t.Errorf("Expected empty feed, got %d entries", n)
	}
}

func TestFeedNormalizesMessages(t *testing.T) {
	f := newTestFeed()

	f.Push([]byte(`{"type":"doctor","message":"Dr. Grey added","ts":"2025-02-28T09:30:00Z"}`))
	f.Push([]byte(`{"type":"billing","message":"Invoice paid"}`))
	f.Push([]byte(`{"type":"news","message":"Clinic reopened","ts":1740735000000}`))

	entries := f.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	news, other, doctor := entries[0], entries[1], entries[2]

	if !news.TS.Equal(time.UnixMilli(1740735000000)) {
		t.Errorf("epoch ts not parsed: %v", news.TS)
	}
	if news.Icon != "newspaper" {
		t.Errorf("Expected newspaper icon, got %q", news.Icon)
	}

	if other.Type != TypeOther || other.Decoration != genericDecoration {
		t.Errorf("unknown type should use the generic decoration, got %+v", other)
	}
	if !other.TS.Equal(f.now()) {
		t.Errorf("missing ts should default to now, got %v", other.TS)
	}

	if !doctor.TS.Equal(time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("RFC 3339 ts not parsed: %v", doctor.TS)
	}
	if doctor.ID == "" || doctor.ID == news.ID {
		t.Errorf("Expected unique generated ids, got %q and %q", doctor.ID, news.ID)
	}
}

func TestFeedSeedThenPush(t *testing.T) {
	f := newTestFeed()

	var changes int
	f.OnChange = func([]Entry) { changes++ }

	snapshot := make([]Event, 0, 22)
	for i := 0; i < 22; i++ {
		snapshot = append(snapshot, Event{ID: fmt.Sprintf("s%d", i), Type: TypeFeedback, Message: "old"})
	}
	f.Seed(snapshot)

	if n := len(f.Entries()); n != FeedLimit {
		t.Fatalf("Seed should cap at %d, got %d", FeedLimit, n)
	}

	f.Push([]byte(`{"type":"appointment","message":"new booking"}`))
	entries := f.Entries()
	if entries[0].Message != "new booking" {
		t.Errorf("Expected pushed entry first, got %q", entries[0].Message)
	}
	if entries[1].ID != "s0" {
		t.Errorf("Expected snapshot to follow, got %q", entries[1].ID)
	}
	if entries[0].Color != "blue" || entries[1].Color != "orange" {
		t.Errorf("unexpected decorations %+v %+v", entries[0].Decoration, entries[1].Decoration)
	}
	if changes != 2 {
		t.Errorf("Expected 2 change notifications, got %d", changes)
	}
}

func TestEntryLabel(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := Entry{Event: Event{TS: now.Add(-3 * time.Minute)}}
	if got := e.Label(now); got != "3 minutes ago" {
		t.Errorf("Label() = %q", got)
	}
}

func TestReadMessages(t *testing.T) {
	stream := "event:ping\ndata:keep-alive\n\n" +
		"event:message\r\ndata:{\"type\":\"news\",\"message\":\"hello\"}\r\n\r\n" +
		": comment\n\n" +
		"data:{\"type\":\"doctor\",\"message\":\"tail\"}\n"

	type got struct{ event, data string }
	var events []got
	err := ReadMessages(strings.NewReader(stream), func(event string, data []byte) {
		events = append(events, got{event, string(data)})
	})
	if err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}

	want := []got{
		{"ping", "keep-alive"},
		{"message", `{"type":"news","message":"hello"}`},
		{"message", `{"type":"doctor","message":"tail"}`},
	}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestReadMessagesSkipsOversizedEvents(t *testing.T) {
	huge := strings.Repeat("x", maxBlockSize+10)
	manyLines := strings.Repeat("data:"+strings.Repeat("y", 1000)+"\n", maxBlockSize/1000+5)
	stream := "data:{\"message\":\"before\"}\n\n" +
		"event:message\ndata:" + huge + "\n\n" +
		manyLines + "\n" +
		"data:{\"message\":\"after\"}\n\n" +
		"data:" + huge

	var got []string
	err := ReadMessages(strings.NewReader(stream), func(_ string, data []byte) {
		got = append(got, string(data))
	})
	if err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}
	want := []string{`{"message":"before"}`, `{"message":"after"}`}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// blockingStream stays open until closed, like a live SSE body.
type blockingStream struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	mu     sync.Mutex
	closed bool
}

func newBlockingStream() *blockingStream {
	r, w := io.Pipe()
	return &blockingStream{r: r, w: w}
}

func (s *blockingStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *blockingStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.w.Close()
	return s.r.Close()
}

func (s *blockingStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestFeedRunTicksAndTearsDown(t *testing.T) {
	f := newTestFeed()
	f.tickEvery = 10 * time.Millisecond

	ticks := make(chan struct{}, 10)
	f.OnTick = func([]Entry) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}
	pushed := make(chan struct{}, 1)
	f.OnChange = func([]Entry) { pushed <- struct{}{} }

	stream := newBlockingStream()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx, stream)
		close(done)
	}()

	go stream.w.Write([]byte("data:{\"type\":\"news\",\"message\":\"live\"}\n\n"))

	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream message never reached the feed")
	}
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("label refresh never ticked")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !stream.isClosed() {
		t.Error("stream was not closed on teardown")
	}
	if f.Entries()[0].Message != "live" {
		t.Errorf("unexpected feed %+v", f.Entries())
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(2)
	events, cancel := hub.Subscribe()

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Message: fmt.Sprintf("e%d", i)})
	}
	if got := (<-events).Message; got != "e0" {
		t.Errorf("Expected e0, got %s", got)
	}
	if got := (<-events).Message; got != "e1" {
		t.Errorf("Expected e1, got %s", got)
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("Expected channel closed after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Errorf("Expected no subscribers, got %d", hub.Subscribers())
	}
	hub.Publish(Event{Message: "after"})
}

func TestRecorderRecordAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	hub := NewHub(8)
	rec := NewRecorder(db, hub, logging.Discard())
	live, cancel := hub.Subscribe()
	defer cancel()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		rec.Record(ctx, TypeAppointment, "appointment %d booked", i)
		time.Sleep(5 * time.Millisecond)
	}

	got := <-live
	if got.Message != "appointment 1 booked" || got.Type != TypeAppointment || got.ID == "" {
		t.Errorf("unexpected live event %+v", got)
	}

	recent, err := rec.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(recent))
	}
	if recent[0].Message != "appointment 3 booked" || recent[1].Message != "appointment 2 booked" {
		t.Errorf("Expected newest first, got %q then %q", recent[0].Message, recent[1].Message)
	}
}
