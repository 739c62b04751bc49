package activity

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"healthnexus-portal/internal/logging"
	"healthnexus-portal/internal/testutil"
)

// fakeAcknowledger records how each delivery was settled.
type fakeAcknowledger struct {
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeue = f.requeue || requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func newTestAMQPSource(t *testing.T) (*AMQPSource, *Recorder) {
	t.Helper()
	rec := NewRecorder(testutil.SetupTestDB(t), NewHub(8), logging.Discard())
	return &AMQPSource{recorder: rec, log: logging.Discard().WithField("component", "activity-amqp")}, rec
}

func TestAMQPHandleRecordsAndAcks(t *testing.T) {
	ctx := context.Background()
	src, rec := newTestAMQPSource(t)
	ack := &fakeAcknowledger{}

	src.handle(ctx, amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		Body:         []byte(`{"type":"doctor","message":"Dr. Grey joined","ts":1700000000000}`),
	})

	if len(ack.acked) != 1 || ack.acked[0] != 7 || len(ack.nacked) != 0 {
		t.Fatalf("Expected delivery 7 acked, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
	events, err := rec.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected one recorded event, got %d", len(events))
	}
	e := events[0]
	if e.Type != TypeDoctor || e.Message != "Dr. Grey joined" {
		t.Errorf("Unexpected event %+v", e)
	}
	if !e.TS.Equal(time.UnixMilli(1_700_000_000_000)) {
		t.Errorf("Expected the message time to be kept, got %v", e.TS)
	}
}

func TestAMQPHandleWithoutTimestampUsesNow(t *testing.T) {
	ctx := context.Background()
	src, rec := newTestAMQPSource(t)
	before := time.Now().Add(-time.Second)

	src.handle(ctx, amqp.Delivery{
		Acknowledger: &fakeAcknowledger{},
		DeliveryTag:  1,
		Body:         []byte(`{"type":"news","message":"Flu clinic","ts":"yesterday"}`),
	})

	events, err := rec.Recent(ctx, 10)
	if err != nil || len(events) != 1 {
		t.Fatalf("Expected one event, got %v (err %v)", events, err)
	}
	if events[0].TS.Before(before) {
		t.Errorf("Expected an unreadable ts to fall back to now, got %v", events[0].TS)
	}
}

func TestAMQPHandleNacksMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"missing message", `{"type":"news"}`},
		{"empty message", `{"type":"news","message":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src, rec := newTestAMQPSource(t)
			ack := &fakeAcknowledger{}

			src.handle(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(tt.body)})

			if len(ack.nacked) != 1 || len(ack.acked) != 0 {
				t.Errorf("Expected one nack, got acked=%v nacked=%v", ack.acked, ack.nacked)
			}
			if ack.requeue {
				t.Error("Malformed messages should not be requeued")
			}
			if events, _ := rec.Recent(ctx, 10); len(events) != 0 {
				t.Errorf("Expected nothing recorded, got %+v", events)
			}
		})
	}
}
