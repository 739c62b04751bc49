package portal

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/status"
)

// Row is an appointment as the views render it.
type Row struct {
	Appointment
	Status status.Status
}

type fetchFunc func(ctx context.Context) ([]Appointment, error)

// AppointmentBoard is the in-memory appointment list behind the admin and
// patient views. Every status decision goes through the normalizer; status
// changes patch the list in place instead of reloading it.
type AppointmentBoard struct {
	mu     sync.RWMutex
	rows   []Row
	closed bool

	fetch fetchFunc
	orch  *Orchestrator
	log   *logrus.Entry
}

// NewAdminBoard lists every appointment.
func NewAdminBoard(c *Client, logger *logrus.Logger) *AppointmentBoard {
	return newBoard(c.AdminAppointments, NewOrchestrator(DefaultPaths(c), logger), logger.WithField("board", "admin"))
}

// NewPatientBoard lists the appointments of one patient.
func NewPatientBoard(c *Client, patientID string, logger *logrus.Logger) *AppointmentBoard {
	fetch := func(ctx context.Context) ([]Appointment, error) {
		return c.PatientAppointments(ctx, patientID)
	}
	return newBoard(fetch, NewOrchestrator(DefaultPaths(c), logger), logger.WithFields(logrus.Fields{
		"board":   "patient",
		"patient": patientID,
	}))
}

func newBoard(fetch fetchFunc, orch *Orchestrator, log *logrus.Entry) *AppointmentBoard {
	return &AppointmentBoard{fetch: fetch, orch: orch, log: log}
}

// Load replaces the list with a fresh fetch. A result that arrives after
// Close is dropped.
func (b *AppointmentBoard) Load(ctx context.Context) error {
	appts, err := b.fetch(ctx)
	if err != nil {
		return err
	}

	rows := make([]Row, 0, len(appts))
	for _, a := range appts {
		rows = append(rows, Row{Appointment: a, Status: a.Canonical()})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.log.Debug("board closed, discarding load")
		return nil
	}
	b.rows = rows
	return nil
}

// Rows returns a copy of the current list.
func (b *AppointmentBoard) Rows() []Row {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Row, len(b.rows))
	copy(out, b.rows)
	return out
}

// Appointments returns the listed appointments with their raw fields.
func (b *AppointmentBoard) Appointments() []Appointment {
	rows := b.Rows()
	out := make([]Appointment, len(rows))
	for i, r := range rows {
		out[i] = r.Appointment
	}
	return out
}

// Pending returns the rows still awaiting confirmation.
func (b *AppointmentBoard) Pending() []Row {
	return b.filter(status.Pending)
}

func (b *AppointmentBoard) filter(s status.Status) []Row {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Row
	for _, r := range b.rows {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}

// Counts tallies the rows per canonical status.
func (b *AppointmentBoard) Counts() map[status.Status]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[status.Status]int)
	for _, r := range b.rows {
		counts[r.Status]++
	}
	return counts
}

// SetStatus applies a status change through the orchestrator and, on
// success, patches the row: its status is replaced, or it is dropped when the
// change was applied by deleting the appointment.
func (b *AppointmentBoard) SetStatus(ctx context.Context, id, newStatus string) Outcome {
	out := b.orch.UpdateStatus(ctx, id, newStatus)
	if !out.Success {
		b.log.WithFields(logrus.Fields{"id": id, "status": newStatus, "error": out.Err}).Warn("status change failed")
		return out
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return out
	}
	for i, r := range b.rows {
		if r.ID != id {
			continue
		}
		if out.Removed {
			b.rows = append(b.rows[:i:i], b.rows[i+1:]...)
		} else {
			b.rows[i].Appointment.Status = newStatus
			b.rows[i].Status = status.Normalize(newStatus)
		}
		break
	}
	return out
}

// Cancel is SetStatus with the cancelled status.
func (b *AppointmentBoard) Cancel(ctx context.Context, id string) Outcome {
	return b.SetStatus(ctx, id, status.Cancelled.Raw())
}

// Close marks the board as gone. In-flight calls run to completion but their
// results are no longer applied.
func (b *AppointmentBoard) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
