package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/status"
)

// ErrStatusUpdateFailed is returned when no path accepted a status change.
var ErrStatusUpdateFailed = errors.New("failed to update appointment status")

// Attempt performs one way of applying a status change.
type Attempt func(ctx context.Context, id, newStatus string) error

// Path is one entry in the fallback sequence. When, if set, decides whether
// the path applies to the requested status. Removes marks paths that delete
// the appointment instead of updating it.
type Path struct {
	Name    string
	When    func(newStatus string) bool
	Removes bool
	Attempt Attempt
}

// Outcome reports how a status change went.
type Outcome struct {
	Success bool
	// AppliedVia is the index of the path that succeeded, or -1.
	AppliedVia int
	Path       string
	Removed    bool
	Err        error
}

// Orchestrator tries its paths in order until one succeeds.
type Orchestrator struct {
	paths []Path
	log   *logrus.Entry
}

func NewOrchestrator(paths []Path, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		paths: paths,
		log:   logger.WithField("component", "status-orchestrator"),
	}
}

// DefaultPaths is the sequence the portal uses against the hospital API: the
// path-style endpoint, the admin body endpoint, the generic body endpoint, and
// for cancellations a delete.
func DefaultPaths(c *Client) []Path {
	return []Path{
		{Name: "path-status", Attempt: c.UpdateStatusPath},
		{Name: "admin-body", Attempt: c.UpdateStatusAdmin},
		{Name: "generic-body", Attempt: c.UpdateStatusGeneric},
		{
			Name:    "delete",
			When:    isCancellation,
			Removes: true,
			Attempt: func(ctx context.Context, id, _ string) error {
				return c.DeleteAppointment(ctx, id)
			},
		},
	}
}

func isCancellation(newStatus string) bool {
	return status.Normalize(newStatus) == status.Cancelled
}

// UpdateStatus runs the paths one after another in the caller's goroutine
// and stops at the first success. Errors of individual attempts are absorbed;
// only the last one is kept, wrapped in ErrStatusUpdateFailed.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id, newStatus string) Outcome {
	var last error
	for i, p := range o.paths {
		if p.When != nil && !p.When(newStatus) {
			continue
		}
		if err := ctx.Err(); err != nil {
			last = err
			break
		}

		err := p.Attempt(ctx, id, newStatus)
		if err == nil {
			o.log.WithFields(logrus.Fields{"id": id, "status": newStatus, "path": p.Name}).Info("Status updated")
			return Outcome{Success: true, AppliedVia: i, Path: p.Name, Removed: p.Removes}
		}
		o.log.WithFields(logrus.Fields{"id": id, "path": p.Name, "error": err}).Debug("Status path failed")
		last = err
	}

	if last == nil {
		return Outcome{AppliedVia: -1, Err: ErrStatusUpdateFailed}
	}
	return Outcome{AppliedVia: -1, Err: fmt.Errorf("%w: %w", ErrStatusUpdateFailed, last)}
}
