package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/portal"
	"healthnexus-portal/internal/session"
	"healthnexus-portal/internal/status"
	"healthnexus-portal/internal/ticker"
)

var (
	errUsage       = errors.New("usage")
	errNotSignedIn = errors.New("not signed in, run portal login first")
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":              cmdLogin,
	"logout":             cmdLogout,
	"whoami":             cmdWhoami,
	"appointments":       cmdAppointments,
	"pending":            cmdPending,
	"status":             cmdStatus,
	"cancel":             cmdCancel,
	"notifications":      cmdNotifications,
	"feed":               cmdFeed,
	"ticker":             cmdTicker,
	"impersonate":        cmdImpersonate,
	"stop-impersonating": cmdStopImpersonating,
}

// Run dispatches args[0] to its command.
func (a *app) Run(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	return cmd(ctx, a, args[1:])
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// current returns the active entity after the impersonation self-heal.
func (a *app) current(ctx context.Context) (session.Entity, error) {
	if _, err := a.session.Reconcile(ctx); err != nil {
		return session.Entity{}, err
	}
	e, ok := a.session.Current(ctx)
	if !ok {
		return session.Entity{}, errNotSignedIn
	}
	return e, nil
}

func (a *app) requireAdmin(ctx context.Context) (session.Entity, error) {
	e, err := a.current(ctx)
	if err != nil {
		return e, err
	}
	if e.Role != session.RoleAdmin {
		return e, errors.New("this command needs an admin session")
	}
	return e, nil
}

// board picks the admin or patient view for the active entity.
func (a *app) board(ctx context.Context) (*portal.AppointmentBoard, error) {
	e, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	var b *portal.AppointmentBoard
	switch e.Role {
	case session.RoleAdmin:
		b = portal.NewAdminBoard(a.client, a.log)
	case session.RolePatient:
		b = portal.NewPatientBoard(a.client, e.ID, a.log)
	default:
		return nil, fmt.Errorf("no appointment view for role %q", e.Role)
	}
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	role := session.Role(strings.ToLower(args[0]))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", args[0])
	}
	res, err := a.client.Login(ctx, role, args[1], args[2])
	if err != nil {
		return err
	}
	if err := a.session.Login(ctx, res.User.Entity(), res.Token); err != nil {
		return err
	}
	a.printf("Signed in as %s %s (%s)\n", res.User.FirstName, res.User.LastName, res.User.Role)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.printf("Signed out\n")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	impersonating, err := a.session.Reconcile(ctx)
	if err != nil {
		return err
	}
	e, ok := a.session.Current(ctx)
	if !ok {
		return errNotSignedIn
	}
	a.printf("%s %s <%s> %s\n", e.FirstName, e.LastName, e.Email, e.Role)
	if impersonating {
		a.printf("Impersonated by %s\n", a.session.Impersonation(ctx).By)
	}
	return nil
}

func cmdAppointments(ctx context.Context, a *app, _ []string) error {
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	a.printRows(b.Rows())
	return nil
}

func cmdPending(ctx context.Context, a *app, _ []string) error {
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	a.printRows(b.Pending())
	return nil
}

func (a *app) printRows(rows []portal.Row) {
	if len(rows) == 0 {
		a.printf("No appointments\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tSLOT\tDOCTOR\tPATIENT\tSTATUS\tBOOKED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.When(), r.DoctorName, r.PatientName, statusLabel(r.Status), humanize.Time(r.CreatedAt))
	}
	w.Flush()
}

// statusLabel marks statuses the backend sent that the portal does not know,
// since they never count as pending.
func statusLabel(s status.Status) string {
	if s.IsCanonical() {
		return s.Label()
	}
	return s.Label() + " (unrecognised)"
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	return a.setStatus(ctx, args[0], args[1])
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return a.setStatus(ctx, args[0], "Cancelled")
}

func (a *app) setStatus(ctx context.Context, id, newStatus string) error {
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	out := b.SetStatus(ctx, id, newStatus)
	if !out.Success {
		return out.Err
	}
	if out.Removed {
		a.printf("Appointment %s removed\n", id)
	} else {
		a.printf("Appointment %s is now %s\n", id, strings.ToLower(newStatus))
	}
	return nil
}

func cmdNotifications(ctx context.Context, a *app, _ []string) error {
	b, err := a.board(ctx)
	if err != nil {
		return err
	}
	appts := b.Appointments()
	a.printf("%d new\n", a.notes.Badge(ctx, appts))
	for _, appt := range a.notes.Unseen(ctx, appts) {
		a.printf("  %s %s %s with %s\n", appt.Date, appt.When(), appt.Canonical().Label(), appt.DoctorName)
	}
	return a.notes.MarkSeen(ctx, appts)
}

func cmdFeed(ctx context.Context, a *app, _ []string) error {
	if _, err := a.requireAdmin(ctx); err != nil {
		return err
	}

	recent, err := a.client.RecentActivity(ctx)
	if err != nil {
		return err
	}
	feed := activity.NewFeed(a.log)
	feed.Seed(recent)
	entries := feed.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		a.printEntry(entries[i])
	}

	stream, err := a.client.OpenActivityStream(ctx)
	if err != nil {
		return err
	}
	feed.OnChange = func(entries []activity.Entry) {
		if len(entries) > 0 {
			a.printEntry(entries[0])
		}
	}
	feed.Run(ctx, stream)
	return nil
}

func (a *app) printEntry(e activity.Entry) {
	a.printf("[%s] %s (%s)\n", e.Decoration.Icon, e.Message, e.Label(time.Now()))
}

func cmdTicker(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		a.printItems(a.tickers.Load(ctx))
		return nil
	case "add":
		if len(args) < 4 {
			return errUsage
		}
		if _, err := a.requireAdmin(ctx); err != nil {
			return err
		}
		item, err := a.tickers.Add(ctx, ticker.Item{
			Type:     ticker.ItemType(strings.ToLower(args[1])),
			Priority: ticker.Priority(strings.ToLower(args[2])),
			Text:     strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		a.printf("Added ticker item %d\n", item.ID)
		return nil
	case "rm":
		if len(args) != 2 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ticker id %q", args[1])
		}
		if _, err := a.requireAdmin(ctx); err != nil {
			return err
		}
		return a.tickers.Remove(ctx, id)
	case "from-news":
		if len(args) != 2 {
			return errUsage
		}
		if _, err := a.requireAdmin(ctx); err != nil {
			return err
		}
		article, err := a.client.Article(ctx, args[1])
		if err != nil {
			return err
		}
		res, err := a.tickers.AddFromArticle(ctx, article.Article())
		if err != nil {
			return err
		}
		if !res.OK {
			a.printf("Not added: %s\n", res.Reason)
			return nil
		}
		a.printf("Added ticker item %d: %s\n", res.Item.ID, res.Item.Text)
		return nil
	case "watch":
		return a.watchTicker(ctx)
	}
	return errUsage
}

func (a *app) printItems(items []ticker.Item) {
	if len(items) == 0 {
		a.printf("Ticker is empty\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tTEXT")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ID, item.Type, item.Priority, item.Text)
	}
	w.Flush()
}

// watchTicker reprints the ticker on every change until interrupted,
// including changes other processes make to the shared store.
func (a *app) watchTicker(ctx context.Context) error {
	a.printItems(a.tickers.Load(ctx))
	off := a.tickers.Listen(ctx, a.bus, func(items []ticker.Item) {
		a.printf("--- ticker updated ---\n")
		a.printItems(items)
	})
	defer off()

	return a.watcher.Watch(ctx, a.bus)
}

func cmdImpersonate(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if _, err := a.requireAdmin(ctx); err != nil {
		return err
	}
	role := session.Role(strings.ToLower(args[0]))
	res, err := a.client.Impersonate(ctx, role, args[1])
	if err != nil {
		return err
	}
	target := res.User.Entity()
	target.Token = res.Token
	if err := a.session.StartImpersonation(ctx, target); err != nil {
		return err
	}
	a.printf("Now acting as %s %s (%s)\n", target.FirstName, target.LastName, target.Role)
	return nil
}

func cmdStopImpersonating(ctx context.Context, a *app, _ []string) error {
	if err := a.session.StopImpersonation(ctx); err != nil {
		return err
	}
	a.printf("Back to the admin session\n")
	return nil
}
