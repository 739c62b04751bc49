package portal

import (
	"context"
	"strconv"

	"healthnexus-portal/internal/store"
)

const (
	KeyNotificationsSeen        = "notificationsSeen"
	KeyLastSeenAppointmentCount = "lastSeenAppointmentCount"
)

// Notifications tracks which appointments the user has already been shown.
type Notifications struct {
	kv store.Store
}

func NewNotifications(kv store.Store) *Notifications {
	return &Notifications{kv: kv}
}

func (n *Notifications) seen(ctx context.Context) map[string]bool {
	var ids []string
	store.GetJSON(ctx, n.kv, KeyNotificationsSeen, &ids)
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// LastSeenCount is the appointment count at the last MarkSeen, 0 when unset
// or unreadable.
func (n *Notifications) LastSeenCount(ctx context.Context) int {
	count, err := strconv.Atoi(store.GetString(ctx, n.kv, KeyLastSeenAppointmentCount))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// Unseen returns the appointments not yet marked as seen.
func (n *Notifications) Unseen(ctx context.Context, appts []Appointment) []Appointment {
	seen := n.seen(ctx)
	var out []Appointment
	for _, a := range appts {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// Badge is the number of appointments added since the last MarkSeen.
func (n *Notifications) Badge(ctx context.Context, appts []Appointment) int {
	return max(0, len(appts)-n.LastSeenCount(ctx))
}

// MarkSeen records appts as seen along with their count.
func (n *Notifications) MarkSeen(ctx context.Context, appts []Appointment) error {
	seen := n.seen(ctx)
	ids := make([]string, 0, len(seen)+len(appts))
	for id := range seen {
		ids = append(ids, id)
	}
	for _, a := range appts {
		if !seen[a.ID] {
			seen[a.ID] = true
			ids = append(ids, a.ID)
		}
	}
	if err := store.SetJSON(ctx, n.kv, KeyNotificationsSeen, ids); err != nil {
		return err
	}
	return n.kv.Set(ctx, KeyLastSeenAppointmentCount, strconv.Itoa(len(appts)))
}
