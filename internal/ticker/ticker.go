// Package ticker keeps the homepage ticker items in the persisted portal
// store and announces every change to same-process and cross-process readers.
//
// The stored array under StorageKey is the only durable record. Readers hold
// snapshots and refresh them when Listen reports a change.
package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/store"
)

const (
	StorageKey    = "healthnexus_ticker_news"
	MaxTextLength = 280
	CreatedBy     = "admin"

	// ChangedEvent is dispatched on every persist, before the storage event.
	ChangedEvent store.EventType = "tickerNewsUpdated"

	ReasonDuplicate = "duplicate"
)

type ItemType string

const (
	TypeNotice ItemType = "notice"
	TypeNews   ItemType = "news"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Item is one line of the ticker. ID is the creation time in milliseconds.
type Item struct {
	ID        int64    `json:"id"`
	Type      ItemType `json:"type" validate:"required,oneof=notice news"`
	Text      string   `json:"text" validate:"required,max=280"`
	Priority  Priority `json:"priority" validate:"required,oneof=low medium high"`
	CreatedBy string   `json:"createdBy"`
}

// Article is the subset of a news article needed to derive a ticker item.
type Article struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Published bool
}

// Patch holds the fields an admin may edit. Nil fields are left unchanged.
type Patch struct {
	Type     *ItemType
	Text     *string
	Priority *Priority
}

type AddResult struct {
	OK     bool
	Reason string
	Item   Item
}

var ErrNotFound = errors.New("ticker item not found")

// Categories whose articles become notices rather than news.
var noticeCategories = map[string]bool{
	"notice":       true,
	"announcement": true,
	"alert":        true,
	"emergency":    true,
}

type Store struct {
	kv       store.Store
	events   store.Dispatcher
	validate *validator.Validate
	log      *logrus.Entry
	now      func() time.Time

	// serialises read-modify-write cycles issued from this process
	mu sync.Mutex
}

func New(kv store.Store, events store.Dispatcher, logger *logrus.Logger) *Store {
	return &Store{
		kv:       kv,
		events:   events,
		validate: validator.New(),
		log:      logger.WithField("component", "ticker"),
		now:      time.Now,
	}
}

// Load returns the stored items, or an empty list when the key is missing or
// does not hold a valid array.
func (s *Store) Load(ctx context.Context) []Item {
	var items []Item
	if !store.GetJSON(ctx, s.kv, StorageKey, &items) {
		return []Item{}
	}
	if items == nil {
		items = []Item{}
	}
	return items
}

// AddFromArticle appends the ticker item derived from a news article unless
// an item with the same text already exists.
func (s *Store) AddFromArticle(ctx context.Context, a Article) (AddResult, error) {
	item := FromArticle(a)
	var dup *Item
	err := s.mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].Text == item.Text {
				dup = &items[i]
				return nil, errUnchanged
			}
		}
		item.ID = s.nextID(items)
		if err := s.validate.Struct(item); err != nil {
			return nil, fmt.Errorf("invalid ticker item: %w", err)
		}
		return append(items, item), nil
	})
	if dup != nil {
		s.log.WithField("article", a.ID).Info("article already on ticker")
		return AddResult{Reason: ReasonDuplicate, Item: *dup}, nil
	}
	if err != nil {
		return AddResult{}, err
	}
	return AddResult{OK: true, Item: item}, nil
}

// Add appends an admin-authored item.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	item.CreatedBy = CreatedBy
	item.Text = strings.TrimSpace(item.Text)
	err := s.mutate(ctx, func(items []Item) ([]Item, error) {
		item.ID = s.nextID(items)
		if err := s.validate.Struct(item); err != nil {
			return nil, fmt.Errorf("invalid ticker item: %w", err)
		}
		return append(items, item), nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *Store) Update(ctx context.Context, id int64, patch Patch) (Item, error) {
	var updated Item
	err := s.mutate(ctx, func(items []Item) ([]Item, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		updated = items[idx]
		if patch.Type != nil {
			updated.Type = *patch.Type
		}
		if patch.Text != nil {
			updated.Text = strings.TrimSpace(*patch.Text)
		}
		if patch.Priority != nil {
			updated.Priority = *patch.Priority
		}
		if err := s.validate.Struct(updated); err != nil {
			return nil, fmt.Errorf("invalid ticker item: %w", err)
		}
		items[idx] = updated
		return items, nil
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(items[:idx], items[idx+1:]...), nil
	})
}

// errUnchanged aborts a mutation without writing or reporting an error.
var errUnchanged = errors.New("ticker unchanged")

// mutate runs a read-modify-write cycle under the lock and broadcasts once
// the lock is released, so listeners may write to the ticker themselves.
func (s *Store) mutate(ctx context.Context, fn func([]Item) ([]Item, error)) error {
	s.mu.Lock()
	items, err := fn(s.Load(ctx))
	var value string
	if err == nil {
		value, err = s.persist(ctx, items)
	}
	s.mu.Unlock()

	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	s.broadcast(value, len(items))
	return nil
}

// PersistAndBroadcast writes items under StorageKey, then dispatches
// ChangedEvent followed by a storage event. Both are dispatched on every
// call, including for an empty list. Listeners in this process do not
// receive storage events from the store itself, hence the explicit one.
func (s *Store) PersistAndBroadcast(ctx context.Context, items []Item) error {
	s.mu.Lock()
	value, err := s.persist(ctx, items)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast(value, len(items))
	return nil
}

func (s *Store) persist(ctx context.Context, items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode ticker items: %w", err)
	}
	value := string(b)
	if err := s.kv.Set(ctx, StorageKey, value); err != nil {
		return "", fmt.Errorf("persist ticker items: %w", err)
	}
	return value, nil
}

func (s *Store) broadcast(value string, count int) {
	s.events.Dispatch(store.Event{Type: ChangedEvent})
	s.events.Dispatch(store.StorageEvent(s.kv, StorageKey, &value))
	s.log.WithField("count", count).Debug("ticker items persisted")
}

// Listen calls fn with freshly loaded items whenever the ticker changes,
// whether the write happened in this process (ChangedEvent) or elsewhere
// (storage event for StorageKey). It returns a function that stops listening.
func (s *Store) Listen(ctx context.Context, bus *store.Bus, fn func([]Item)) (off func()) {
	offCustom := bus.On(ChangedEvent, func(store.Event) {
		fn(s.Load(ctx))
	})
	offStorage := bus.On(store.EventStorage, func(e store.Event) {
		if e.Key == StorageKey {
			fn(s.Load(ctx))
		}
	})
	return func() {
		offCustom()
		offStorage()
	}
}

// FromArticle derives a ticker item from a news article. The text is
// "title: content" cut to MaxTextLength characters.
func FromArticle(a Article) Item {
	item := Item{
		Type:      TypeNews,
		Text:      truncate(a.Title+": "+a.Content, MaxTextLength),
		Priority:  PriorityLow,
		CreatedBy: CreatedBy,
	}
	if noticeCategories[strings.ToLower(strings.TrimSpace(a.Category))] {
		item.Type = TypeNotice
	}
	if a.Published {
		item.Priority = PriorityMedium
	}
	return item
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func indexOf(items []Item, id int64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// nextID is the current time in milliseconds, bumped past the newest stored
// id so two items created within one millisecond stay distinct.
func (s *Store) nextID(items []Item) int64 {
	id := s.now().UnixMilli()
	for _, it := range items {
		if it.ID >= id {
			id = it.ID + 1
		}
	}
	return id
}
