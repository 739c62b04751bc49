package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore persists values as one JSON object in a file. Every operation
// re-reads the file so separate processes sharing the path see each other's
// writes; a corrupt file reads as empty. Watch turns those writes into
// storage events.
type FileStore struct {
	mu   sync.Mutex
	path string

	// known is the content Watch last reported, kept current by this
	// store's own writes. nil when nothing watches.
	known map[string]string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	if err := f.write(values); err != nil {
		return err
	}
	if f.known != nil {
		f.known[key] = value
	}
	return nil
}

func (f *FileStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if err := f.write(values); err != nil {
		return err
	}
	delete(f.known, key)
	return nil
}

func (f *FileStore) Area() string { return "file" }

// Watch dispatches a storage event for every key another writer of the file
// changes, until ctx is done. Writes made through f are not reported.
func (f *FileStore) Watch(ctx context.Context, d Dispatcher) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch store: %w", err)
	}
	defer w.Close()

	// write replaces the file by rename, so the directory is watched.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch store: %w", err)
	}

	f.mu.Lock()
	values, err := f.read()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.known = values
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.known = nil
		f.mu.Unlock()
	}()

	name := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Has(fsnotify.Chmod) {
				continue
			}
			f.dispatchChanges(d)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				return fmt.Errorf("watch store: %w", err)
			}
			f.dispatchChanges(d)
		}
	}
}

// dispatchChanges compares the file with the known content and dispatches one
// event per changed key, in key order.
func (f *FileStore) dispatchChanges(d Dispatcher) {
	f.mu.Lock()
	current, err := f.read()
	if err != nil {
		f.mu.Unlock()
		return
	}
	var events []Event
	for _, key := range sortedKeys(current, f.known) {
		v, inCurrent := current[key]
		old, inKnown := f.known[key]
		switch {
		case inCurrent && (!inKnown || old != v):
			value := v
			events = append(events, Event{Type: EventStorage, Key: key, NewValue: &value, StorageArea: f.Area()})
		case !inCurrent && inKnown:
			events = append(events, Event{Type: EventStorage, Key: key, StorageArea: f.Area()})
		}
	}
	f.known = current
	f.mu.Unlock()

	for _, e := range events {
		d.Dispatch(e)
	}
}

func sortedKeys(maps ...map[string]string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(b, &values); err != nil {
		return make(map[string]string), nil
	}
	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".store-*")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
