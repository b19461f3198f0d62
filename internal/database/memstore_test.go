package database

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testServerTime int64 = 1704638400000

// memStore is an in-memory Store with optimistic transactions: an attempt
// commits only if no write happened since it read the node
type memStore struct {
	mu      sync.Mutex
	tree    interface{}
	version int

	// beforeCommit, when set, runs once between a transaction's read and commit
	beforeCommit func()
	attempts     atomic.Int32
	updates      atomic.Int32
}

var _ Store = (*memStore)(nil)

func newMemStore(t *testing.T, initial string) *memStore {
	t.Helper()
	m := &memStore{}
	if initial != "" {
		tree, err := decodeJSON([]byte(initial))
		require.NoError(t, err)
		m.tree = prune(tree)
	}
	return m
}

func (m *memStore) value(path string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return childAt(m.tree, splitPath(path))
}

func (m *memStore) snapshot(path string) Snapshot {
	return NewSnapshot(lastSegment(path), m.value(path))
}

func (m *memStore) Get(_ context.Context, path string, v interface{}) error {
	return m.snapshot(path).Unmarshal(v)
}

func (m *memStore) Set(_ context.Context, path string, v interface{}) error {
	value, err := normalizeValue(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree = setAt(m.tree, splitPath(path), value)
	m.version++
	return nil
}

func (m *memStore) Update(_ context.Context, path string, values map[string]interface{}) error {
	if len(values) == 0 {
		return errors.New("empty update")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range values {
		value, err := normalizeValue(v)
		if err != nil {
			return err
		}
		m.tree = setAt(m.tree, splitPath(joinPath(path, key)), value)
	}
	m.version++
	m.updates.Add(1)
	return nil
}

func (m *memStore) Transaction(_ context.Context, path string, fn UpdateFunc) error {
	for {
		m.mu.Lock()
		current := childAt(m.tree, splitPath(path))
		version := m.version
		hook := m.beforeCommit
		m.beforeCommit = nil
		m.mu.Unlock()

		m.attempts.Add(1)
		next, err := fn(NewSnapshot(lastSegment(path), current))
		if err != nil {
			return err
		}
		if hook != nil {
			hook()
		}

		value, err := normalizeValue(next)
		if err != nil {
			return err
		}

		m.mu.Lock()
		if m.version != version {
			m.mu.Unlock()
			continue
		}
		m.tree = setAt(m.tree, splitPath(path), value)
		m.version++
		m.mu.Unlock()
		return nil
	}
}

func (m *memStore) TopByChild(_ context.Context, path, child string, limit int) ([]Node, error) {
	kids := children(m.value(path))
	keys := make([]string, 0, len(kids))
	for key := range kids {
		keys = append(keys, key)
	}

	order := func(key string) float64 {
		n, _ := childAt(kids[key], []string{child}).(json.Number)
		f, _ := n.Float64()
		return f
	}
	sort.Slice(keys, func(i, j int) bool {
		if oi, oj := order(keys[i]), order(keys[j]); oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	nodes := make([]Node, 0, len(keys))
	for _, key := range keys {
		nodes = append(nodes, NewSnapshot(key, kids[key]))
	}
	return nodes, nil
}

// normalizeValue converts v to its JSON form and resolves server timestamps
func normalizeValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return resolveServerValues(value), nil
}

func resolveServerValues(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if len(m) == 1 && m[".sv"] == "timestamp" {
		return json.Number(strconv.FormatInt(testServerTime, 10))
	}
	for key, child := range m {
		m[key] = resolveServerValues(child)
	}
	return m
}

// fakeSubscriber hands out subscriptions fed by the test
type fakeSubscriber struct {
	mu    sync.Mutex
	feeds map[string][]chan Event
	fail  map[string]error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		feeds: make(map[string][]chan Event),
		fail:  make(map[string]error),
	}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	path = joinPath(path)

	f.mu.Lock()
	if err := f.fail[path]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	feed := make(chan Event, 16)
	f.feeds[path] = append(f.feeds[path], feed)
	f.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Path:   path,
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.events)
		for {
			select {
			case <-subCtx.Done():
				return
			case ev := <-feed:
				select {
				case sub.events <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

func (f *fakeSubscriber) listeners(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds[path])
}

// push delivers ev to every listener attached to path
func (f *fakeSubscriber) push(path string, ev Event) {
	f.mu.Lock()
	feeds := append([]chan Event(nil), f.feeds[path]...)
	f.mu.Unlock()
	for _, feed := range feeds {
		feed <- ev
	}
}
