package database

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"fbadmin/internal/admin"
	"fbadmin/internal/restclient"
)

const maxEventSize = 16 << 20

// Subscriber opens listeners on database locations
type Subscriber interface {
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Streamer opens listeners over the realtime database REST streaming protocol
type Streamer struct {
	rest    *restclient.Client
	buffer  int
	logger  admin.Logger
	metrics admin.Metrics
	active  atomic.Int64
}

// NewStreamer creates a streamer. rest.BaseURL is the database URL and its
// token source must carry the firebase.database and userinfo.email scopes.
func NewStreamer(rest *restclient.Client, buffer int, logger admin.Logger, metrics admin.Metrics) *Streamer {
	if buffer < 0 {
		buffer = 0
	}
	return &Streamer{
		rest:    rest,
		buffer:  buffer,
		logger:  logger.With("service", admin.ServiceTypeDatabase.String()),
		metrics: metrics,
	}
}

// Subscription is a live listener on one location. Events are delivered in
// stream order on Events until Close is called or the stream fails, in which
// case a final EventError is sent. The channel is closed afterwards.
type Subscription struct {
	ID   string
	Path string

	events    chan Event
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns the event channel
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the listener and waits for its reader to exit
func (s *Subscription) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe starts listening at path. The connection is established before it
// returns; failures to connect are returned directly.
func (s *Streamer) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	body, err := s.rest.Stream(subCtx, restclient.Request{
		Operation: "listen",
		Path:      "/" + joinPath(path) + ".json",
		Header:    http.Header{"Accept": {"text/event-stream"}},
	})
	if err != nil {
		cancel()
		return nil, &admin.SdkError{Service: admin.ServiceTypeDatabase, Code: listenErrorCode(err), Err: err}
	}

	sub := &Subscription{
		ID:     uuid.NewString(),
		Path:   joinPath(path),
		events: make(chan Event, s.buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.metrics.SetActiveSubscriptions(int(s.active.Add(1)))
	s.logger.Debug("listener attached", "path", sub.Path, "subscription_id", sub.ID)

	go s.run(subCtx, sub, body)
	return sub, nil
}

func listenErrorCode(err error) string {
	switch admin.HTTPStatus(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return admin.CodeListenerCancelled
	default:
		return admin.CodeUnknown
	}
}

func (s *Streamer) run(ctx context.Context, sub *Subscription, body io.ReadCloser) {
	defer func() {
		_ = body.Close()
		close(sub.events)
		s.metrics.SetActiveSubscriptions(int(s.active.Add(-1)))
		s.logger.Debug("listener detached", "path", sub.Path, "subscription_id", sub.ID)
		close(sub.done)
	}()

	emit := func(ev Event) bool {
		select {
		case sub.events <- ev:
			s.metrics.IncListenerEvents(ev.Kind.String())
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(code string, err error) {
		emit(Event{Kind: EventError, Err: &admin.SdkError{Service: admin.ServiceTypeDatabase, Code: code, Err: err}})
	}

	reader := newSSEReader(body)
	view := &locationView{key: lastSegment(sub.Path)}
	for {
		msg, err := reader.next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("server closed the stream")
			}
			fail(admin.CodeStreamClosed, err)
			return
		}

		switch msg.event {
		case "keep-alive":
		case "cancel":
			fail(admin.CodeListenerCancelled, fmt.Errorf("listener at %q cancelled: %s", sub.Path, unquote(msg.data)))
			return
		case "auth_revoked":
			fail(admin.CodeAuthRevoked, fmt.Errorf("credential revoked: %s", unquote(msg.data)))
			return
		case "put", "patch":
			events, err := view.apply(msg.event, msg.data)
			if err != nil {
				fail(admin.CodeUnknown, err)
				return
			}
			for _, ev := range events {
				if !emit(ev) {
					return
				}
			}
		default:
			s.logger.Debug("ignoring stream message", "event", msg.event, "path", sub.Path)
		}
	}
}

func unquote(data string) string {
	var s string
	if err := json.Unmarshal([]byte(data), &s); err == nil {
		return s
	}
	return data
}

// locationView mirrors the listened location and turns stream messages into
// child and value events
type locationView struct {
	key    string
	tree   interface{}
	synced bool
}

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func (v *locationView) apply(kind, data string) ([]Event, error) {
	var payload streamPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("malformed %s message: %w", kind, err)
	}
	value, err := decodeJSON(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("malformed %s data: %w", kind, err)
	}

	before := v.tree
	segments := splitPath(payload.Path)
	if kind == "put" {
		v.tree = setAt(v.tree, segments, value)
	} else {
		for childPath, childValue := range children(value) {
			v.tree = setAt(v.tree, append(append([]string(nil), segments...), splitPath(childPath)...), childValue)
		}
	}

	events := diffChildren(before, v.tree)
	if !v.synced || !reflect.DeepEqual(before, v.tree) {
		events = append(events, Event{Kind: EventValue, Key: v.key, Snapshot: Snapshot{key: v.key, value: v.tree}})
	}
	v.synced = true
	return events, nil
}

type sseMessage struct {
	event string
	data  string
}

type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{scanner: scanner}
}

// next returns the next dispatched message. Comment lines are skipped.
func (r *sseReader) next() (sseMessage, error) {
	var (
		msg  sseMessage
		data []string
		seen bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if seen {
				msg.data = strings.Join(data, "\n")
				return msg, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			msg.event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return msg, err
	}
	return msg, io.EOF
}
