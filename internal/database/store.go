// Package database holds the realtime database listeners, the star count
// transaction and the weekly email job.
package database

import (
	"context"
	"strings"
	"time"

	"firebase.google.com/go/v4/db"

	"fbadmin/internal/admin"
)

// ServerTimestamp is replaced by the server's clock when written
var ServerTimestamp = map[string]interface{}{".sv": "timestamp"}

// Node is one child returned by an ordered query
type Node interface {
	Key() string
	Unmarshal(v interface{}) error
}

// TransactionNode is the current value handed to an UpdateFunc
type TransactionNode interface {
	Unmarshal(v interface{}) error
}

// UpdateFunc computes the new value of a node from its current value. It may
// run several times and must not have side effects.
type UpdateFunc func(TransactionNode) (interface{}, error)

// Store is the subset of the realtime database the commands use
type Store interface {
	Get(ctx context.Context, path string, v interface{}) error
	Set(ctx context.Context, path string, v interface{}) error
	// Update writes several paths below path at once
	Update(ctx context.Context, path string, values map[string]interface{}) error
	Transaction(ctx context.Context, path string, fn UpdateFunc) error
	// TopByChild returns the last limit children of path ordered by child, in
	// ascending order
	TopByChild(ctx context.Context, path, child string, limit int) ([]Node, error)
}

// SDKStore implements Store with the Admin SDK database client
type SDKStore struct {
	client  *db.Client
	metrics admin.Metrics
}

var _ Store = (*SDKStore)(nil)

// NewSDKStore wraps a database client
func NewSDKStore(client *db.Client, metrics admin.Metrics) *SDKStore {
	return &SDKStore{client: client, metrics: metrics}
}

func (s *SDKStore) ref(path string) *db.Ref {
	return s.client.NewRef("/" + joinPath(path))
}

// Get reads the value at path into v
func (s *SDKStore) Get(ctx context.Context, path string, v interface{}) error {
	return s.observe("get", func() error {
		return s.ref(path).Get(ctx, v)
	})
}

// Set overwrites the value at path
func (s *SDKStore) Set(ctx context.Context, path string, v interface{}) error {
	return s.observe("set", func() error {
		return s.ref(path).Set(ctx, v)
	})
}

// Update writes every entry of values relative to path in one request
func (s *SDKStore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	return s.observe("update", func() error {
		return s.ref(path).Update(ctx, values)
	})
}

// Transaction runs fn against path until the write commits. Retries on
// conflicting writes are done by the SDK.
func (s *SDKStore) Transaction(ctx context.Context, path string, fn UpdateFunc) error {
	return s.observe("transaction", func() error {
		return s.ref(path).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
			return fn(node)
		})
	})
}

// TopByChild runs an orderByChild + limitToLast query
func (s *SDKStore) TopByChild(ctx context.Context, path, child string, limit int) ([]Node, error) {
	var nodes []Node
	err := s.observe("query", func() error {
		result, err := s.ref(path).OrderByChild(child).LimitToLast(limit).GetOrdered(ctx)
		if err != nil {
			return err
		}
		nodes = make([]Node, 0, len(result))
		for _, n := range result {
			nodes = append(nodes, n)
		}
		return nil
	})
	return nodes, err
}

func (s *SDKStore) observe(operation string, call func() error) error {
	start := time.Now()
	err := call()
	outcome := admin.OutcomeSuccess
	if err != nil {
		outcome = admin.OutcomeFailure
		err = &admin.SdkError{Service: admin.ServiceTypeDatabase, Code: sdkErrorCode(err), Err: err}
	}
	s.metrics.ObserveRemoteCall(admin.ServiceTypeDatabase, operation, outcome, time.Since(start))
	return err
}

// sdkErrorCode classifies database client errors. The SDK reports them as
// plain errors, so the message is the only signal.
func sdkErrorCode(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction aborted"):
		return admin.CodeTransactionAborted
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "unauthorized"):
		return admin.CodePermissionDenied
	default:
		return admin.CodeUnknown
	}
}
