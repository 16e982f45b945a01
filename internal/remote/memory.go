package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tartampluch/go-lifegrid/internal/config"
)

// ErrInjected is a convenience error for FailFetch and FailUpsert.
var ErrInjected = errors.New("injected remote failure")

// MemoryEndpoint keeps records in process memory, encoded as JSON so callers
// never share maps or slices with the stored copy. It counts calls, which
// tests use to assert that no remote traffic happened.
type MemoryEndpoint[T Record] struct {
	mu         sync.Mutex
	records    map[string][]byte
	fetches    int
	upserts    int
	failFetch  error
	failUpsert error
}

// NewMemoryEndpoint returns an empty endpoint.
func NewMemoryEndpoint[T Record]() *MemoryEndpoint[T] {
	return &MemoryEndpoint[T]{records: make(map[string][]byte)}
}

// NewMemoryEndpoints returns a bundle of empty in-memory endpoints.
func NewMemoryEndpoints() (Endpoints, *MemoryEndpoint[ProfileRecord], *MemoryEndpoint[MilestonesRecord], *MemoryEndpoint[SelectionsRecord]) {
	p := NewMemoryEndpoint[ProfileRecord]()
	m := NewMemoryEndpoint[MilestonesRecord]()
	s := NewMemoryEndpoint[SelectionsRecord]()
	return Endpoints{Profiles: p, Milestones: m, Selections: s}, p, m, s
}

// Fetch returns the record stored for userID, with ok false when none is.
func (e *MemoryEndpoint[T]) Fetch(ctx context.Context, userID string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if userID == "" {
		return zero, false, ErrUserIDEmpty
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetches++
	if e.failFetch != nil {
		return zero, false, fmt.Errorf("%s: %w", config.ErrRemoteFetch, e.failFetch)
	}
	data, ok := e.records[userID]
	if !ok {
		return zero, false, nil
	}
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return zero, false, fmt.Errorf("%s: %w", config.ErrRemoteDecode, err)
	}
	return rec, true, nil
}

// Upsert stores rec under its owner, replacing any previous record.
func (e *MemoryEndpoint[T]) Upsert(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Owner() == "" {
		return ErrUserIDEmpty
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.upserts++
	if e.failUpsert != nil {
		return fmt.Errorf("%s: %w", config.ErrRemoteUpsert, e.failUpsert)
	}
	e.records[rec.Owner()] = data
	return nil
}

// Seed stores rec without counting a call.
func (e *MemoryEndpoint[T]) Seed(rec T) {
	data, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records[rec.Owner()] = data
}

// Stored returns the record for userID without counting a call.
func (e *MemoryEndpoint[T]) Stored(userID string) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var rec T
	data, ok := e.records[userID]
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

// Calls reports how many fetches and upserts were attempted, failed ones included.
func (e *MemoryEndpoint[T]) Calls() (fetches, upserts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetches, e.upserts
}

// FailFetch makes later fetches return err. A nil err clears it.
func (e *MemoryEndpoint[T]) FailFetch(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failFetch = err
}

// FailUpsert makes later upserts return err. A nil err clears it.
func (e *MemoryEndpoint[T]) FailUpsert(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failUpsert = err
}
