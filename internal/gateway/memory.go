package gateway

import (
	"errors"
	"sync"
)

// MemoryBackend keeps blobs in process memory. It counts writes per scope,
// which tests use to assert that a mutation persisted exactly once.
type MemoryBackend struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	writes map[string]int
	failOn map[string]error
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		blobs:  make(map[string][]byte),
		writes: make(map[string]int),
		failOn: make(map[string]error),
	}
}

// Read returns a copy of the blob stored under scope.
func (m *MemoryBackend) Read(scope string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[scope]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// Write stores a copy of data under scope, or fails if FailWrites was set for it.
func (m *MemoryBackend) Write(scope string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[scope]++
	if err := m.failOn[scope]; err != nil {
		return err
	}
	m.blobs[scope] = append([]byte(nil), data...)
	return nil
}

// Writes reports how many writes scope has received, failed ones included.
func (m *MemoryBackend) Writes(scope string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[scope]
}

// Raw returns the stored blob as a string, or "" when absent.
func (m *MemoryBackend) Raw(scope string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.blobs[scope])
}

// FailWrites makes every later write to scope return err. A nil err clears it.
func (m *MemoryBackend) FailWrites(scope string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, scope)
		return
	}
	m.failOn[scope] = err
}

// ErrInjected is a convenience error for FailWrites.
var ErrInjected = errors.New("injected write failure")
