// Package memory provides an in-memory FlagStore for tests and for hosts
// that supply their own durable flag storage.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/louisbranch/improv.engine/internal/storage"
)

// Store is an in-memory flag and audit store. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	flags  map[string]json.RawMessage
	audits []storage.StuntAudit
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{flags: map[string]json.RawMessage{}}
}

// GetFlag returns the stored payload for a flag.
func (s *Store) GetFlag(ctx context.Context, scope storage.Scope, name string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.flags[flagKey(scope, name)]
	if !ok {
		return nil, false, nil
	}
	copied := make(json.RawMessage, len(payload))
	copy(copied, payload)
	return copied, true, nil
}

// SetFlag stores a flag payload.
func (s *Store) SetFlag(ctx context.Context, scope storage.Scope, name string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := make(json.RawMessage, len(payload))
	copy(copied, payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flagKey(scope, name)] = copied
	return nil
}

// AppendStuntAudit records a stunt resolution.
func (s *Store) AppendStuntAudit(ctx context.Context, record storage.StuntAudit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, record)
	return nil
}

// Audits returns a copy of the recorded stunt resolutions.
func (s *Store) Audits() []storage.StuntAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.StuntAudit, len(s.audits))
	copy(out, s.audits)
	return out
}

func flagKey(scope storage.Scope, name string) string {
	return scope.Key() + "#" + name
}
