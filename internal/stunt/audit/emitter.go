// Package audit records resolved stunts for later GM review.
package audit

import (
	"context"
	"time"

	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
)

// Emitter appends stunt audit records. It is a no-op when the store is nil,
// so hosts without an audit backend pay nothing.
type Emitter struct {
	store       storage.AuditStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewEmitter creates an audit emitter over the provided store.
func NewEmitter(store storage.AuditStore) *Emitter {
	return &Emitter{store: store, clock: time.Now, idGenerator: domain.NewID}
}

// Emit records one resolved stunt, filling in id and timestamp when absent.
func (e *Emitter) Emit(ctx context.Context, record storage.StuntAudit) error {
	if e == nil || e.store == nil {
		return nil
	}
	if record.ID == "" {
		generate := e.idGenerator
		if generate == nil {
			generate = domain.NewID
		}
		id, err := generate()
		if err != nil {
			return err
		}
		record.ID = id
	}
	if record.Timestamp.IsZero() {
		if e.clock == nil {
			record.Timestamp = time.Now().UTC()
		} else {
			record.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendStuntAudit(ctx, record)
}
