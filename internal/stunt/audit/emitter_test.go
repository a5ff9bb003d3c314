package audit

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/storage/memory"
)

func TestEmitFillsIDAndTimestamp(t *testing.T) {
	store := memory.NewStore()
	emitter := NewEmitter(store)
	emitter.clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	if err := emitter.Emit(context.Background(), storage.StuntAudit{ActorID: "hero"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	audits := store.Audits()
	if len(audits) != 1 {
		t.Fatalf("audits = %d, want 1", len(audits))
	}
	if audits[0].ID == "" {
		t.Fatal("expected a generated id")
	}
	if !audits[0].Timestamp.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v, want the clock value", audits[0].Timestamp)
	}
}

func TestEmitKeepsProvidedFields(t *testing.T) {
	store := memory.NewStore()
	emitter := NewEmitter(store)
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := emitter.Emit(context.Background(), storage.StuntAudit{ID: "a1", Timestamp: stamp}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	audits := store.Audits()
	if audits[0].ID != "a1" || !audits[0].Timestamp.Equal(stamp) {
		t.Fatalf("audit = %+v, want provided fields preserved", audits[0])
	}
}

func TestEmitWithoutStoreIsNoop(t *testing.T) {
	var emitter *Emitter
	if err := emitter.Emit(context.Background(), storage.StuntAudit{}); err != nil {
		t.Fatalf("Emit on nil emitter: %v", err)
	}
	if err := NewEmitter(nil).Emit(context.Background(), storage.StuntAudit{}); err != nil {
		t.Fatalf("Emit on nil store: %v", err)
	}
}
