// Package storage defines persistence contracts for the stunt engine.
//
// Hosts embed the engine into a virtual tabletop that already owns actor and
// encounter documents; the FlagStore contract mirrors that runtime's flag
// storage so the engine can persist resource ledgers and weakness rules
// without knowing the backing shape.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/louisbranch/improv.engine/internal/core/check"
)

// ScopeKind identifies which document a flag hangs off.
type ScopeKind string

const (
	ScopeActor     ScopeKind = "actor"
	ScopeEncounter ScopeKind = "encounter"
	ScopeWorld     ScopeKind = "world"
)

// Scope addresses one flag-bearing document.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// ActorScope addresses flags on an actor document.
func ActorScope(actorID string) Scope {
	return Scope{Kind: ScopeActor, ID: actorID}
}

// EncounterScope addresses flags on an encounter document.
func EncounterScope(encounterID string) Scope {
	return Scope{Kind: ScopeEncounter, ID: encounterID}
}

// WorldScope addresses world-level settings flags.
func WorldScope() Scope {
	return Scope{Kind: ScopeWorld}
}

// Key renders the scope as a stable storage key prefix.
func (s Scope) Key() string {
	if s.Kind == ScopeWorld {
		return string(ScopeWorld)
	}
	return string(s.Kind) + "/" + s.ID
}

// FlagStore persists named JSON flags per scope.
type FlagStore interface {
	// GetFlag returns the stored payload for a flag, reporting whether it
	// exists. A missing flag is not an error.
	GetFlag(ctx context.Context, scope Scope, name string) (json.RawMessage, bool, error)
	// SetFlag stores a flag payload, replacing any previous value.
	SetFlag(ctx context.Context, scope Scope, name string, payload json.RawMessage) error
}

// StuntAudit is one recorded stunt resolution.
type StuntAudit struct {
	ID           string
	EncounterID  string
	SystemID     string
	ActorID      string
	TargetID     string
	RollKind     string
	RollKey      string
	Total        int
	Degree       check.Degree
	PoolSpent    bool
	AdvantageUse bool
	TacticalRisk bool
	Timestamp    time.Time
}

// AuditStore records resolved stunts for later review.
type AuditStore interface {
	AppendStuntAudit(ctx context.Context, record StuntAudit) error
}
