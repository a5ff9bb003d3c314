package domain

import (
	"context"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
)

// SaveKind names a defensive save statistic.
type SaveKind string

const (
	SaveFortitude SaveKind = "fortitude"
	SaveReflex    SaveKind = "reflex"
	SaveWill      SaveKind = "will"
)

// Character is the normalized data-access surface for one actor. Host
// runtimes store statistics in wildly different shapes; implementations push
// that variance into one translation layer so the rules never chase nested
// optional fields. Lookups report ok=false when the statistic is absent.
type Character interface {
	ID() string
	Name() string
	Level() int
	// SkillModifier resolves a skill's check modifier by normalized key.
	SkillModifier(key string) (int, bool)
	// SaveDifficulty returns an explicitly stored save DC when present.
	SaveDifficulty(kind SaveKind) (int, bool)
	// SaveModifier returns the save's modifier, for 10+mod fallbacks.
	SaveModifier(kind SaveKind) (int, bool)
	PerceptionDifficulty() (int, bool)
	PerceptionModifier() (int, bool)
	ArmorClass() (int, bool)
	Traits() []string
	// Strikes lists the character's native attack actions, if any.
	Strikes() []Strike
}

// StrikeRollRequest carries the adjustments injected into a native strike.
type StrikeRollRequest struct {
	Modifiers           []dice.Modifier
	RollTwiceKeepHigher bool
	// CreateMessage asks the host to post its native attack card, so
	// downstream tooling (crit decks) can trigger from it.
	CreateMessage bool
}

// Strike is one native attack action on a character. Rolling through a
// strike drives the host's own attack machinery rather than a bare check.
type Strike interface {
	Label() string
	Traits() []string
	Ranged() bool
	AttackModifier() int
	Roll(ctx context.Context, request StrikeRollRequest) (*dice.CheckResult, error)
}

// RollEngine performs d20 checks. The host's dice roller implements this;
// dice.Engine provides a local fallback.
type RollEngine interface {
	RollCheck(request dice.CheckRequest) (*dice.CheckResult, error)
}

// ConditionApplier mutates actor state in the host runtime. Implementations
// degrade internally: when a native condition cannot be applied they fall
// back to a generic temporary effect note before returning an error.
type ConditionApplier interface {
	ApplyCondition(ctx context.Context, target Character, slug string, value int) error
	// ApplyEffectNote attaches a lightweight timed note so play continues
	// when native condition APIs are unavailable.
	ApplyEffectNote(ctx context.Context, target Character, label, note string, rounds int) error
}

// Notifier surfaces user-facing warnings and notices.
type Notifier interface {
	Warn(ctx context.Context, message string)
	Info(ctx context.Context, message string)
}

// RiderPhase distinguishes the configurable effect menus.
type RiderPhase string

const (
	RiderSuccess RiderPhase = "success"
	RiderFailure RiderPhase = "failure"
)

// RiderChooser is the typed suspension point for "pick a rider/setback"
// dialogs. Returning ok=false means the user declined.
type RiderChooser interface {
	ChooseRider(ctx context.Context, phase RiderPhase, options []string) (choice string, ok bool, err error)
}

// CritChoice is the typed result of the post-crit prompt.
type CritChoice int

const (
	// CritUseNativeDeck defers to the host's critical-resolution tooling.
	CritUseNativeDeck CritChoice = iota
	// CritApplyRider applies a stunt rider instead.
	CritApplyRider
	// CritSkip applies nothing.
	CritSkip
)

// CritChooser is the typed suspension point for the post-crit prompt.
type CritChooser interface {
	ChooseCritResolution(ctx context.Context, degree check.Degree) (CritChoice, error)
}
