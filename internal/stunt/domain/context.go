package domain

import (
	"errors"
	"strings"

	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
)

// RollKind is the category of check a stunt resolves through.
type RollKind string

const (
	RollSkill  RollKind = "skill"
	RollAttack RollKind = "attack"
	RollSpell  RollKind = "spell"
)

var (
	// ErrMissingActor indicates a stunt was requested without an actor.
	ErrMissingActor = errors.New("acting character is required")
	// ErrInvalidFlavorTier indicates a flavor tier outside 0..2.
	ErrInvalidFlavorTier = errors.New("flavor tier must be between 0 and 2")
)

// FlavorTier rewards descriptive framing on a 0..2 scale.
type FlavorTier int

const (
	FlavorNone FlavorTier = iota
	FlavorLight
	FlavorFull
)

// ParseFlavorTier maps a string alias onto a tier. Numeric strings and the
// named aliases are accepted; anything else is an error.
func ParseFlavorTier(value string) (FlavorTier, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "0":
		return FlavorNone, nil
	case "light", "nice", "1":
		return FlavorLight, nil
	case "full", "so-cool", "2":
		return FlavorFull, nil
	default:
		return FlavorNone, ErrInvalidFlavorTier
	}
}

// NormalizeFlavorTier clamps an integer tier into the valid range.
func NormalizeFlavorTier(tier int) FlavorTier {
	if tier <= 0 {
		return FlavorNone
	}
	if tier >= 2 {
		return FlavorFull
	}
	return FlavorLight
}

// Options are the player-facing knobs for one stunt resolution.
type Options struct {
	RollKind RollKind
	RollKey  string
	// FlavorTier rewards creative framing; see ParseFlavorTier for aliases.
	FlavorTier FlavorTier
	// TacticalRisk trades a harder roll for an enhanced outcome.
	TacticalRisk bool
	// Plausible is advisory: an implausible, unflavorful stunt still
	// resolves, with a warning.
	Plausible bool
	// UseAdvantage requests the once-per-encounter roll-twice resource.
	UseAdvantage bool
	// SpendPool requests one token from the shared cinematic pool.
	SpendPool bool
	// TriggerID pre-selects a weakness rule on the target.
	TriggerID string
	// DifficultyOverride always wins over any computed difficulty.
	DifficultyOverride *int
	// EncounterID names the active encounter, empty when none is running.
	EncounterID string
}

// StuntContext is the ephemeral working state for one resolution attempt.
type StuntContext struct {
	Actor  Character
	Target Character

	RollKind  RollKind
	RollKey   string
	RollLabel string
	Traits    []string

	// Difficulty is the target number; always set before the roll step.
	Difficulty int

	// StatModifier is the resolved statistic's modifier used for rolling.
	StatModifier int

	// FlavorBonus and RollTwiceKeepHigher are mutually exclusive for a
	// given tier: a system converts one into the other, never both.
	FlavorBonus         int
	FlavorBonusType     string
	RollTwiceKeepHigher bool

	TacticalRisk bool
	Trigger      *weakness.Rule

	// Scratch values for display and telemetry.
	AttackModifier   int
	StrikeDifficulty int
	DifficultyAdjust int
	SyntheticRoll    bool
}

// EffectiveDifficulty returns the number the degree of success is judged
// against: the strike-shimmed difficulty when a native attack carried the
// roll, otherwise the mapped difficulty.
func (c *StuntContext) EffectiveDifficulty() int {
	if c.StrikeDifficulty != 0 {
		return c.StrikeDifficulty
	}
	return c.Difficulty
}
