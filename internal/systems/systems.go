// Package systems defines the pluggable game-system adapter contract.
//
// The orchestrator is system-agnostic; everything a rule system knows —
// difficulty targets, statistic resolution, roll mechanics, degree
// classification, upgrades and outcomes — lives behind the Adapter
// interface. Concrete variants register under their system-identifier
// string and are selected once at startup.
package systems

import (
	"context"
	"strings"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
)

// BuildInput feeds context construction.
type BuildInput struct {
	Actor   domain.Character
	Target  domain.Character
	Options domain.Options
}

// Adjustments carries the orchestrator's resolved pre-roll requests. The
// advantage flag is only set after the resource ledger approved it.
type Adjustments struct {
	FlavorTier      domain.FlavorTier
	UseAdvantage    bool
	TacticalRisk    bool
	EncounterActive bool
}

// OutcomeInput feeds mechanical outcome application.
type OutcomeInput struct {
	Context      *domain.StuntContext
	Degree       check.Degree
	TacticalRisk bool
}

// Outcome describes what outcome application did.
type Outcome struct {
	// Degree is the final degree after any weakness-rule shifts.
	Degree check.Degree
	// TargetEffect and SelfEffect name conditions applied to the target
	// or the actor.
	TargetEffect string
	SelfEffect   string
	// Deferred names a native mechanism left to resolve the outcome,
	// such as a crit-effect deck.
	Deferred string
	// Descriptions lists every applied effect in human-readable form.
	Descriptions []string
}

// Adapter translates generic stunt intent into one system's mechanics.
// Every method degrades rather than panics: precondition failures notify
// the user through the adapter's own notifier and return the documented
// abort values.
type Adapter interface {
	// ID is the system-identifier string the adapter registers under.
	ID() string

	// BuildContext resolves roll category, key, statistic and difficulty.
	BuildContext(ctx context.Context, in BuildInput) (*domain.StuntContext, error)

	// ApplyPreRollAdjustments folds flavor tier, approved advantage and
	// tactical risk into system-native mechanics.
	ApplyPreRollAdjustments(ctx context.Context, sc *domain.StuntContext, adj Adjustments) error

	// Roll performs the check. A nil result with a nil error is the abort
	// signal: the adapter has already notified the user.
	Roll(ctx context.Context, sc *domain.StuntContext) (*dice.CheckResult, error)

	// DegreeOfSuccess classifies the roll result against the context.
	DegreeOfSuccess(result *dice.CheckResult, sc *domain.StuntContext) check.Degree

	// ApplyCinematicUpgrade upgrades the degree when a pool token was
	// spent; a no-op otherwise.
	ApplyCinematicUpgrade(degree check.Degree, sc *domain.StuntContext, poolSpent bool) check.Degree

	// ApplyTacticalUpgrade applies any degree-level tactical-risk bonus;
	// a no-op for systems that fold the risk in earlier.
	ApplyTacticalUpgrade(degree check.Degree, sc *domain.StuntContext) check.Degree

	// ApplyOutcome applies the mechanical outcome, consulting the
	// target's weakness rules. A nil outcome means nothing was applied.
	ApplyOutcome(ctx context.Context, in OutcomeInput) (*Outcome, error)
}

// skillAliases maps long skill names onto the short keys both supported
// systems index by.
var skillAliases = map[string]string{
	"acrobatics": "acr",
	"athletics":  "ath",
	"crafting":   "cra",
	"deception":  "dec",
	"medicine":   "med",
	"perception": "prc",
	"stealth":    "ste",
	"survival":   "sur",
	"thievery":   "thi",
}

// NormalizeSkillKey lowercases a skill key and maps long names onto short
// codes. Unknown keys pass through so system-specific skills keep working.
func NormalizeSkillKey(key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if short, ok := skillAliases[normalized]; ok {
		return short
	}
	return normalized
}

// NormalizeRuleKeys returns a copy of the rules with skill trigger keys
// normalized, so GM-authored long names match normalized context keys.
func NormalizeRuleKeys(rules []weakness.Rule) []weakness.Rule {
	out := make([]weakness.Rule, len(rules))
	copy(out, rules)
	for i := range out {
		if out[i].Trigger.Kind == weakness.TriggerSkill {
			out[i].Trigger.Key = NormalizeSkillKey(out[i].Trigger.Key)
		}
	}
	return out
}
