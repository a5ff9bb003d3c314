// Package weakness implements GM-authored conditional rules attached to a
// target: when a stunt matches a rule's trigger, the rule either applies a
// named condition to the target or shifts the degree of success.
package weakness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/improv.engine/internal/core/check"
)

// TriggerKind describes what a rule's trigger matches against.
type TriggerKind string

const (
	TriggerSkill     TriggerKind = "skill"
	TriggerAttack    TriggerKind = "attack"
	TriggerSpell     TriggerKind = "spell"
	TriggerTrait     TriggerKind = "trait"
	TriggerCondition TriggerKind = "condition"
)

// EffectType describes what a matched rule does.
type EffectType string

const (
	EffectApplyCondition EffectType = "apply-condition"
	EffectDegreeBump     EffectType = "degree-bump"
)

// ConditionPrefix marks condition markers in a context trait list, so
// condition triggers can match through the same trait comparison.
const ConditionPrefix = "cond:"

// SpellAttackKey is the synthetic roll key for generic spell attacks.
const SpellAttackKey = "spell-attack"

// Trigger is a rule's matching predicate.
type Trigger struct {
	Kind  TriggerKind `json:"kind"`
	Key   string      `json:"key,omitempty"`
	Trait string      `json:"trait,omitempty"`
}

// Effect is what a matched rule applies.
type Effect struct {
	Type EffectType
	// Condition is the condition slug for apply-condition effects.
	Condition string
	// Value is the condition value for apply-condition effects, or the
	// signed degree shift for degree-bump effects.
	Value int
}

// Rule is one stored weakness entry.
type Rule struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Enabled bool    `json:"enabled"`
	Trigger Trigger `json:"trigger"`
	Effect  Effect  `json:"effect"`
}

// Context is the slice of a stunt attempt a trigger is matched against.
type Context struct {
	Kind   string
	Key    string
	Traits []string
}

// effectJSON mirrors the stored effect shape, where "value" holds either the
// condition slug (string) or the degree shift (number), and "amount" holds an
// optional condition value.
type effectJSON struct {
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Amount *int            `json:"amount,omitempty"`
}

// UnmarshalJSON decodes the stored effect shape leniently.
func (e *Effect) UnmarshalJSON(data []byte) error {
	var raw effectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch EffectType(raw.Type) {
	case EffectDegreeBump:
		shift := 1
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &shift); err != nil {
				return fmt.Errorf("degree-bump value: %w", err)
			}
		}
		*e = Effect{Type: EffectDegreeBump, Value: shift}
		return nil
	case EffectApplyCondition:
		var slug string
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &slug); err != nil {
				return fmt.Errorf("apply-condition value: %w", err)
			}
		}
		if strings.TrimSpace(slug) == "" {
			return fmt.Errorf("apply-condition requires a condition slug")
		}
		value := 0
		if raw.Amount != nil {
			value = *raw.Amount
		}
		*e = Effect{Type: EffectApplyCondition, Condition: slug, Value: value}
		return nil
	default:
		return fmt.Errorf("unknown effect type %q", raw.Type)
	}
}

// MarshalJSON encodes the effect back into the stored shape.
func (e Effect) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EffectDegreeBump:
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(effectJSON{Type: string(e.Type), Value: value})
	case EffectApplyCondition:
		slug, err := json.Marshal(e.Condition)
		if err != nil {
			return nil, err
		}
		out := effectJSON{Type: string(e.Type), Value: slug}
		if e.Value != 0 {
			amount := e.Value
			out.Amount = &amount
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("unknown effect type %q", e.Type)
	}
}

// Matches reports whether a rule's trigger fires for the given context.
func Matches(rc Context, rule Rule) bool {
	kind := strings.ToLower(rc.Kind)
	key := strings.ToLower(rc.Key)
	traits := make([]string, 0, len(rc.Traits))
	for _, trait := range rc.Traits {
		traits = append(traits, strings.ToLower(trait))
	}

	switch rule.Trigger.Kind {
	case TriggerSkill:
		return kind == "skill" && (rule.Trigger.Key == "" || strings.ToLower(rule.Trigger.Key) == key)
	case TriggerAttack:
		if kind != "attack" {
			return false
		}
		if rule.Trigger.Trait != "" {
			return containsString(traits, strings.ToLower(rule.Trigger.Trait))
		}
		return rule.Trigger.Key == "" || strings.ToLower(rule.Trigger.Key) == key
	case TriggerSpell:
		if kind != "spell" {
			return false
		}
		return rule.Trigger.Key == "" || strings.ToLower(rule.Trigger.Key) == key || key == SpellAttackKey
	case TriggerTrait:
		return rule.Trigger.Trait != "" && containsString(traits, strings.ToLower(rule.Trigger.Trait))
	case TriggerCondition:
		return containsString(traits, ConditionPrefix+strings.ToLower(rule.Trigger.Key))
	default:
		return false
	}
}

// ConditionFunc applies a named condition to the rule's target. Failures are
// the callback's responsibility to degrade; a returned error only skips the
// applied-description entry for that rule.
type ConditionFunc func(ctx context.Context, slug string, value int) error

// Apply runs every enabled matching rule in stored order. Later rules see the
// degree already adjusted by earlier ones; the result stays clamped to the
// valid range. It returns the final degree and human-readable descriptions of
// each effect applied.
func Apply(ctx context.Context, rules []Rule, rc Context, degree check.Degree, applyCondition ConditionFunc) (check.Degree, []string) {
	var applied []string
	for _, rule := range rules {
		if !rule.Enabled || !Matches(rc, rule) {
			continue
		}
		switch rule.Effect.Type {
		case EffectDegreeBump:
			degree = degree.Shift(rule.Effect.Value)
			applied = append(applied, fmt.Sprintf("Degree %+d (%s)", rule.Effect.Value, rule.Label))
		case EffectApplyCondition:
			if applyCondition == nil {
				continue
			}
			if err := applyCondition(ctx, rule.Effect.Condition, rule.Effect.Value); err != nil {
				continue
			}
			applied = append(applied, fmt.Sprintf("%s (%s)", rule.Effect.Condition, rule.Label))
		}
	}
	return degree, applied
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
