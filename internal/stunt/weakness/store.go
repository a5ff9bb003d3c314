package weakness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/improv.engine/internal/storage"
)

const (
	rulesFlag     = "weaknesses"
	templatesFlag = "weakness_templates"
)

// RulesFor loads the weakness rules stored on an actor. Malformed entries are
// skipped individually so one bad rule never hides the rest.
func RulesFor(ctx context.Context, store storage.FlagStore, actorID string) ([]Rule, error) {
	if store == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	payload, ok, err := store.GetFlag(ctx, storage.ActorScope(actorID), rulesFlag)
	if err != nil {
		return nil, fmt.Errorf("load weakness rules: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeRules(payload), nil
}

// PutRules stores the weakness rules for an actor, replacing the prior list.
func PutRules(ctx context.Context, store storage.FlagStore, actorID string, rules []Rule) error {
	if store == nil {
		return fmt.Errorf("flag store is required")
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode weakness rules: %w", err)
	}
	if err := store.SetFlag(ctx, storage.ActorScope(actorID), rulesFlag, payload); err != nil {
		return fmt.Errorf("store weakness rules: %w", err)
	}
	return nil
}

// FindRule returns the enabled rule with the given id from an actor's list.
func FindRule(ctx context.Context, store storage.FlagStore, actorID, ruleID string) (*Rule, error) {
	rules, err := RulesFor(ctx, store, actorID)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].ID == ruleID && rules[i].Enabled {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// Templates loads the world-scoped reusable weakness templates.
func Templates(ctx context.Context, store storage.FlagStore) ([]Rule, error) {
	if store == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	payload, ok, err := store.GetFlag(ctx, storage.WorldScope(), templatesFlag)
	if err != nil {
		return nil, fmt.Errorf("load weakness templates: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeRules(payload), nil
}

// PutTemplates stores the world-scoped weakness templates.
func PutTemplates(ctx context.Context, store storage.FlagStore, templates []Rule) error {
	if store == nil {
		return fmt.Errorf("flag store is required")
	}
	payload, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("encode weakness templates: %w", err)
	}
	if err := store.SetFlag(ctx, storage.WorldScope(), templatesFlag, payload); err != nil {
		return fmt.Errorf("store weakness templates: %w", err)
	}
	return nil
}

// EnsureTemplates seeds the default templates when none are stored yet, so
// new worlds are not empty.
func EnsureTemplates(ctx context.Context, store storage.FlagStore) error {
	if store == nil {
		return fmt.Errorf("flag store is required")
	}
	_, ok, err := store.GetFlag(ctx, storage.WorldScope(), templatesFlag)
	if err != nil {
		return fmt.Errorf("check weakness templates: %w", err)
	}
	if ok {
		return nil
	}
	return PutTemplates(ctx, store, DefaultTemplates())
}

// ImportTemplates copies the selected templates onto an actor as enabled rules.
func ImportTemplates(ctx context.Context, store storage.FlagStore, actorID string, templateIDs []string) error {
	templates, err := Templates(ctx, store)
	if err != nil {
		return err
	}
	existing, err := RulesFor(ctx, store, actorID)
	if err != nil {
		return err
	}

	wanted := map[string]bool{}
	for _, id := range templateIDs {
		wanted[id] = true
	}
	for _, template := range templates {
		if !wanted[template.ID] {
			continue
		}
		rule := template
		rule.Enabled = true
		existing = append(existing, rule)
	}
	return PutRules(ctx, store, actorID, existing)
}

// DefaultTemplates returns the seed templates shipped with the engine.
func DefaultTemplates() []Rule {
	return []Rule{
		{
			ID:      "default-visor",
			Label:   "Cracked Visor",
			Enabled: true,
			Trigger: Trigger{Kind: TriggerAttack, Trait: "visual"},
			Effect:  Effect{Type: EffectApplyCondition, Condition: "dazzled"},
		},
		{
			ID:      "default-athletics",
			Label:   "Shaky Footing",
			Enabled: true,
			Trigger: Trigger{Kind: TriggerSkill, Key: "athletics"},
			Effect:  Effect{Type: EffectApplyCondition, Condition: "prone"},
		},
		{
			ID:      "default-prophet",
			Label:   "Prophet's Chant",
			Enabled: true,
			Trigger: Trigger{Kind: TriggerSpell, Key: SpellAttackKey},
			Effect:  Effect{Type: EffectDegreeBump, Value: 1},
		},
	}
}

// decodeRules parses stored rules entry by entry, dropping malformed ones.
func decodeRules(payload json.RawMessage) []Rule {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil
	}
	rules := make([]Rule, 0, len(entries))
	for _, entry := range entries {
		var rule Rule
		if err := json.Unmarshal(entry, &rule); err != nil {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}
