package systems

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
)

func TestNormalizeSkillKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acrobatics", "acr"},
		{"Athletics", "ath"},
		{" stealth ", "ste"},
		{"acr", "acr"},
		{"lore-warfare", "lore-warfare"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizeSkillKey(tc.in); got != tc.want {
			t.Fatalf("NormalizeSkillKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRuleKeys(t *testing.T) {
	rules := []weakness.Rule{
		{ID: "a", Trigger: weakness.Trigger{Kind: weakness.TriggerSkill, Key: "Acrobatics"}},
		{ID: "b", Trigger: weakness.Trigger{Kind: weakness.TriggerAttack, Key: "Acrobatics"}},
	}

	got := NormalizeRuleKeys(rules)

	if got[0].Trigger.Key != "acr" {
		t.Fatalf("skill trigger key = %q, want %q", got[0].Trigger.Key, "acr")
	}
	if got[1].Trigger.Key != "Acrobatics" {
		t.Fatalf("attack trigger key = %q, want untouched", got[1].Trigger.Key)
	}
	if rules[0].Trigger.Key != "Acrobatics" {
		t.Fatal("NormalizeRuleKeys mutated its input")
	}
}

type stubAdapter struct {
	id string
}

func (s stubAdapter) ID() string { return s.id }

func (s stubAdapter) BuildContext(context.Context, BuildInput) (*domain.StuntContext, error) {
	return nil, nil
}

func (s stubAdapter) ApplyPreRollAdjustments(context.Context, *domain.StuntContext, Adjustments) error {
	return nil
}

func (s stubAdapter) Roll(context.Context, *domain.StuntContext) (*dice.CheckResult, error) {
	return nil, nil
}

func (s stubAdapter) DegreeOfSuccess(*dice.CheckResult, *domain.StuntContext) check.Degree {
	return check.DegreeFailure
}

func (s stubAdapter) ApplyCinematicUpgrade(d check.Degree, _ *domain.StuntContext, _ bool) check.Degree {
	return d
}

func (s stubAdapter) ApplyTacticalUpgrade(d check.Degree, _ *domain.StuntContext) check.Degree {
	return d
}

func (s stubAdapter) ApplyOutcome(context.Context, OutcomeInput) (*Outcome, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(stubAdapter{id: "pf2e"}); err != nil {
		t.Fatalf("register pf2e: %v", err)
	}
	if err := registry.Register(stubAdapter{id: "dnd5e"}); err != nil {
		t.Fatalf("register dnd5e: %v", err)
	}

	if err := registry.Register(stubAdapter{id: "pf2e"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	adapter, err := registry.Get("pf2e")
	if err != nil {
		t.Fatalf("get pf2e: %v", err)
	}
	if adapter.ID() != "pf2e" {
		t.Fatalf("adapter id = %q, want pf2e", adapter.ID())
	}

	if _, err := registry.Get("daggerheart"); !errors.Is(err, ErrUnknownSystem) {
		t.Fatalf("expected ErrUnknownSystem, got %v", err)
	}

	ids := registry.IDs()
	if len(ids) != 2 || ids[0] != "dnd5e" || ids[1] != "pf2e" {
		t.Fatalf("ids = %v, want [dnd5e pf2e]", ids)
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil adapter to be rejected")
	}
	if err := registry.Register(stubAdapter{}); err == nil {
		t.Fatal("expected empty id to be rejected")
	}
}
