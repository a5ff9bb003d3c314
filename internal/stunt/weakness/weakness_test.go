package weakness

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/louisbranch/improv.engine/internal/core/check"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		rc   Context
		rule Rule
		want bool
	}{
		{
			name: "skill with matching key",
			rc:   Context{Kind: "skill", Key: "acr"},
			rule: Rule{Trigger: Trigger{Kind: TriggerSkill, Key: "acr"}},
			want: true,
		},
		{
			name: "skill without key filter matches any skill",
			rc:   Context{Kind: "skill", Key: "ath"},
			rule: Rule{Trigger: Trigger{Kind: TriggerSkill}},
			want: true,
		},
		{
			name: "skill rule never matches an attack",
			rc:   Context{Kind: "attack", Key: "acr"},
			rule: Rule{Trigger: Trigger{Kind: TriggerSkill, Key: "acr"}},
			want: false,
		},
		{
			name: "attack matched by trait",
			rc:   Context{Kind: "attack", Traits: []string{"Visual"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerAttack, Trait: "visual"}},
			want: true,
		},
		{
			name: "attack trait filter misses",
			rc:   Context{Kind: "attack", Traits: []string{"sonic"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerAttack, Trait: "visual"}},
			want: false,
		},
		{
			name: "attack matched by key when no trait filter",
			rc:   Context{Kind: "attack", Key: "fist"},
			rule: Rule{Trigger: Trigger{Kind: TriggerAttack, Key: "fist"}},
			want: true,
		},
		{
			name: "spell matched by key",
			rc:   Context{Kind: "spell", Key: "fireball"},
			rule: Rule{Trigger: Trigger{Kind: TriggerSpell, Key: "fireball"}},
			want: true,
		},
		{
			name: "spell rule matches the synthetic spell-attack key",
			rc:   Context{Kind: "spell", Key: SpellAttackKey},
			rule: Rule{Trigger: Trigger{Kind: TriggerSpell, Key: "fireball"}},
			want: true,
		},
		{
			name: "trait matches from the context list",
			rc:   Context{Kind: "skill", Traits: []string{"fire", "arcane"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerTrait, Trait: "arcane"}},
			want: true,
		},
		{
			name: "trait rule without a trait never matches",
			rc:   Context{Kind: "skill", Traits: []string{"fire"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerTrait}},
			want: false,
		},
		{
			name: "condition matches the prefixed marker",
			rc:   Context{Kind: "skill", Traits: []string{"cond:prone"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerCondition, Key: "prone"}},
			want: true,
		},
		{
			name: "condition without marker misses",
			rc:   Context{Kind: "skill", Traits: []string{"prone"}},
			rule: Rule{Trigger: Trigger{Kind: TriggerCondition, Key: "prone"}},
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.rc, tc.rule); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyRunsRulesInStoredOrder(t *testing.T) {
	rules := []Rule{
		{
			ID: "bump-up", Label: "Exposed", Enabled: true,
			Trigger: Trigger{Kind: TriggerSkill},
			Effect:  Effect{Type: EffectDegreeBump, Value: 2},
		},
		{
			ID: "bump-down", Label: "Stubborn", Enabled: true,
			Trigger: Trigger{Kind: TriggerSkill},
			Effect:  Effect{Type: EffectDegreeBump, Value: -1},
		},
		{
			ID: "disabled", Label: "Dormant", Enabled: false,
			Trigger: Trigger{Kind: TriggerSkill},
			Effect:  Effect{Type: EffectDegreeBump, Value: 1},
		},
	}

	degree, applied := Apply(context.Background(), rules, Context{Kind: "skill", Key: "acr"}, check.DegreeSuccess, nil)

	// +2 clamps at Critical Success, then -1 steps back down.
	if degree != check.DegreeSuccess {
		t.Fatalf("degree = %v, want Success after clamped +2 then -1", degree)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %v, want the two enabled rules", applied)
	}
	if !strings.Contains(applied[0], "Exposed") || !strings.Contains(applied[1], "Stubborn") {
		t.Fatalf("applied = %v, want stored order", applied)
	}
}

func TestApplyConditionCallback(t *testing.T) {
	rules := []Rule{
		{
			ID: "ok", Label: "Cracked Visor", Enabled: true,
			Trigger: Trigger{Kind: TriggerAttack, Trait: "visual"},
			Effect:  Effect{Type: EffectApplyCondition, Condition: "dazzled"},
		},
		{
			ID: "broken", Label: "Cursed", Enabled: true,
			Trigger: Trigger{Kind: TriggerAttack, Trait: "visual"},
			Effect:  Effect{Type: EffectApplyCondition, Condition: "doomed", Value: 1},
		},
	}

	var slugs []string
	degree, applied := Apply(context.Background(), rules, Context{Kind: "attack", Traits: []string{"visual"}}, check.DegreeSuccess,
		func(_ context.Context, slug string, value int) error {
			if slug == "doomed" {
				return context.Canceled
			}
			slugs = append(slugs, slug)
			return nil
		})

	if degree != check.DegreeSuccess {
		t.Fatalf("degree = %v, want unchanged", degree)
	}
	if len(slugs) != 1 || slugs[0] != "dazzled" {
		t.Fatalf("slugs = %v, want only dazzled", slugs)
	}
	// The failed application is skipped, not fatal.
	if len(applied) != 1 || !strings.Contains(applied[0], "Cracked Visor") {
		t.Fatalf("applied = %v, want only the successful rule", applied)
	}
}

func TestEffectJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Effect
	}{
		{
			name: "degree bump with numeric value",
			raw:  `{"type":"degree-bump","value":-2}`,
			want: Effect{Type: EffectDegreeBump, Value: -2},
		},
		{
			name: "degree bump defaults to one",
			raw:  `{"type":"degree-bump"}`,
			want: Effect{Type: EffectDegreeBump, Value: 1},
		},
		{
			name: "apply condition with slug and amount",
			raw:  `{"type":"apply-condition","value":"frightened","amount":2}`,
			want: Effect{Type: EffectApplyCondition, Condition: "frightened", Value: 2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var effect Effect
			if err := json.Unmarshal([]byte(tc.raw), &effect); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if effect != tc.want {
				t.Fatalf("effect = %+v, want %+v", effect, tc.want)
			}

			encoded, err := json.Marshal(effect)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var again Effect
			if err := json.Unmarshal(encoded, &again); err != nil {
				t.Fatalf("re-Unmarshal: %v", err)
			}
			if again != tc.want {
				t.Fatalf("round trip = %+v, want %+v", again, tc.want)
			}
		})
	}
}

func TestEffectRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`{"type":"apply-condition"}`,
		`{"type":"apply-condition","value":""}`,
		`{"type":"explode"}`,
		`{"type":"degree-bump","value":"lots"}`,
	} {
		var effect Effect
		if err := json.Unmarshal([]byte(raw), &effect); err == nil {
			t.Fatalf("expected %s to fail", raw)
		}
	}
}
