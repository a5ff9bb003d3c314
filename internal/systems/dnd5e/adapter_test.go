package dnd5e

import (
	"context"
	"strings"
	"testing"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/storage/memory"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
	"github.com/louisbranch/improv.engine/internal/testkit/stuntfakes"
)

func newTestAdapter(t *testing.T) (*Adapter, *stuntfakes.RollEngine, *stuntfakes.ConditionLog, *stuntfakes.Notifier, *memory.Store) {
	t.Helper()
	engine := &stuntfakes.RollEngine{}
	conditions := &stuntfakes.ConditionLog{}
	notifier := &stuntfakes.Notifier{}
	store := memory.NewStore()
	adapter := New(Deps{
		Engine:     engine,
		Conditions: conditions,
		Notifier:   notifier,
		Flags:      store,
	}, DefaultConfig())
	return adapter, engine, conditions, notifier, store
}

func actor() *stuntfakes.Character {
	return &stuntfakes.Character{
		IDValue:   "hero",
		NameValue: "Jules",
		Skills:    map[string]int{"ath": 5, "acr": 3},
	}
}

func target() *stuntfakes.Character {
	return &stuntfakes.Character{
		IDValue:        "ogre",
		NameValue:      "Ogre",
		ArmorClassible: stuntfakes.IntPtr(15),
	}
}

func TestBuildContextDifficultyPrecedence(t *testing.T) {
	adapter, _, _, _, _ := newTestAdapter(t)
	ctx := context.Background()
	override := 18

	tests := []struct {
		name  string
		input systems.BuildInput
		want  int
	}{
		{
			name:  "override wins over armor class",
			input: systems.BuildInput{Actor: actor(), Target: target(), Options: domain.Options{DifficultyOverride: &override}},
			want:  18,
		},
		{
			name:  "override wins for attack rolls",
			input: systems.BuildInput{Actor: actor(), Target: target(), Options: domain.Options{RollKind: domain.RollAttack, DifficultyOverride: &override}},
			want:  18,
		},
		{
			name:  "override wins for spell rolls",
			input: systems.BuildInput{Actor: actor(), Target: target(), Options: domain.Options{RollKind: domain.RollSpell, DifficultyOverride: &override}},
			want:  18,
		},
		{
			name:  "target armor class",
			input: systems.BuildInput{Actor: actor(), Target: target()},
			want:  15,
		},
		{
			name:  "baseline without target",
			input: systems.BuildInput{Actor: actor()},
			want:  12,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := adapter.BuildContext(ctx, tc.input)
			if err != nil {
				t.Fatalf("BuildContext: %v", err)
			}
			if sc.Difficulty != tc.want {
				t.Fatalf("difficulty = %d, want %d", sc.Difficulty, tc.want)
			}
		})
	}
}

func TestBuildContextNormalizesSkillKey(t *testing.T) {
	adapter, _, _, _, _ := newTestAdapter(t)
	sc, err := adapter.BuildContext(context.Background(), systems.BuildInput{
		Actor:   actor(),
		Options: domain.Options{RollKey: "Acrobatics"},
	})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if sc.RollKey != "acr" {
		t.Fatalf("roll key = %q, want acr", sc.RollKey)
	}
	if sc.StatModifier != 3 {
		t.Fatalf("stat modifier = %d, want 3", sc.StatModifier)
	}
}

func TestBuildContextMissingActor(t *testing.T) {
	adapter, _, _, _, _ := newTestAdapter(t)
	if _, err := adapter.BuildContext(context.Background(), systems.BuildInput{}); err != domain.ErrMissingActor {
		t.Fatalf("err = %v, want ErrMissingActor", err)
	}
}

func TestPreRollAdjustments(t *testing.T) {
	tests := []struct {
		name          string
		adj           systems.Adjustments
		wantBonus     int
		wantRollTwice bool
		wantDC        int
	}{
		{
			name:   "no adjustments",
			adj:    systems.Adjustments{},
			wantDC: 12,
		},
		{
			name:      "light flavor grants a flat bonus",
			adj:       systems.Adjustments{FlavorTier: domain.FlavorLight},
			wantBonus: 1,
			wantDC:    12,
		},
		{
			name:          "full flavor with advantage rolls twice without a bonus",
			adj:           systems.Adjustments{FlavorTier: domain.FlavorFull, UseAdvantage: true},
			wantRollTwice: true,
			wantDC:        12,
		},
		{
			name:      "full flavor without advantage degrades to a flat bonus",
			adj:       systems.Adjustments{FlavorTier: domain.FlavorFull},
			wantBonus: 2,
			wantDC:    12,
		},
		{
			name:   "tactical risk raises the target number",
			adj:    systems.Adjustments{TacticalRisk: true},
			wantDC: 14,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, _, _, _, _ := newTestAdapter(t)
			sc, err := adapter.BuildContext(context.Background(), systems.BuildInput{Actor: actor()})
			if err != nil {
				t.Fatalf("BuildContext: %v", err)
			}
			if err := adapter.ApplyPreRollAdjustments(context.Background(), sc, tc.adj); err != nil {
				t.Fatalf("ApplyPreRollAdjustments: %v", err)
			}
			if sc.FlavorBonus != tc.wantBonus {
				t.Fatalf("flavor bonus = %d, want %d", sc.FlavorBonus, tc.wantBonus)
			}
			if sc.RollTwiceKeepHigher != tc.wantRollTwice {
				t.Fatalf("roll twice = %v, want %v", sc.RollTwiceKeepHigher, tc.wantRollTwice)
			}
			if sc.Difficulty != tc.wantDC {
				t.Fatalf("difficulty = %d, want %d", sc.Difficulty, tc.wantDC)
			}
			if sc.FlavorBonus != 0 && sc.RollTwiceKeepHigher {
				t.Fatal("flat bonus and roll-twice applied together")
			}
		})
	}
}

func TestRollAbortsWithoutStatistic(t *testing.T) {
	adapter, engine, _, notifier, _ := newTestAdapter(t)
	sc, err := adapter.BuildContext(context.Background(), systems.BuildInput{
		Actor:   actor(),
		Options: domain.Options{RollKey: "arcana"},
	})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	result, err := adapter.Roll(context.Background(), sc)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result for a missing statistic")
	}
	if len(notifier.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", notifier.Warnings)
	}
	if len(engine.Requests) != 0 {
		t.Fatal("engine should not have been called")
	}
}

// A +5 athlete going all in on flavor: two d20s drawn as 9 and 14, the 14
// kept, total 19 against difficulty 15. A plain success; 19 is short of the
// critical threshold under this system's rules regardless of margin.
func TestSoCoolScenario(t *testing.T) {
	adapter, engine, _, _, _ := newTestAdapter(t)
	engine.Results = []dice.CheckResult{{
		Total:   19,
		Formula: "2d20kh1 + 5",
		Dice: []dice.Die{
			{Sides: 20, Value: 9, Discarded: true},
			{Sides: 20, Value: 14, Kept: true},
		},
	}}

	override := 15
	sc, err := adapter.BuildContext(context.Background(), systems.BuildInput{
		Actor:   actor(),
		Options: domain.Options{DifficultyOverride: &override},
	})
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if err := adapter.ApplyPreRollAdjustments(context.Background(), sc, systems.Adjustments{
		FlavorTier:   domain.FlavorFull,
		UseAdvantage: true,
	}); err != nil {
		t.Fatalf("ApplyPreRollAdjustments: %v", err)
	}

	result, err := adapter.Roll(context.Background(), sc)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if result == nil {
		t.Fatal("expected a roll result")
	}
	if result.Total != 19 {
		t.Fatalf("total = %d, want 19", result.Total)
	}
	if !engine.Requests[0].RollTwiceKeepHigher {
		t.Fatal("expected a roll-twice request")
	}
	if got := adapter.DegreeOfSuccess(result, sc); got != check.DegreeSuccess {
		t.Fatalf("degree = %v, want Success", got)
	}
}

func TestDegreeOfSuccess(t *testing.T) {
	adapter, _, _, _, _ := newTestAdapter(t)
	sc := &domain.StuntContext{Difficulty: 15}

	tests := []struct {
		name    string
		natural int
		total   int
		want    check.Degree
	}{
		{"natural 1 forces critical failure", 1, 20, check.DegreeCriticalFailure},
		{"natural 20 forces critical success", 20, 14, check.DegreeCriticalSuccess},
		{"total meets difficulty", 10, 15, check.DegreeSuccess},
		{"total under difficulty", 10, 14, check.DegreeFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := &dice.CheckResult{
				Total: tc.total,
				Dice:  []dice.Die{{Sides: 20, Value: tc.natural, Kept: true}},
			}
			if got := adapter.DegreeOfSuccess(result, sc); got != tc.want {
				t.Fatalf("degree = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCinematicUpgradePromotionTable(t *testing.T) {
	adapter, _, _, _, _ := newTestAdapter(t)
	sc := &domain.StuntContext{}

	tests := []struct {
		degree check.Degree
		spent  bool
		want   check.Degree
	}{
		{check.DegreeFailure, true, check.DegreeSuccess},
		{check.DegreeSuccess, true, check.DegreeCriticalSuccess},
		{check.DegreeCriticalFailure, true, check.DegreeCriticalFailure},
		{check.DegreeCriticalSuccess, true, check.DegreeCriticalSuccess},
		{check.DegreeFailure, false, check.DegreeFailure},
	}
	for _, tc := range tests {
		got := adapter.ApplyCinematicUpgrade(tc.degree, sc, tc.spent)
		if got != tc.want {
			t.Fatalf("upgrade(%v, spent=%v) = %v, want %v", tc.degree, tc.spent, got, tc.want)
		}
		if !got.Valid() {
			t.Fatalf("upgrade produced invalid degree %v", got)
		}
	}
}

func TestOutcomeRequiresTacticalRisk(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}

	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context: sc,
		Degree:  check.DegreeSuccess,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out != nil {
		t.Fatal("expected no outcome without tactical risk")
	}
	if len(conditions.Applied) != 0 {
		t.Fatalf("conditions applied: %v", conditions.Applied)
	}
}

func TestOutcomeSuccessAppliesDefaultDebuff(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}

	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeSuccess,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.TargetEffect != "restrained" {
		t.Fatalf("target effect = %q, want restrained", out.TargetEffect)
	}
	if len(conditions.Applied) != 1 || conditions.Applied[0].Target != "Ogre" {
		t.Fatalf("applied = %v, want one condition on Ogre", conditions.Applied)
	}
}

func TestOutcomeFailureAppliesSelfEffect(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}

	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeFailure,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.SelfEffect != "prone" {
		t.Fatalf("self effect = %q, want prone", out.SelfEffect)
	}
	if len(conditions.Applied) != 1 || conditions.Applied[0].Target != "Jules" {
		t.Fatalf("applied = %v, want one condition on Jules", conditions.Applied)
	}
}

func TestOutcomeWeaknessBumpPromotesToCritical(t *testing.T) {
	adapter, _, conditions, _, store := newTestAdapter(t)
	ctx := context.Background()

	rules := []weakness.Rule{{
		ID:      "acro",
		Label:   "Off Balance",
		Enabled: true,
		Trigger: weakness.Trigger{Kind: weakness.TriggerSkill, Key: "acrobatics"},
		Effect:  weakness.Effect{Type: weakness.EffectDegreeBump, Value: 1},
	}}
	if err := weakness.PutRules(ctx, store, "ogre", rules); err != nil {
		t.Fatalf("PutRules: %v", err)
	}

	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "acr"}
	out, err := adapter.ApplyOutcome(ctx, systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeSuccess,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.Degree != check.DegreeCriticalSuccess {
		t.Fatalf("degree = %v, want Critical Success", out.Degree)
	}
	if len(out.Descriptions) != 1 || !strings.Contains(out.Descriptions[0], "Off Balance") {
		t.Fatalf("descriptions = %v, want one naming the rule", out.Descriptions)
	}
	if out.Deferred == "" {
		t.Fatal("expected the critical degree to defer to native rules")
	}
	if len(conditions.Applied) != 0 {
		t.Fatalf("no condition expected, got %v", conditions.Applied)
	}
}

func TestOutcomeRiderMenu(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	riders := &stuntfakes.RiderChooser{Choice: "blinded", OK: true}
	adapter.deps.Riders = riders

	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}
	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeSuccess,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.TargetEffect != "blinded" {
		t.Fatalf("target effect = %q, want blinded", out.TargetEffect)
	}
	if len(riders.Phases) != 1 || riders.Phases[0] != domain.RiderSuccess {
		t.Fatalf("phases = %v, want one success prompt", riders.Phases)
	}
	if len(conditions.Applied) != 1 {
		t.Fatalf("applied = %v, want one condition", conditions.Applied)
	}
}

func TestOutcomeRiderDeclined(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	adapter.deps.Riders = &stuntfakes.RiderChooser{OK: false}

	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}
	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeSuccess,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.TargetEffect != "" {
		t.Fatalf("target effect = %q, want none", out.TargetEffect)
	}
	if len(conditions.Applied) != 0 {
		t.Fatalf("applied = %v, want none", conditions.Applied)
	}
}

func TestOutcomeDropItemEntry(t *testing.T) {
	adapter, _, conditions, _, _ := newTestAdapter(t)
	adapter.deps.Riders = &stuntfakes.RiderChooser{Choice: "drop-item", OK: true}

	sc := &domain.StuntContext{Actor: actor(), Target: target(), RollKind: domain.RollSkill, RollKey: "ath"}
	out, err := adapter.ApplyOutcome(context.Background(), systems.OutcomeInput{
		Context:      sc,
		Degree:       check.DegreeFailure,
		TacticalRisk: true,
	})
	if err != nil {
		t.Fatalf("ApplyOutcome: %v", err)
	}
	if out.SelfEffect != "drop-item" {
		t.Fatalf("self effect = %q, want drop-item", out.SelfEffect)
	}
	if len(conditions.Notes) != 1 || conditions.Notes[0].Target != "Jules" {
		t.Fatalf("notes = %v, want one on Jules", conditions.Notes)
	}
	if len(conditions.Applied) != 0 {
		t.Fatalf("applied = %v, want none", conditions.Applied)
	}
}
