package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/louisbranch/improv.engine/internal/app"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/service"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
)

// Run executes a scenario against a freshly assembled engine. Stunt output
// goes to out; expectation failures abort the run with the failing step named.
func Run(ctx context.Context, scenario *Scenario, cfg app.Config, out io.Writer, logger *slog.Logger) error {
	if scenario == nil {
		return fmt.Errorf("scenario is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	capture := &capturingPresenter{inner: service.NewWriterPresenter(out, cfg.GMView)}
	engine, err := app.NewEngine(ctx, cfg, app.Ports{Presenter: capture}, logger)
	if err != nil {
		return fmt.Errorf("assemble engine: %w", err)
	}
	defer engine.Close()

	runner := &runner{engine: engine, capture: capture, cast: map[string]*castMember{}}
	for i, step := range scenario.Steps {
		if err := runner.apply(ctx, step); err != nil {
			return fmt.Errorf("%s step %d (%s): %w", scenario.Name, i+1, step.Kind, err)
		}
	}
	return nil
}

type runner struct {
	engine      *app.Engine
	capture     *capturingPresenter
	cast        map[string]*castMember
	encounterID string
}

func (r *runner) apply(ctx context.Context, step Step) error {
	switch step.Kind {
	case "character":
		return r.addCharacter(step.Args)
	case "encounter":
		return r.startEncounter(ctx, step.Args)
	case "weakness":
		return r.addWeakness(ctx, step.Args)
	case "stunt":
		return r.resolveStunt(ctx, step.Args)
	case "reset_pool":
		if r.encounterID == "" {
			return fmt.Errorf("no encounter is running")
		}
		return r.engine.ResetPool(ctx, r.encounterID)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *runner) addCharacter(args map[string]any) error {
	name := stringArg(args, "name")
	if name == "" {
		return fmt.Errorf("character name is required")
	}
	member := &castMember{
		id:     slugify(name),
		name:   name,
		level:  intArg(args, "level", 1),
		skills: intMapArg(args, "skills"),
		traits: stringListArg(args, "traits"),
	}
	for kind, key := range map[domain.SaveKind]string{
		domain.SaveFortitude: "fortitude",
		domain.SaveReflex:    "reflex",
		domain.SaveWill:      "will",
	} {
		if v, ok := lookupInt(args, key); ok {
			member.setSave(kind, v)
		}
		if v, ok := lookupInt(args, key+"_mod"); ok {
			member.setSaveMod(kind, v)
		}
	}
	if v, ok := lookupInt(args, "ac"); ok {
		member.ac = &v
	}
	if v, ok := lookupInt(args, "perception"); ok {
		member.perception = &v
	}
	if v, ok := lookupInt(args, "perception_mod"); ok {
		member.perceptionMod = &v
	}
	r.cast[name] = member
	return nil
}

func (r *runner) startEncounter(ctx context.Context, args map[string]any) error {
	id := stringArg(args, "id")
	if id == "" {
		id = "encounter-1"
	}
	if err := r.engine.StartEncounter(ctx, id); err != nil {
		return err
	}
	r.encounterID = id
	return nil
}

func (r *runner) addWeakness(ctx context.Context, args map[string]any) error {
	member, err := r.lookup(stringArg(args, "character"))
	if err != nil {
		return err
	}
	rule, err := ruleFromArgs(args)
	if err != nil {
		return err
	}
	store := r.engine.Flags()
	rules, err := weakness.RulesFor(ctx, store, member.ID())
	if err != nil {
		return err
	}
	return weakness.PutRules(ctx, store, member.ID(), append(rules, rule))
}

func (r *runner) resolveStunt(ctx context.Context, args map[string]any) error {
	actor, err := r.lookup(stringArg(args, "actor"))
	if err != nil {
		return err
	}
	var target domain.Character
	if name := stringArg(args, "target"); name != "" {
		member, err := r.lookup(name)
		if err != nil {
			return err
		}
		target = member
	}

	opts := domain.Options{
		RollKind:     domain.RollKind(stringArg(args, "kind")),
		RollKey:      stringArg(args, "skill"),
		TacticalRisk: boolArg(args, "risk"),
		UseAdvantage: boolArg(args, "advantage"),
		SpendPool:    boolArg(args, "pool"),
		TriggerID:    stringArg(args, "trigger"),
		Plausible:    true,
		EncounterID:  r.encounterID,
	}
	if opts.RollKind == "" {
		opts.RollKind = domain.RollSkill
	}
	if raw, ok := args["plausible"]; ok {
		if v, isBool := raw.(bool); isBool {
			opts.Plausible = v
		}
	}
	if raw, ok := args["flavor"]; ok {
		tier, err := parseFlavor(raw)
		if err != nil {
			return err
		}
		opts.FlavorTier = tier
	}
	if dc, ok := lookupInt(args, "dc"); ok {
		opts.DifficultyOverride = &dc
	}

	r.capture.reset()
	if err := r.engine.ResolveStunt(ctx, actor, target, opts); err != nil {
		return err
	}

	if want := stringArg(args, "expect_degree"); want != "" {
		summary, ok := r.capture.last()
		if !ok {
			return fmt.Errorf("expected degree %q but the stunt was not presented", want)
		}
		if normalizeDegree(want) != normalizeDegree(summary.Degree.String()) {
			return fmt.Errorf("degree = %s, want %s", summary.Degree, want)
		}
	}
	return nil
}

func (r *runner) lookup(name string) (*castMember, error) {
	if name == "" {
		return nil, fmt.Errorf("character name is required")
	}
	member, ok := r.cast[name]
	if !ok {
		return nil, fmt.Errorf("unknown character %q", name)
	}
	return member, nil
}

func ruleFromArgs(args map[string]any) (weakness.Rule, error) {
	id := stringArg(args, "id")
	if id == "" {
		generated, err := domain.NewID()
		if err != nil {
			return weakness.Rule{}, err
		}
		id = generated
	}
	rule := weakness.Rule{
		ID:      id,
		Label:   stringArg(args, "label"),
		Enabled: true,
		Trigger: weakness.Trigger{
			Kind:  weakness.TriggerKind(stringArg(args, "kind")),
			Key:   stringArg(args, "key"),
			Trait: stringArg(args, "trait"),
		},
	}
	if rule.Trigger.Kind == "" {
		return weakness.Rule{}, fmt.Errorf("weakness trigger kind is required")
	}
	if condition := stringArg(args, "condition"); condition != "" {
		rule.Effect = weakness.Effect{
			Type:      weakness.EffectApplyCondition,
			Condition: condition,
			Value:     intArg(args, "value", 0),
		}
		return rule, nil
	}
	rule.Effect = weakness.Effect{
		Type:  weakness.EffectDegreeBump,
		Value: intArg(args, "value", 1),
	}
	return rule, nil
}

func parseFlavor(raw any) (domain.FlavorTier, error) {
	switch v := raw.(type) {
	case string:
		return domain.ParseFlavorTier(v)
	case int:
		return domain.NormalizeFlavorTier(v), nil
	case float64:
		return domain.NormalizeFlavorTier(int(v)), nil
	default:
		return domain.FlavorNone, fmt.Errorf("flavor must be a string or number")
	}
}

func normalizeDegree(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", " ")
	return strings.ReplaceAll(value, "_", " ")
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// capturingPresenter tees summaries to the inner presenter while keeping the
// most recent one for expectation checks.
type capturingPresenter struct {
	inner service.Presenter

	mu      sync.Mutex
	summary *service.Summary
}

func (p *capturingPresenter) Present(ctx context.Context, summary service.Summary) error {
	p.mu.Lock()
	p.summary = &summary
	p.mu.Unlock()
	if p.inner == nil {
		return nil
	}
	return p.inner.Present(ctx, summary)
}

func (p *capturingPresenter) reset() {
	p.mu.Lock()
	p.summary = nil
	p.mu.Unlock()
}

func (p *capturingPresenter) last() (service.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summary == nil {
		return service.Summary{}, false
	}
	return *p.summary, true
}

// Lua argument helpers. Values arrive through tableToMap, so numbers are int
// or float64 and nested tables are map[string]any or []any.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := lookupInt(args, key); ok {
		return v
	}
	return fallback
}

func lookupInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func intMapArg(args map[string]any, key string) map[string]int {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		if n, isInt := v.(int); isInt {
			out[k] = n
		}
	}
	return out
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, isString := v.(string); isString {
			out = append(out, s)
		}
	}
	return out
}
