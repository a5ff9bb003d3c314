package dnd5e

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
)

// dropItemEntry is the narrative menu entry: no condition, just a note.
const dropItemEntry = "drop-item"

// ApplyOutcome applies the mechanical consequence of a resolved stunt. It
// does nothing unless the player flagged tactical risk: a riskless stunt is
// pure narration. Weakness rules on the target are consulted first; when
// none fire, success falls through to the rider menu and then the default
// debuff, failure to the setback menu and then the default self-effect.
// Critical degrees defer to the system's own critical rules.
func (a *Adapter) ApplyOutcome(ctx context.Context, in systems.OutcomeInput) (*systems.Outcome, error) {
	if !in.TacticalRisk {
		return nil, nil
	}
	sc := in.Context
	out := &systems.Outcome{Degree: in.Degree}

	if sc.Target != nil {
		a.applyWeaknesses(ctx, sc, out)
	}

	switch out.Degree {
	case check.DegreeSuccess:
		if sc.Target != nil && len(out.Descriptions) == 0 {
			if applied := a.applyFromMenu(ctx, sc.Target, domain.RiderSuccess, a.cfg.SuccessRiders, a.cfg.SuccessConditionSlug); applied != "" {
				out.TargetEffect = applied
				out.Descriptions = append(out.Descriptions, applied)
			}
		}
	case check.DegreeFailure:
		if applied := a.applyFromMenu(ctx, sc.Actor, domain.RiderFailure, a.cfg.FailureSetbacks, a.cfg.FailureConditionSlug); applied != "" {
			out.SelfEffect = applied
			out.Descriptions = append(out.Descriptions, applied)
		}
	default:
		out.Deferred = "Resolve with the system's native critical rules."
	}
	return out, nil
}

// applyWeaknesses evaluates the target's weakness rules against the stunt. A
// pre-selected trigger replaces the stored list; otherwise every enabled rule
// gets a chance, in stored order.
func (a *Adapter) applyWeaknesses(ctx context.Context, sc *domain.StuntContext, out *systems.Outcome) {
	var rules []weakness.Rule
	if sc.Trigger != nil {
		rules = []weakness.Rule{*sc.Trigger}
	} else {
		stored, err := weakness.RulesFor(ctx, a.deps.Flags, sc.Target.ID())
		if err != nil {
			a.warn(ctx, fmt.Sprintf("Could not load weaknesses for %s: %v", sc.Target.Name(), err))
			return
		}
		rules = systems.NormalizeRuleKeys(stored)
	}

	rc := weakness.Context{
		Kind:   string(sc.RollKind),
		Key:    sc.RollKey,
		Traits: mergedTraits(sc),
	}
	degree, applied := weakness.Apply(ctx, rules, rc, out.Degree, func(ctx context.Context, slug string, value int) error {
		if err := a.applyCondition(ctx, sc.Target, slug, value); err != nil {
			return err
		}
		out.TargetEffect = slug
		return nil
	})
	out.Degree = degree
	out.Descriptions = append(out.Descriptions, applied...)
}

// applyFromMenu resolves one configurable effect: let the user pick from the
// menu when a chooser is wired, fall back to the default slug otherwise. A
// declined prompt applies nothing.
func (a *Adapter) applyFromMenu(ctx context.Context, recipient domain.Character, phase domain.RiderPhase, menu []string, fallback string) string {
	if recipient == nil {
		return ""
	}
	entry := fallback
	if a.deps.Riders != nil && len(menu) > 0 {
		choice, ok, err := a.deps.Riders.ChooseRider(ctx, phase, menu)
		switch {
		case err != nil:
			a.warn(ctx, fmt.Sprintf("Effect prompt failed: %v", err))
		case !ok:
			return ""
		default:
			entry = choice
		}
	}
	return a.applyEntry(ctx, recipient, entry)
}

// applyEntry applies one menu entry ("slug", "slug:value", or drop-item).
func (a *Adapter) applyEntry(ctx context.Context, recipient domain.Character, entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}
	if entry == dropItemEntry {
		if a.deps.Conditions != nil {
			if err := a.deps.Conditions.ApplyEffectNote(ctx, recipient, "Dropped item", fmt.Sprintf("%s drops a held item.", recipient.Name()), 1); err != nil {
				a.warn(ctx, fmt.Sprintf("Could not note dropped item: %v", err))
				return ""
			}
		}
		return dropItemEntry
	}

	slug, value := parseEntry(entry)
	if err := a.applyCondition(ctx, recipient, slug, value); err != nil {
		return ""
	}
	return slug
}

func (a *Adapter) applyCondition(ctx context.Context, recipient domain.Character, slug string, value int) error {
	if a.deps.Conditions == nil {
		return fmt.Errorf("no condition applier wired")
	}
	if err := a.deps.Conditions.ApplyCondition(ctx, recipient, slug, value); err != nil {
		a.warn(ctx, fmt.Sprintf("Could not apply %s to %s: %v", slug, recipient.Name(), err))
		return err
	}
	return nil
}

// parseEntry splits a "slug:value" menu entry; a bare slug has value 0.
func parseEntry(entry string) (string, int) {
	slug, raw, found := strings.Cut(entry, ":")
	if !found {
		return slug, 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return slug, 0
	}
	return slug, value
}

// mergedTraits joins the stunt's traits with the target's, so trait and
// condition triggers can match either side.
func mergedTraits(sc *domain.StuntContext) []string {
	traits := append([]string(nil), sc.Traits...)
	if sc.Target != nil {
		traits = append(traits, sc.Target.Traits()...)
	}
	return traits
}
