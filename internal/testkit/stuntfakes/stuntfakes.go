// Package stuntfakes provides in-memory fakes for the stunt pipeline's
// host-runtime ports. Tests script character statistics, dice results and
// dialog choices instead of talking to a live tabletop runtime.
package stuntfakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
)

// Character is a scripted domain.Character.
type Character struct {
	IDValue    string
	NameValue  string
	LevelValue int

	Skills         map[string]int
	SaveDCs        map[domain.SaveKind]int
	SaveMods       map[domain.SaveKind]int
	PerceptionDC   *int
	PerceptionMod  *int
	ArmorClassible *int
	TraitList      []string
	StrikeList     []domain.Strike
}

func (c *Character) ID() string   { return c.IDValue }
func (c *Character) Name() string { return c.NameValue }
func (c *Character) Level() int   { return c.LevelValue }

func (c *Character) SkillModifier(key string) (int, bool) {
	mod, ok := c.Skills[key]
	return mod, ok
}

func (c *Character) SaveDifficulty(kind domain.SaveKind) (int, bool) {
	dc, ok := c.SaveDCs[kind]
	return dc, ok
}

func (c *Character) SaveModifier(kind domain.SaveKind) (int, bool) {
	mod, ok := c.SaveMods[kind]
	return mod, ok
}

func (c *Character) PerceptionDifficulty() (int, bool) {
	if c.PerceptionDC == nil {
		return 0, false
	}
	return *c.PerceptionDC, true
}

func (c *Character) PerceptionModifier() (int, bool) {
	if c.PerceptionMod == nil {
		return 0, false
	}
	return *c.PerceptionMod, true
}

func (c *Character) ArmorClass() (int, bool) {
	if c.ArmorClassible == nil {
		return 0, false
	}
	return *c.ArmorClassible, true
}

func (c *Character) Traits() []string          { return c.TraitList }
func (c *Character) Strikes() []domain.Strike { return c.StrikeList }

// IntPtr is a convenience for optional statistic fields.
func IntPtr(v int) *int { return &v }

// Strike is a scripted domain.Strike. Each Roll pops the next scripted
// result and records the request it received.
type Strike struct {
	LabelValue     string
	TraitValues    []string
	RangedValue    bool
	ModifierValue  int
	Results        []dice.CheckResult
	Err            error
	Requests       []domain.StrikeRollRequest
}

func (s *Strike) Label() string       { return s.LabelValue }
func (s *Strike) Traits() []string    { return s.TraitValues }
func (s *Strike) Ranged() bool        { return s.RangedValue }
func (s *Strike) AttackModifier() int { return s.ModifierValue }

func (s *Strike) Roll(ctx context.Context, request domain.StrikeRollRequest) (*dice.CheckResult, error) {
	s.Requests = append(s.Requests, request)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Results) == 0 {
		return nil, fmt.Errorf("strike %q has no scripted results left", s.LabelValue)
	}
	result := s.Results[0]
	s.Results = s.Results[1:]
	return &result, nil
}

// RollEngine is a scripted domain.RollEngine.
type RollEngine struct {
	Results  []dice.CheckResult
	Err      error
	Requests []dice.CheckRequest
}

func (e *RollEngine) RollCheck(request dice.CheckRequest) (*dice.CheckResult, error) {
	e.Requests = append(e.Requests, request)
	if e.Err != nil {
		return nil, e.Err
	}
	if len(e.Results) == 0 {
		return nil, fmt.Errorf("roll engine has no scripted results left")
	}
	result := e.Results[0]
	e.Results = e.Results[1:]
	return &result, nil
}

// NaturalResult builds a single-die check result for a given natural value
// and total modifier, the common scripted shape in pipeline tests.
func NaturalResult(natural, modifier int) dice.CheckResult {
	return dice.CheckResult{
		Total:   natural + modifier,
		Formula: "1d20",
		Dice:    []dice.Die{{Sides: 20, Value: natural, Kept: true}},
	}
}

// Notifier records warnings and notices.
type Notifier struct {
	mu       sync.Mutex
	Warnings []string
	Notices  []string
}

func (n *Notifier) Warn(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Warnings = append(n.Warnings, message)
}

func (n *Notifier) Info(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, message)
}

// AppliedCondition is one recorded condition application.
type AppliedCondition struct {
	Target string
	Slug   string
	Value  int
}

// EffectNote is one recorded fallback note.
type EffectNote struct {
	Target string
	Label  string
	Note   string
	Rounds int
}

// ConditionLog records condition applications; slugs in FailSlugs error out,
// exercising the degrade-to-note path.
type ConditionLog struct {
	Applied   []AppliedCondition
	Notes     []EffectNote
	FailSlugs map[string]bool
}

func (l *ConditionLog) ApplyCondition(_ context.Context, target domain.Character, slug string, value int) error {
	if l.FailSlugs[slug] {
		return fmt.Errorf("condition %q unavailable", slug)
	}
	l.Applied = append(l.Applied, AppliedCondition{Target: target.Name(), Slug: slug, Value: value})
	return nil
}

func (l *ConditionLog) ApplyEffectNote(_ context.Context, target domain.Character, label, note string, rounds int) error {
	l.Notes = append(l.Notes, EffectNote{Target: target.Name(), Label: label, Note: note, Rounds: rounds})
	return nil
}

// RiderChooser returns a fixed choice for every rider prompt.
type RiderChooser struct {
	Choice string
	OK     bool
	Err    error
	Phases []domain.RiderPhase
}

func (c *RiderChooser) ChooseRider(_ context.Context, phase domain.RiderPhase, _ []string) (string, bool, error) {
	c.Phases = append(c.Phases, phase)
	return c.Choice, c.OK, c.Err
}

// CritChooser returns a fixed choice for every crit prompt.
type CritChooser struct {
	Choice  domain.CritChoice
	Err     error
	Degrees []check.Degree
}

func (c *CritChooser) ChooseCritResolution(_ context.Context, degree check.Degree) (domain.CritChoice, error) {
	c.Degrees = append(c.Degrees, degree)
	return c.Choice, c.Err
}
