// Package dice implements d20 check rolling for the stunt pipeline.
//
// A check rolls a single d20 (or two, keeping the higher, when advantage
// applies), adds a base statistic modifier plus any labeled situational
// modifiers, and records every die drawn so callers can inspect which
// natural value was kept.
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// ErrMissingRng indicates a roll was requested without a random source.
var ErrMissingRng = errors.New("random source is required")

// Die captures a single rolled die. When several dice were drawn for one
// check (advantage, rerolls, dice pools) exactly one die is marked Kept;
// discarded dice stay in the slice for audit purposes. Sub holds nested
// sub-rolls for pool mechanics.
type Die struct {
	Sides     int
	Value     int
	Kept      bool
	Discarded bool
	Sub       []Die
}

// Modifier is a labeled situational adjustment to a check.
type Modifier struct {
	Label string
	Type  string
	Value int
}

// CheckRequest describes one d20 check.
type CheckRequest struct {
	Label               string
	Modifier            int
	Modifiers           []Modifier
	RollTwiceKeepHigher bool
}

// CheckResult is the immutable outcome of one check roll.
type CheckResult struct {
	Total   int
	Formula string
	Dice    []Die
}

// ModifierTotal sums the base modifier and all situational modifiers.
func (r CheckRequest) ModifierTotal() int {
	total := r.Modifier
	for _, m := range r.Modifiers {
		total += m.Value
	}
	return total
}

// RollCheck performs a d20 check using the provided random source.
//
// # Determinism
//
// RollCheck is deterministic with respect to the provided rng: the same
// source state and the same request always produce the same result.
//
// # Advantage
//
// When RollTwiceKeepHigher is set, two d20s are drawn in order and the
// higher is marked Kept; the other is marked Discarded. Ties keep the
// first die drawn.
func RollCheck(rng *rand.Rand, request CheckRequest) (CheckResult, error) {
	if rng == nil {
		return CheckResult{}, ErrMissingRng
	}

	dice := []Die{{Sides: 20, Value: rollDie(rng, 20), Kept: true}}
	if request.RollTwiceKeepHigher {
		second := Die{Sides: 20, Value: rollDie(rng, 20)}
		if second.Value > dice[0].Value {
			dice[0].Kept = false
			dice[0].Discarded = true
			second.Kept = true
		} else {
			second.Discarded = true
		}
		dice = append(dice, second)
	}

	natural := 0
	for _, die := range dice {
		if die.Kept {
			natural = die.Value
		}
	}

	modifier := request.ModifierTotal()
	return CheckResult{
		Total:   natural + modifier,
		Formula: formula(request, modifier),
		Dice:    dice,
	}, nil
}

// NaturalD20 extracts the natural value of the die that decided a check.
// It prefers a die explicitly marked kept, then the first non-discarded
// d20, and finally recurses into nested sub-rolls.
func NaturalD20(dice []Die) (int, bool) {
	for _, die := range dice {
		if die.Sides == 20 && die.Kept {
			return die.Value, true
		}
	}
	for _, die := range dice {
		if die.Sides == 20 && !die.Discarded {
			return die.Value, true
		}
	}
	for _, die := range dice {
		if value, ok := NaturalD20(die.Sub); ok {
			return value, ok
		}
	}
	return 0, false
}

// Engine is a local RollEngine backed by math/rand. Hosts with native dice
// machinery inject their own engine instead; this one serves tests and the
// scenario runner. Safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a deterministic local dice engine from a seed.
func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// RollCheck rolls one check, serializing access to the underlying source.
func (e *Engine) RollCheck(request CheckRequest) (*CheckResult, error) {
	if e == nil || e.rng == nil {
		return nil, ErrMissingRng
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	result, err := RollCheck(e.rng, request)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// formula renders a display formula such as "2d20kh1 + 7".
func formula(request CheckRequest, modifier int) string {
	var b strings.Builder
	if request.RollTwiceKeepHigher {
		b.WriteString("2d20kh1")
	} else {
		b.WriteString("1d20")
	}
	if modifier != 0 {
		sign := "+"
		if modifier < 0 {
			sign = "-"
		}
		fmt.Fprintf(&b, " %s %d", sign, abs(modifier))
	}
	return b.String()
}

func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
