package scenario

import (
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/systems"
)

// castMember is a scripted character. Scenarios carry flat statistics, so
// strikes are never available and stunts resolve through plain checks.
type castMember struct {
	id            string
	name          string
	level         int
	skills        map[string]int
	saveDCs       map[domain.SaveKind]int
	saveMods      map[domain.SaveKind]int
	perception    *int
	perceptionMod *int
	ac            *int
	traits        []string
}

var _ domain.Character = (*castMember)(nil)

func (c *castMember) ID() string   { return c.id }
func (c *castMember) Name() string { return c.name }
func (c *castMember) Level() int   { return c.level }

func (c *castMember) SkillModifier(key string) (int, bool) {
	v, ok := c.skills[systems.NormalizeSkillKey(key)]
	return v, ok
}

func (c *castMember) SaveDifficulty(kind domain.SaveKind) (int, bool) {
	v, ok := c.saveDCs[kind]
	return v, ok
}

func (c *castMember) SaveModifier(kind domain.SaveKind) (int, bool) {
	v, ok := c.saveMods[kind]
	return v, ok
}

func (c *castMember) PerceptionDifficulty() (int, bool) {
	if c.perception == nil {
		return 0, false
	}
	return *c.perception, true
}

func (c *castMember) PerceptionModifier() (int, bool) {
	if c.perceptionMod == nil {
		return 0, false
	}
	return *c.perceptionMod, true
}

func (c *castMember) ArmorClass() (int, bool) {
	if c.ac == nil {
		return 0, false
	}
	return *c.ac, true
}

func (c *castMember) Traits() []string { return c.traits }

func (c *castMember) Strikes() []domain.Strike { return nil }

func (c *castMember) setSave(kind domain.SaveKind, value int) {
	if c.saveDCs == nil {
		c.saveDCs = map[domain.SaveKind]int{}
	}
	c.saveDCs[kind] = value
}

func (c *castMember) setSaveMod(kind domain.SaveKind, value int) {
	if c.saveMods == nil {
		c.saveMods = map[domain.SaveKind]int{}
	}
	c.saveMods[kind] = value
}
