package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type EffectType string

const (
	EffectProc    EffectType = "proc_effect"
	EffectStat    EffectType = "stat_effect"
	EffectDamage  EffectType = "damage_effect"
	EffectBuff    EffectType = "buff_effect"
	EffectDebuff  EffectType = "debuff_effect"
	EffectShield  EffectType = "shield_effect"
	EffectSummon  EffectType = "summon_effect"
	EffectUtility EffectType = "utility_effect"
)

var effectTypes = map[EffectType]struct{}{
	EffectProc: {}, EffectStat: {}, EffectDamage: {}, EffectBuff: {},
	EffectDebuff: {}, EffectShield: {}, EffectSummon: {}, EffectUtility: {},
}

func (t EffectType) Valid() bool {
	_, ok := effectTypes[t]
	return ok
}

// Condition is the trigger attached to an effect.
type Condition string

const (
	CondOnAttack            Condition = "on_attack"
	CondOnDash              Condition = "on_dash"
	CondOnSkill             Condition = "on_skill"
	CondOnDamageTaken       Condition = "on_damage_taken"
	CondOnKill              Condition = "on_kill"
	CondLifeThreshold       Condition = "life_threshold"
	CondCooldownRestriction Condition = "cooldown_restriction"
	CondResonance           Condition = "resonance"
	CondCombatRating        Condition = "combat_rating"
)

var conditions = map[Condition]struct{}{
	CondOnAttack: {}, CondOnDash: {}, CondOnSkill: {}, CondOnDamageTaken: {}, CondOnKill: {},
	CondLifeThreshold: {}, CondCooldownRestriction: {}, CondResonance: {}, CondCombatRating: {},
}

func (c Condition) Valid() bool {
	_, ok := conditions[c]
	return ok
}

const (
	MinRank = 1
	MaxRank = 10
)

// Effect is one line of a rank's bonuses.
type Effect struct {
	Type        EffectType  `json:"type"`
	Description string      `json:"description"`
	Conditions  []Condition `json:"conditions,omitempty"`
	Value       *float64    `json:"value,omitempty"`
	Duration    *float64    `json:"duration,omitempty"`
	Cooldown    *float64    `json:"cooldown,omitempty"`

	// Extra keeps fields this service does not model so they survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

type Rank struct {
	Effects []Effect `json:"effects"`
}

type Metadata struct {
	Version     string `json:"version"`
	LastUpdated string `json:"last_updated"`
}

// Gem is the document stored for one catalog item.
type Gem struct {
	Name        string          `json:"name"`
	Stars       Tier            `json:"stars"`
	Description string          `json:"description"`
	Ranks       map[string]Rank `json:"ranks"`
	Metadata    Metadata        `json:"metadata"`

	Extra map[string]json.RawMessage `json:"-"`
}

// GemSummary is the list-view projection of a gem.
type GemSummary struct {
	Key         ItemKey
	Name        string
	Stars       Tier
	Description string
	Effects     []string
	FilePath    string
}

// Key derives the item key from the document's own name and tier.
func (g Gem) Key() (ItemKey, error) {
	return NewItemKey(g.Stars, g.Name)
}

// Summary projects the gem for list views; effects come from rank 1.
func (g Gem) Summary(filePath string) GemSummary {
	key, _ := g.Key()
	s := GemSummary{
		Key:         key,
		Name:        g.Name,
		Stars:       g.Stars,
		Description: g.Description,
		Effects:     []string{},
		FilePath:    filePath,
	}
	if r, ok := g.Ranks["1"]; ok {
		for _, e := range r.Effects {
			s.Effects = append(s.Effects, e.Description)
		}
	}
	return s
}

// RankNumbers returns the gem's rank keys in numeric order; keys that are
// not numbers sort last.
func (g Gem) RankNumbers() []string {
	keys := make([]string, 0, len(g.Ranks))
	for k := range g.Ranks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Validate checks the document before it is written.
func (g Gem) Validate() error {
	var problems []string
	if g.Name == "" {
		problems = append(problems, "name is required")
	} else if NormalizeName(g.Name) == "" {
		problems = append(problems, "name must contain letters or digits")
	}
	if !g.Stars.Valid() {
		problems = append(problems, fmt.Sprintf("stars %d is not a known tier", g.Stars))
	}
	if len(g.Ranks) == 0 {
		problems = append(problems, "at least one rank is required")
	}
	for _, rank := range g.RankNumbers() {
		n, err := strconv.Atoi(rank)
		if err != nil || n < MinRank || n > MaxRank {
			problems = append(problems, fmt.Sprintf("rank %q must be between %d and %d", rank, MinRank, MaxRank))
			continue
		}
		for i, e := range g.Ranks[rank].Effects {
			for _, p := range e.validate() {
				problems = append(problems, fmt.Sprintf("rank %s effect %d: %s", rank, i, p))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (e Effect) validate() []string {
	var problems []string
	if !e.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", e.Type))
	}
	if e.Description == "" {
		problems = append(problems, "description is required")
	}
	for _, c := range e.Conditions {
		if !c.Valid() {
			problems = append(problems, fmt.Sprintf("unknown condition %q", c))
		}
	}
	for name, v := range map[string]*float64{"value": e.Value, "duration": e.Duration, "cooldown": e.Cooldown} {
		if v != nil && *v < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	sort.Strings(problems)
	return problems
}
