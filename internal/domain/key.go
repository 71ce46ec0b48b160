package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Tier is a gem rarity expressed as a star count.
type Tier int

// Tiers lists every tier the catalog knows about, lowest first.
var Tiers = []Tier{1, 2, 5}

// ParseTier accepts "2" as well as the directory form "2star".
func ParseTier(s string) (Tier, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "star")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	t := Tier(n)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTier, n)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// Dir is the folder name documents of this tier live in.
func (t Tier) Dir() string {
	return strconv.Itoa(int(t)) + "star"
}

func (t Tier) String() string {
	return strconv.Itoa(int(t))
}

// MarshalJSON writes the tier as a string, matching the stored documents.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON accepts both "2" and 2.
func (t *Tier) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "star"))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTier, string(b))
	}
	*t = Tier(n)
	return nil
}

// ItemKey identifies a gem for locking and storage: tier plus normalized name.
type ItemKey struct {
	Tier Tier
	Name string
}

// NewItemKey builds the key for a display name in a tier.
func NewItemKey(tier Tier, displayName string) (ItemKey, error) {
	if !tier.Valid() {
		return ItemKey{}, fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	name := NormalizeName(displayName)
	if name == "" {
		return ItemKey{}, fmt.Errorf("%w: empty name", ErrInvalidItemKey)
	}
	return ItemKey{Tier: tier, Name: name}, nil
}

// ParseItemKey parses the wire form "<tier>-<name>". The name part is
// normalized again so differently spelled keys for one gem compare equal.
func ParseItemKey(s string) (ItemKey, error) {
	tierPart, namePart, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return ItemKey{}, fmt.Errorf("%w: %q", ErrInvalidItemKey, s)
	}
	tier, err := ParseTier(tierPart)
	if err != nil {
		return ItemKey{}, fmt.Errorf("%w: %q", ErrInvalidItemKey, s)
	}
	return NewItemKey(tier, namePart)
}

func (k ItemKey) String() string {
	return k.Tier.String() + "-" + k.Name
}

func (k ItemKey) IsZero() bool {
	return k.Tier == 0 && k.Name == ""
}

// MarshalText lets keys be used directly as JSON object keys.
func (k ItemKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ItemKey) UnmarshalText(b []byte) error {
	parsed, err := ParseItemKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NormalizeName lowercases a display name and folds every run of
// non-alphanumeric characters into a single underscore.
// "Battleguard's Vigor" becomes "battleguard_s_vigor".
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// FileName returns the legacy on-disk document name for a display name:
// apostrophes dropped, hyphens and spaces turned into underscores.
// "Berserker's Eye" becomes "berserkers_eye.json".
func FileName(displayName string) string {
	name := strings.NewReplacer("'", "", "’", "", "-", " ").Replace(displayName)
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_") + ".json"
}
