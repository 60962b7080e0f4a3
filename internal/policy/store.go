package policy

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"SignalGate/internal/domain/models"
)

var (
	// ErrUnknownName rejects a switch to a profile that was never registered.
	ErrUnknownName = errors.New("unknown risk policy")
	// ErrInvalid marks a structurally unusable policy. Snapshots are validated
	// before activation, so hitting this at derive time means something upstream
	// bypassed the store; it rejects loudly instead of sizing trades with garbage.
	ErrInvalid = errors.New("invalid risk policy")
)

// Presets returns the built-in profiles. Numbers follow the usual
// conservative/moderate/aggressive ladder; configuration may override them.
func Presets() map[models.PolicyName]models.RiskPolicy {
	return map[models.PolicyName]models.RiskPolicy{
		models.PolicyConservative: {
			Name:            models.PolicyConservative,
			ATRMultSL:       1.0,
			ATRMultTP:       1.5,
			MinNotional:     10,
			MaxNotional:     250,
			DefaultNotional: 50,
		},
		models.PolicyModerate: {
			Name:            models.PolicyModerate,
			ATRMultSL:       1.5,
			ATRMultTP:       2.5,
			MinNotional:     50,
			MaxNotional:     500,
			DefaultNotional: 100,
		},
		models.PolicyAggressive: {
			Name:            models.PolicyAggressive,
			ATRMultSL:       2.0,
			ATRMultTP:       4.0,
			MinNotional:     50,
			MaxNotional:     2000,
			DefaultNotional: 250,
		},
	}
}

// Validate rejects policies that cannot size a trade.
func Validate(p models.RiskPolicy) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalid)
	case p.ATRMultSL <= 0 || p.ATRMultTP <= 0:
		return fmt.Errorf("%w %q: ATR multipliers must be positive", ErrInvalid, p.Name)
	case p.MinNotional < 0 || p.MaxNotional <= 0 || p.MinNotional > p.MaxNotional:
		return fmt.Errorf("%w %q: notional band [%v, %v]", ErrInvalid, p.Name, p.MinNotional, p.MaxNotional)
	case p.DefaultNotional <= 0:
		return fmt.Errorf("%w %q: default notional must be positive", ErrInvalid, p.Name)
	}
	return nil
}

// Store holds the registered profiles and the active one. The active value is
// swapped atomically as a whole, so concurrent derivations always read a
// complete policy and two reads during one admission cannot observe a tear.
type Store struct {
	active   atomic.Pointer[models.RiskPolicy]
	profiles map[models.PolicyName]models.RiskPolicy
}

// NewStore registers the given profiles (Presets when empty) and activates
// initial. Every profile is validated up front; a bad one never becomes
// switchable.
func NewStore(profiles map[models.PolicyName]models.RiskPolicy, initial models.PolicyName) (*Store, error) {
	if len(profiles) == 0 {
		profiles = Presets()
	}
	reg := make(map[models.PolicyName]models.RiskPolicy, len(profiles))
	for name, p := range profiles {
		if p.Name == "" {
			p.Name = name
		}
		if err := Validate(p); err != nil {
			return nil, err
		}
		reg[name] = p
	}
	s := &Store{profiles: reg}
	if _, err := s.Switch(string(initial)); err != nil {
		return nil, err
	}
	return s, nil
}

// Active returns the current policy snapshot by value.
func (s *Store) Active() models.RiskPolicy {
	return *s.active.Load()
}

// Switch activates the named profile and returns it. Unknown names leave the
// active policy untouched.
func (s *Store) Switch(name string) (models.RiskPolicy, error) {
	p, ok := s.profiles[models.PolicyName(name)]
	if !ok {
		return models.RiskPolicy{}, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	cp := p
	s.active.Store(&cp)
	return cp, nil
}

// Names lists the switchable profiles in stable order.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}
