package session

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Starzy87/stake-mines-backend/internal/books"
	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// Source selects where a mode's outcomes come from.
type Source string

const (
	SourceLive Source = "live"
	SourceBook Source = "book"
)

// Mode is a playable game mode.
type Mode struct {
	Name   string
	Source Source
	Cost   decimal.Decimal
	// Bonus is nil for modes without bonus tiles. Book modes never carry one.
	Bonus *games.BonusProfile
	// Book is set for SourceBook modes.
	Book *books.Table
}

// ModeInfo is the public description of a mode.
type ModeInfo struct {
	Name      string `json:"name"`
	Source    Source `json:"source"`
	Cost      string `json:"cost"`
	Bonus     string `json:"bonus,omitempty"`
	MineCount int    `json:"mine_count,omitempty"`
}

// LiveMode describes a configured live mode.
type LiveMode struct {
	Name  string
	Cost  decimal.Decimal
	Bonus string
}

// DefaultLiveModes are the modes served when none are configured.
func DefaultLiveModes() []LiveMode {
	return []LiveMode{
		{Name: "normal", Cost: decimal.NewFromInt(1)},
		{Name: "boost10", Cost: decimal.NewFromInt(10), Bonus: "gold_gem"},
		{Name: "boost75", Cost: decimal.NewFromInt(75), Bonus: "nova_star"},
	}
}

// Modes is the immutable registry of playable modes.
type Modes struct {
	byName map[string]*Mode
	names  []string
}

// NewModes registers the live modes and every mode of lib. lib may be nil.
// A name used twice is an error.
func NewModes(live []LiveMode, lib *books.Library) (*Modes, error) {
	m := &Modes{byName: make(map[string]*Mode)}

	for _, lm := range live {
		if lm.Name == "" {
			return nil, fmt.Errorf("live mode without a name")
		}
		if !lm.Cost.IsPositive() {
			return nil, fmt.Errorf("mode %q: cost must be positive", lm.Name)
		}
		profile, ok := games.LookupBonusProfile(lm.Bonus)
		if !ok {
			return nil, fmt.Errorf("mode %q: unknown bonus profile %q", lm.Name, lm.Bonus)
		}
		if err := m.add(&Mode{Name: lm.Name, Source: SourceLive, Cost: lm.Cost, Bonus: profile}); err != nil {
			return nil, err
		}
	}

	for _, name := range lib.Names() {
		bm, _ := lib.Mode(name)
		if err := m.add(&Mode{Name: bm.Name, Source: SourceBook, Cost: bm.Cost, Book: bm.Table}); err != nil {
			return nil, err
		}
	}

	if len(m.names) == 0 {
		return nil, fmt.Errorf("no game modes configured")
	}
	sort.Strings(m.names)
	return m, nil
}

func (m *Modes) add(mode *Mode) error {
	if _, dup := m.byName[mode.Name]; dup {
		return fmt.Errorf("mode %q is defined more than once", mode.Name)
	}
	m.byName[mode.Name] = mode
	m.names = append(m.names, mode.Name)
	return nil
}

// Get returns the named mode or a validation fault.
func (m *Modes) Get(name string) (*Mode, error) {
	mode, ok := m.byName[name]
	if !ok {
		return nil, fault.Validation("session.Modes", fmt.Errorf("%w: %q", fault.ErrUnknownMode, name))
	}
	return mode, nil
}

// List describes every mode in name order.
func (m *Modes) List() []ModeInfo {
	out := make([]ModeInfo, 0, len(m.names))
	for _, name := range m.names {
		mode := m.byName[name]
		info := ModeInfo{Name: mode.Name, Source: mode.Source, Cost: mode.Cost.String()}
		if mode.Bonus != nil {
			info.Bonus = mode.Bonus.Name
		}
		if mode.Book != nil {
			info.MineCount = mode.Book.MineCount()
		}
		out = append(out, info)
	}
	return out
}
