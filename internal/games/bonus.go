package games

import "sort"

// BonusTier upgrades a bonus tile to Multiplier when its draw is
// strictly above Above.
type BonusTier struct {
	Above      float64
	Multiplier int64
}

// BonusProfile describes how many bonus tiles a mode places and which
// multipliers they can carry. Tiers must be sorted by Above.
type BonusProfile struct {
	Name     string
	TileType string
	Slots    int
	Base     int64
	Tiers    []BonusTier
}

// Multiplier maps a uniform draw onto the profile's scaled multiplier.
func (p BonusProfile) Multiplier(r float64) int64 {
	m := p.Base
	for _, t := range p.Tiers {
		if r > t.Above {
			m = t.Multiplier
		}
	}
	return m
}

var bonusProfiles = map[string]BonusProfile{
	"gold_gem": {
		Name:     "gold_gem",
		TileType: "GOLD_GEM",
		Slots:    3,
		Base:     15000,
		Tiers: []BonusTier{
			{Above: 0.6, Multiplier: 30000},
			{Above: 0.9, Multiplier: 50000},
			{Above: 0.99, Multiplier: 100000},
		},
	},
	"nova_star": {
		Name:     "nova_star",
		TileType: "NOVA_STAR",
		Slots:    3,
		Base:     30000,
		Tiers: []BonusTier{
			{Above: 0.5, Multiplier: 100000},
			{Above: 0.8, Multiplier: 250000},
			{Above: 0.95, Multiplier: 500000},
		},
	},
}

// LookupBonusProfile returns a built-in profile by name. The empty name
// and "none" mean no bonus tiles.
func LookupBonusProfile(name string) (*BonusProfile, bool) {
	if name == "" || name == "none" {
		return nil, true
	}
	p, ok := bonusProfiles[name]
	if !ok {
		return nil, false
	}
	return &p, true
}

// BonusProfileNames lists the built-in profiles.
func BonusProfileNames() []string {
	names := make([]string, 0, len(bonusProfiles))
	for name := range bonusProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
