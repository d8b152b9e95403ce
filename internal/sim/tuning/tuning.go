package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ShrinkEject  = "eject"
	ShrinkForbid = "forbid"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Racks      Racks      `yaml:"racks"`
	Clusters   Clusters   `yaml:"clusters"`
	Highlights Highlights `yaml:"highlights"`
}

type Racks struct {
	BaseSlots    int `yaml:"base_slots"`
	SlotsPerTier int `yaml:"slots_per_tier"`
	MaxTier      int `yaml:"max_tier"`
	// ShrinkPolicy is "eject" or "forbid".
	ShrinkPolicy string `yaml:"shrink_policy"`
}

type Clusters struct {
	TierUnit          int  `yaml:"tier_unit"`
	RequireController bool `yaml:"require_controller"`
}

type Highlights struct {
	LocateTicks int `yaml:"locate_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		Racks: Racks{
			BaseSlots:    27,
			SlotsPerTier: 9,
			MaxTier:      5,
			ShrinkPolicy: ShrinkEject,
		},
		Clusters:   Clusters{TierUnit: 20},
		Highlights: Highlights{LocateTicks: 2400},
	}
}

// FillDefaults replaces fields that must be positive with their default
// values. Racks.SlotsPerTier and Racks.MaxTier may legitimately be zero;
// Load keeps their defaults only when the file omits them.
func (t *Tuning) FillDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.Racks.BaseSlots <= 0 {
		t.Racks.BaseSlots = d.Racks.BaseSlots
	}
	if t.Racks.ShrinkPolicy == "" {
		t.Racks.ShrinkPolicy = d.Racks.ShrinkPolicy
	}
	if t.Clusters.TierUnit <= 0 {
		t.Clusters.TierUnit = d.Clusters.TierUnit
	}
	if t.Highlights.LocateTicks <= 0 {
		t.Highlights.LocateTicks = d.Highlights.LocateTicks
	}
}

func (t Tuning) Validate() error {
	if t.Racks.SlotsPerTier < 0 {
		return fmt.Errorf("racks.slots_per_tier: negative value %d", t.Racks.SlotsPerTier)
	}
	if t.Racks.MaxTier < 0 {
		return fmt.Errorf("racks.max_tier: negative value %d", t.Racks.MaxTier)
	}
	switch strings.ToLower(t.Racks.ShrinkPolicy) {
	case ShrinkEject, ShrinkForbid:
	default:
		return fmt.Errorf("racks.shrink_policy: unknown value %q", t.Racks.ShrinkPolicy)
	}
	return nil
}

// Load reads a tuning file over Defaults, so keys the file omits keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.FillDefaults()
	t.Racks.ShrinkPolicy = strings.ToLower(t.Racks.ShrinkPolicy)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
