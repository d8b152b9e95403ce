package world

import (
	"fmt"
	"log"

	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/highlight"
	"storageracks.ai/internal/sim/rack"
	"storageracks.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int

	Layout            rack.Layout
	TierUnit          int
	RequireController bool
	// ShrinkPolicy decides what a resize does to items past the new
	// capacity: tuning.ShrinkEject or tuning.ShrinkForbid.
	ShrinkPolicy string

	LocateTicks    int
	HighlightColor uint32

	InboxSize int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	// A zero layout is unset; otherwise only a missing base size is filled
	// and zero SlotsPerTier or MaxTier mean a single-tier layout.
	if c.Layout == (rack.Layout{}) {
		c.Layout = rack.DefaultLayout()
	}
	if c.Layout.BaseSlots <= 0 {
		c.Layout.BaseSlots = rack.DefaultLayout().BaseSlots
	}
	if c.TierUnit <= 0 {
		c.TierUnit = 20
	}
	if c.ShrinkPolicy == "" {
		c.ShrinkPolicy = tuning.ShrinkEject
	}
	if c.LocateTicks <= 0 {
		c.LocateTicks = 2400
	}
	if c.HighlightColor == 0 {
		c.HighlightColor = highlight.DefaultColor
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 1024
	}
}

func (c WorldConfig) validate() error {
	switch c.ShrinkPolicy {
	case tuning.ShrinkEject, tuning.ShrinkForbid:
	default:
		return fmt.Errorf("world config: unknown shrink policy %q", c.ShrinkPolicy)
	}
	if c.Layout.SlotsPerTier < 0 || c.Layout.MaxTier < 0 {
		return fmt.Errorf("world config: bad rack layout %+v", c.Layout)
	}
	return nil
}

// ConfigFromTuning maps a loaded tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		Layout: rack.Layout{
			BaseSlots:    t.Racks.BaseSlots,
			SlotsPerTier: t.Racks.SlotsPerTier,
			MaxTier:      t.Racks.MaxTier,
		},
		TierUnit:          t.Clusters.TierUnit,
		RequireController: t.Clusters.RequireController,
		ShrinkPolicy:      t.Racks.ShrinkPolicy,
		LocateTicks:       t.Highlights.LocateTicks,
	}
}

// Options are the optional collaborators of a world. Any of them may be nil.
type Options struct {
	Logger       *log.Logger
	AuditLogger  AuditLogger
	TickLogger   TickLogger
	ItemSink     ItemSink
	Metrics      *Metrics
	SnapshotSink chan<- snapshot.SnapshotV1
}
