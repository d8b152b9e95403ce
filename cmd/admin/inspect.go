package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/query"
	"storageracks.ai/internal/sim/rack"
	"storageracks.ai/internal/sim/world"
)

func inspectCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	common := addCommon(fs)
	snapPath := fs.String("snapshot", "", "snapshot path (default: latest in data dir)")
	filter := fs.String("filter", "", "case-insensitive item filter")
	sortName := fs.String("sort", "COUNT_DESC", "NONE, NAME_ASC, NAME_DESC, COUNT_ASC or COUNT_DESC")
	exact := fs.Bool("exact", false, "print exact counts instead of compact ones")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	mode, err := query.ParseSortMode(*sortName)
	if err != nil {
		return usageError{err.Error()}
	}

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = latestSnapshot(common.worldDir())
	}
	if path == "" {
		return usageError{"no snapshot found; provide -snapshot or run the server until it writes one"}
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	w, stats, err := loadWorld(snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "rebuild components=%d conflicts=%d stale_hints=%d\n", stats.Components, stats.Conflicts, stats.StaleHints)
	return printClusters(out, w, query.ListOptions{Filter: *filter, Sort: mode}, *exact)
}

// loadWorld rebuilds an offline world from snap; membership is rediscovered.
func loadWorld(snap snapshot.SnapshotV1) (*world.World, cluster.RebuildStats, error) {
	w, err := world.New(world.WorldConfig{
		ID:         snap.Header.WorldID,
		TickRateHz: snap.TickRate,
		Layout: rack.Layout{
			BaseSlots:    snap.Layout.BaseSlots,
			SlotsPerTier: snap.Layout.SlotsPerTier,
			MaxTier:      snap.Layout.MaxTier,
		},
		TierUnit: snap.Layout.TierUnit,
	}, world.Options{})
	if err != nil {
		return nil, cluster.RebuildStats{}, err
	}
	stats, err := w.ImportSnapshot(snap)
	if err != nil {
		return nil, stats, fmt.Errorf("import snapshot: %w", err)
	}
	return w, stats, nil
}

func printClusters(out io.Writer, w *world.World, opts query.ListOptions, exact bool) error {
	format := query.CompactCount
	if exact {
		format = query.ExactCount
	}
	fmt.Fprintf(out, "world=%s tick=%d racks=%d controllers=%d\n", w.ID(), w.CurrentTick(), w.RackCount(), len(w.Controllers()))
	for _, ctrl := range w.Controllers() {
		c, ok := w.Cluster(ctrl.Pos)
		if !ok {
			continue
		}
		entries := query.Listing(c.AllAggregated(), opts)
		fmt.Fprintf(out, "\ncontroller %s tier=%d racks=%d/%d free_slots=%d\n",
			formatPos(ctrl.Pos), ctrl.Tier, c.RackCount(), ctrl.Tier*w.Config().TierUnit, c.FreeSlots())
		for _, e := range entries {
			fmt.Fprintf(out, "  %-32s %s\n", e.Key.String(), format(int64(e.Count)))
		}
	}
	var orphans int
	for _, p := range w.RackPositions() {
		if _, ok := w.ClusterOf(p); !ok {
			orphans++
		}
	}
	if orphans > 0 {
		fmt.Fprintf(out, "\nunconnected racks: %d\n", orphans)
	}
	return nil
}

func formatPos(p grid.Vec3i) string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }
