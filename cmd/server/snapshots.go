package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"storageracks.ai/internal/persistence/snapshot"
)

type snapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// runSnapshotWriter persists snapshots from the world loop until ctx ends,
// then drains whatever is already queued.
func runSnapshotWriter(ctx context.Context, worldDir string, ch <-chan snapshot.SnapshotV1, rec snapshotRecorder, logger *log.Logger) {
	write := func(snap snapshot.SnapshotV1) {
		path := filepath.Join(worldDir, "snapshots", snapshot.FileName(snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		logger.Printf("snapshot tick=%d racks=%d controllers=%d", snap.Header.Tick, len(snap.Racks), len(snap.Controllers))
		if rec != nil {
			rec.RecordSnapshot(path, snap)
		}
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case snap := <-ch:
					write(snap)
				default:
					return
				}
			}
		case snap := <-ch:
			write(snap)
		}
	}
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
