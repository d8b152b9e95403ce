package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"storageracks.ai/internal/persistence/indexdb"
	"storageracks.ai/internal/persistence/snapshot"
)

func snapshotsCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	common := addCommon(fs)
	limit := fs.Int("limit", 20, "result limit")
	tick := fs.Uint64("controllers", 0, "print the per-controller summary of this snapshot tick instead")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	dbPath := filepath.Join(common.worldDir(), "index", "world.sqlite")
	if _, err := os.Stat(dbPath); err != nil {
		if *tick != 0 {
			return fmt.Errorf("controller summaries need the index at %s", dbPath)
		}
		return listSnapshotFiles(out, common.worldDir(), *limit)
	}

	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	ctx := context.Background()

	if *tick != 0 {
		rows, err := idx.SnapshotControllers(ctx, *tick)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintf(out, "controller %d,%d,%d tier=%d racks=%d items=%s\n",
				r.Pos[0], r.Pos[1], r.Pos[2], r.Tier, r.Racks, humanize.Comma(r.Items))
		}
		return nil
	}

	rows, err := idx.ListSnapshots(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(out, "%-10d racks=%-6d controllers=%-4d items=%-12s %s (%s)\n",
			r.Tick, r.Racks, r.Controllers, humanize.Comma(r.StoredItems),
			filepath.Base(r.Path), humanize.Time(r.RecordedAt))
	}
	return nil
}

// listSnapshotFiles is the fallback when the index is disabled: it reads
// only snapshot headers.
func listSnapshotFiles(out io.Writer, worldDir string, limit int) error {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	type file struct {
		tick uint64
		name string
		size int64
	}
	var files []file
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		files = append(files, file{tick: tick, name: name, size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].tick > files[j].tick })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	for _, f := range files {
		h, err := snapshot.ReadHeader(filepath.Join(dir, f.name))
		if err != nil {
			fmt.Fprintf(out, "%-10d %s unreadable: %v\n", f.tick, f.name, err)
			continue
		}
		fmt.Fprintf(out, "%-10d world=%s v%d %s %s\n", h.Tick, h.WorldID, h.Version, f.name, humanize.Bytes(uint64(f.size)))
	}
	return nil
}
