package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "snapshots":
		err = snapshotsCmd(os.Stdout, args)
	case "inspect":
		err = inspectCmd(os.Stdout, args)
	case "audit":
		err = auditCmd(os.Stdout, args)
	case "state":
		err = httpCmd(os.Stdout, "state", "GET", "/admin/v1/state", args)
	case "snapshot":
		err = httpCmd(os.Stdout, "snapshot", "POST", "/admin/v1/snapshot", args)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: admin <command> [flags]

commands:
  snapshots   list snapshots (from the sqlite index, or the snapshot dir)
  inspect     load a snapshot offline and print per-controller contents
  audit       print audit entries, optionally for one position
  state       GET /admin/v1/state from a running server
  snapshot    POST /admin/v1/snapshot to a running server`)
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type commonFlags struct {
	dataDir *string
	worldID *string
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		dataDir: fs.String("data", "./data", "runtime data directory"),
		worldID: fs.String("world", "world_1", "world id"),
	}
}

func (c commonFlags) worldDir() string { return filepath.Join(*c.dataDir, "worlds", *c.worldID) }

func printJSON(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(w, string(b))
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
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
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, e.Name())
		}
	}
	return best
}
