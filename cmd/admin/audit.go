package main

import (
	"flag"
	"io"
	"strings"

	persistlog "storageracks.ai/internal/persistence/log"
)

func auditCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	common := addCommon(fs)
	since := fs.Uint64("since", 0, "first tick (inclusive)")
	until := fs.Uint64("until", 0, "last tick (inclusive, 0 = no limit)")
	posFlag := fs.String("pos", "", "only entries at x,y,z")
	action := fs.String("action", "", "only this action (e.g. PLACE_RACK, EJECT)")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	var pos *[3]int
	if s := strings.TrimSpace(*posFlag); s != "" {
		p, err := parseVec3(s)
		if err != nil {
			return usageError{"bad -pos: " + err.Error()}
		}
		pos = &p
	}

	entries, err := persistlog.ReadAudit(common.worldDir(), *since, *until)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if pos != nil && e.Pos != *pos {
			continue
		}
		if *action != "" && !strings.EqualFold(e.Action, *action) {
			continue
		}
		printJSON(out, e)
	}
	return nil
}
