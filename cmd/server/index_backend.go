package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"storageracks.ai/internal/persistence/indexdb"
	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SR_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported SR_INDEX_BACKEND: %s", backend)
	}
}

// registerIndexMetrics exposes the index queue as gauges sampled at scrape time.
func registerIndexMetrics(reg prometheus.Registerer, idx runtimeIndex) {
	if idx == nil {
		return
	}
	gauge := func(name, help string, f func(indexdb.Stats) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "storageracks_index_" + name,
			Help: help,
		}, func() float64 { return f(idx.Stats()) }))
	}
	gauge("queue_depth", "Pending index writes.", func(s indexdb.Stats) float64 { return float64(s.QueueDepth) })
	gauge("queue_capacity", "Index write queue capacity.", func(s indexdb.Stats) float64 { return float64(s.QueueCapacity) })
	gauge("dropped_ticks", "Tick entries dropped because the queue was full.", func(s indexdb.Stats) float64 { return float64(s.DropTickTotal) })
	gauge("dropped_audits", "Audit entries dropped because the queue was full.", func(s indexdb.Stats) float64 { return float64(s.DropAuditTotal) })
	gauge("dropped_snapshots", "Snapshot records dropped because the queue was full.", func(s indexdb.Stats) float64 { return float64(s.DropSnapshotTotal) })
	gauge("write_errors", "Failed index transactions.", func(s indexdb.Stats) float64 { return float64(s.WriteErrorTotal) })
}
