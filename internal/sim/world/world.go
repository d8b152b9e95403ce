package world

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/highlight"
	"storageracks.ai/internal/sim/rack"
)

// Actor recorded for mutations made through the direct API rather than a
// client request.
const ActorLocal = "local"

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// ItemSink receives every stack that leaves a rack other than through
// SetSlot: removal drops and shrink overflow. Without one, ejected stacks
// are only audited.
type ItemSink interface {
	EjectItems(d Drop)
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "PLACE_RACK"
	Pos     [3]int         `json:"pos"`
	Outcome string         `json:"outcome,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Requests []RecordedRequest `json:"requests,omitempty"`
	Digest   string            `json:"digest"`
}

// World is a single-threaded authoritative rack world.
// All state must be accessed only from the world loop goroutine, or
// directly by a caller that never starts Run.
type World struct {
	cfg WorldConfig
	log *log.Logger

	tick atomic.Uint64

	grid       *grid.Grid
	racks      rackIndex
	registry   *cluster.Registry
	engine     *cluster.Engine
	highlights *highlight.Manager

	inbox    chan Request
	admin    chan adminSnapshotReq
	stop     chan struct{}
	stopOnce sync.Once

	auditLogger  AuditLogger
	tickLogger   TickLogger
	itemSink     ItemSink
	metrics      *Metrics
	snapshotSink chan<- snapshot.SnapshotV1
}

func New(cfg WorldConfig, opts Options) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	sink := opts.ItemSink
	if sink == nil {
		sink = discardSink{}
	}
	w := &World{
		cfg:          cfg,
		log:          logger,
		highlights:   highlight.NewManager(),
		inbox:        make(chan Request, cfg.InboxSize),
		admin:        make(chan adminSnapshotReq, 16),
		stop:         make(chan struct{}),
		auditLogger:  opts.AuditLogger,
		tickLogger:   opts.TickLogger,
		itemSink:     sink,
		metrics:      opts.Metrics,
		snapshotSink: opts.SnapshotSink,
	}
	w.resetTopology(grid.New(), rackIndex{})
	return w, nil
}

func (w *World) resetTopology(g *grid.Grid, racks rackIndex) {
	w.grid = g
	w.racks = racks
	w.registry = cluster.NewRegistry()
	ecfg := cluster.EngineConfig{
		Policy:            cluster.Policy{TierUnit: w.cfg.TierUnit},
		RequireController: w.cfg.RequireController,
		Logger:            w.log,
	}
	if w.metrics != nil {
		ecfg.Observer = w.metrics
	}
	w.engine = cluster.NewEngine(w.grid, w.registry, w.racks, ecfg)
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) KindAt(p grid.Vec3i) grid.NodeKind { return w.grid.KindAt(p) }

// Rack returns the live rack at p. Callers must not retain it across ticks.
func (w *World) Rack(p grid.Vec3i) (*rack.Rack, bool) {
	r := w.racks[p]
	return r, r != nil
}

func (w *World) Controllers() []*cluster.Controller { return w.registry.All() }

func (w *World) RackCount() int { return len(w.racks) }

// RackPositions returns every rack position in sorted order.
func (w *World) RackPositions() []grid.Vec3i {
	out := make([]grid.Vec3i, 0, len(w.racks))
	for p := range w.racks {
		out = append(out, p)
	}
	grid.SortPositions(out)
	return out
}

func (w *World) audit(actor, action string, pos grid.Vec3i, outcome, reason string, details map[string]any) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:    w.tick.Load(),
		Actor:   actor,
		Action:  action,
		Pos:     pos.ToArray(),
		Outcome: outcome,
		Reason:  reason,
		Details: details,
	}); err != nil {
		w.log.Printf("audit %s at %v: %v", action, pos, err)
	}
}

func (w *World) eject(actor string, pos grid.Vec3i, items []rack.Slot, reason string) {
	if len(items) == 0 {
		return
	}
	total := 0
	stacks := make([]string, 0, len(items))
	for _, s := range items {
		total += s.Count
		stacks = append(stacks, fmt.Sprintf("%s x%d", s.Key, s.Count))
	}
	w.itemSink.EjectItems(Drop{Tick: w.tick.Load(), Pos: pos, Reason: reason, Items: items})
	if w.metrics != nil {
		w.metrics.observeEjected(total)
	}
	w.audit(actor, "EJECT", pos, "", reason, map[string]any{"stacks": stacks, "items": total})
}

// rackIndex serves the cluster engine and the query layer from the same
// rack map.
type rackIndex map[grid.Vec3i]*rack.Rack

func (ri rackIndex) ControllerOffset(p grid.Vec3i) (grid.Vec3i, bool) {
	r := ri[p]
	if r == nil {
		return grid.Vec3i{}, false
	}
	return r.ControllerOffset()
}

func (ri rackIndex) SetControllerOffset(p grid.Vec3i, off *grid.Vec3i) {
	if r := ri[p]; r != nil {
		r.SetControllerOffset(off)
	}
}

func (ri rackIndex) RackAt(p grid.Vec3i) *rack.Rack { return ri[p] }
