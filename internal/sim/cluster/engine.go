package cluster

import (
	"errors"
	"io"
	"log"

	"storageracks.ai/internal/sim/grid"
)

var (
	ErrCapacityExceeded = errors.New("cluster: controller capacity exceeded")
	ErrNotConnected     = errors.New("cluster: no controller reachable")
)

type Outcome int

const (
	Committed Outcome = iota
	RejectedConflict
	RejectedCapacity
	RejectedNotConnected
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "COMMITTED"
	case RejectedConflict:
		return "REJECTED_CONFLICT"
	case RejectedCapacity:
		return "REJECTED_CAPACITY"
	case RejectedNotConnected:
		return "REJECTED_NOT_CONNECTED"
	default:
		return "UNKNOWN"
	}
}

func (o Outcome) Err() error {
	switch o {
	case RejectedConflict:
		return ErrConflict
	case RejectedCapacity:
		return ErrCapacityExceeded
	case RejectedNotConnected:
		return ErrNotConnected
	default:
		return nil
	}
}

// Decision describes how a topology event was handled.
type Decision struct {
	Outcome Outcome

	Controller    grid.Vec3i
	HasController bool
	Members       int

	// Controllers involved in a conflict, sorted.
	Conflict []grid.Vec3i
}

func (d Decision) Committed() bool { return d.Outcome == Committed }

// RackIndex exposes the cached controller offset of the rack at a position.
// Positions without a rack report no offset and ignore updates.
type RackIndex interface {
	ControllerOffset(p grid.Vec3i) (grid.Vec3i, bool)
	SetControllerOffset(p grid.Vec3i, off *grid.Vec3i)
}

// Observer receives one callback per traversal.
type Observer interface {
	ObserveDiscover(result string, visited int)
}

const (
	DiscoverController = "controller"
	DiscoverNone       = "none"
	DiscoverConflict   = "conflict"
)

type EngineConfig struct {
	Policy Policy
	// RequireController refuses placements that end up in a component
	// without a controller.
	RequireController bool
	Observer          Observer
	Logger            *log.Logger
}

// Engine applies placement and removal events to the registry. All calls
// must come from the goroutine that owns the grid.
type Engine struct {
	oracle   grid.Oracle
	registry *Registry
	racks    RackIndex

	policy            Policy
	requireController bool
	observer          Observer
	log               *log.Logger
}

func NewEngine(o grid.Oracle, reg *Registry, racks RackIndex, cfg EngineConfig) *Engine {
	if cfg.Policy.TierUnit <= 0 {
		cfg.Policy = DefaultPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		oracle:            o,
		registry:          reg,
		racks:             racks,
		policy:            cfg.Policy,
		requireController: cfg.RequireController,
		observer:          cfg.Observer,
		log:               logger,
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) discover(start grid.Vec3i) (Result, error) {
	res, err := Discover(e.oracle, start)
	if e.observer != nil {
		switch {
		case err != nil:
			e.observer.ObserveDiscover(DiscoverConflict, res.Len())
		case res.HasController:
			e.observer.ObserveDiscover(DiscoverController, res.Len())
		default:
			e.observer.ObserveDiscover(DiscoverNone, res.Len())
		}
	}
	return res, err
}

// OnNodeAdded handles a node that has just been written to the grid at pos.
// A rejected decision leaves every member set and offset untouched; the
// caller is expected to take the node back out of the grid.
func (e *Engine) OnNodeAdded(pos grid.Vec3i) Decision {
	res, err := e.discover(pos)
	if err != nil {
		d := Decision{Outcome: RejectedConflict, Members: res.Len()}
		var ce *ConflictError
		if errors.As(err, &ce) {
			d.Conflict = ce.Controllers
		}
		return d
	}

	d := Decision{
		Outcome:       Committed,
		Controller:    res.Controller,
		HasController: res.HasController,
		Members:       res.Len(),
	}
	if res.HasController {
		if tier := e.controllerTier(res.Controller); !e.policy.Check(tier, res.Len()) {
			d.Outcome = RejectedCapacity
			return d
		}
	} else if e.requireController {
		d.Outcome = RejectedNotConnected
		return d
	}
	e.commit(res)
	return d
}

// OnNodeRemoved handles a node that has just been cleared from the grid.
// The rack record at pos, if any, must still be reachable through the
// RackIndex so its membership can be released. Removal is never refused.
func (e *Engine) OnNodeRemoved(pos grid.Vec3i) Decision {
	if c := e.registry.Destroy(pos); c != nil {
		e.log.Printf("controller %v destroyed with %d racks", pos, c.RackCount())
	}
	if owner, ok := e.ownerOf(pos); ok {
		if c := e.registry.Get(owner); c != nil {
			e.registry.removeAll(c, []grid.Vec3i{pos})
		}
		e.racks.SetControllerOffset(pos, nil)
	}

	seen := map[grid.Vec3i]struct{}{}
	for _, n := range grid.OccupiedNeighbors(e.oracle, pos) {
		if _, ok := seen[n]; ok {
			continue
		}
		res, err := e.discover(n)
		for p := range res.Visited {
			seen[p] = struct{}{}
		}
		if err != nil {
			e.log.Printf("removal at %v left a conflicting component at %v: %v", pos, n, err)
			continue
		}
		e.commit(res)
	}
	return Decision{Outcome: Committed}
}

// RebuildStats summarises a load-time revalidation.
type RebuildStats struct {
	Components int
	Conflicts  int
	StaleHints int
}

// Rebuild recomputes membership for every component containing one of
// seeds. Cached offsets are hints only; components are rediscovered and
// committed regardless of what the hints say.
func (e *Engine) Rebuild(seeds []grid.Vec3i) RebuildStats {
	var st RebuildStats
	seen := map[grid.Vec3i]struct{}{}
	for _, s := range seeds {
		if _, ok := seen[s]; ok || !e.oracle.IsOccupied(s) {
			continue
		}
		res, err := e.discover(s)
		for p := range res.Visited {
			seen[p] = struct{}{}
		}
		st.Components++
		if err != nil {
			st.Conflicts++
			for _, p := range res.Order {
				if _, ok := e.racks.ControllerOffset(p); ok {
					e.racks.SetControllerOffset(p, nil)
				}
			}
			e.log.Printf("rebuild: component at %v has no single owner: %v", s, err)
			continue
		}
		for _, p := range res.Order {
			if !e.oracle.KindAt(p).IsRack() {
				continue
			}
			owner, ok := e.ownerOf(p)
			if ok != res.HasController || (ok && owner != res.Controller) {
				st.StaleHints++
			}
		}
		if res.HasController {
			if tier := e.controllerTier(res.Controller); !e.policy.Check(tier, res.Len()) {
				e.log.Printf("rebuild: controller %v over capacity (%d members, tier %d)", res.Controller, res.Len(), tier)
			}
		}
		e.commit(res)
	}
	if st.StaleHints > 0 {
		e.log.Printf("rebuild: %d stale controller offsets corrected", st.StaleHints)
	}
	return st
}

func (e *Engine) controllerTier(pos grid.Vec3i) int {
	if c := e.registry.Get(pos); c != nil {
		return c.Tier
	}
	return e.oracle.KindAt(pos).Tier
}

func (e *Engine) ownerOf(p grid.Vec3i) (grid.Vec3i, bool) {
	off, ok := e.racks.ControllerOffset(p)
	if !ok {
		return grid.Vec3i{}, false
	}
	return p.Sub(off), true
}

func (e *Engine) commit(res Result) {
	if !res.HasController {
		e.commitOrphaned(res)
		return
	}

	c := e.registry.Get(res.Controller)
	if c == nil {
		c = e.registry.Create(res.Controller, e.oracle.KindAt(res.Controller).Tier)
	}

	// Racks still claimed by another controller are released there first.
	for _, p := range res.Order {
		prev, ok := e.ownerOf(p)
		if !ok || prev == c.Pos {
			continue
		}
		if d := e.registry.Get(prev); d != nil {
			e.registry.removeAll(d, []grid.Vec3i{p})
		}
	}

	var stale []grid.Vec3i
	for _, m := range c.Members() {
		if !res.Contains(m) {
			stale = append(stale, m)
		}
	}
	e.registry.removeAll(c, stale)
	for _, p := range stale {
		if owner, ok := e.ownerOf(p); ok && owner == c.Pos {
			e.racks.SetControllerOffset(p, nil)
		}
	}

	e.registry.addAll(c, res.Order)
	for _, p := range res.Order {
		if !e.oracle.KindAt(p).IsRack() {
			continue
		}
		off := p.Sub(c.Pos)
		e.racks.SetControllerOffset(p, &off)
	}
}

func (e *Engine) commitOrphaned(res Result) {
	var owners []grid.Vec3i
	seen := map[grid.Vec3i]struct{}{}
	for _, p := range res.Order {
		owner, ok := e.ownerOf(p)
		if !ok {
			continue
		}
		e.racks.SetControllerOffset(p, nil)
		if _, dup := seen[owner]; !dup {
			seen[owner] = struct{}{}
			owners = append(owners, owner)
		}
	}
	grid.SortPositions(owners)
	for _, owner := range owners {
		if c := e.registry.Get(owner); c != nil {
			e.registry.removeAll(c, res.Order)
		}
	}
}
