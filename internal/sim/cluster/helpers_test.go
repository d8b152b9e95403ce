package cluster

import (
	"testing"

	"storageracks.ai/internal/sim/grid"
)

type offsetIndex map[grid.Vec3i]grid.Vec3i

func (o offsetIndex) ControllerOffset(p grid.Vec3i) (grid.Vec3i, bool) {
	v, ok := o[p]
	return v, ok
}

func (o offsetIndex) SetControllerOffset(p grid.Vec3i, off *grid.Vec3i) {
	if off == nil {
		delete(o, p)
		return
	}
	o[p] = *off
}

type countingObserver map[string]int

func (c countingObserver) ObserveDiscover(result string, visited int) { c[result]++ }

type fixture struct {
	t    *testing.T
	g    *grid.Grid
	offs offsetIndex
	reg  *Registry
	eng  *Engine
	obs  countingObserver
}

func newFixture(t *testing.T, cfg EngineConfig) *fixture {
	t.Helper()
	f := &fixture{
		t:    t,
		g:    grid.New(),
		offs: offsetIndex{},
		reg:  NewRegistry(),
		obs:  countingObserver{},
	}
	cfg.Observer = f.obs
	f.eng = NewEngine(f.g, f.reg, f.offs, cfg)
	return f
}

// place mirrors what the world does: write the cell, run the engine, take
// the cell back out on rejection.
func (f *fixture) place(p grid.Vec3i, kind grid.NodeKind) Decision {
	f.g.Set(p, kind)
	d := f.eng.OnNodeAdded(p)
	if !d.Committed() {
		f.g.Clear(p)
	}
	return d
}

func (f *fixture) mustPlace(p grid.Vec3i, kind grid.NodeKind) {
	f.t.Helper()
	if d := f.place(p, kind); !d.Committed() {
		f.t.Fatalf("place %v %v: %s", p, kind, d.Outcome)
	}
}

func (f *fixture) remove(p grid.Vec3i) Decision {
	f.g.Clear(p)
	d := f.eng.OnNodeRemoved(p)
	delete(f.offs, p)
	return d
}

func (f *fixture) controllerOf(p grid.Vec3i) (grid.Vec3i, bool) {
	off, ok := f.offs[p]
	if !ok {
		return grid.Vec3i{}, false
	}
	return p.Sub(off), true
}

func x(n int) grid.Vec3i { return grid.Vec3i{X: n} }

// line places a controller at x(start) and racks at x(start+1..start+n).
func (f *fixture) line(start, n, tier int) {
	f.t.Helper()
	f.mustPlace(x(start), grid.Controller(tier))
	for i := 1; i <= n; i++ {
		f.mustPlace(x(start+i), grid.Rack(0))
	}
}
