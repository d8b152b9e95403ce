package world

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) WriteAudit(e AuditEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingAudit) actions(action string) []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type testWorld struct {
	*World
	t     *testing.T
	drops *DropLedger
	audit *recordingAudit
	reg   *prometheus.Registry
}

func newTestWorld(t *testing.T, mutate func(*WorldConfig)) *testWorld {
	t.Helper()
	cfg := WorldConfig{ID: "test"}
	if mutate != nil {
		mutate(&cfg)
	}
	tw := &testWorld{t: t, drops: NewDropLedger(), audit: &recordingAudit{}, reg: prometheus.NewRegistry()}
	w, err := New(cfg, Options{
		AuditLogger: tw.audit,
		ItemSink:    tw.drops,
		Metrics:     NewMetrics(tw.reg),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tw.World = w
	return tw
}

func v(x, y, z int) grid.Vec3i { return grid.Vec3i{X: x, Y: y, Z: z} }

func (tw *testWorld) mustController(p grid.Vec3i, tier int) {
	tw.t.Helper()
	if _, err := tw.PlaceController(p, tier); err != nil {
		tw.t.Fatalf("PlaceController %v: %v", p, err)
	}
}

func (tw *testWorld) mustRack(p grid.Vec3i, tier int) {
	tw.t.Helper()
	if _, err := tw.PlaceRack(p, tier); err != nil {
		tw.t.Fatalf("PlaceRack %v: %v", p, err)
	}
}

func (tw *testWorld) mustSlot(p grid.Vec3i, i int, key rack.ItemKey, n int) {
	tw.t.Helper()
	if err := tw.SetSlot(p, i, rack.Slot{Key: key, Count: n}); err != nil {
		tw.t.Fatalf("SetSlot %v[%d]: %v", p, i, err)
	}
}

// line places a controller at x=0 and n racks along +x.
func (tw *testWorld) line(n, tier int) {
	tw.t.Helper()
	tw.mustController(v(0, 0, 0), tier)
	for i := 1; i <= n; i++ {
		tw.mustRack(v(i, 0, 0), 0)
	}
}

func (tw *testWorld) counter(name string, labels map[string]string) float64 {
	tw.t.Helper()
	mfs, err := tw.reg.Gather()
	if err != nil {
		tw.t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

var (
	cobble = rack.ItemKey{Item: "minecraft:cobblestone"}
	iron   = rack.ItemKey{Item: "minecraft:iron_ingot"}
)
