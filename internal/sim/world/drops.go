package world

import (
	"sync"

	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
)

// Drop is one batch of stacks that left a rack at Pos.
type Drop struct {
	Tick   uint64
	Pos    grid.Vec3i
	Reason string // "removed" or "resized"
	Items  []rack.Slot
}

type discardSink struct{}

func (discardSink) EjectItems(Drop) {}

// DropLedger keeps every ejected stack in memory. It never trims, so it is
// meant for tests and short-lived tools.
type DropLedger struct {
	mu    sync.Mutex
	drops []Drop
}

func NewDropLedger() *DropLedger { return &DropLedger{} }

func (l *DropLedger) EjectItems(d Drop) {
	d.Items = append([]rack.Slot(nil), d.Items...)
	l.mu.Lock()
	l.drops = append(l.drops, d)
	l.mu.Unlock()
}

func (l *DropLedger) Drops() []Drop {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Drop, len(l.drops))
	copy(out, l.drops)
	return out
}

// Total sums every dropped stack of key.
func (l *DropLedger) Total(key rack.ItemKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, d := range l.drops {
		for _, s := range d.Items {
			if s.Key == key {
				n += s.Count
			}
		}
	}
	return n
}
