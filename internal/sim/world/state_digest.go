package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/highlight"
)

// StateDigest hashes every piece of topology and storage state at the
// current tick. Two worlds with equal digests are indistinguishable to
// every query.
func (w *World) StateDigest() string { return w.stateDigest(w.tick.Load()) }

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	w.digestGrid(h, &tmp)
	w.digestRacks(h, &tmp)
	w.digestControllers(h, &tmp)
	w.digestHighlights(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestGrid(h hashWriter, tmp *[8]byte) {
	ps := w.grid.Positions()
	digestWriteU64(h, tmp, uint64(len(ps)))
	for _, p := range ps {
		k := w.grid.KindAt(p)
		digestWritePos(h, tmp, p)
		h.Write([]byte{byte(k.Type)})
		digestWriteI64(h, tmp, int64(k.Tier))
	}
}

func (w *World) digestRacks(h hashWriter, tmp *[8]byte) {
	ps := make([]grid.Vec3i, 0, len(w.racks))
	for p := range w.racks {
		ps = append(ps, p)
	}
	grid.SortPositions(ps)
	digestWriteU64(h, tmp, uint64(len(ps)))
	for _, p := range ps {
		r := w.racks[p]
		digestWritePos(h, tmp, p)
		digestWriteI64(h, tmp, int64(r.Tier))
		digestWriteU64(h, tmp, uint64(r.Capacity()))
		for i, s := range r.Slots() {
			if s.Empty() {
				continue
			}
			digestWriteU64(h, tmp, uint64(i))
			digestWriteString(h, tmp, s.Key.Item)
			digestWriteString(h, tmp, s.Key.Meta)
			digestWriteI64(h, tmp, int64(s.Count))
		}
		off, ok := r.ControllerOffset()
		h.Write([]byte{boolByte(ok)})
		if ok {
			digestWritePos(h, tmp, off)
		}
	}
}

func (w *World) digestControllers(h hashWriter, tmp *[8]byte) {
	cs := w.registry.All()
	digestWriteU64(h, tmp, uint64(len(cs)))
	for _, c := range cs {
		digestWritePos(h, tmp, c.Pos)
		digestWriteI64(h, tmp, int64(c.Tier))
		ms := c.Members()
		digestWriteU64(h, tmp, uint64(len(ms)))
		for _, m := range ms {
			digestWritePos(h, tmp, m)
		}
	}
}

func (w *World) digestHighlights(h hashWriter, tmp *[8]byte) {
	for _, cat := range w.highlights.Categories() {
		digestWriteString(h, tmp, cat)
		for _, b := range w.highlights.Active(cat) {
			digestWriteBox(h, tmp, b)
		}
	}
}

func digestWriteBox(h hashWriter, tmp *[8]byte, b highlight.Box) {
	digestWritePos(h, tmp, b.Pos)
	digestWriteU64(h, tmp, b.RemoveAtTick)
	digestWriteU64(h, tmp, uint64(b.Color))
	for _, t := range b.Text {
		digestWriteString(h, tmp, t)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWritePos(h hashWriter, tmp *[8]byte, p grid.Vec3i) {
	digestWriteI64(h, tmp, int64(p.X))
	digestWriteI64(h, tmp, int64(p.Y))
	digestWriteI64(h, tmp, int64(p.Z))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
