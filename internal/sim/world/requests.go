package world

import (
	"fmt"

	"storageracks.ai/internal/protocol"
	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/query"
	"storageracks.ai/internal/sim/rack"
)

// Request is one client operation queued for the next tick.
type Request struct {
	Actor string
	Req   protocol.ReqMsg
	Resp  chan Response
}

// Response carries the op's data even when Err is set, so a rejected
// placement still reports the conflicting controllers.
type Response struct {
	Tick uint64
	Data any
	Err  error
}

type RecordedRequest struct {
	Actor string          `json:"actor"`
	Req   protocol.ReqMsg `json:"req"`
	OK    bool            `json:"ok"`
}

func (w *World) apply(r Request) Response {
	req := r.Req
	actor := r.Actor
	if actor == "" {
		actor = ActorLocal
	}
	pos := grid.FromArray(req.Pos)
	key := rack.ItemKey{Item: req.Item, Meta: req.Meta}

	switch req.Op {
	case protocol.OpPlaceRack:
		d, err := w.placeRack(actor, pos, req.Tier)
		return Response{Data: topologyData(d, nil), Err: err}

	case protocol.OpPlaceController:
		d, err := w.placeController(actor, pos, req.Tier)
		return Response{Data: topologyData(d, nil), Err: err}

	case protocol.OpRemove:
		d, items, err := w.remove(actor, pos)
		if err != nil {
			return Response{Err: err}
		}
		return Response{Data: topologyData(d, items)}

	case protocol.OpSetSlot:
		if err := w.setSlot(actor, pos, req.Slot, rack.Slot{Key: key, Count: req.Count}); err != nil {
			return Response{Err: err}
		}
		return Response{Data: w.slotData(pos, nil)}

	case protocol.OpResize:
		over, err := w.resizeRack(actor, pos, req.Tier)
		if err != nil {
			return Response{Err: err}
		}
		return Response{Data: w.slotData(pos, over)}

	case protocol.OpHasItem:
		c, ok := w.ClusterOf(pos)
		if !ok {
			return Response{Err: ErrNoController}
		}
		return Response{Data: protocol.HasItemData{Has: c.HasItem(key, atLeastOne(req.Min))}}

	case protocol.OpTotalCount:
		c, ok := w.ClusterOf(pos)
		if !ok {
			return Response{Err: ErrNoController}
		}
		n := c.TotalCount(key)
		return Response{Data: protocol.CountData{Count: n, Compact: query.CompactCount(int64(n))}}

	case protocol.OpList:
		mode, err := query.ParseSortMode(req.Sort)
		if err != nil {
			return Response{Err: err}
		}
		c, ok := w.ClusterOf(pos)
		if !ok {
			return Response{Err: ErrNoController}
		}
		return Response{Data: listData(c, query.ListOptions{Filter: req.Filter, Sort: mode})}

	case protocol.OpLocate:
		at, found, err := w.Locate(pos, key, atLeastOne(req.Min))
		if err != nil {
			return Response{Err: err}
		}
		if !found {
			return Response{Data: protocol.LocateData{}}
		}
		return Response{Data: protocol.LocateData{
			Found:        true,
			Pos:          at.ToArray(),
			RemoveAtTick: w.tick.Load() + uint64(w.cfg.LocateTicks),
		}}
	}
	return Response{Err: fmt.Errorf("%w: %q", ErrUnknownOp, req.Op)}
}

// A zero threshold means "any"; queries ask for at least one item.
func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func topologyData(d cluster.Decision, items []rack.Slot) protocol.TopologyData {
	out := protocol.TopologyData{
		Outcome: d.Outcome.String(),
		Members: d.Members,
		Ejected: stacks(items),
	}
	if d.HasController {
		c := d.Controller.ToArray()
		out.Controller = &c
	}
	for _, c := range d.Conflict {
		out.Conflict = append(out.Conflict, c.ToArray())
	}
	return out
}

func (w *World) slotData(pos grid.Vec3i, ejected []rack.Slot) protocol.SlotData {
	r := w.racks[pos]
	return protocol.SlotData{
		Tier:      r.Tier,
		Capacity:  r.Capacity(),
		FreeSlots: r.FreeSlots(),
		Variant:   string(r.Variant()),
		Ejected:   stacks(ejected),
	}
}

func listData(c query.Cluster, opts query.ListOptions) protocol.ListData {
	entries := query.Listing(c.AllAggregated(), opts)
	out := protocol.ListData{
		Controller: c.Controller.ToArray(),
		Racks:      c.RackCount(),
		FreeSlots:  c.FreeSlots(),
		Entries:    make([]protocol.ListEntry, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, protocol.ListEntry{
			Item:    e.Key.Item,
			Meta:    e.Key.Meta,
			Count:   e.Count,
			Compact: query.CompactCount(int64(e.Count)),
		})
	}
	return out
}

func stacks(items []rack.Slot) []protocol.Stack {
	if len(items) == 0 {
		return nil
	}
	out := make([]protocol.Stack, len(items))
	for i, s := range items {
		out[i] = protocol.Stack{Item: s.Key.Item, Meta: s.Key.Meta, Count: s.Count}
	}
	return out
}
