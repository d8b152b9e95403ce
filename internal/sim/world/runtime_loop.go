package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Request
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.inbox:
			pending = append(pending, req)
		case <-ticker.C:
			w.step(pending)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pending = pending[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Submit queues a request for the next tick and waits for its response.
// A full inbox fails fast with ErrBusy instead of blocking the caller.
func (w *World) Submit(ctx context.Context, r Request) (Response, error) {
	resp := make(chan Response, 1)
	r.Resp = resp
	select {
	case w.inbox <- r:
	default:
		return Response{}, ErrBusy
	}
	select {
	case out := <-resp:
		return out, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-w.stop:
		return Response{}, ErrBusy
	}
}

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(reqs []Request) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(reqs)
	return tick, digest
}

func (w *World) step(reqs []Request) string {
	nowTick := w.tick.Load()

	w.highlights.Expire(nowTick)

	// Apply requests in inbox order.
	recorded := make([]RecordedRequest, 0, len(reqs))
	for _, r := range reqs {
		resp := w.apply(r)
		resp.Tick = nowTick
		recorded = append(recorded, RecordedRequest{Actor: r.Actor, Req: r.Req, OK: resp.Err == nil})
		if w.metrics != nil {
			w.metrics.observeRequest(r.Req.Op, resp.Err == nil)
		}
		if r.Resp != nil {
			select {
			case r.Resp <- resp:
			default:
				// Caller gave up; don't block the loop.
			}
		}
	}

	digest := w.stateDigest(nowTick)
	// Idle ticks are not logged.
	if w.tickLogger != nil && len(recorded) > 0 {
		if err := w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Requests: recorded, Digest: digest}); err != nil {
			w.log.Printf("tick log %d: %v", nowTick, err)
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				w.log.Printf("snapshot %d dropped: sink backed up", nowTick)
			}
		}
	}

	w.tick.Add(1)
	if w.metrics != nil {
		w.metrics.observeTick(nowTick)
	}
	return digest
}
