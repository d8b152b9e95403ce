package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storageracks.ai/internal/persistence/indexdb"
	persistlog "storageracks.ai/internal/persistence/log"
	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/grid"
	"storageracks.ai/internal/sim/rack"
	"storageracks.ai/internal/sim/world"
)

func TestLatestSnapshot_PicksHighestTick(t *testing.T) {
	worldDir := t.TempDir()
	dir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"100.snap.zst", "2000.snap.zst", "999.snap.zst", "notes.txt", "x.snap.zst"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got, want := latestSnapshot(worldDir), filepath.Join(dir, "2000.snap.zst"); got != want {
		t.Fatalf("latest=%q want %q", got, want)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir latest=%q", got)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"bogus":          false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

type recordedSnapshots struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordedSnapshots) RecordSnapshot(path string, _ snapshot.SnapshotV1) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func TestRunSnapshotWriter_DrainsOnCancel(t *testing.T) {
	worldDir := t.TempDir()
	ch := make(chan snapshot.SnapshotV1, 2)
	ch <- snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 10}}
	ch <- snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 20}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recordedSnapshots{}
	runSnapshotWriter(ctx, worldDir, ch, rec, log.New(io.Discard, "", 0))

	if len(rec.paths) != 2 {
		t.Fatalf("recorded=%v", rec.paths)
	}
	h, err := snapshot.ReadHeader(latestSnapshot(worldDir))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 20 {
		t.Fatalf("latest tick=%d want 20", h.Tick)
	}
}

func TestSnapshotHandler(t *testing.T) {
	sink := make(chan snapshot.SnapshotV1, 4)
	w, err := world.New(world.WorldConfig{ID: "w", TickRateHz: 200}, world.Options{SnapshotSink: sink})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	h := snapshotHandler(w)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	h(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
	req.RemoteAddr = "127.0.0.1:4444"
	h(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("loopback code=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || !body.OK {
		t.Fatalf("body=%s err=%v", rr.Body.String(), err)
	}
	select {
	case snap := <-sink:
		if snap.Header.WorldID != "w" {
			t.Fatalf("snapshot world=%q", snap.Header.WorldID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
	}
}

func TestRegisterIndexMetrics(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "w.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	reg := prometheus.NewRegistry()
	registerIndexMetrics(reg, idx)
	registerIndexMetrics(reg, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			found[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	if len(found) != 6 {
		t.Fatalf("metrics=%v", found)
	}
	if found["storageracks_index_queue_capacity"] <= 0 {
		t.Fatalf("queue capacity=%v", found["storageracks_index_queue_capacity"])
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}
	t.Setenv("SR_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	t.Setenv("SR_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(t.TempDir(), false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SR_TEST_FLAG", "yes")
	if !envBool("SR_TEST_FLAG", false) {
		t.Fatalf("yes should be true")
	}
	t.Setenv("SR_TEST_FLAG", "off")
	if envBool("SR_TEST_FLAG", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("SR_TEST_FLAG", "")
	if !envBool("SR_TEST_FLAG", true) {
		t.Fatalf("empty should use default")
	}
}

func TestWorldSinks_EjectionsReachDropLog(t *testing.T) {
	dir := t.TempDir()
	sinks := openWorldSinks(dir, nil, log.New(io.Discard, "", 0))
	w, err := world.New(world.WorldConfig{ID: "w"}, sinks.apply(world.Options{}))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ore := rack.ItemKey{Item: "minecraft:iron_ore"}
	if _, err := w.PlaceController(grid.Vec3i{}, 1); err != nil {
		t.Fatalf("controller: %v", err)
	}
	if _, err := w.PlaceRack(grid.Vec3i{X: 1}, 0); err != nil {
		t.Fatalf("rack: %v", err)
	}
	if err := w.SetSlot(grid.Vec3i{X: 1}, 0, rack.Slot{Key: ore, Count: 12}); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if _, _, err := w.Remove(grid.Vec3i{X: 1}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := sinks.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	drops, err := persistlog.ReadDrops(dir, 0, 0)
	if err != nil {
		t.Fatalf("ReadDrops: %v", err)
	}
	if len(drops) != 1 {
		t.Fatalf("drops=%+v", drops)
	}
	d := drops[0]
	if d.Pos != [3]int{1, 0, 0} || d.Reason != "removed" || len(d.Items) != 1 || d.Items[0].Item != ore.Item || d.Items[0].Count != 12 {
		t.Fatalf("drop=%+v", d)
	}
	audits, err := persistlog.ReadAudit(dir, 0, 0)
	if err != nil || len(audits) == 0 {
		t.Fatalf("audits=%d err=%v", len(audits), err)
	}
}
