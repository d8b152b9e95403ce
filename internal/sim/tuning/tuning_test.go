package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_FillsDefaults(t *testing.T) {
	p := writeTuning(t, "tick_rate_hz: 10\nclusters:\n  tier_unit: 4\n  require_controller: true\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 10 || got.Clusters.TierUnit != 4 || !got.Clusters.RequireController {
		t.Fatalf("explicit values lost: %+v", got)
	}
	d := Defaults()
	if got.Racks != d.Racks || got.Highlights != d.Highlights || got.SnapshotEveryTicks != d.SnapshotEveryTicks {
		t.Fatalf("defaults not filled: %+v", got)
	}
}

func TestLoad_RejectsUnknownShrinkPolicy(t *testing.T) {
	p := writeTuning(t, "racks:\n  shrink_policy: shred\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_ShrinkPolicyCaseInsensitive(t *testing.T) {
	p := writeTuning(t, "racks:\n  shrink_policy: FORBID\n")
	got, err := Load(p)
	if err != nil || got.Racks.ShrinkPolicy != ShrinkForbid {
		t.Fatalf("got %q err=%v", got.Racks.ShrinkPolicy, err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeTuning(t, "racks: [1, 2\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_SingleTierLayout(t *testing.T) {
	p := writeTuning(t, "racks:\n  base_slots: 18\n  slots_per_tier: 0\n  max_tier: 0\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Racks.BaseSlots != 18 || got.Racks.SlotsPerTier != 0 || got.Racks.MaxTier != 0 {
		t.Fatalf("single-tier layout lost: %+v", got.Racks)
	}
	if got.Racks.ShrinkPolicy != ShrinkEject {
		t.Fatalf("shrink policy=%q", got.Racks.ShrinkPolicy)
	}
}

func TestLoad_RejectsNegativeLayout(t *testing.T) {
	p := writeTuning(t, "racks:\n  max_tier: -1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error")
	}
}
