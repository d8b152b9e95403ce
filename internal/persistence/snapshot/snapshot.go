package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 stores what is needed to resume membership. Controller member
// sets are not stored; they are rediscovered on import and the rack offsets
// serve only as hints.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int `json:"tick_rate_hz"`

	Layout LayoutV1 `json:"layout"`

	Racks       []RackV1       `json:"racks"`
	Controllers []ControllerV1 `json:"controllers"`
}

type LayoutV1 struct {
	BaseSlots    int `json:"base_slots"`
	SlotsPerTier int `json:"slots_per_tier"`
	MaxTier      int `json:"max_tier"`
	TierUnit     int `json:"tier_unit"`
}

type RackV1 struct {
	Pos   [3]int   `json:"pos"`
	Tier  int      `json:"tier"`
	Slots []SlotV1 `json:"slots"`

	ControllerOffset *[3]int `json:"controller_offset,omitempty"`
}

// SlotV1 keeps the slot index so sparse racks stay small.
type SlotV1 struct {
	Index int    `json:"index"`
	Item  string `json:"item"`
	Meta  string `json:"meta,omitempty"`
	Count int    `json:"count"`
}

type ControllerV1 struct {
	Pos  [3]int `json:"pos"`
	Tier int    `json:"tier"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(hb, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// FileName is the on-disk name for a snapshot taken at tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }
