package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"storageracks.ai/internal/protocol"
	"storageracks.ai/internal/sim/world"
)

const fileSuffix = ".jsonl.zst"

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu    sync.Mutex
	hour  string
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	lines uint64
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour {
		if err := w.openLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

// Lines reports how many entries were written since construction.
func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", w.prefix, hour, fileSuffix))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.hour = f, enc, hour
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		err = errors.Join(err, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		err = errors.Join(err, w.f.Close())
		w.f = nil
	}
	w.hour = ""
	return err
}

// ReadJSONL calls fn for every line of every <prefix>-*.jsonl.zst file in
// dir, in file name order. Appended zstd frames are read transparently.
func ReadJSONL(dir, prefix string, fn func(line []byte) error) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasPrefix(n, prefix+"-") && strings.HasSuffix(n, fileSuffix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		if err := readFile(filepath.Join(dir, n), fn); err != nil {
			return fmt.Errorf("%s: %w", n, err)
		}
	}
	return nil
}

func readFile(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// TickLogger writes one entry per tick that carried requests.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes topology and storage audit entries.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// ReadAudit returns audit entries in [since, until] in write order. A zero
// until means no upper bound.
func ReadAudit(worldDir string, since, until uint64) ([]world.AuditEntry, error) {
	var out []world.AuditEntry
	err := ReadJSONL(filepath.Join(worldDir, "audit"), "audit", func(b []byte) error {
		var e world.AuditEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		if e.Tick < since || (until != 0 && e.Tick > until) {
			return nil
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// DropEntry is the on-disk form of an ejected batch.
type DropEntry struct {
	Tick   uint64           `json:"tick"`
	Pos    [3]int           `json:"pos"`
	Reason string           `json:"reason"`
	Items  []protocol.Stack `json:"items"`
}

// DropLogger persists every stack that leaves a rack through removal or
// shrink overflow. It satisfies world.ItemSink.
type DropLogger struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger
}

func NewDropLogger(worldDir string, logger *stdlog.Logger) *DropLogger {
	return &DropLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "drops"), "drops"), log: logger}
}

func (l *DropLogger) EjectItems(d world.Drop) {
	e := DropEntry{Tick: d.Tick, Pos: d.Pos.ToArray(), Reason: d.Reason, Items: make([]protocol.Stack, 0, len(d.Items))}
	for _, s := range d.Items {
		e.Items = append(e.Items, protocol.Stack{Item: s.Key.Item, Meta: s.Key.Meta, Count: s.Count})
	}
	if err := l.w.Write(e); err != nil && l.log != nil {
		l.log.Printf("drop log at %v: %v", d.Pos, err)
	}
}

func (l *DropLogger) Close() error { return l.w.Close() }

// ReadDrops returns drop entries in [since, until] in write order. A zero
// until means no upper bound.
func ReadDrops(worldDir string, since, until uint64) ([]DropEntry, error) {
	var out []DropEntry
	err := ReadJSONL(filepath.Join(worldDir, "drops"), "drops", func(b []byte) error {
		var e DropEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		if e.Tick < since || (until != 0 && e.Tick > until) {
			return nil
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// MultiAudit fans an audit entry out to every sink and joins their errors.
type MultiAudit []world.AuditLogger

func (m MultiAudit) WriteAudit(e world.AuditEntry) error {
	var err error
	for _, l := range m {
		if l != nil {
			err = errors.Join(err, l.WriteAudit(e))
		}
	}
	return err
}

// MultiTick fans a tick entry out to every sink and joins their errors.
type MultiTick []world.TickLogger

func (m MultiTick) WriteTick(e world.TickLogEntry) error {
	var err error
	for _, l := range m {
		if l != nil {
			err = errors.Join(err, l.WriteTick(e))
		}
	}
	return err
}
