package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"storageracks.ai/internal/persistence/snapshot"
	"storageracks.ai/internal/sim/world"
)

const schemaVersion = "1"

// SQLiteIndex is a secondary, queryable index of tick logs, audits and
// snapshots. Writes are queued and applied by a single goroutine; the JSONL
// logs and snapshot files remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick        uint64
	Path        string
	Racks       int
	Controllers int
	StoredItems int64
	RecordedAt  string
	Clusters    []ControllerRow
}

// ControllerRow summarises one controller as stored in a snapshot.
type ControllerRow struct {
	Tick  uint64
	Pos   [3]int
	Tier  int
	Racks int
	Items int64
}

// SnapshotRow is a recorded snapshot.
type SnapshotRow struct {
	Tick        uint64
	Path        string
	Racks       int
	Controllers int
	StoredItems int64
	RecordedAt  time.Time
}

// AuditRow is an indexed audit entry.
type AuditRow struct {
	Tick    uint64
	Seq     int
	Actor   string
	Action  string
	Pos     [3]int
	Outcome string
	Reason  string
}

type Stats struct {
	DropTickTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
	WriteErrorTotal   uint64
	QueueDepth        int
	QueueCapacity     int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			requests INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			op TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			req_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS requests_op ON requests(op, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS audits_pos ON audits(x, y, z, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			racks INTEGER NOT NULL,
			controllers INTEGER NOT NULL,
			stored_items INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_controllers (
			tick INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			racks INTEGER NOT NULL,
			items INTEGER NOT NULL,
			PRIMARY KEY (tick, x, y, z)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

// RecordSnapshot queues a summary of snap, including a per-controller row
// derived from the rack offsets stored in it.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := summarize(path, snap)
	r.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func summarize(path string, snap snapshot.SnapshotV1) snapshotRow {
	r := snapshotRow{
		Tick:        snap.Header.Tick,
		Path:        path,
		Racks:       len(snap.Racks),
		Controllers: len(snap.Controllers),
	}
	byPos := make(map[[3]int]int, len(snap.Controllers))
	for _, c := range snap.Controllers {
		byPos[c.Pos] = len(r.Clusters)
		r.Clusters = append(r.Clusters, ControllerRow{Tick: snap.Header.Tick, Pos: c.Pos, Tier: c.Tier})
	}
	for _, rk := range snap.Racks {
		var items int64
		for _, sl := range rk.Slots {
			items += int64(sl.Count)
		}
		r.StoredItems += items
		if rk.ControllerOffset == nil {
			continue
		}
		off := *rk.ControllerOffset
		ctrl := [3]int{rk.Pos[0] - off[0], rk.Pos[1] - off[1], rk.Pos[2] - off[2]}
		i, ok := byPos[ctrl]
		if !ok {
			continue
		}
		r.Clusters[i].Racks++
		r.Clusters[i].Items += items
	}
	return r
}

func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	rows, err := s.ListSnapshots(ctx, 1)
	if err != nil || len(rows) == 0 {
		return SnapshotRow{}, false, err
	}
	return rows[0], true, nil
}

// ListSnapshots returns recorded snapshots, newest first.
func (s *SQLiteIndex) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,path,racks,controllers,stored_items,recorded_at FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var tick int64
		var at string
		if err := rows.Scan(&tick, &r.Path, &r.Racks, &r.Controllers, &r.StoredItems, &at); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) SnapshotControllers(ctx context.Context, tick uint64) ([]ControllerRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x,y,z,tier,racks,items FROM snapshot_controllers WHERE tick=? ORDER BY x,y,z`, int64(tick))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ControllerRow
	for rows.Next() {
		r := ControllerRow{Tick: tick}
		if err := rows.Scan(&r.Pos[0], &r.Pos[1], &r.Pos[2], &r.Tier, &r.Racks, &r.Items); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AuditsAt returns the audit trail of one position, oldest first.
func (s *SQLiteIndex) AuditsAt(ctx context.Context, pos [3]int, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,seq,actor,action,outcome,reason FROM audits WHERE x=? AND y=? AND z=? ORDER BY tick,seq LIMIT ?`, pos[0], pos[1], pos[2], limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		r := AuditRow{Pos: pos}
		var tick int64
		if err := rows.Scan(&tick, &r.Seq, &r.Actor, &r.Action, &r.Outcome, &r.Reason); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,requests,raw_json) VALUES(?,?,?,?)`)
	insertRequest, _ := s.db.Prepare(`INSERT OR REPLACE INTO requests(tick,seq,actor,op,x,y,z,ok,req_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,outcome,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,racks,controllers,stored_items,recorded_at) VALUES(?,?,?,?,?,?)`)
	insertController, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshot_controllers(tick,x,y,z,tier,racks,items) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRequest, insertAudit, insertSnapshot, insertController} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeErrors.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			raw, _ := json.Marshal(t)
			if !exec(insertTick, int64(t.Tick), t.Digest, len(t.Requests), string(raw)) {
				continue
			}
			for i, rr := range t.Requests {
				reqJSON, _ := json.Marshal(rr.Req)
				if !exec(insertRequest, int64(t.Tick), i, rr.Actor, rr.Req.Op,
					rr.Req.Pos[0], rr.Req.Pos[1], rr.Req.Pos[2], boolInt(rr.OK), string(reqJSON)) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Actor, a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2], a.Outcome, a.Reason, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Racks, sn.Controllers, sn.StoredItems, sn.RecordedAt) {
				continue
			}
			for _, c := range sn.Clusters {
				if !exec(insertController, int64(c.Tick), c.Pos[0], c.Pos[1], c.Pos[2], c.Tier, c.Racks, c.Items) {
					break
				}
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
