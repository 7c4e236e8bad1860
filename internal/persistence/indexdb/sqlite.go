package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/tuning"
	"tentscape.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of generations and tick stats. It is
// fed from the world loop through a buffered queue and never blocks it.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropGeneration atomic.Uint64
	dropTickStats  atomic.Uint64
}

type reqKind int

const (
	reqGeneration reqKind = iota + 1
	reqTickStats
	reqSync
)

type req struct {
	kind reqKind

	generation world.GenerationEntry
	stats      world.TickStats
	done       chan struct{}
}

type Stats struct {
	QueueDepth          int    `json:"queue_depth"`
	QueueCapacity       int    `json:"queue_capacity"`
	DropGenerationTotal uint64 `json:"drop_generation_total"`
	DropTickStatsTotal  uint64 `json:"drop_tick_stats_total"`
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
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
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
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stages (
			digest TEXT NOT NULL,
			stage_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			current_dj TEXT,
			next_dj TEXT,
			end_time TEXT,
			vibe TEXT,
			PRIMARY KEY (digest, stage_id)
		);`,
		`CREATE TABLE IF NOT EXISTS generations (
			generation_id TEXT PRIMARY KEY,
			generation INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			role TEXT NOT NULL,
			stage_digest TEXT NOT NULL,
			stage_count INTEGER NOT NULL,
			entity_count INTEGER NOT NULL,
			reason TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_start ON generations(start_tick);`,
		`CREATE TABLE IF NOT EXISTS tick_stats (
			tick INTEGER PRIMARY KEY,
			generation_id TEXT NOT NULL,
			entities INTEGER NOT NULL,
			walking INTEGER NOT NULL,
			north INTEGER NOT NULL,
			step_ms REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tick_stats_generation ON tick_stats(generation_id, tick);`,
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
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropGenerationTotal: s.dropGeneration.Load(),
		DropTickStatsTotal:  s.dropTickStats.Load(),
	}
}

func (s *SQLiteIndex) WriteGeneration(entry world.GenerationEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqGeneration, generation: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropGeneration.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteTickStats(st world.TickStats) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTickStats, stats: st}:
	default:
		s.dropTickStats.Add(1)
	}
	return nil
}

// Sync blocks until every queued write has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs stores the active stage list and tuning. Stage rows are keyed
// by catalog digest so earlier line-ups stay queryable.
func (s *SQLiteIndex) UpsertCatalogs(cat catalogs.StageCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	stagesJSON, _ := json.Marshal(cat.Stages)
	tuneJSON, _ := json.Marshal(tune)
	sum := sha256.Sum256(tuneJSON)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	if _, err := stmt.Exec("stages", cat.Digest, string(stagesJSON), now); err != nil {
		return err
	}
	if _, err := stmt.Exec("tuning", hex.EncodeToString(sum[:]), string(tuneJSON), now); err != nil {
		return err
	}
	if err := insertStages(tx, cat); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordStages stores a stage catalog applied at runtime.
func (s *SQLiteIndex) RecordStages(cat catalogs.StageCatalog) error {
	if s == nil {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertStages(tx, cat); err != nil {
		return err
	}
	return tx.Commit()
}

func insertStages(tx *sql.Tx, cat catalogs.StageCatalog) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO stages(digest,stage_id,name,type,x,y,current_dj,next_dj,end_time,vibe) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, st := range cat.Stages {
		if _, err := stmt.Exec(cat.Digest, st.ID, st.Name, st.Type, st.Position.X, st.Position.Y, st.CurrentDJ, st.NextDJ, st.EndTime, st.Vibe); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertGeneration, _ := s.db.Prepare(`INSERT OR REPLACE INTO generations(generation_id,generation,start_tick,role,stage_digest,stage_count,entity_count,reason,started_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertTickStats, _ := s.db.Prepare(`INSERT OR REPLACE INTO tick_stats(tick,generation_id,entities,walking,north,step_ms) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertGeneration != nil {
			_ = insertGeneration.Close()
		}
		if insertTickStats != nil {
			_ = insertTickStats.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqGeneration:
			g := r.generation
			if insertGeneration != nil {
				if _, err := tx.Stmt(insertGeneration).Exec(
					g.GenerationID,
					int64(g.Generation),
					int64(g.StartTick),
					string(g.Role),
					g.StageDigest,
					g.StageCount,
					g.EntityCount,
					g.Reason,
					g.StartedAt.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Generations are rare and operators look for them right away.
			commit()
			continue

		case reqTickStats:
			st := r.stats
			if insertTickStats != nil {
				if _, err := tx.Stmt(insertTickStats).Exec(
					int64(st.Tick),
					st.GenerationID,
					st.Entities,
					st.Walking,
					st.North,
					st.StepMS,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
