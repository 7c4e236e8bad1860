package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/tuning"
	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/sim/world/kernel/model"
)

func openTestIndex(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "fest.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func TestSQLiteIndex_RecordsWorldGenerations(t *testing.T) {
	idx, _ := openTestIndex(t)
	w, err := world.New(world.WorldConfig{Seed: 5, Stages: catalogs.MockStages(), TickStatsEveryTicks: 2})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.SetGenerationLogger(idx)
	w.SetStatsLogger(idx)

	first, err := w.Reset(catalogs.MockStages(), model.RolePunter)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for i := 0; i < 4; i++ {
		w.StepOnce()
	}
	second, err := w.Reset(catalogs.MockStages(), model.RolePromoter)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for i := 0; i < 6; i++ {
		w.StepOnce()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	gens, err := idx.Generations(ctx, 0)
	if err != nil {
		t.Fatalf("Generations: %v", err)
	}
	if len(gens) != 2 {
		t.Fatalf("generations: %d", len(gens))
	}
	if gens[0].GenerationID != second.GenerationID || gens[1].GenerationID != first.GenerationID {
		t.Fatalf("order: %s, %s", gens[0].GenerationID, gens[1].GenerationID)
	}
	if gens[0].Role != model.RolePromoter || gens[0].EntityCount != 50 || gens[0].StartTick != 4 {
		t.Fatalf("promoter generation: %+v", gens[0])
	}
	if gens[1].Ticks != 2 || gens[0].Ticks != 3 || gens[0].LastTick != 10 {
		t.Fatalf("tick stats per generation: first=%d second=%d last=%d", gens[1].Ticks, gens[0].Ticks, gens[0].LastTick)
	}

	stats, err := idx.TickStats(ctx, second.GenerationID)
	if err != nil {
		t.Fatalf("TickStats: %v", err)
	}
	if len(stats) != 3 || stats[0].Tick != 6 || stats[0].Entities != 50 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, path := openTestIndex(t)
	cat, err := catalogs.NewStageCatalog("mock", catalogs.MockStages())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := idx.UpsertCatalogs(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	ctx := context.Background()
	got, err := idx.Stages(ctx, cat.Digest)
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(got) != 3 || got[0] != catalogs.MockStages()[0] {
		t.Fatalf("stages: %+v", got)
	}

	_ = idx.WriteGeneration(world.GenerationEntry{Generation: 1, GenerationID: "g1", Role: model.RolePunter, Reason: "init", StartedAt: time.Now()})
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	gens, err := Generations(ctx, path, 1)
	if err != nil {
		t.Fatalf("Generations(path): %v", err)
	}
	if len(gens) != 1 || gens[0].GenerationID != "g1" {
		t.Fatalf("generations from file: %+v", gens)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTickStats}

	_ = s.WriteTickStats(world.TickStats{Tick: 2})
	_ = s.WriteGeneration(world.GenerationEntry{Generation: 2})

	st := s.Stats()
	if st.DropTickStatsTotal != 1 || st.DropGenerationTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilSafe(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTickStats(world.TickStats{}); err != nil {
		t.Fatalf("nil WriteTickStats: %v", err)
	}
	if err := s.WriteGeneration(world.GenerationEntry{}); err != nil {
		t.Fatalf("nil WriteGeneration: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("nil stats: %+v", st)
	}
}
