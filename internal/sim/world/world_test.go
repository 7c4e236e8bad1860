package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tentscape.ai/internal/observerproto"
	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/feature/entities/population"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/movement"
)

func newTestWorld(t *testing.T, role model.Role) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:         "test",
		TickRateHz: 200,
		Seed:       42,
		Role:       role,
		Stages:     catalogs.MockStages(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func startWorld(t *testing.T, w *World) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for !w.running.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("world did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatalf("world did not stop")
			return nil
		}
	}
}

func TestNewPublishesInitialGeneration(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	f := w.Frame()
	if f.Tick != 0 || f.Generation != 1 || f.GenerationID == "" {
		t.Fatalf("initial frame: tick=%d gen=%d id=%q", f.Tick, f.Generation, f.GenerationID)
	}
	if len(f.Entities) != 4 {
		t.Fatalf("friends: got %d", len(f.Entities))
	}
	if f.Role != model.RolePunter || len(f.Stages) != 3 {
		t.Fatalf("frame role/stages: %s %d", f.Role, len(f.Stages))
	}
}

func TestNewRejectsInvalidRole(t *testing.T) {
	_, err := New(WorldConfig{Role: "DJ"})
	if !errors.Is(err, model.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestStepOnceDoesNotMutatePublishedFrame(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	before := w.Frame()
	snapshot := model.CloneEntities(before.Entities)

	after := w.StepOnce()
	if after.Tick != 1 || w.CurrentTick() != 1 {
		t.Fatalf("tick: frame=%d world=%d", after.Tick, w.CurrentTick())
	}
	for i := range snapshot {
		if before.Entities[i].Position != snapshot[i].Position {
			t.Fatalf("published frame mutated for %s", snapshot[i].ID)
		}
		if len(before.Entities[i].Waypoints) != len(snapshot[i].Waypoints) {
			t.Fatalf("published waypoints mutated for %s", snapshot[i].ID)
		}
	}

	moved := 0
	for i := range after.Entities {
		if after.Entities[i].Position != before.Entities[i].Position {
			moved++
		}
	}
	if moved == 0 {
		t.Fatalf("expected walking friends to move")
	}
}

func TestResetRegeneratesPopulation(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	first := w.Frame().GenerationID

	g, err := w.Reset(catalogs.MockStages(), model.RolePromoter)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if g.Generation != 2 || g.GenerationID == first {
		t.Fatalf("generation not advanced: %+v", g)
	}
	if g.EntityCount != 50 || len(w.Frame().Entities) != 50 {
		t.Fatalf("staff: %d", g.EntityCount)
	}

	g, err = w.Reset(nil, model.RolePromoter)
	if err != nil {
		t.Fatalf("Reset empty: %v", err)
	}
	if g.EntityCount != 0 || len(w.Frame().Entities) != 0 {
		t.Fatalf("empty stages should clear the population")
	}
	// Ticking an empty world is a no-op.
	if f := w.StepOnce(); len(f.Entities) != 0 {
		t.Fatalf("empty world grew entities")
	}
}

func TestRunTwiceReturnsErrAlreadyRunning(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	stop := startWorld(t, w)
	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunAdvancesTicks(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	stop := startWorld(t, w)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for w.CurrentTick() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("tick stuck at %d", w.CurrentTick())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m := w.Metrics(); m.Entities != 4 || m.Generation != 1 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestSetStagesAndRoleRegenerate(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	stop := startWorld(t, w)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := w.Frame().GenerationID
	stages := []model.Stage{{ID: "solo", Name: "Solo", Type: model.StageMain, Position: model.Pt(50, 50)}}
	g, err := w.SetStages(ctx, stages)
	if err != nil {
		t.Fatalf("SetStages: %v", err)
	}
	if g.GenerationID == first || g.StageCount != 1 || g.Reason != "stages" {
		t.Fatalf("generation: %+v", g)
	}
	f := w.Frame()
	if f.GenerationID != g.GenerationID {
		t.Fatalf("frame generation %s want %s", f.GenerationID, g.GenerationID)
	}
	if len(f.Entities) != 4 {
		t.Fatalf("friends: %d", len(f.Entities))
	}
	// Mike starts at the food court, far from the stage, so his first target
	// is still the new stage.
	if mike := f.Entities[1]; mike.TargetPosition != model.Pt(50, 50) {
		t.Fatalf("%s target %+v", mike.ID, mike.TargetPosition)
	}

	g, err = w.SetRole(ctx, model.RolePromoter)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if g.Role != model.RolePromoter || g.EntityCount != 50 {
		t.Fatalf("role generation: %+v", g)
	}

	if _, err := w.SetRole(ctx, "VIP"); !errors.Is(err, model.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	dup := []model.Stage{stages[0], stages[0]}
	if _, err := w.SetStages(ctx, dup); !errors.Is(err, catalogs.ErrDuplicateStageID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestDefaultConfigRetriggersIdleStaff(t *testing.T) {
	w := newTestWorld(t, model.RolePromoter)
	if got := w.Config().Movement.RetriggerChance; got != movement.DefaultParams().RetriggerChance {
		t.Fatalf("retrigger chance: %v", got)
	}
	for i := 0; i < 3000; i++ {
		for _, e := range w.StepOnce().Entities {
			if e.Walking() {
				return
			}
		}
	}
	t.Fatalf("no staff member left WORKING in 3000 ticks")
}

func TestEmptyStagesClearPopulationUntilStagesArrive(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	stop := startWorld(t, w)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g, err := w.SetStages(ctx, nil)
	if err != nil {
		t.Fatalf("SetStages(nil): %v", err)
	}
	if g.EntityCount != 0 || g.StageCount != 0 || g.Generation != 2 {
		t.Fatalf("empty generation: %+v", g)
	}
	f := w.Frame()
	if f.GenerationID != g.GenerationID || f.Entities == nil || len(f.Entities) != 0 {
		t.Fatalf("empty frame: gen=%s entities=%v", f.GenerationID, f.Entities)
	}
	// Ticks keep running with nobody on the map.
	time.Sleep(50 * time.Millisecond)
	if f := w.Frame(); len(f.Entities) != 0 {
		t.Fatalf("entities appeared without stages: %d", len(f.Entities))
	}

	g, err = w.SetStages(ctx, catalogs.MockStages())
	if err != nil {
		t.Fatalf("SetStages: %v", err)
	}
	if g.EntityCount != 4 || g.StageCount != 3 || g.Generation != 3 {
		t.Fatalf("repopulated generation: %+v", g)
	}
	f = w.Frame()
	if f.GenerationID != g.GenerationID || len(f.Entities) != 4 {
		t.Fatalf("repopulated frame: gen=%s entities=%d", f.GenerationID, len(f.Entities))
	}
	for i, e := range f.Entities {
		if e.Type != model.EntityFriend || e.Name != population.FriendNames[i] {
			t.Fatalf("entity %d: %s %s", i, e.Type, e.Name)
		}
	}
}

func TestStopEndsRunAndRejectsRequests(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	for !w.running.Load() {
		time.Sleep(time.Millisecond)
	}
	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}
	if _, err := w.SetRole(context.Background(), model.RolePromoter); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := w.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped from Run, got %v", err)
	}
}

func TestObserverReceivesFramesAtCadence(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	out := make(chan []byte, 16)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out, EveryTicks: 3})

	first := decodeFrameMsg(t, <-out)
	if first.Tick != 0 || first.Type != observerproto.TypeFrame || len(first.Entities) != 4 {
		t.Fatalf("join frame: %+v", first)
	}

	for i := 0; i < 6; i++ {
		w.StepOnce()
	}
	var ticks []uint64
	for len(out) > 0 {
		ticks = append(ticks, decodeFrameMsg(t, <-out).Tick)
	}
	if len(ticks) != 2 || ticks[0] != 3 || ticks[1] != 6 {
		t.Fatalf("frame ticks: %v", ticks)
	}

	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "O1", EveryTicks: 100000})
	if got := w.observers["O1"].every; got != 600 {
		t.Fatalf("cadence clamp: %d", got)
	}

	w.handleObserverLeave("O1")
	if _, ok := <-out; ok {
		t.Fatalf("expected closed channel after leave")
	}
}

func TestObserverDropsOldestWhenFull(t *testing.T) {
	w := newTestWorld(t, model.RolePunter)
	out := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", Out: out, EveryTicks: 1})
	for i := 0; i < 5; i++ {
		w.StepOnce()
	}
	if got := decodeFrameMsg(t, <-out).Tick; got != 5 {
		t.Fatalf("expected latest frame, got tick %d", got)
	}
}

type recordingLogger struct {
	frames      []uint64
	generations []GenerationEntry
	stats       []TickStats
}

func (r *recordingLogger) WriteFrame(f Frame) error { r.frames = append(r.frames, f.Tick); return nil }
func (r *recordingLogger) WriteGeneration(e GenerationEntry) error {
	r.generations = append(r.generations, e)
	return nil
}
func (r *recordingLogger) WriteTickStats(s TickStats) error { r.stats = append(r.stats, s); return nil }

func TestLoggersFollowCadence(t *testing.T) {
	w, err := New(WorldConfig{
		Seed:                1,
		Stages:              catalogs.MockStages(),
		FrameLogEveryTicks:  2,
		TickStatsEveryTicks: 5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recordingLogger{}
	w.SetFrameLogger(rec)
	w.SetGenerationLogger(rec)
	w.SetStatsLogger(rec)

	w.flushGeneration()
	for i := 0; i < 10; i++ {
		w.StepOnce()
	}
	if len(rec.generations) != 1 || rec.generations[0].Reason != "init" {
		t.Fatalf("generations: %+v", rec.generations)
	}
	if len(rec.frames) != 5 || rec.frames[0] != 2 {
		t.Fatalf("frames: %v", rec.frames)
	}
	if len(rec.stats) != 2 || rec.stats[1].Tick != 10 || rec.stats[0].Entities != 4 {
		t.Fatalf("stats: %+v", rec.stats)
	}

	w.flushGeneration()
	if len(rec.generations) != 1 {
		t.Fatalf("generation logged twice")
	}
}

func decodeFrameMsg(t *testing.T, b []byte) observerproto.FrameMsg {
	t.Helper()
	var m observerproto.FrameMsg
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return m
}
