package world

import (
	"time"

	"github.com/google/uuid"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/feature/entities/population"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/movement"
)

func (w *World) step() {
	start := time.Now()

	w.entities = movement.Step(w.entities, movement.Env{
		Params:       w.cfg.Movement,
		Destinations: w.destinations,
		Rand:         w.rng,
	})
	tick := w.tick.Add(1)
	f := w.publish(tick)

	w.stepObservers(f)

	if w.frameLogger != nil && everyTicks(tick, w.cfg.FrameLogEveryTicks) {
		_ = w.frameLogger.WriteFrame(*f)
	}

	stepMS := float64(time.Since(start).Microseconds()) / 1000.0
	stats := summarize(f, stepMS)
	if w.statsLogger != nil && everyTicks(tick, w.cfg.TickStatsEveryTicks) {
		_ = w.statsLogger.WriteTickStats(stats)
	}
	w.storeMetrics(stats)
}

// regenerate rebuilds the whole population for the current stages and role.
// The previous entity list is discarded; nothing carries over.
func (w *World) regenerate(reason string) {
	w.generation++
	w.generationID = uuid.NewString()
	w.destinations = catalogs.DestinationPoints(w.stages.Stages)
	w.entities = population.Initialize(w.stages.Stages, w.role, population.Config{
		StaffCount: w.cfg.StaffCount,
	}, w.rng)

	tick := w.tick.Load()
	w.current = GenerationEntry{
		Generation:   w.generation,
		GenerationID: w.generationID,
		StartTick:    tick,
		Role:         w.role,
		StageDigest:  w.stages.Digest,
		StageCount:   len(w.stages.Stages),
		EntityCount:  len(w.entities),
		Reason:       reason,
		StartedAt:    time.Now().UTC(),
	}
	w.genPending = true
	f := w.publish(tick)
	w.storeMetrics(summarize(f, 0))
}

func (w *World) flushGeneration() {
	if !w.genPending || w.generationLogger == nil {
		return
	}
	_ = w.generationLogger.WriteGeneration(w.current)
	w.genPending = false
}

// publish stores an immutable copy of the current state for concurrent readers.
func (w *World) publish(tick uint64) *Frame {
	f := &Frame{
		Tick:         tick,
		Generation:   w.generation,
		GenerationID: w.generationID,
		Role:         w.role,
		Stages:       append([]model.Stage(nil), w.stages.Stages...),
		StageDigest:  w.stages.Digest,
		Entities:     model.CloneEntities(w.entities),
	}
	if f.Entities == nil {
		f.Entities = []model.Entity{}
	}
	w.frame.Store(f)
	return f
}

func summarize(f *Frame, stepMS float64) TickStats {
	s := TickStats{
		Tick:         f.Tick,
		Generation:   f.Generation,
		GenerationID: f.GenerationID,
		Entities:     len(f.Entities),
		StepMS:       stepMS,
	}
	for _, e := range f.Entities {
		if e.Walking() {
			s.Walking++
		}
		if movement.IsNorth(e.Position) {
			s.North++
		}
	}
	return s
}

func everyTicks(tick uint64, every int) bool {
	return every > 0 && tick%uint64(every) == 0
}
