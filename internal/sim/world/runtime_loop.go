package world

import (
	"context"
	"time"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/kernel/model"
)

// Run drives the simulation at TickRateHz until ctx is done or Stop is called.
// Only one Run may be active per World.
func (w *World) Run(ctx context.Context) error {
	if w.stopped.Load() {
		return ErrStopped
	}
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.closeObservers()

	w.flushGeneration()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.stageReq:
			w.stages = req.catalog
			w.regenerate("stages")
			w.flushGeneration()
			w.broadcastFrame()
			req.resp <- w.current
		case req := <-w.roleReq:
			w.role = req.role
			w.regenerate("role")
			w.flushGeneration()
			w.broadcastFrame()
			req.resp <- w.current
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step()
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (w *World) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.stop)
	}
}

// SetStages replaces the stage list and regenerates the population. The
// change is applied by the world loop between ticks, so Run must be active.
func (w *World) SetStages(ctx context.Context, stages []model.Stage) (GenerationEntry, error) {
	cat, err := catalogs.NewStageCatalog("", stages)
	if err != nil {
		return GenerationEntry{}, err
	}
	req := stageReq{catalog: cat, resp: make(chan GenerationEntry, 1)}
	if err := enqueue(ctx, w, w.stageReq, req); err != nil {
		return GenerationEntry{}, err
	}
	return w.await(ctx, req.resp)
}

// SetRole switches the simulated population and regenerates it.
func (w *World) SetRole(ctx context.Context, role model.Role) (GenerationEntry, error) {
	r, err := model.ParseRole(string(role))
	if err != nil {
		return GenerationEntry{}, err
	}
	req := roleReq{role: r, resp: make(chan GenerationEntry, 1)}
	if err := enqueue(ctx, w, w.roleReq, req); err != nil {
		return GenerationEntry{}, err
	}
	return w.await(ctx, req.resp)
}

func enqueue[T any](ctx context.Context, w *World, ch chan<- T, v T) error {
	if w.stopped.Load() {
		return ErrStopped
	}
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
}

func (w *World) await(ctx context.Context, resp <-chan GenerationEntry) (GenerationEntry, error) {
	select {
	case g := <-resp:
		return g, nil
	case <-ctx.Done():
		return GenerationEntry{}, ctx.Err()
	case <-w.stop:
		return GenerationEntry{}, ErrStopped
	}
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It must not be called while Run is active; it is
// intended for tests and offline replays.
func (w *World) StepOnce() *Frame {
	w.step()
	return w.Frame()
}

// Reset applies a stage list and role directly and starts a new generation.
// Like StepOnce it must not be called while Run is active.
func (w *World) Reset(stages []model.Stage, role model.Role) (GenerationEntry, error) {
	r, err := model.ParseRole(string(role))
	if err != nil {
		return GenerationEntry{}, err
	}
	cat, err := catalogs.NewStageCatalog("", stages)
	if err != nil {
		return GenerationEntry{}, err
	}
	w.stages = cat
	w.role = r
	w.regenerate("reset")
	w.flushGeneration()
	return w.current, nil
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
