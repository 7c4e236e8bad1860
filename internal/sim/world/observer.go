package world

import (
	"encoding/json"

	"tentscape.ai/internal/observerproto"
	"tentscape.ai/internal/sim/world/logic/mathx"
)

// ObserverJoinRequest registers a read-only observer session that receives
// FRAME messages on Out every EveryTicks ticks.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID  string
	Out        chan []byte
	EveryTicks int
}

// ObserverSubscribeRequest updates an existing observer session cadence.
type ObserverSubscribeRequest struct {
	SessionID  string
	EveryTicks int
}

type observerClient struct {
	id    string
	out   chan []byte
	every int
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) observerEvery(n, fallback int) int {
	return mathx.ClampInt(n, 1, w.cfg.ObserverMaxEveryTicks, fallback)
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	c := &observerClient{
		id:    req.SessionID,
		out:   req.Out,
		every: w.observerEvery(req.EveryTicks, w.cfg.ObserverDefaultEveryTicks),
	}
	w.observers[req.SessionID] = c

	// New observers get the current state right away instead of waiting for
	// the next cadence boundary.
	if b, err := encodeFrame(w.Frame()); err == nil {
		sendLatest(c.out, b)
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.every = w.observerEvery(req.EveryTicks, c.every)
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

func (w *World) closeObservers() {
	for id, c := range w.observers {
		delete(w.observers, id)
		close(c.out)
	}
}

func (w *World) stepObservers(f *Frame) {
	if len(w.observers) == 0 {
		return
	}
	var b []byte
	for _, c := range w.observers {
		if !everyTicks(f.Tick, c.every) {
			continue
		}
		if b == nil {
			var err error
			if b, err = encodeFrame(f); err != nil {
				return
			}
		}
		sendLatest(c.out, b)
	}
}

// broadcastFrame pushes the current frame to every observer regardless of
// cadence. Used after a regeneration so views never show a stale population.
func (w *World) broadcastFrame() {
	if len(w.observers) == 0 {
		return
	}
	b, err := encodeFrame(w.Frame())
	if err != nil {
		return
	}
	for _, c := range w.observers {
		sendLatest(c.out, b)
	}
}

func encodeFrame(f *Frame) ([]byte, error) {
	return json.Marshal(FrameMsg(f))
}

// FrameMsg converts a frame to its observer wire form.
func FrameMsg(f *Frame) observerproto.FrameMsg {
	return observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            f.Tick,
		Role:            f.Role,
		Generation:      f.Generation,
		GenerationID:    f.GenerationID,
		Stages:          f.Stages,
		Entities:        f.Entities,
	}
}
