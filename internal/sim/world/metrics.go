package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick         uint64 `json:"tick"`
	Generation   uint64 `json:"generation"`
	GenerationID string `json:"generation_id"`
	Role         string `json:"role"`

	Entities  int `json:"entities"`
	Walking   int `json:"walking"`
	Idle      int `json:"idle"`
	North     int `json:"north"`
	South     int `json:"south"`
	Stages    int `json:"stages"`
	Observers int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Stages        int `json:"stages"`
	Role          int `json:"role"`
	ObserverJoin  int `json:"observer_join"`
	ObserverSub   int `json:"observer_sub"`
	ObserverLeave int `json:"observer_leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(s TickStats) {
	w.metrics.Store(WorldMetrics{
		Tick:         s.Tick,
		Generation:   s.Generation,
		GenerationID: s.GenerationID,
		Role:         string(w.role),
		Entities:     s.Entities,
		Walking:      s.Walking,
		Idle:         s.Entities - s.Walking,
		North:        s.North,
		South:        s.Entities - s.North,
		Stages:       len(w.stages.Stages),
		Observers:    len(w.observers),
		QueueDepths: QueueDepths{
			Stages:        len(w.stageReq),
			Role:          len(w.roleReq),
			ObserverJoin:  len(w.observerJoin),
			ObserverSub:   len(w.observerSub),
			ObserverLeave: len(w.observerLeave),
		},
		StepMS: s.StepMS,
	})
}
