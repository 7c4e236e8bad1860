package world

import (
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
	"tentscape.ai/internal/sim/world/logic/movement"
)

var (
	ErrAlreadyRunning = errors.New("world already running")
	ErrStopped        = errors.New("world stopped")
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	// Seed 0 picks a time-based seed.
	Seed int64

	Role       model.Role
	Stages     []model.Stage
	StaffCount int

	// Movement left as the zero value means movement.DefaultParams().
	Movement movement.Params

	// FrameLogEveryTicks and TickStatsEveryTicks gate the optional loggers.
	FrameLogEveryTicks  int
	TickStatsEveryTicks int

	ObserverDefaultEveryTicks int
	ObserverMaxEveryTicks     int
}

// Frame is an immutable view of one tick. Readers must not modify it.
type Frame struct {
	Tick         uint64         `json:"tick"`
	Generation   uint64         `json:"generation"`
	GenerationID string         `json:"generation_id"`
	Role         model.Role     `json:"role"`
	Stages       []model.Stage  `json:"stages"`
	StageDigest  string         `json:"stage_digest"`
	Entities     []model.Entity `json:"entities"`
}

// GenerationEntry describes one population generation. A new generation starts
// on every stage list or role change.
type GenerationEntry struct {
	Generation   uint64     `json:"generation"`
	GenerationID string     `json:"generation_id"`
	StartTick    uint64     `json:"start_tick"`
	Role         model.Role `json:"role"`
	StageDigest  string     `json:"stage_digest"`
	StageCount   int        `json:"stage_count"`
	EntityCount  int        `json:"entity_count"`
	Reason       string     `json:"reason"`
	StartedAt    time.Time  `json:"started_at"`
}

// TickStats is a per-tick summary for the read-model index.
type TickStats struct {
	Tick         uint64  `json:"tick"`
	Generation   uint64  `json:"generation"`
	GenerationID string  `json:"generation_id"`
	Entities     int     `json:"entities"`
	Walking      int     `json:"walking"`
	North        int     `json:"north"`
	StepMS       float64 `json:"step_ms"`
}

// Optional sinks (may be nil). Implemented in internal/persistence/*. They are
// called from the world loop goroutine and must not block.
type FrameLogger interface {
	WriteFrame(f Frame) error
}

type GenerationLogger interface {
	WriteGeneration(entry GenerationEntry) error
}

type StatsLogger interface {
	WriteTickStats(s TickStats) error
}

// World owns the festival population. All mutable state is accessed only from
// the world loop goroutine; other goroutines read published frames.
type World struct {
	cfg WorldConfig
	rng *rand.Rand

	tick atomic.Uint64

	role         model.Role
	stages       catalogs.StageCatalog
	destinations []model.Coordinate
	entities     []model.Entity
	generation   uint64
	generationID string
	current      GenerationEntry
	// genPending is set until current has been handed to generationLogger.
	genPending bool

	frame   atomic.Pointer[Frame]
	metrics atomic.Value

	stageReq      chan stageReq
	roleReq       chan roleReq
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}
	stopped       atomic.Bool
	running       atomic.Bool

	observers map[string]*observerClient

	frameLogger      FrameLogger
	generationLogger GenerationLogger
	statsLogger      StatsLogger
}

type stageReq struct {
	catalog catalogs.StageCatalog
	resp    chan GenerationEntry
}

type roleReq struct {
	role model.Role
	resp chan GenerationEntry
}

func New(cfg WorldConfig) (*World, error) {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 60
	}
	if cfg.Role == "" {
		cfg.Role = model.RolePunter
	}
	if _, err := model.ParseRole(string(cfg.Role)); err != nil {
		return nil, err
	}
	if cfg.Movement == (movement.Params{}) {
		cfg.Movement = movement.DefaultParams()
	}
	cfg.Movement = cfg.Movement.Normalize()
	cfg.ObserverMaxEveryTicks = mathx.ClampInt(cfg.ObserverMaxEveryTicks, 1, 600, 600)
	cfg.ObserverDefaultEveryTicks = mathx.ClampInt(cfg.ObserverDefaultEveryTicks, 1, cfg.ObserverMaxEveryTicks, 6)

	cat, err := catalogs.NewStageCatalog("", cfg.Stages)
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:           cfg,
		rng:           mathx.NewRand(cfg.Seed),
		role:          cfg.Role,
		stageReq:      make(chan stageReq, 16),
		roleReq:       make(chan roleReq, 16),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 256),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.metrics.Store(WorldMetrics{})
	w.stages = cat
	w.regenerate("init")
	return w, nil
}

func (w *World) SetFrameLogger(l FrameLogger)           { w.frameLogger = l }
func (w *World) SetGenerationLogger(l GenerationLogger) { w.generationLogger = l }
func (w *World) SetStatsLogger(l StatsLogger)           { w.statsLogger = l }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	cfg := w.cfg
	cfg.Stages = append([]model.Stage(nil), cfg.Stages...)
	return cfg
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Frame returns the latest published frame. It never returns nil.
func (w *World) Frame() *Frame {
	if f := w.frame.Load(); f != nil {
		return f
	}
	return &Frame{}
}
