package main

import (
	"fmt"
	"net/http"

	"tentscape.ai/internal/persistence/indexdb"
	persistlog "tentscape.ai/internal/persistence/log"
	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/transport/observer"
)

// metricsHandler writes a minimal Prometheus text exposition.
func metricsHandler(w *world.World, obs *observer.Server, frameLog *persistlog.FrameLogger, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := w.ID()
		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP tentscape_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_tick gauge\n")
		fmt.Fprintf(rw, "tentscape_world_tick{world=%q} %d\n", id, tick)

		fmt.Fprintf(rw, "# HELP tentscape_world_generation Current population generation number.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_generation gauge\n")
		fmt.Fprintf(rw, "tentscape_world_generation{world=%q,role=%q} %d\n", id, m.Role, m.Generation)

		fmt.Fprintf(rw, "# HELP tentscape_world_entities Entities by state.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_entities gauge\n")
		fmt.Fprintf(rw, "tentscape_world_entities{world=%q,state=%q} %d\n", id, "walking", m.Walking)
		fmt.Fprintf(rw, "tentscape_world_entities{world=%q,state=%q} %d\n", id, "idle", m.Idle)

		fmt.Fprintf(rw, "# HELP tentscape_world_entities_side Entities by river side.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_entities_side gauge\n")
		fmt.Fprintf(rw, "tentscape_world_entities_side{world=%q,side=%q} %d\n", id, "north", m.North)
		fmt.Fprintf(rw, "tentscape_world_entities_side{world=%q,side=%q} %d\n", id, "south", m.South)

		fmt.Fprintf(rw, "# HELP tentscape_world_stages Active stage count.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_stages gauge\n")
		fmt.Fprintf(rw, "tentscape_world_stages{world=%q} %d\n", id, m.Stages)

		fmt.Fprintf(rw, "# HELP tentscape_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "tentscape_world_queue_depth{world=%q,queue=%q} %d\n", id, "stages", m.QueueDepths.Stages)
		fmt.Fprintf(rw, "tentscape_world_queue_depth{world=%q,queue=%q} %d\n", id, "role", m.QueueDepths.Role)
		fmt.Fprintf(rw, "tentscape_world_queue_depth{world=%q,queue=%q} %d\n", id, "observer_join", m.QueueDepths.ObserverJoin)
		fmt.Fprintf(rw, "tentscape_world_queue_depth{world=%q,queue=%q} %d\n", id, "observer_sub", m.QueueDepths.ObserverSub)
		fmt.Fprintf(rw, "tentscape_world_queue_depth{world=%q,queue=%q} %d\n", id, "observer_leave", m.QueueDepths.ObserverLeave)

		fmt.Fprintf(rw, "# HELP tentscape_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE tentscape_world_step_ms gauge\n")
		fmt.Fprintf(rw, "tentscape_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		if obs != nil {
			fmt.Fprintf(rw, "# HELP tentscape_observer_sessions Connected observer sessions.\n")
			fmt.Fprintf(rw, "# TYPE tentscape_observer_sessions gauge\n")
			fmt.Fprintf(rw, "tentscape_observer_sessions{world=%q} %d\n", id, obs.Sessions())
		}

		if frameLog != nil {
			fmt.Fprintf(rw, "# HELP tentscape_frame_log_total Frames handled by the frame log.\n")
			fmt.Fprintf(rw, "# TYPE tentscape_frame_log_total counter\n")
			fmt.Fprintf(rw, "tentscape_frame_log_total{world=%q,result=%q} %d\n", id, "written", frameLog.Written())
			fmt.Fprintf(rw, "tentscape_frame_log_total{world=%q,result=%q} %d\n", id, "dropped", frameLog.Dropped())
		}

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP tentscape_index_queue_depth Read-model index queue depth.\n")
			fmt.Fprintf(rw, "# TYPE tentscape_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "tentscape_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)

			fmt.Fprintf(rw, "# HELP tentscape_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE tentscape_index_dropped_total counter\n")
			fmt.Fprintf(rw, "tentscape_index_dropped_total{world=%q,kind=%q} %d\n", id, "generation", s.DropGenerationTotal)
			fmt.Fprintf(rw, "tentscape_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick_stats", s.DropTickStatsTotal)
		}
	}
}
