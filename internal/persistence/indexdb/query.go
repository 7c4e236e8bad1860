package indexdb

import (
	"context"
	"database/sql"
	"time"

	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/sim/world/kernel/model"
)

// GenerationSummary is a generation row joined with its tick stats.
type GenerationSummary struct {
	world.GenerationEntry
	Ticks       int     `json:"ticks"`
	LastTick    uint64  `json:"last_tick"`
	AvgWalking  float64 `json:"avg_walking"`
	AvgStepMS   float64 `json:"avg_step_ms"`
	MaxEntities int     `json:"max_entities"`
}

// Generations returns the most recent generations first. limit <= 0 means all.
func (s *SQLiteIndex) Generations(ctx context.Context, limit int) ([]GenerationSummary, error) {
	return queryGenerations(ctx, s.db, limit)
}

// Generations reads an index file without starting a writer.
func Generations(ctx context.Context, path string, limit int) ([]GenerationSummary, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return queryGenerations(ctx, db, limit)
}

func queryGenerations(ctx context.Context, db *sql.DB, limit int) ([]GenerationSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT g.generation_id, g.generation, g.start_tick, g.role, g.stage_digest,
		       g.stage_count, g.entity_count, g.reason, g.started_at,
		       COUNT(t.tick), COALESCE(MAX(t.tick), 0), COALESCE(AVG(t.walking), 0),
		       COALESCE(AVG(t.step_ms), 0), COALESCE(MAX(t.entities), 0)
		FROM generations g
		LEFT JOIN tick_stats t ON t.generation_id = g.generation_id
		GROUP BY g.generation_id
		ORDER BY g.generation DESC, g.start_tick DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationSummary
	for rows.Next() {
		var (
			g         GenerationSummary
			gen       int64
			startTick int64
			lastTick  int64
			role      string
			startedAt string
		)
		if err := rows.Scan(&g.GenerationID, &gen, &startTick, &role, &g.StageDigest,
			&g.StageCount, &g.EntityCount, &g.Reason, &startedAt,
			&g.Ticks, &lastTick, &g.AvgWalking, &g.AvgStepMS, &g.MaxEntities); err != nil {
			return nil, err
		}
		g.Generation = uint64(gen)
		g.StartTick = uint64(startTick)
		g.LastTick = uint64(lastTick)
		g.Role = model.Role(role)
		g.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

// TickStats returns the recorded stats of one generation in tick order.
func (s *SQLiteIndex) TickStats(ctx context.Context, generationID string) ([]world.TickStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, generation_id, entities, walking, north, step_ms
		FROM tick_stats WHERE generation_id = ? ORDER BY tick`, generationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.TickStats
	for rows.Next() {
		var (
			st   world.TickStats
			tick int64
		)
		if err := rows.Scan(&tick, &st.GenerationID, &st.Entities, &st.Walking, &st.North, &st.StepMS); err != nil {
			return nil, err
		}
		st.Tick = uint64(tick)
		out = append(out, st)
	}
	return out, rows.Err()
}

// Stages returns the stage rows stored for a catalog digest.
func (s *SQLiteIndex) Stages(ctx context.Context, digest string) ([]model.Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage_id, name, type, x, y, current_dj, next_dj, end_time, vibe
		FROM stages WHERE digest = ? ORDER BY rowid`, digest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Stage
	for rows.Next() {
		var st model.Stage
		if err := rows.Scan(&st.ID, &st.Name, &st.Type, &st.Position.X, &st.Position.Y,
			&st.CurrentDJ, &st.NextDJ, &st.EndTime, &st.Vibe); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
