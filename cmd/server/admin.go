package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"tentscape.ai/internal/persistence/indexdb"
	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/transport/observer"
)

const maxStageBody = 1 << 20

// admin serves local-only control endpoints. They change the simulated
// population but never the observer protocol.
type admin struct {
	world *world.World
	index *indexdb.SQLiteIndex
	log   *log.Logger
}

func (a *admin) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", a.loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/role", a.loopbackOnly(a.handleRole))
	mux.HandleFunc("/admin/v1/stages", a.loopbackOnly(a.handleStages))
}

func (a *admin) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *admin) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f := a.world.Frame()
	resp := struct {
		WorldID      string             `json:"world_id"`
		Tick         uint64             `json:"tick"`
		Role         model.Role         `json:"role"`
		Generation   uint64             `json:"generation"`
		GenerationID string             `json:"generation_id"`
		StageDigest  string             `json:"stage_digest"`
		Stages       []model.Stage      `json:"stages"`
		Metrics      world.WorldMetrics `json:"metrics"`
		Index        *indexdb.Stats     `json:"index,omitempty"`
	}{
		WorldID:      a.world.ID(),
		Tick:         f.Tick,
		Role:         f.Role,
		Generation:   f.Generation,
		GenerationID: f.GenerationID,
		StageDigest:  f.StageDigest,
		Stages:       f.Stages,
		Metrics:      a.world.Metrics(),
	}
	if a.index != nil {
		st := a.index.Stats()
		resp.Index = &st
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *admin) handleRole(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	role, err := model.ParseRole(body.Role)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	g, err := a.world.SetRole(ctx, role)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if a.log != nil {
		a.log.Printf("role set to %s generation=%d id=%s", role, g.Generation, g.GenerationID)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "generation": g})
}

func (a *admin) handleStages(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxStageBody))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	cat, err := catalogs.ParseStages(raw)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	g, err := a.world.SetStages(ctx, cat.Stages)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, catalogs.ErrDuplicateStageID) {
			status = http.StatusBadRequest
		}
		writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if a.index != nil {
		if err := a.index.RecordStages(cat); err != nil && a.log != nil {
			a.log.Printf("index: record stages: %v", err)
		}
	}
	if a.log != nil {
		a.log.Printf("stages replaced count=%d generation=%d id=%s", len(cat.Stages), g.Generation, g.GenerationID)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "generation": g})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
