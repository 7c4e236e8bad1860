package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"tentscape.ai/internal/persistence/indexdb"
	persistlog "tentscape.ai/internal/persistence/log"
	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/tuning"
	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "festival_1", "world id")
		seed       = flag.Int64("seed", 0, "random seed (0 = time-based)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		stagesPath = flag.String("stages", "", "stage file, JSON or YAML (default: <configs>/stages.yaml if present, else built-in line-up)")
		roleFlag   = flag.String("role", string(model.RolePunter), "initial role: PUNTER or PROMOTER")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
		disableLog = flag.Bool("disable_frame_log", false, "disable the compressed frame log")
		logLevel   = flag.String("log_level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	root := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006/01/02 15:04:05.000000",
		Prefix:          "server",
	})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		root.SetLevel(lvl)
	} else {
		root.Warn("unknown log level; using info", "log_level", *logLevel)
	}
	logger := root.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel})

	role, err := model.ParseRole(*roleFlag)
	if err != nil {
		root.Fatal("parse role", "role", *roleFlag, "err", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			root.Fatal("load tuning", "err", err)
		}
		root.Info("tuning not found; using defaults", "path", tp)
		tune = tuning.Defaults()
	}

	stages, err := loadStages(*configDir, *stagesPath)
	if err != nil {
		root.Fatal("load stages", "err", err)
	}
	root.Info("stages loaded", "name", stages.Name, "count", len(stages.Stages), "digest", shortDigest(stages.Digest))

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		root.Fatal("create data dir", "err", err)
	}

	w, err := world.New(world.WorldConfig{
		ID:                        *worldID,
		TickRateHz:                tune.TickRateHz,
		Seed:                      *seed,
		Role:                      role,
		Stages:                    stages.Stages,
		StaffCount:                tune.StaffCount,
		Movement:                  tune.MovementParams(),
		FrameLogEveryTicks:        tune.FrameLogEveryTicks,
		TickStatsEveryTicks:       tune.TickStatsEveryTicks,
		ObserverDefaultEveryTicks: tune.ObserverDefaultEvery,
		ObserverMaxEveryTicks:     tune.ObserverMaxEveryTicks,
	})
	if err != nil {
		root.Fatal("world", "err", err)
	}

	// Optional: read-model index backend (does not affect the simulation).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			root.Fatal("open index", "err", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(stages, tune); err != nil {
			root.Error("index: upsert catalogs", "err", err)
		}
	}

	logOpts := persistlog.LoggerOptions{
		Rotate: time.Duration(tune.LogRotateEveryMinutes) * time.Minute,
		Logger: logger,
	}
	var frameLog *persistlog.FrameLogger
	if !*disableLog {
		frameLog = persistlog.NewFrameLogger(worldDir, logOpts)
		defer frameLog.Close()
		w.SetFrameLogger(frameLog)
	}
	genLog := persistlog.NewGenerationLogger(worldDir, logOpts)
	defer genLog.Close()

	w.SetGenerationLogger(multiGenerationLogger{a: genLog, b: idx})
	if idx != nil {
		w.SetStatsLogger(idx)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// The loggers and index are closed by deferred calls; the loop must be
	// gone before that happens.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			root.Error("world stopped", "err", err)
		}
	}()

	obsSrv := observer.NewServer(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, obsSrv, frameLog, idx))
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("FEST_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		a := &admin{world: w, index: idx, log: logger}
		a.register(mux)
	} else {
		root.Info("admin endpoints disabled (FEST_ENABLE_ADMIN_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logger,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	root.Info("listening", "addr", *addr, "role", role, "tick_rate_hz", tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		root.Fatal("ListenAndServe", "err", err)
	}
	cancel()
	<-runDone
	root.Info("world loop stopped", "tick", w.CurrentTick())
}

// loadStages picks the explicit stage file, then <configs>/stages.yaml, then
// the built-in line-up.
func loadStages(configDir, path string) (catalogs.StageCatalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		def := filepath.Join(configDir, "stages.yaml")
		if _, err := os.Stat(def); err == nil {
			path = def
		}
	}
	if path == "" {
		return catalogs.NewStageCatalog("built-in", catalogs.MockStages())
	}
	return catalogs.LoadStages(path)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiGenerationLogger struct {
	a world.GenerationLogger
	b *indexdb.SQLiteIndex
}

func (m multiGenerationLogger) WriteGeneration(entry world.GenerationEntry) error {
	if m.a != nil {
		_ = m.a.WriteGeneration(entry)
	}
	if m.b != nil {
		_ = m.b.WriteGeneration(entry)
	}
	return nil
}
