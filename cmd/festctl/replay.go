package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	persistlog "tentscape.ai/internal/persistence/log"
	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world"
	"tentscape.ai/internal/sim/world/terrain/gen"
	"tentscape.ai/internal/tui"
)

type replayOptions struct {
	DataDir string
	World   string
	Verify  bool
	TUI     bool
	FPS     int
}

func replayCmd() *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Summarize (and optionally play back) a world's frame and generation logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runReplay(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.DataDir, "data", "./data", "runtime data directory")
	cmd.Flags().StringVar(&opts.World, "world", "festival_1", "world id")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "check frames against the generation log")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "play frames back in the terminal")
	cmd.Flags().IntVar(&opts.FPS, "fps", 10, "playback rate for --tui")
	return cmd
}

// generationReplay accumulates what the frame log says about one generation.
type generationReplay struct {
	entry    world.GenerationEntry
	logged   bool
	frames   int
	first    uint64
	last     uint64
	entities int
}

// replayReport is the result of scanning a world's logs.
type replayReport struct {
	order       []string
	generations map[string]*generationReplay
	frames      int
	problems    []string
}

func runReplay(ctx context.Context, out io.Writer, opts replayOptions) error {
	logger := loggerFrom(ctx)
	dir := filepath.Join(opts.DataDir, "worlds", opts.World)

	var playback []world.Frame
	rep, err := scanLogs(dir, opts.Verify, func(f world.Frame) {
		if opts.TUI {
			playback = append(playback, f)
		}
	})
	if err != nil {
		return err
	}
	logger.Debug("scanned logs", "dir", dir, "frames", rep.frames, "generations", len(rep.order))

	for _, id := range rep.order {
		g := rep.generations[id]
		status := "logged"
		if !g.logged {
			status = "unlogged"
		}
		fmt.Fprintf(out, "gen=%d id=%s role=%s reason=%s stages=%d entities=%d frames=%d ticks=%d..%d %s\n",
			g.entry.Generation, id, g.entry.Role, g.entry.Reason, g.entry.StageCount,
			g.entities, g.frames, g.first, g.last, status)
	}
	fmt.Fprintf(out, "total generations=%d frames=%d\n", len(rep.order), rep.frames)

	if opts.Verify {
		for _, p := range rep.problems {
			fmt.Fprintln(out, "problem:", p)
		}
		if len(rep.problems) > 0 {
			return fmt.Errorf("verify: %d problem(s)", len(rep.problems))
		}
		fmt.Fprintln(out, "verify: ok")
	}

	if opts.TUI && len(playback) > 0 {
		return playFrames(ctx, playback, opts)
	}
	return nil
}

func scanLogs(dir string, verify bool, each func(world.Frame)) (*replayReport, error) {
	rep := &replayReport{generations: map[string]*generationReplay{}}
	get := func(id string) *generationReplay {
		g, ok := rep.generations[id]
		if !ok {
			g = &generationReplay{}
			rep.generations[id] = g
			rep.order = append(rep.order, id)
		}
		return g
	}

	err := persistlog.ReadGenerations(dir, func(e world.GenerationEntry) error {
		g := get(e.GenerationID)
		g.entry = e
		g.logged = true
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read generations: %w", err)
	}

	err = persistlog.ReadFrames(dir, func(f world.Frame) error {
		rep.frames++
		g := get(f.GenerationID)
		if !g.logged && g.frames == 0 {
			g.entry = world.GenerationEntry{
				Generation:   f.Generation,
				GenerationID: f.GenerationID,
				Role:         f.Role,
				StageDigest:  f.StageDigest,
				StageCount:   len(f.Stages),
			}
		}
		if g.frames == 0 {
			g.first = f.Tick
		}
		g.frames++
		g.last = f.Tick
		g.entities = len(f.Entities)
		if verify {
			rep.problems = append(rep.problems, checkFrame(g, f)...)
		}
		if each != nil {
			each(f)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return rep, nil
}

func checkFrame(g *generationReplay, f world.Frame) []string {
	var out []string
	if !g.logged {
		out = append(out, fmt.Sprintf("tick %d: generation %s missing from generation log", f.Tick, f.GenerationID))
	} else {
		if f.Tick < g.entry.StartTick {
			out = append(out, fmt.Sprintf("tick %d: before generation start %d", f.Tick, g.entry.StartTick))
		}
		if f.Role != g.entry.Role {
			out = append(out, fmt.Sprintf("tick %d: role %s, generation says %s", f.Tick, f.Role, g.entry.Role))
		}
		if len(f.Entities) != g.entry.EntityCount {
			out = append(out, fmt.Sprintf("tick %d: %d entities, generation says %d", f.Tick, len(f.Entities), g.entry.EntityCount))
		}
	}
	cat, err := catalogs.NewStageCatalog("", f.Stages)
	if err != nil {
		out = append(out, fmt.Sprintf("tick %d: %v", f.Tick, err))
	} else if cat.Digest != f.StageDigest {
		out = append(out, fmt.Sprintf("tick %d: stage digest mismatch", f.Tick))
	}
	return out
}

func playFrames(ctx context.Context, frames []world.Frame, opts replayOptions) error {
	fps := opts.FPS
	if fps <= 0 {
		fps = 10
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snaps := make(chan tui.Snapshot, 1)
	go func() {
		defer close(snaps)
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		for _, f := range frames {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			sendLatest(snaps, tui.Snapshot{Tick: f.Tick, Role: f.Role, Stages: f.Stages, Entities: f.Entities})
		}
		<-ctx.Done()
	}()
	return tui.Run(ctx, nil, gen.Generate(), "replay "+opts.World, snaps)
}
