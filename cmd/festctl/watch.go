package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"tentscape.ai/internal/observerproto"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/tui"
)

type watchOptions struct {
	Addr       string
	EveryTicks int
	Frames     int
	TUI        bool
}

func watchCmd() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to a server's observer stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runWatch(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "http://localhost:8080", "server base URL")
	cmd.Flags().IntVar(&opts.EveryTicks, "every", observerproto.DefaultEveryTicks, "frame cadence in ticks")
	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "stop after this many frames (0 = until interrupted)")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "draw the map in the terminal")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	logger := loggerFrom(ctx)

	boot, err := fetchBootstrap(ctx, opts.Addr)
	if err != nil {
		return err
	}
	logger.Info("connected", "world", boot.WorldID, "tick", boot.Tick, "role", boot.Role, "generation", boot.Generation, "stages", len(boot.Stages))

	wsURL, err := observerURL(opts.Addr)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		EveryTicks:      opts.EveryTicks,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	frames := make(chan observerproto.FrameMsg, 4)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		readErr <- readFrames(conn, opts.Frames, frames)
	}()

	if opts.TUI {
		snaps := make(chan tui.Snapshot, 1)
		go func() {
			defer close(snaps)
			for f := range frames {
				sendLatest(snaps, snapshotOf(f))
			}
		}()
		title := fmt.Sprintf("%s  %s", boot.WorldID, boot.Role)
		if err := tui.Run(ctx, nil, boot.Terrain, title, snaps); err != nil {
			return err
		}
		return nil
	}

	for f := range frames {
		fmt.Fprintln(out, frameLine(f))
	}
	if err := <-readErr; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func fetchBootstrap(ctx context.Context, addr string) (observerproto.BootstrapResponse, error) {
	var boot observerproto.BootstrapResponse
	u := strings.TrimRight(addr, "/") + "/v1/observer/bootstrap"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return boot, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return boot, fmt.Errorf("bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return boot, fmt.Errorf("bootstrap: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		return boot, fmt.Errorf("bootstrap: %w", err)
	}
	if boot.ProtocolVersion != observerproto.Version {
		return boot, fmt.Errorf("bootstrap: protocol %q, want %q", boot.ProtocolVersion, observerproto.Version)
	}
	return boot, nil
}

func observerURL(addr string) (string, error) {
	u, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/observer/ws"
	return u.String(), nil
}

// readFrames forwards FRAME messages until the connection closes or limit
// frames have been read.
func readFrames(conn *websocket.Conn, limit int, out chan<- observerproto.FrameMsg) error {
	n := 0
	for limit <= 0 || n < limit {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var f observerproto.FrameMsg
		if err := json.Unmarshal(msg, &f); err != nil || f.Type != observerproto.TypeFrame {
			continue
		}
		out <- f
		n++
	}
	return nil
}

func frameLine(f observerproto.FrameMsg) string {
	walking := 0
	for _, e := range f.Entities {
		if e.Activity == model.ActivityWalking {
			walking++
		}
	}
	return fmt.Sprintf("tick=%d role=%s gen=%d entities=%d walking=%d stages=%d",
		f.Tick, f.Role, f.Generation, len(f.Entities), walking, len(f.Stages))
}

func snapshotOf(f observerproto.FrameMsg) tui.Snapshot {
	return tui.Snapshot{Tick: f.Tick, Role: f.Role, Stages: f.Stages, Entities: f.Entities}
}

func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
