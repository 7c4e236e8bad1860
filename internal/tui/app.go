package tui

import (
	"context"

	"github.com/gdamore/tcell"
	"github.com/gdamore/tcell/views"

	"tentscape.ai/internal/sim/world/terrain/gen"
)

// hud lays out the title, map and status line.
type hud struct {
	views.Panel

	title  *views.TextBar
	status *views.SimpleStyledTextBar
	mapv   *MapView
	quit   func()
}

func newHUD(t *gen.Terrain, title string, quit func()) *hud {
	h := &hud{quit: quit}
	h.title = views.NewTextBar()
	h.title.SetCenter(title, tcell.StyleDefault.Bold(true))
	h.title.SetRight("[q]uit", tcell.StyleDefault)
	h.status = views.NewSimpleStyledTextBar()
	h.mapv = NewMapView(t)

	h.SetTitle(h.title)
	h.SetContent(h.mapv)
	h.SetStatus(h.status)
	return h
}

func (h *hud) HandleEvent(ev tcell.Event) bool {
	if ev, ok := ev.(*tcell.EventKey); ok {
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
			ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
			h.quit()
			return true
		}
	}
	return h.Panel.HandleEvent(ev)
}

func (h *hud) show(s Snapshot) {
	h.mapv.SetSnapshot(s)
	h.status.SetLeft(Legend(s))
}

// Run draws snapshots from in until ctx is done, in is closed, or the user
// quits. screen may be nil to use the real terminal.
func Run(ctx context.Context, screen tcell.Screen, t *gen.Terrain, title string, in <-chan Snapshot) error {
	app := &views.Application{}
	h := newHUD(t, title, app.Quit)
	app.SetRootWidget(h)
	if screen != nil {
		app.SetScreen(screen)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				app.Quit()
				return
			case s, ok := <-in:
				if !ok {
					app.Quit()
					return
				}
				app.PostFunc(func() {
					h.show(s)
					app.Update()
				})
			}
		}
	}()
	return app.Run()
}
