// Package tui renders the festival map in a terminal.
package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/gdamore/tcell"
	"github.com/gdamore/tcell/views"

	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/movement"
	"tentscape.ai/internal/sim/world/terrain/gen"
)

// Snapshot is what the map view draws: one frame of entities plus the stage
// list that frame was generated from.
type Snapshot struct {
	Tick     uint64
	Role     model.Role
	Stages   []model.Stage
	Entities []model.Entity
}

const (
	glyphRiver  = '~'
	glyphBridge = '='
	glyphRoad   = '.'
	glyphForest = '^'
)

// MapView is a views.Widget that projects the 0..100 map space onto the
// whole view.
type MapView struct {
	views.WidgetWatchers
	view    views.View
	terrain *gen.Terrain

	mu   sync.Mutex
	snap Snapshot
}

func NewMapView(t *gen.Terrain) *MapView {
	if t == nil {
		t = gen.Generate()
	}
	return &MapView{terrain: t}
}

// SetSnapshot replaces the drawn state. Safe to call from any goroutine.
func (v *MapView) SetSnapshot(s Snapshot) {
	v.mu.Lock()
	v.snap = s
	v.mu.Unlock()
}

func (v *MapView) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

func (v *MapView) HandleEvent(ev tcell.Event) bool { return false }

func (v *MapView) Size() (int, int) {
	if v.view == nil {
		return 0, 0
	}
	return v.view.Size()
}

func (v *MapView) SetView(view views.View) {
	v.view = view
	if view == nil {
		return
	}
	v.PostEventWidgetContent(v)
}

func (v *MapView) Resize() { v.PostEventWidgetResize(v) }

func (v *MapView) Draw() {
	if v.view == nil {
		return
	}
	w, h := v.view.Size()
	if w <= 0 || h <= 0 {
		return
	}
	snap := v.Snapshot()
	pal := v.terrain.Palette
	p := projection{w: w, h: h}

	v.view.Fill(' ', tcell.StyleDefault.Background(color(pal.Land)))

	for _, f := range v.terrain.Forests {
		for _, c := range f.Points {
			v.set(p, c, glyphForest, pal.Forest, pal.Land)
		}
	}
	for _, seg := range v.terrain.Roads {
		steps := int(math.Ceil(seg.To.Sub(seg.From).Length()))
		for i := 0; i <= steps; i++ {
			t := float64(i) / math.Max(1, float64(steps))
			v.set(p, seg.From.Add(seg.To.Sub(seg.From).Scale(t)), glyphRoad, pal.RoadStroke, pal.Land)
		}
	}
	// One river cell per column keeps the line continuous at any width.
	for col := 0; col < w; col++ {
		x := p.mapX(col)
		v.view.SetContent(col, p.row(movement.RiverY(x)), glyphRiver, nil, style(pal.WaterStroke, pal.Water))
	}
	v.set(p, v.terrain.Bridge, glyphBridge, pal.Bridge, pal.Water)

	for _, poi := range v.terrain.POIs {
		v.set(p, poi.Position, rune(poi.Label[0]), pal.Text, pal.Land)
	}
	for _, s := range snap.Stages {
		v.set(p, s.Position, stageGlyph(s.Type), pal.Text, pal.RoadMain)
	}
	for _, e := range snap.Entities {
		v.set(p, e.Position, EntityGlyph(e), e.AvatarColor, pal.Land)
	}
}

func (v *MapView) set(p projection, c model.Coordinate, ch rune, fg, bg string) {
	col, row := p.cell(c)
	if col < 0 || row < 0 || col >= p.w || row >= p.h {
		return
	}
	v.view.SetContent(col, row, ch, nil, style(fg, bg))
}

// EntityGlyph is the single character used for an entity: the first letter of
// a friend's name, or of a staff member's job prefix.
func EntityGlyph(e model.Entity) rune {
	if e.Name == "" {
		return '?'
	}
	return rune(strings.ToUpper(e.Name)[0])
}

func stageGlyph(t string) rune {
	switch t {
	case model.StageMain:
		return 'M'
	case model.StageTent:
		return 'T'
	default:
		return 'O'
	}
}

// Legend summarizes the snapshot for the status bar. Staff are only broken
// down by job in the PROMOTER view.
func Legend(s Snapshot) string {
	if len(s.Entities) == 0 {
		return fmt.Sprintf("tick %d  waiting for stages", s.Tick)
	}
	walking := 0
	for _, e := range s.Entities {
		if e.Walking() {
			walking++
		}
	}
	var parts []string
	if s.Role == model.RolePromoter {
		jobs := map[string]int{}
		for _, e := range s.Entities {
			if e.Type == model.EntityStaff {
				jobs[string(e.StaffRole)]++
			}
		}
		keys := make([]string, 0, len(jobs))
		for k := range jobs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, jobs[k]))
		}
	} else {
		for _, e := range s.Entities {
			parts = append(parts, fmt.Sprintf("%s:%s", e.Name, strings.ToLower(string(e.Activity))))
		}
	}
	return fmt.Sprintf("tick %d  %s  walking %d/%d  %s", s.Tick, s.Role, walking, len(s.Entities), strings.Join(parts, " "))
}

type projection struct{ w, h int }

func (p projection) col(x float64) int { return int(math.Round(x / 100 * float64(p.w-1))) }
func (p projection) row(y float64) int { return int(math.Round(y / 100 * float64(p.h-1))) }

func (p projection) cell(c model.Coordinate) (int, int) { return p.col(c.X), p.row(c.Y) }

func (p projection) mapX(col int) float64 {
	if p.w <= 1 {
		return 0
	}
	return float64(col) * 100 / float64(p.w-1)
}

func color(hex string) tcell.Color {
	if hex == "" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(hex)
}

func style(fg, bg string) tcell.Style {
	return tcell.StyleDefault.Foreground(color(fg)).Background(color(bg))
}
