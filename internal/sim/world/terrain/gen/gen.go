package gen

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
	"tentscape.ai/internal/sim/world/logic/movement"
)

// Path is a drawable polyline or polygon. D is the same shape as an SVG path.
type Path struct {
	Points []model.Coordinate `json:"points"`
	Closed bool               `json:"closed,omitempty"`
	D      string             `json:"d"`
}

type Segment struct {
	From model.Coordinate `json:"from"`
	To   model.Coordinate `json:"to"`
}

// Palette holds the map colors render surfaces are expected to use.
type Palette struct {
	Water       string `json:"water"`
	WaterStroke string `json:"water_stroke"`
	Land        string `json:"land"`
	Contour     string `json:"contour"`
	Forest      string `json:"forest"`
	RoadMain    string `json:"road_main"`
	RoadStroke  string `json:"road_stroke"`
	Bridge      string `json:"bridge"`
	Text        string `json:"text"`
	TextHalo    string `json:"text_halo"`
}

// Terrain is the static map geometry. It depends only on constants.
type Terrain struct {
	River    Path             `json:"river"`
	Contours []Path           `json:"contours"`
	Hills    []Path           `json:"hills"`
	Forests  []Path           `json:"forests"`
	Roads    []Segment        `json:"roads"`
	RoadD    string           `json:"road_d"`
	Bridge   model.Coordinate `json:"bridge"`
	POIs     []model.POI      `json:"pois"`
	Palette  Palette          `json:"palette"`
}

var DefaultPalette = Palette{
	Water:       "#a3ccff",
	WaterStroke: "#8fbce6",
	Land:        "#e4f0e6",
	Contour:     "#cfdecb",
	Forest:      "#c5e0c7",
	RoadMain:    "#ffffff",
	RoadStroke:  "#dcdcdc",
	Bridge:      "#d1d5db",
	Text:        "#5f6368",
	TextHalo:    "rgba(255,255,255,0.7)",
}

// Fork is where the main road splits north of the river.
var Fork = model.Pt(50, 40)

type forestDef struct {
	cx, cy, r float64
	seed      int
}

var forestDefs = []forestDef{
	{15, 15, 12, 1}, // around the campsite
	{85, 20, 10, 2},
	{10, 80, 8, 3},
}

var (
	once   sync.Once
	cached *Terrain
)

// Generate returns the memoized terrain. Callers must treat it as read-only.
func Generate() *Terrain {
	once.Do(func() {
		t := Build()
		cached = &t
	})
	return cached
}

// Build computes the terrain from scratch.
func Build() Terrain {
	t := Terrain{
		River:   River(),
		Bridge:  movement.Bridge(),
		POIs:    catalogs.POIs(),
		Palette: DefaultPalette,
	}
	for level := 0; level < 5; level++ {
		t.Contours = append(t.Contours, Contour(level))
	}
	t.Hills = []Path{HillTop()}
	for _, f := range forestDefs {
		t.Forests = append(t.Forests, Forest(f.cx, f.cy, f.r, f.seed))
	}
	t.Roads = Roads()
	t.RoadD = roadD(t.Roads)
	return t
}

// River samples the river centerline every 2 units, slightly past both edges.
func River() Path {
	var p Path
	var d strings.Builder
	for x := -5.0; x <= 105; x += 2 {
		c := model.Pt(x, movement.RiverY(x))
		p.Points = append(p.Points, c)
		if d.Len() == 0 {
			d.WriteString("M ")
		} else {
			d.WriteString(" L ")
		}
		d.WriteString(fixed1(c.X) + " " + fixed1(c.Y))
	}
	p.D = d.String()
	return p
}

// Contour is one decorative elevation band.
func Contour(level int) Path {
	var p Path
	var d strings.Builder
	lv := float64(level)
	for x := -10.0; x <= 110; x += 5 {
		base := 10 + lv*15
		noise := 15*math.Sin(x*0.03+lv) + 10*math.Cos(x*0.07+lv*2)
		c := model.Pt(x, base+noise)
		p.Points = append(p.Points, c)
		if x == -10 {
			d.WriteString("M")
		} else {
			d.WriteString("L")
		}
		d.WriteString(" " + num(c.X) + " " + num(c.Y))
	}
	p.D = d.String()
	return p
}

// HillTop is the curve M 10 10 Q 25 0 40 10 T 70 10, sampled for renderers
// that cannot draw beziers.
func HillTop() Path {
	p := Path{D: "M 10 10 Q 25 0 40 10 T 70 10"}
	a, c1, b := model.Pt(10, 10), model.Pt(25, 0), model.Pt(40, 10)
	// T reflects the previous control point about the join.
	c2 := b.Add(b.Sub(c1))
	e := model.Pt(70, 10)
	const steps = 8
	for i := 0; i <= steps; i++ {
		p.Points = append(p.Points, quad(a, c1, b, float64(i)/steps))
	}
	for i := 1; i <= steps; i++ {
		p.Points = append(p.Points, quad(b, c2, e, float64(i)/steps))
	}
	return p
}

func quad(a, c, b model.Coordinate, t float64) model.Coordinate {
	u := 1 - t
	return a.Scale(u * u).Add(c.Scale(2 * u * t)).Add(b.Scale(t * t))
}

// Forest builds an organic blob around (cx,cy): 8 angular steps plus the
// closing vertex, radius perturbed by SinHash(seed+i).
func Forest(cx, cy, r float64, seed int) Path {
	p := Path{Closed: true}
	var d strings.Builder
	const steps = 8
	for i := 0; i <= steps; i++ {
		angle := float64(i) / steps * math.Pi * 2
		rad := r * (0.8 + 0.4*mathx.SinHash(float64(seed+i)))
		c := model.Pt(cx+math.Cos(angle)*rad, cy+math.Sin(angle)*rad)
		p.Points = append(p.Points, c)
		if i == 0 {
			d.WriteString("M")
		} else {
			d.WriteString("L")
		}
		d.WriteString(" " + fixed1(c.X) + " " + fixed1(c.Y))
	}
	d.WriteString(" Z")
	p.D = d.String()
	return p
}

// Roads is the fixed road graph: gate to bridge, bridge to the fork, then one
// branch to the campsite and one toward the food court.
func Roads() []Segment {
	b := movement.Bridge()
	return []Segment{
		{From: catalogs.Entrance.Position, To: b},
		{From: b, To: Fork},
		{From: Fork, To: catalogs.Camping.Position},
		{From: Fork, To: model.Pt(80, 30)},
	}
}

func roadD(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, "M "+num(s.From.X)+" "+num(s.From.Y)+" L "+num(s.To.X)+" "+num(s.To.Y))
	}
	return strings.Join(parts, " ")
}

func fixed1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func num(v float64) string    { return strconv.FormatFloat(v, 'f', -1, 64) }
