package model

import "math"

// Coordinate is a position on the map canvas. Both axes are percentages in [0,100].
type Coordinate struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func Pt(x, y float64) Coordinate {
	return Coordinate{X: x, Y: y}
}

func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y}
}

func (c Coordinate) Sub(o Coordinate) Coordinate {
	return Coordinate{X: c.X - o.X, Y: c.Y - o.Y}
}

func (c Coordinate) Scale(s float64) Coordinate {
	return Coordinate{X: c.X * s, Y: c.Y * s}
}

func (c Coordinate) Length() float64 {
	return math.Hypot(c.X, c.Y)
}

// Normalize returns the unit vector in the same direction, or the zero vector
// when c has no length.
func (c Coordinate) Normalize() Coordinate {
	l := c.Length()
	if l < 1e-12 {
		return Coordinate{}
	}
	return Coordinate{X: c.X / l, Y: c.Y / l}
}

func (c Coordinate) Distance(o Coordinate) float64 {
	return o.Sub(c).Length()
}

// Clamp pins both axes to the map canvas.
func (c Coordinate) Clamp() Coordinate {
	return Coordinate{X: clamp100(c.X), Y: clamp100(c.Y)}
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CloneCoords copies a waypoint list so callers never share backing arrays.
func CloneCoords(in []Coordinate) []Coordinate {
	if len(in) == 0 {
		return nil
	}
	out := make([]Coordinate, len(in))
	copy(out, in)
	return out
}
