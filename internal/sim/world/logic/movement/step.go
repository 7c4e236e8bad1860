package movement

import (
	"math"

	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
)

// Params are the per-tick movement constants.
type Params struct {
	StaffSpeed    float64
	FriendSpeed   float64
	ArrivalRadius float64

	// RetriggerChance is the per-tick probability that an idle entity walks off again.
	RetriggerChance float64
	// TargetJitterSpan fuzzes re-triggered targets so entities do not stack.
	TargetJitterSpan float64

	// River-edge repulsion: entities outside the bridge corridor that come
	// within RepelBand of the centerline are pushed by RepelPush.
	BridgeHalfWidth float64
	RepelBand       float64
	RepelPush       float64
}

func DefaultParams() Params {
	return Params{
		StaffSpeed:       0.03,
		FriendSpeed:      0.02,
		ArrivalRadius:    1,
		RetriggerChance:  0.005,
		TargetJitterSpan: 6,
		BridgeHalfWidth:  4,
		RepelBand:        2,
		RepelPush:        0.1,
	}
}

// Normalize fills non-positive speeds, radii and repulsion fields from
// DefaultParams. RetriggerChance and TargetJitterSpan may be zero, which
// disables re-triggering and target fuzz; only negative values are replaced.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.StaffSpeed <= 0 {
		p.StaffSpeed = d.StaffSpeed
	}
	if p.FriendSpeed <= 0 {
		p.FriendSpeed = d.FriendSpeed
	}
	if p.ArrivalRadius <= 0 {
		p.ArrivalRadius = d.ArrivalRadius
	}
	if p.RetriggerChance < 0 {
		p.RetriggerChance = d.RetriggerChance
	}
	if p.TargetJitterSpan < 0 {
		p.TargetJitterSpan = d.TargetJitterSpan
	}
	if p.BridgeHalfWidth <= 0 {
		p.BridgeHalfWidth = d.BridgeHalfWidth
	}
	if p.RepelBand <= 0 {
		p.RepelBand = d.RepelBand
	}
	if p.RepelPush <= 0 {
		p.RepelPush = d.RepelPush
	}
	return p
}

func (p Params) SpeedFor(t model.EntityType) float64 {
	if t == model.EntityStaff {
		return p.StaffSpeed
	}
	return p.FriendSpeed
}

// Env is everything one tick of movement reads besides the entities themselves.
type Env struct {
	Params Params
	// Destinations is the pool idle entities pick new targets from.
	Destinations []model.Coordinate
	Rand         mathx.Rand
}

// Step computes the next population snapshot. prev is never modified and the
// result shares no waypoint storage with it. Entities are updated independently.
func Step(prev []model.Entity, env Env) []model.Entity {
	if prev == nil {
		return nil
	}
	env.Params = env.Params.Normalize()
	next := make([]model.Entity, len(prev))
	for i := range prev {
		next[i] = StepEntity(prev[i], env)
	}
	return next
}

// StepEntity applies one tick to a single entity and returns the updated copy.
// env.Params is expected to be normalized.
func StepEntity(e model.Entity, env Env) model.Entity {
	e = e.Clone()
	if !e.Walking() {
		if re, ok := Retrigger(e, env.Destinations, env.Rand, env.Params); ok {
			return re
		}
	}
	if e.Walking() {
		var snapped bool
		e, snapped = Advance(e, env.Params)
		if snapped {
			return e
		}
	}
	return Repel(e, env.Params)
}

// Retrigger decides whether an idle entity starts walking this tick. It is a pure
// function of e and the draws taken from r. ok is false when nothing changed.
func Retrigger(e model.Entity, destinations []model.Coordinate, r mathx.Rand, p Params) (model.Entity, bool) {
	if e.Walking() || r == nil || len(destinations) == 0 {
		return e, false
	}
	if r.Float64() >= p.RetriggerChance {
		return e, false
	}
	dest := destinations[r.Intn(len(destinations))]
	target := model.Coordinate{
		X: dest.X + mathx.Jitter(r, p.TargetJitterSpan),
		Y: dest.Y + mathx.Jitter(r, p.TargetJitterSpan),
	}
	e.Activity = model.ActivityWalking
	e.TargetPosition = target
	e.Waypoints = PlanRoute(e.Position, target, r)
	return e, true
}

// Advance moves a walking entity toward its current waypoint. snapped is true
// when the entity reached a waypoint this tick; its position then equals that
// waypoint exactly.
func Advance(e model.Entity, p Params) (out model.Entity, snapped bool) {
	target := e.TargetPosition
	if len(e.Waypoints) > 0 {
		target = e.Waypoints[0]
	}
	d := target.Sub(e.Position)
	dist := d.Length()

	if dist < p.ArrivalRadius || dist < 1e-9 {
		e.Position = target
		if len(e.Waypoints) > 1 {
			e.Waypoints = model.CloneCoords(e.Waypoints[1:])
			return e, true
		}
		e.Waypoints = nil
		e.Activity = e.IdleActivity()
		return e, true
	}

	e.Position = e.Position.Add(d.Scale(p.SpeedFor(e.Type) / dist))
	return e, false
}

// Repel nudges an entity away from the river centerline when it is close to the
// water and not on the bridge. It is a soft guard, not collision resolution.
func Repel(e model.Entity, p Params) model.Entity {
	x, y := e.Position.X, e.Position.Y
	if math.Abs(x-BridgeX) <= p.BridgeHalfWidth {
		return e
	}
	ry := RiverY(x)
	if math.Abs(y-ry) >= p.RepelBand {
		return e
	}
	if y < ry {
		e.Position.Y = y - p.RepelPush
	} else {
		e.Position.Y = y + p.RepelPush
	}
	return e
}
