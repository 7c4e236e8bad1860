package movement

import (
	"math"
	"testing"

	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
)

// scriptedRand replays fixed draws; it fails the test when it runs dry.
type scriptedRand struct {
	t      *testing.T
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	r.t.Helper()
	if len(r.floats) == 0 {
		r.t.Fatalf("scriptedRand: out of floats")
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) Intn(n int) int {
	r.t.Helper()
	if len(r.ints) == 0 {
		r.t.Fatalf("scriptedRand: out of ints")
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func north() model.Coordinate { return model.Pt(20, 10) }
func south() model.Coordinate { return model.Pt(20, 95) }

func TestRiverY_Deterministic(t *testing.T) {
	for x := -10.0; x <= 110; x += 0.5 {
		if RiverY(x) != RiverY(x) {
			t.Fatalf("RiverY(%v) not stable", x)
		}
	}
	if b := Bridge(); b.X != 50 || b.Y != RiverY(50) {
		t.Fatalf("bridge=%+v", b)
	}
}

func TestIsNorth(t *testing.T) {
	if !IsNorth(north()) {
		t.Fatalf("expected %+v north of river", north())
	}
	if IsNorth(south()) {
		t.Fatalf("expected %+v south of river", south())
	}
	on := model.Pt(30, RiverY(30))
	if IsNorth(on) {
		t.Fatalf("a point on the centerline belongs to the south bank")
	}
}

func TestPlanRoute_SameSide(t *testing.T) {
	end := model.Pt(80, 20)
	got := PlanRoute(north(), end, mathx.NewRand(1))
	if len(got) != 1 || got[0] != end {
		t.Fatalf("same-side route = %+v", got)
	}
}

func TestPlanRoute_CrossesAtBridge(t *testing.T) {
	r := mathx.NewRand(99)
	for i := 0; i < 200; i++ {
		got := PlanRoute(north(), south(), r)
		if len(got) != 2 {
			t.Fatalf("route len=%d want 2", len(got))
		}
		if got[0].Y != RiverY(BridgeX) {
			t.Fatalf("bridge waypoint y=%v want %v", got[0].Y, RiverY(BridgeX))
		}
		if math.Abs(got[0].X-BridgeX) > BridgeJitterSpan/2 {
			t.Fatalf("bridge waypoint x=%v outside jitter", got[0].X)
		}
		if got[1] != south() {
			t.Fatalf("last waypoint=%+v", got[1])
		}
	}
}

func TestPlanRoute_FreshSlice(t *testing.T) {
	end := model.Pt(80, 20)
	a := PlanRoute(north(), end, nil)
	b := PlanRoute(north(), end, nil)
	a[0].X = -1
	if b[0].X == -1 {
		t.Fatalf("routes share storage")
	}
}

func walker(typ model.EntityType, pos model.Coordinate, wps ...model.Coordinate) model.Entity {
	target := pos
	if len(wps) > 0 {
		target = wps[len(wps)-1]
	}
	return model.Entity{
		ID:             "e1",
		Type:           typ,
		Position:       pos,
		TargetPosition: target,
		Waypoints:      wps,
		Activity:       model.ActivityWalking,
	}
}

func TestStepEntity_FarTargetKeepsWalking(t *testing.T) {
	p := DefaultParams()
	e := walker(model.EntityFriend, model.Pt(20, 10), model.Pt(30, 10))
	got := StepEntity(e, Env{Params: p})

	if got.Activity != model.ActivityWalking {
		t.Fatalf("activity=%s", got.Activity)
	}
	if len(got.Waypoints) != 1 {
		t.Fatalf("waypoints=%+v", got.Waypoints)
	}
	if math.Abs(got.Position.X-20.02) > 1e-9 || got.Position.Y != 10 {
		t.Fatalf("position=%+v", got.Position)
	}
}

func TestStepEntity_StaffFasterThanFriends(t *testing.T) {
	p := DefaultParams()
	f := StepEntity(walker(model.EntityFriend, model.Pt(20, 10), model.Pt(30, 10)), Env{Params: p})
	s := StepEntity(walker(model.EntityStaff, model.Pt(20, 10), model.Pt(30, 10)), Env{Params: p})
	if !(s.Position.X-20 > f.Position.X-20) {
		t.Fatalf("staff moved %v, friend moved %v", s.Position.X-20, f.Position.X-20)
	}
}

func TestStepEntity_IntermediateWaypoint(t *testing.T) {
	p := DefaultParams()
	wp := model.Pt(50, RiverY(50))
	e := walker(model.EntityFriend, model.Pt(50.5, RiverY(50)-0.5), wp, south())
	got := StepEntity(e, Env{Params: p})

	if got.Position != wp {
		t.Fatalf("position=%+v want snapped to %+v", got.Position, wp)
	}
	if len(got.Waypoints) != 1 || got.Waypoints[0] != south() {
		t.Fatalf("waypoints=%+v", got.Waypoints)
	}
	if got.Activity != model.ActivityWalking {
		t.Fatalf("activity=%s", got.Activity)
	}
}

func TestStepEntity_Arrival(t *testing.T) {
	p := DefaultParams()
	// Right next to the river, off bridge: arrival must still snap exactly.
	dst := model.Pt(20, RiverY(20)-0.5)
	cases := []struct {
		typ  model.EntityType
		want model.Activity
	}{
		{model.EntityStaff, model.ActivityWorking},
		{model.EntityFriend, model.ActivityDancing},
	}
	for _, c := range cases {
		e := walker(c.typ, model.Pt(dst.X+0.3, dst.Y+0.3), dst)
		got := StepEntity(e, Env{Params: p})
		if got.Position != dst {
			t.Fatalf("%s: position=%+v want %+v", c.typ, got.Position, dst)
		}
		if len(got.Waypoints) != 0 {
			t.Fatalf("%s: waypoints not cleared: %+v", c.typ, got.Waypoints)
		}
		if got.Activity != c.want {
			t.Fatalf("%s: activity=%s want %s", c.typ, got.Activity, c.want)
		}
	}
}

func TestStepEntity_ZeroLengthTarget(t *testing.T) {
	p := DefaultParams()
	pos := model.Pt(70, 20)
	e := walker(model.EntityFriend, pos)
	e.Waypoints = nil
	got := StepEntity(e, Env{Params: p})
	if math.IsNaN(got.Position.X) || math.IsNaN(got.Position.Y) {
		t.Fatalf("NaN position")
	}
	if got.Position != pos || got.Activity != model.ActivityDancing {
		t.Fatalf("got %+v", got)
	}
}

func TestStepEntity_RiverRepulsion(t *testing.T) {
	p := DefaultParams()
	for _, x := range []float64{10, 30, 70, 90} {
		ry := RiverY(x)
		above := model.Entity{Type: model.EntityStaff, Activity: model.ActivityWorking, Position: model.Pt(x, ry-1)}
		below := model.Entity{Type: model.EntityStaff, Activity: model.ActivityWorking, Position: model.Pt(x, ry+1)}

		env := Env{Params: p, Rand: &scriptedRand{t: t, floats: []float64{0.9, 0.9}}}
		a := StepEntity(above, env)
		b := StepEntity(below, env)
		if !(a.Position.Y < ry-1) {
			t.Fatalf("x=%v: north entity not pushed north: %v", x, a.Position.Y)
		}
		if !(b.Position.Y > ry+1) {
			t.Fatalf("x=%v: south entity not pushed south: %v", x, b.Position.Y)
		}
	}
}

func TestStepEntity_NoRepulsionOnBridge(t *testing.T) {
	p := DefaultParams()
	pos := model.Pt(52, RiverY(52)+0.5)
	e := model.Entity{Type: model.EntityStaff, Activity: model.ActivityWorking, Position: pos}
	got := StepEntity(e, Env{Params: p})
	if got.Position != pos {
		t.Fatalf("bridge crosser moved: %+v", got.Position)
	}
}

func TestRetrigger(t *testing.T) {
	p := DefaultParams()
	idle := model.Entity{Type: model.EntityFriend, Activity: model.ActivityDancing, Position: model.Pt(20, 10)}
	dests := []model.Coordinate{model.Pt(80, 20), model.Pt(20, 95)}

	// Draw above the chance: nothing happens.
	if _, ok := Retrigger(idle, dests, &scriptedRand{t: t, floats: []float64{0.5}}, p); ok {
		t.Fatalf("unexpected retrigger")
	}

	// Same-side destination, centered jitter.
	r := &scriptedRand{t: t, floats: []float64{0.001, 0.5, 0.5}, ints: []int{0}}
	got, ok := Retrigger(idle, dests, r, p)
	if !ok {
		t.Fatalf("expected retrigger")
	}
	if got.Activity != model.ActivityWalking || got.TargetPosition != dests[0] {
		t.Fatalf("got %+v", got)
	}
	if len(got.Waypoints) != 1 || got.Waypoints[0] != dests[0] {
		t.Fatalf("waypoints=%+v", got.Waypoints)
	}

	// Opposite bank: route goes via the bridge.
	r = &scriptedRand{t: t, floats: []float64{0.001, 0.5, 0.5, 0.5}, ints: []int{1}}
	got, ok = Retrigger(idle, dests, r, p)
	if !ok || len(got.Waypoints) != 2 || got.Waypoints[0] != Bridge() {
		t.Fatalf("cross-river retrigger=%+v ok=%v", got, ok)
	}

	if _, ok := Retrigger(idle, nil, &scriptedRand{t: t}, p); ok {
		t.Fatalf("empty destination pool must be a no-op")
	}
}

func TestStep_RetriggerTickDoesNotMove(t *testing.T) {
	p := DefaultParams()
	idle := model.Entity{Type: model.EntityFriend, Activity: model.ActivityDancing, Position: model.Pt(20, 10)}
	env := Env{
		Params:       p,
		Destinations: []model.Coordinate{model.Pt(80, 20)},
		Rand:         &scriptedRand{t: t, floats: []float64{0, 0.5, 0.5}, ints: []int{0}},
	}
	got := Step([]model.Entity{idle}, env)
	if got[0].Position != idle.Position || got[0].Activity != model.ActivityWalking {
		t.Fatalf("got %+v", got[0])
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	p := DefaultParams()
	wp := model.Pt(50, RiverY(50))
	prev := []model.Entity{
		walker(model.EntityStaff, model.Pt(50.2, RiverY(50)), wp, south()),
		walker(model.EntityFriend, model.Pt(10, 10), model.Pt(30, 10)),
	}
	before := model.CloneEntities(prev)

	next := Step(prev, Env{Params: p, Rand: mathx.NewRand(3)})
	for i := range prev {
		if prev[i].Position != before[i].Position || len(prev[i].Waypoints) != len(before[i].Waypoints) {
			t.Fatalf("entity %d mutated: %+v", i, prev[i])
		}
		for j := range prev[i].Waypoints {
			if prev[i].Waypoints[j] != before[i].Waypoints[j] {
				t.Fatalf("entity %d waypoint %d mutated", i, j)
			}
		}
	}
	next[1].Waypoints[0].X = -5
	if prev[1].Waypoints[0].X == -5 {
		t.Fatalf("next shares waypoint storage with prev")
	}
}

func TestStep_StepSizeBound(t *testing.T) {
	p := DefaultParams()
	r := mathx.NewRand(11)
	ents := []model.Entity{
		walker(model.EntityStaff, model.Pt(5, 5), model.Pt(95, 30)),
		walker(model.EntityFriend, model.Pt(5, 90), model.Pt(95, 95)),
	}
	for tick := 0; tick < 500; tick++ {
		next := Step(ents, Env{Params: p, Rand: r})
		for i := range next {
			if !next[i].Walking() || !ents[i].Walking() {
				continue
			}
			moved := next[i].Position.Distance(ents[i].Position)
			if moved > p.StaffSpeed+p.RepelPush+1e-9 {
				t.Fatalf("tick %d entity %d moved %v", tick, i, moved)
			}
		}
		ents = next
	}
}
