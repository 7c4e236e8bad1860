// Package population builds the starting entity set for a generation.
package population

import (
	"fmt"

	"tentscape.ai/internal/sim/catalogs"
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
	"tentscape.ai/internal/sim/world/logic/movement"
)

const (
	DefaultStaffCount = 50
	FriendColor       = "#ccff00"

	// StartJitterSpan spreads staff around their start location.
	StartJitterSpan = 5.0
)

// FriendNames is the fixed visitor group, in id order.
var FriendNames = []string{"Sarah", "Mike", "Jess", "Dave"}

// Job describes one staff category.
type Job struct {
	Role   model.StaffRole
	Color  string
	Prefix string
}

var Jobs = []Job{
	{Role: model.StaffSecurity, Color: "#f87171", Prefix: "SEC"},
	{Role: model.StaffMedic, Color: "#fbbf24", Prefix: "MED"},
	{Role: model.StaffTech, Color: "#60a5fa", Prefix: "TCH"},
	{Role: model.StaffBar, Color: "#a78bfa", Prefix: "BAR"},
}

func JobFor(r model.StaffRole) (Job, bool) {
	for _, j := range Jobs {
		if j.Role == r {
			return j, true
		}
	}
	return Job{}, false
}

type Config struct {
	StaffCount int
}

// Initialize creates the population for role. An empty stage list yields nil:
// nothing is simulated until stages are known.
func Initialize(stages []model.Stage, role model.Role, cfg Config, r mathx.Rand) []model.Entity {
	if len(stages) == 0 {
		return nil
	}
	cands := catalogs.DestinationPoints(stages)
	if role == model.RolePromoter {
		n := cfg.StaffCount
		if n <= 0 {
			n = DefaultStaffCount
		}
		return Staff(n, cands, r)
	}
	return Friends(cands, stages[0].Position, r)
}

// Staff creates n staff members on random routes between candidates. They
// start WORKING with a planned route and only walk once re-triggered.
func Staff(n int, cands []model.Coordinate, r mathx.Rand) []model.Entity {
	if n <= 0 || len(cands) == 0 {
		return nil
	}
	out := make([]model.Entity, 0, n)
	for i := 0; i < n; i++ {
		job := Jobs[intn(r, len(Jobs))]
		start := cands[intn(r, len(cands))]
		end := cands[intn(r, len(cands))]
		pos := model.Coordinate{
			X: start.X + mathx.Jitter(r, StartJitterSpan),
			Y: start.Y + mathx.Jitter(r, StartJitterSpan),
		}
		out = append(out, model.Entity{
			ID:             fmt.Sprintf("staff-%d", i),
			Name:           fmt.Sprintf("%s-%d", job.Prefix, 100+i),
			Type:           model.EntityStaff,
			StaffRole:      job.Role,
			AvatarColor:    job.Color,
			Position:       pos,
			TargetPosition: end,
			Waypoints:      movement.PlanRoute(pos, end, r),
			Activity:       model.ActivityWorking,
		})
	}
	return out
}

// Friends creates the visitor group. Friend i starts at cands[i mod len] and
// walks to target.
func Friends(cands []model.Coordinate, target model.Coordinate, r mathx.Rand) []model.Entity {
	if len(cands) == 0 {
		return nil
	}
	out := make([]model.Entity, 0, len(FriendNames))
	for i, name := range FriendNames {
		start := cands[i%len(cands)]
		out = append(out, model.Entity{
			ID:             fmt.Sprintf("friend-%d", i),
			Name:           name,
			Type:           model.EntityFriend,
			AvatarColor:    FriendColor,
			Position:       start,
			TargetPosition: target,
			Waypoints:      movement.PlanRoute(start, target, r),
			Activity:       model.ActivityWalking,
		})
	}
	return out
}

func intn(r mathx.Rand, n int) int {
	if r == nil || n <= 1 {
		return 0
	}
	return r.Intn(n)
}
