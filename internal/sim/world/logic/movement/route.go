package movement

import (
	"tentscape.ai/internal/sim/world/kernel/model"
	"tentscape.ai/internal/sim/world/logic/mathx"
)

// BridgeJitterSpan is the total width of the random offset applied to the
// bridge waypoint so concurrent crossers do not collapse into one line.
const BridgeJitterSpan = 4.0

// PlanRoute returns the waypoints from start to end. The only obstacle handled
// is the river: a route between opposite banks passes the bridge first. The
// last entry is always end. Every call returns a fresh slice.
func PlanRoute(start, end model.Coordinate, r mathx.Rand) []model.Coordinate {
	if SameSide(start, end) {
		return []model.Coordinate{end}
	}
	b := Bridge()
	return []model.Coordinate{
		{X: b.X + mathx.Jitter(r, BridgeJitterSpan), Y: b.Y},
		end,
	}
}
