package movement

import (
	"math"

	"tentscape.ai/internal/sim/world/kernel/model"
)

// BridgeX is the horizontal position of the only river crossing.
const BridgeX = 50.0

// RiverY is the river centerline. Terrain drawing and pathing must both use it.
func RiverY(x float64) float64 {
	return 55 + 10*math.Sin(x*0.05) + 5*math.Cos(x*0.1)
}

// Bridge returns the crossing point on the river centerline.
func Bridge() model.Coordinate {
	return model.Coordinate{X: BridgeX, Y: RiverY(BridgeX)}
}

// IsNorth reports whether c lies above (smaller y than) the river at c.X.
func IsNorth(c model.Coordinate) bool {
	return c.Y < RiverY(c.X)
}

// SameSide reports whether a and b can be joined without crossing the river.
func SameSide(a, b model.Coordinate) bool {
	return IsNorth(a) == IsNorth(b)
}
