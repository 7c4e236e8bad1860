package mathx

import (
	"math"
	"math/rand"
	"time"
)

// Rand is the random source consumed by the simulation. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a seeded source. A zero seed means "not reproducible".
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Jitter returns a uniform offset in [-span/2, span/2).
func Jitter(r Rand, span float64) float64 {
	if r == nil || span == 0 {
		return 0
	}
	return (r.Float64() - 0.5) * span
}

// Frac returns the fractional part of v in [0,1).
func Frac(v float64) float64 {
	return v - math.Floor(v)
}

// SinHash maps a seed to a deterministic value in [0,1). It is cheap and only
// good enough for decorative geometry.
func SinHash(seed float64) float64 {
	return Frac(math.Sin(seed) * 10000)
}

func ClampInt(v, min, max, def int) int {
	if v == 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func ClampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
