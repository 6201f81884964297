package world

import (
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue derives a stable seed for a labelled RNG stream.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a generator seeded from rootSeed and label.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	seedValue := DeterministicSeedValue(rootSeed, label)
	return rand.New(rand.NewSource(seedValue))
}

// RandomInt returns an integer in [min, max). A collapsed range yields min.
func RandomInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	if rng == nil {
		rng = NewDeterministicRNG(DefaultSeed, "world")
	}
	return min + rng.Intn(max-min)
}

// RandomPoint samples an integral point in the square [-half+inset, half-inset).
func RandomPoint(rng *rand.Rand, half, inset int) Vector2D {
	x := RandomInt(rng, -half+inset, half-inset)
	y := RandomInt(rng, -half+inset, half-inset)
	return Vec(float64(x), float64(y))
}
