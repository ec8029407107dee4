package epochs

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// DefaultNoiseCoefficient scales the standard-normal noise added after
// z-scoring.
const DefaultNoiseCoefficient = 0.01

// NormalSource draws standard-normal values. *rand.Rand satisfies it.
type NormalSource interface {
	NormFloat64() float64
}

// NewNormalSource returns a seeded PCG generator. The stream separates
// independent sequences drawn from one seed.
func NewNormalSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// StreamID derives a stable stream number from names such as a subject id
// and an artifact name, so every collection gets its own noise sequence.
func StreamID(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Normalize z-scores every channel of every epoch over time and adds a*N
// with N drawn from src, replacing the collection's data in place:
//
//	x' = (x - mean) / std + a*N
//
// The standard deviation is the population one. A constant channel has a
// standard deviation of zero, which is replaced by one, so its output is
// pure noise. Noise is drawn in trial, channel, time order.
func Normalize(c *Collection, src NormalSource, a float64) {
	for _, trial := range c.Data {
		for _, ch := range trial {
			mean, std := meanStd(ch)
			if std == 0 {
				std = 1
			}
			for i, x := range ch {
				ch[i] = (x-mean)/std + a*src.NormFloat64()
			}
		}
	}
	c.Normalized = true
	c.Noise = a
}

// meanStd returns the mean and population standard deviation of x. A
// constant series returns its value and exactly zero.
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}

	constant := true
	sum := 0.0
	for _, v := range x {
		sum += v
		if v != x[0] {
			constant = false
		}
	}
	if constant {
		return x[0], 0
	}

	mean = sum / float64(len(x))
	ss := 0.0
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(x)))
}
