// Package chart expands the per-step follower history into the dense series
// the frontend chart animates through. Straight lines between step boundaries
// read as artificial, so segments are eased and carry a little simplex-noise
// texture; boundary values stay exact and the output is deterministic for a
// given seed.
package chart

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	// jitterShare is the noise amplitude as a fraction of a segment's delta.
	jitterShare = 0.03

	// noiseFrequency spaces the noise samples along a segment.
	noiseFrequency = 3.0
)

// Series interpolates samplesPerStep points into every history segment.
// Output length is (len(history)-1)*samplesPerStep + 1; the first and every
// step-boundary value match the history exactly.
func Series(history []int64, samplesPerStep int, seed int64) []float64 {
	if len(history) == 0 {
		return nil
	}
	if samplesPerStep < 1 {
		samplesPerStep = 1
	}

	noise := opensimplex.New(seed)
	out := make([]float64, 0, (len(history)-1)*samplesPerStep+1)
	out = append(out, float64(history[0]))

	for i := 0; i < len(history)-1; i++ {
		a := float64(history[i])
		b := float64(history[i+1])
		delta := b - a
		jitter := jitterShare * abs(delta)

		for s := 1; s <= samplesPerStep; s++ {
			if s == samplesPerStep {
				out = append(out, b)
				continue
			}
			t := float64(s) / float64(samplesPerStep)
			eased := t * t * (3 - 2*t)
			x := (float64(i) + t) * noiseFrequency
			out = append(out, a+delta*eased+jitter*noise.Eval2(x, 0))
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
