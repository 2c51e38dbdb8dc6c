// Package draw implements weighted segment selection and the geometry that
// reconciles a spin animation's final angle with the recorded outcome.
//
// The sampled index is only an aim point for the animation. The authoritative
// outcome is always SegmentUnderPointer applied to the settled angle, so the
// segment shown to the participant and the segment persisted can never
// diverge.
package draw

import (
	"math"
	"math/rand"

	"github.com/verdantmarket/spinwheel/internal/store"
)

const (
	fullCircle = 360.0

	// A spin always makes a few full turns before settling so short spins
	// don't look broken.
	minFullTurns = 4
	extraTurns   = 4
)

// Pick samples a winning segment index from the weight distribution.
// It never fails: misconfigured weights degrade to the last segment.
func Pick(rng *rand.Rand, segments []store.Segment) int {
	return IndexForSample(rng.Float64()*100, segments)
}

// IndexForSample maps a sample in [0, 100) onto a segment index by walking
// cumulative weights and returning the first index whose cumulative weight
// reaches the sample. If the weights sum to less than 100 the last segment
// acts as the overflow catch-all.
func IndexForSample(sample float64, segments []store.Segment) int {
	cumulative := 0.0
	for i, seg := range segments {
		cumulative += seg.Weight
		if cumulative >= sample {
			return i
		}
	}
	return len(segments) - 1
}

// SpinPlan describes the animation target for one spin.
type SpinPlan struct {
	Turns      int     `json:"turns"`
	FinalAngle float64 `json:"finalAngle"`
}

// Plan produces a final rotation angle that lands the pointer inside the
// target segment: several full turns plus an offset into the segment's arc.
// The offset is jittered away from the segment edges so float rounding at a
// boundary cannot flip the outcome.
func Plan(rng *rand.Rand, targetIndex, segmentCount int) SpinPlan {
	turns := minFullTurns + rng.Intn(extraTurns)
	arc := fullCircle / float64(segmentCount)

	// Land 25-75% into the target arc.
	within := arc * (0.25 + rng.Float64()*0.5)
	offset := fullCircle - (float64(targetIndex)*arc + within)

	return SpinPlan{
		Turns:      turns,
		FinalAngle: float64(turns)*fullCircle + offset,
	}
}

// SegmentUnderPointer returns the segment index sitting under the fixed
// pointer once the wheel has settled at finalAngleDegrees. The pointer
// points opposite the direction of increasing rotation, so the angle under
// it is the rotation's complement. This value, not the sampled index, is
// what gets persisted and displayed.
func SegmentUnderPointer(finalAngleDegrees float64, segmentCount int) int {
	if segmentCount <= 0 {
		return 0
	}

	angle := math.Mod(finalAngleDegrees, fullCircle)
	if angle < 0 {
		angle += fullCircle
	}
	pointer := math.Mod(fullCircle-angle, fullCircle)

	idx := int(pointer / (fullCircle / float64(segmentCount)))
	if idx >= segmentCount { // float edge at exactly 360/n
		idx = segmentCount - 1
	}
	return idx
}
