package cortex

// Clamp restricts v to [lo, hi]. Every component uses this instead of ad-hoc
// min/max so the "arithmetic is total, never exceptions" rule (spec §4.8,
// §7) is enforced at a single choke point.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// Clamp01 restricts v to [0, 1] — the range shared by preference, territory,
// trust, activation, confidence, alignment, progress, drift and surprise
// values (spec §3 "Scalar conventions").
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// ClampWeight restricts v to [-1, 1] — the range of behavioral weights.
func ClampWeight(v float64) float64 { return Clamp(v, -1, 1) }

// EMA computes an exponential moving average update: prev + rate*(target-prev).
// Shared by behavioral-weight updates (§4.1), goal alignment (§4.4) and
// calibration/surprise smoothing (§4.5) so the smoothing rule only has one
// implementation to get right.
func EMA(prev, target, rate float64) float64 {
	return prev + rate*(target-prev)
}
