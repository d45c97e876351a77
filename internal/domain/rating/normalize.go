package rating

// Display scale used by the dashboard plot.
const (
	ScaleMin = 0.5
	ScaleMax = 9.5
	ScaleMid = 5
)

// Normalize maps v onto [ScaleMin, ScaleMax] relative to the bounds of the
// set it is displayed with. Equal bounds collapse to ScaleMid.
func Normalize(v, lo, hi float64) float64 {
	if lo == hi {
		return ScaleMid
	}
	return ScaleMin + (ScaleMax-ScaleMin)*(v-lo)/(hi-lo)
}

// Bounds returns the minimum and maximum of values, or (0, 0) for none.
func Bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// NormalizeAll normalizes every value against the bounds of the set.
func NormalizeAll(values []float64) []float64 {
	lo, hi := Bounds(values)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Normalize(v, lo, hi)
	}
	return out
}
