package embedding

import "math"

// Normalize scales v to unit length and converts to float32.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func Normalize(v []float64) []float32 {
	result := make([]float32, len(v))
	if len(v) == 0 {
		return result
	}

	var magnitude float64
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = math.Sqrt(magnitude)

	// Can't normalize zero vector
	if magnitude == 0 {
		return result
	}

	for i, val := range v {
		result[i] = float32(val / magnitude)
	}
	return result
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
