// Package vecmath collects small vector-algebra helpers, backed by
// gonum's BLAS-wrapping vector type rather than hand-rolled arithmetic.
// The broad-phase distance filter uses Norm; the narrow phase calls
// mat64.Norm directly.
package vecmath

import "github.com/gonum/matrix/mat64"

// Norm returns the Euclidean norm of v via mat64's BLAS-backed
// implementation.
func Norm(v []float64) float64 {
	return mat64.Norm(mat64.NewVector(len(v), v), 2)
}

// Dot performs the inner product via mat64/BLAS.
func Dot(a, b []float64) float64 {
	return mat64.Dot(mat64.NewVector(len(a), a), mat64.NewVector(len(b), b))
}
