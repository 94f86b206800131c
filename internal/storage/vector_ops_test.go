package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSerialization_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"single", []float32{1.5}},
		{"typical", []float32{0.1, -0.2, 0.3, -0.4}},
		{"extremes", []float32{math.MaxFloat32, -math.MaxFloat32, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := SerializeVector(tt.vector)
			assert.Len(t, blob, len(tt.vector)*4)

			got := DeserializeVector(blob)
			require.Len(t, got, len(tt.vector))
			for i := range tt.vector {
				assert.Equal(t, tt.vector[i], got[i])
			}
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector scores zero", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0.0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float32{0.3, 0.7, 0.1}
	scaled := []float32{0.6, 1.4, 0.2}

	assert.InDelta(t, 1.0, CosineSimilarity(a, scaled), 1e-6)
}
