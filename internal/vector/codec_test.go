package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrow(t *testing.T) {
	in := []float64{0, 1, -1, 0.1, 1e-50, 3.4028234663852886e38}
	out := Narrow(in)

	require.Len(t, out, len(in))
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(1), out[1])
	assert.Equal(t, float32(-1), out[2])
	assert.Equal(t, float32(0.1), out[3])
	assert.Equal(t, float32(0), out[4]) // underflows to zero
	assert.Equal(t, float32(math.MaxFloat32), out[5])
}

func TestNarrow_NoScaling(t *testing.T) {
	in := []float64{3, 4}
	assert.Equal(t, []float32{3, 4}, Narrow(in))
}

func TestNarrow_Overflow(t *testing.T) {
	out := Narrow([]float64{1e300, -1e300})
	assert.True(t, math.IsInf(float64(out[0]), 1))
	assert.True(t, math.IsInf(float64(out[1]), -1))
}

func TestNarrow_Float32Passthrough(t *testing.T) {
	in := []float32{0.25, -0.5}
	assert.Equal(t, in, Narrow(in))
}

func TestNarrow_Empty(t *testing.T) {
	assert.Empty(t, Narrow([]float64{}))
}

func TestEncode_Deterministic(t *testing.T) {
	in := []float64{0.123456789012345, -9.87654321}
	a := Encode(in)
	b := Encode(in)
	assert.Equal(t, a.Slice(), b.Slice())
	assert.Equal(t, []float32{float32(in[0]), float32(in[1])}, a.Slice())
}

func TestEncodeBatch_PreservesOrder(t *testing.T) {
	batch := [][]float64{{1, 2}, {3}, {}}
	out := EncodeBatch(batch)
	require.Len(t, out, 3)
	assert.Equal(t, []float32{1, 2}, out[0].Slice())
	assert.Equal(t, []float32{3}, out[1].Slice())
	assert.Empty(t, out[2].Slice())
}
