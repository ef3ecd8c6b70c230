package compute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatMul(t *testing.T) {
	cpu := NewCPU()
	// [2,3] x [3,2] -> [2,2]
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	out, err := cpu.MatMul(a, b, 2, 3, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{58, 64, 139, 154}, out, 1e-4)
}

func TestMatMulShapeMismatch(t *testing.T) {
	cpu := NewCPU()
	_, err := cpu.MatMul([]float32{1, 2}, []float32{1, 2, 3}, 2, 2, 2)
	require.Error(t, err)
	var mm *MatmulMismatch
	assert.ErrorAs(t, err, &mm)
}

func TestRMSNormUnitNorm(t *testing.T) {
	cpu := NewCPU()
	h := 8
	x := []float32{1, -2, 3, -4, 5, -6, 7, -8}
	w := make([]float32, h)
	for i := range w {
		w[i] = 1
	}
	out, err := cpu.RMSNorm(x, w, 0, h)
	require.NoError(t, err)

	var ss float64
	for _, v := range out {
		ss += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, ss/float64(h), 1e-5)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	cpu := NewCPU()
	x := []float32{1, 2, 3, 4, 1, 2, 3, 4}
	out, err := cpu.Softmax(x, 4)
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		var sum float64
		for _, v := range out[c*4 : (c+1)*4] {
			assert.GreaterOrEqual(t, v, float32(0))
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	cpu := NewCPU()
	x := []float32{1, 2, 3, 4}
	shifted := []float32{101, 102, 103, 104}

	out1, err := cpu.Softmax(x, 4)
	require.NoError(t, err)
	out2, err := cpu.Softmax(shifted, 4)
	require.NoError(t, err)

	assert.InDeltaSlice(t, out1, out2, 1e-5)
}

func TestRoPEIdentityAtPositionZero(t *testing.T) {
	cpu := NewCPU()
	q := []float32{1, 2, 3, 4}
	k := []float32{5, 6, 7, 8}
	qOrig := append([]float32(nil), q...)
	kOrig := append([]float32(nil), k...)

	err := cpu.RoPE(q, k, 4, 0, 1, 1, 10000.0)
	require.NoError(t, err)

	assert.Equal(t, qOrig, q)
	assert.Equal(t, kOrig, k)
}

func TestSiLU(t *testing.T) {
	cpu := NewCPU()
	out := cpu.SiLU([]float32{0})
	assert.InDelta(t, 0.0, float64(out[0]), 1e-6)

	out = cpu.SiLU([]float32{2})
	want := 2.0 / (1 + math.Exp(-2))
	assert.InDelta(t, want, float64(out[0]), 1e-4)
}
