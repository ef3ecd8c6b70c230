package compute

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CPU is the reference Backend: every op is a straightforward loop (or a thin
// wrapper over gonum, which is itself a straightforward loop in its pure-Go
// path), so it is bit-comparable with the spec's description up to rounding.
type CPU struct{}

// NewCPU returns the CPU reference backend.
func NewCPU() *CPU {
	return &CPU{}
}

// MatMul computes C[i,j] = sum_p a[i,p]*b[p,j] via gonum's dense matrix
// multiply, which for two real, non-aliased operands performs the same
// row-major accumulation as the naive triple loop.
func (CPU) MatMul(a, b []float32, m, k, n int) ([]float32, error) {
	if len(a) != m*k || len(b) != k*n {
		return nil, &MatmulMismatch{M: m, K: k, N: n, LenA: len(a), LenB: len(b)}
	}

	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i, v := range a {
		af[i] = float64(v)
	}
	for i, v := range b {
		bf[i] = float64(v)
	}

	am := mat.NewDense(m, k, af)
	bm := mat.NewDense(k, n, bf)
	var cm mat.Dense
	cm.Mul(am, bm)

	out := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = float32(cm.At(i, j))
		}
	}
	return out, nil
}

// Add returns the elementwise sum of a and b.
func (CPU) Add(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, &ShapeMismatch{Op: "add", Want: len(a), Got: len(b)}
	}
	af := toFloat64(a)
	floats.Add(af, toFloat64(b))
	return toFloat32(af), nil
}

// Mul returns the elementwise product of a and b.
func (CPU) Mul(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, &ShapeMismatch{Op: "mul", Want: len(a), Got: len(b)}
	}
	af := toFloat64(a)
	floats.Mul(af, toFloat64(b))
	return toFloat32(af), nil
}

// Scale returns a scaled elementwise by s.
func (CPU) Scale(a []float32, s float32) []float32 {
	af := toFloat64(a)
	floats.Scale(float64(s), af)
	return toFloat32(af)
}

// RMSNorm normalizes each row of length h in x: y = x*w/sqrt(mean(x^2)+eps).
func (CPU) RMSNorm(x, w []float32, eps float32, h int) ([]float32, error) {
	if h <= 0 {
		return nil, &ShapeMismatch{Op: "rms_norm row length", Want: 1, Got: h}
	}
	if len(x)%h != 0 {
		return nil, &ShapeMismatch{Op: "rms_norm", Want: 0, Got: len(x) % h}
	}
	if len(w) != h {
		return nil, &ShapeMismatch{Op: "rms_norm weight", Want: h, Got: len(w)}
	}

	out := make([]float32, len(x))
	rows := len(x) / h
	for r := 0; r < rows; r++ {
		row := x[r*h : (r+1)*h]
		var ss float64
		for _, v := range row {
			ss += float64(v) * float64(v)
		}
		mean := ss / float64(h)
		inv := 1.0 / math.Sqrt(mean+float64(eps))
		dst := out[r*h : (r+1)*h]
		for i, v := range row {
			dst[i] = float32(float64(v) * inv * float64(w[i]))
		}
	}
	return out, nil
}

// Softmax normalizes each chunk of length v in x, subtracting the chunk max
// before exponentiating to avoid overflow.
func (CPU) Softmax(x []float32, v int) ([]float32, error) {
	if v <= 0 {
		return nil, &ShapeMismatch{Op: "softmax chunk length", Want: 1, Got: v}
	}
	if len(x)%v != 0 {
		return nil, &ShapeMismatch{Op: "softmax", Want: 0, Got: len(x) % v}
	}
	out := make([]float32, len(x))
	chunks := len(x) / v
	for c := 0; c < chunks; c++ {
		row := x[c*v : (c+1)*v]
		dst := out[c*v : (c+1)*v]

		max := row[0]
		for _, val := range row[1:] {
			if val > max {
				max = val
			}
		}

		var sum float64
		for i, val := range row {
			e := math.Exp(float64(val - max))
			dst[i] = float32(e)
			sum += e
		}
		for i := range dst {
			dst[i] = float32(float64(dst[i]) / sum)
		}
	}
	return out, nil
}

// RoPE rotates each head's even/odd dimension pairs of q and k in place by
// position-dependent angles theta^(-2i/headDim)*pos.
func (CPU) RoPE(q, k []float32, headDim, pos, nQ, nK int, theta float64) error {
	if headDim <= 0 || headDim%2 != 0 {
		return &ShapeMismatch{Op: "rope head_dim", Want: 0, Got: headDim % 2}
	}
	if len(q) != nQ*headDim {
		return &ShapeMismatch{Op: "rope q", Want: nQ * headDim, Got: len(q)}
	}
	if len(k) != nK*headDim {
		return &ShapeMismatch{Op: "rope k", Want: nK * headDim, Got: len(k)}
	}

	rotate := func(buf []float32, nHeads int) {
		for h := 0; h < nHeads; h++ {
			base := h * headDim
			for i := 0; i < headDim/2; i++ {
				freq := math.Pow(theta, -2*float64(i)/float64(headDim))
				angle := float64(pos) * freq
				cosA, sinA := math.Cos(angle), math.Sin(angle)

				x0 := float64(buf[base+2*i])
				x1 := float64(buf[base+2*i+1])
				buf[base+2*i] = float32(x0*cosA - x1*sinA)
				buf[base+2*i+1] = float32(x0*sinA + x1*cosA)
			}
		}
	}
	rotate(q, nQ)
	rotate(k, nK)
	return nil
}

// SiLU returns the sigmoid linear unit x/(1+exp(-x)) elementwise.
func (CPU) SiLU(x []float32) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(float64(v) / (1 + math.Exp(-float64(v))))
	}
	return out
}

func toFloat64(a []float32) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = float64(v)
	}
	return out
}

func toFloat32(a []float64) []float32 {
	out := make([]float32, len(a))
	for i, v := range a {
		out[i] = float32(v)
	}
	return out
}
