package punctuation

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// newFC builds a fully-connected layer with Gaussian
// weights and zero biases.
func newFC(c anyvec.Creator, in, out int, scale float64, rng *rand.Rand) *anynet.FC {
	fc := anynet.NewFC(c, in, out)
	initGaussian(fc.Weights, scale, rng)
	initZero(fc.Biases)
	return fc
}

// initGaussian fills a parameter with isotropic Gaussian
// noise of the given standard deviation.
func initGaussian(v *anydiff.Var, scale float64, rng *rand.Rand) {
	c := v.Vector.Creator()
	data := make([]float64, v.Vector.Len())
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	v.Vector.SetData(c.MakeNumericList(data))
}

// initZero zeroes a parameter, the standard start for
// biases.
func initZero(v *anydiff.Var) {
	v.Vector.Scale(v.Vector.Creator().MakeNumeric(0))
}

// initOrthogonal fills a rows-by-cols parameter with
// orthonormal blocks.
// cols must be a multiple of rows; each rows-by-rows
// block is orthogonalized independently, which is the
// usual treatment for stacked gate matrices.
func initOrthogonal(v *anydiff.Var, rows, cols int, rng *rand.Rand) {
	if cols%rows != 0 {
		panic("initOrthogonal: cols must be a multiple of rows")
	}
	c := v.Vector.Creator()
	data := make([]float64, rows*cols)
	for block := 0; block < cols/rows; block++ {
		m := randomOrthogonal(rows, rng)
		for i := 0; i < rows; i++ {
			for j := 0; j < rows; j++ {
				data[i*cols+block*rows+j] = m[i][j]
			}
		}
	}
	v.Vector.SetData(c.MakeNumericList(data))
}

// randomOrthogonal produces a random n-by-n orthonormal
// matrix by Gram-Schmidt on Gaussian rows.
func randomOrthogonal(n int, rng *rand.Rand) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for {
			for j := range m[i] {
				m[i][j] = rng.NormFloat64()
			}
			for k := 0; k < i; k++ {
				dot := 0.0
				for j := range m[i] {
					dot += m[i][j] * m[k][j]
				}
				for j := range m[i] {
					m[i][j] -= dot * m[k][j]
				}
			}
			norm := 0.0
			for _, x := range m[i] {
				norm += x * x
			}
			norm = math.Sqrt(norm)
			if norm > 1e-8 {
				for j := range m[i] {
					m[i][j] /= norm
				}
				break
			}
		}
	}
	return m
}
