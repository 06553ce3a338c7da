package punctuation

import (
	"math/rand"

	"github.com/unixpickle/anyvec"
)

func vecData(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return append([]float64{}, data...)
	}
	panic("unsupported numeric type")
}

// applyFC mirrors a fully-connected layer on raw floats:
// weights are outDim-by-inDim, row major.
func applyFC(weights, biases, in []float64, n, inDim, outDim int) []float64 {
	res := make([]float64, n*outDim)
	for i := 0; i < n; i++ {
		for o := 0; o < outDim; o++ {
			sum := biases[o]
			for k := 0; k < inDim; k++ {
				sum += in[i*inDim+k] * weights[o*inDim+k]
			}
			res[i*outDim+o] = sum
		}
	}
	return res
}

func randomVecs(c anyvec.Creator, rng *rand.Rand, count, width int) []anyvec.Vector {
	res := make([]anyvec.Vector, count)
	for i := range res {
		data := make([]float64, width)
		for j := range data {
			data[j] = rng.NormFloat64()
		}
		res[i] = c.MakeVectorData(c.MakeNumericList(data))
	}
	return res
}
