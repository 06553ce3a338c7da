package punctuation

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// matMul multiplies a row-major batch of n rows by a
// fixed-shape matrix m (inCols rows, outCols columns).
func matMul(in anydiff.Res, n, inCols int, m anydiff.Res, outCols int) anydiff.Res {
	a := &anydiff.Matrix{Data: in, Rows: n, Cols: inCols}
	b := &anydiff.Matrix{Data: m, Rows: inCols, Cols: outCols}
	return anydiff.MatMul(false, false, a, b).Data
}

// constMatrix builds a constant rows-by-cols matrix whose
// entries come from f.
func constMatrix(c anyvec.Creator, rows, cols int, f func(i, j int) float64) anydiff.Res {
	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = f(i, j)
		}
	}
	return anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(data)))
}

// takeCols extracts the column range [from, to) from every
// row of a batch with total columns.
func takeCols(c anyvec.Creator, in anydiff.Res, n, total, from, to int) anydiff.Res {
	sel := constMatrix(c, total, to-from, func(i, j int) float64 {
		if i == from+j {
			return 1
		}
		return 0
	})
	return matMul(in, n, total, sel, to-from)
}

// concatCols joins two batches of n rows side by side.
func concatCols(c anyvec.Creator, n int, a anydiff.Res, aCols int, b anydiff.Res, bCols int) anydiff.Res {
	total := aCols + bCols
	placeA := constMatrix(c, aCols, total, func(i, j int) float64 {
		if j == i {
			return 1
		}
		return 0
	})
	placeB := constMatrix(c, bCols, total, func(i, j int) float64 {
		if j == aCols+i {
			return 1
		}
		return 0
	})
	return anydiff.Add(matMul(a, n, aCols, placeA, total),
		matMul(b, n, bCols, placeB, total))
}

// expandRows spreads the rows of a packed batch out to
// one row per lane, inserting a zero row wherever the
// lane is marked absent.
func expandRows(c anyvec.Creator, in anydiff.Res, present []bool, cols int) anydiff.Res {
	var kept []int
	for i, p := range present {
		if p {
			kept = append(kept, i)
		}
	}
	sel := constMatrix(c, len(present), len(kept), func(i, j int) float64 {
		if kept[j] == i {
			return 1
		}
		return 0
	})
	a := &anydiff.Matrix{Data: sel, Rows: len(present), Cols: len(kept)}
	b := &anydiff.Matrix{Data: in, Rows: len(kept), Cols: cols}
	return anydiff.MatMul(false, false, a, b).Data
}

// scaleRows multiplies each row of a width-wide batch by
// the corresponding entry of scalers.
func scaleRows(c anyvec.Creator, in anydiff.Res, scalers anydiff.Res, n, width int) anydiff.Res {
	ones := onesRes(c, width)
	rep := matMul(scalers, n, 1, ones, width)
	return anydiff.Mul(in, rep)
}

// sumLanes sums a column of n per-lane values into one
// scalar.
func sumLanes(c anyvec.Creator, in anydiff.Res, n int) anydiff.Res {
	ones := &anydiff.Matrix{Data: onesRes(c, n), Rows: 1, Cols: n}
	col := &anydiff.Matrix{Data: in, Rows: n, Cols: 1}
	return anydiff.MatMul(false, false, ones, col).Data
}

// elemMax is a differentiable elementwise maximum.
func elemMax(a, b anydiff.Res, n int) anydiff.Res {
	return anydiff.Add(a, anynet.ReLU.Apply(anydiff.Sub(b, a), n))
}

// onesRes makes a constant vector of ones.
func onesRes(c anyvec.Creator, n int) anydiff.Res {
	v := c.MakeVector(n)
	v.AddScalar(c.MakeNumeric(1))
	return anydiff.NewConst(v)
}

// oneHotVector makes a one-hot vector of the given size.
func oneHotVector(c anyvec.Creator, idx, size int) anyvec.Vector {
	data := make([]float64, size)
	data[idx] = 1
	return c.MakeVectorData(c.MakeNumericList(data))
}
