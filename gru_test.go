package punctuation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestGRUStep(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(7))
	g := NewGRU(c, 3, 5, 0.1, rng)

	n := 2
	state := anydiff.NewConst(c.MakeVector(n * 5))
	in := anydiff.NewConst(randomVecs(c, rng, 1, n*3)[0])
	out := g.Step(state, in, n)

	if out.Output().Len() != n*5 {
		t.Fatalf("output length %d should be %d", out.Output().Len(), n*5)
	}
	changed := false
	for _, x := range vecData(out.Output()) {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatal("non-finite output")
		}
		if x != 0 {
			changed = true
		}
	}
	if !changed {
		t.Error("step left the zero state unchanged")
	}
}

func TestGRUDeterminism(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	a := NewGRU(c, 4, 6, 0.1, rand.New(rand.NewSource(3)))
	b := NewGRU(c, 4, 6, 0.1, rand.New(rand.NewSource(3)))

	pa, pb := a.Parameters(), b.Parameters()
	if len(pa) != len(pb) {
		t.Fatal("parameter count mismatch")
	}
	for i, v := range pa {
		da, db := vecData(v.Vector), vecData(pb[i].Vector)
		for j := range da {
			if da[j] != db[j] {
				t.Fatalf("parameter %d differs at %d", i, j)
			}
		}
	}
}

func TestGRUOrthogonalInit(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	g := NewGRU(c, 2, 4, 0.1, rand.New(rand.NewSource(5)))

	// Rows of the candidate matrix should be orthonormal.
	data := vecData(g.StateTrans.Vector)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dot := 0.0
			for k := 0; k < 4; k++ {
				dot += data[i*4+k] * data[j*4+k]
			}
			expected := 0.0
			if i == j {
				expected = 1
			}
			if math.Abs(dot-expected) > 1e-3 {
				t.Errorf("rows %d,%d: dot product %f should be %f", i, j, dot, expected)
			}
		}
	}
}
