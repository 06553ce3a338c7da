package punctuation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestReadoutApply(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(1))
	r := NewReadout(c, 4, 6, 3, 5, 0.1, rng)

	n := 2
	state := randomVecs(c, rng, 1, n*4)[0]
	glimpse := randomVecs(c, rng, 1, n*6)[0]
	feedback := randomVecs(c, rng, 1, n*3)[0]

	out := r.Apply(anydiff.NewConst(state), anydiff.NewConst(glimpse),
		anydiff.NewConst(feedback), n)
	if out.Output().Len() != n*5 {
		t.Fatalf("output length %d should be %d", out.Output().Len(), n*5)
	}

	merged := applyFC(vecData(r.StateTrans.Weights.Vector),
		vecData(r.StateTrans.Biases.Vector), vecData(state), n, 4, 4)
	glim := applyFC(vecData(r.GlimpseTrans.Weights.Vector),
		vecData(r.GlimpseTrans.Biases.Vector), vecData(glimpse), n, 6, 4)
	feed := applyFC(vecData(r.FeedbackTrans.Weights.Vector),
		vecData(r.FeedbackTrans.Biases.Vector), vecData(feedback), n, 3, 4)
	bias := vecData(r.MaxoutBias.Vector)
	for i := range merged {
		merged[i] += glim[i] + feed[i] + bias[i%4]
	}

	maxed := make([]float64, n*2)
	for i := 0; i < n; i++ {
		for j := 0; j < 2; j++ {
			maxed[i*2+j] = math.Max(merged[i*4+2*j], merged[i*4+2*j+1])
		}
	}
	hidden := applyFC(vecData(r.HiddenTrans.Weights.Vector),
		vecData(r.HiddenTrans.Biases.Vector), maxed, n, 2, 3)
	expected := applyFC(vecData(r.OutTrans.Weights.Vector),
		vecData(r.OutTrans.Biases.Vector), hidden, n, 3, 5)

	actual := vecData(out.Output())
	for i := range expected {
		if math.Abs(actual[i]-expected[i]) > 1e-3 {
			t.Errorf("logit %d is %f, expected %f", i, actual[i], expected[i])
		}
	}
}

func TestReadoutOddStatePanics(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(2))
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewReadout(c, 5, 6, 3, 5, 0.1, rng)
}
