package punctuation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestAttentionWeights(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(1))
	att := NewContentAttention(c, 6, 8, 0.1, rng)

	lanes := [][]anyvec.Vector{
		randomVecs(c, rng, 4, 8),
		randomVecs(c, rng, 2, 8),
	}
	encoded := anyseq.ConstSeqList(c, lanes)
	query := anydiff.NewConst(randomVecs(c, rng, 1, 2*6)[0])

	_, weights := att.Attend(encoded).Focus(query)

	sums := make([]float64, 2)
	for step, batch := range weights.Output() {
		vals := vecData(batch.Packed)
		row := 0
		for lane, p := range batch.Present {
			if !p {
				continue
			}
			w := vals[row]
			row++
			if w < 0 {
				t.Errorf("step %d lane %d: negative weight %f", step, lane, w)
			}
			sums[lane] += w
		}
	}
	for lane, sum := range sums {
		if math.Abs(sum-1) > 1e-3 {
			t.Errorf("lane %d: weights sum to %f, expected 1", lane, sum)
		}
	}
}

func TestAttentionGlimpse(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(2))
	att := NewContentAttention(c, 6, 8, 0.1, rng)

	lanes := [][]anyvec.Vector{
		randomVecs(c, rng, 4, 8),
		randomVecs(c, rng, 2, 8),
	}
	encoded := anyseq.ConstSeqList(c, lanes)
	query := anydiff.NewConst(randomVecs(c, rng, 1, 2*6)[0])

	glimpse, weights := att.Attend(encoded).Focus(query)

	expected := make([]float64, 2*8)
	for step, batch := range weights.Output() {
		vals := vecData(batch.Packed)
		row := 0
		for lane, p := range batch.Present {
			if !p {
				continue
			}
			w := vals[row]
			row++
			pos := vecData(lanes[lane][step])
			for i, x := range pos {
				expected[lane*8+i] += w * x
			}
		}
	}
	actual := vecData(glimpse.Output())
	if len(actual) != len(expected) {
		t.Fatalf("glimpse length %d should be %d", len(actual), len(expected))
	}
	for i := range expected {
		if math.Abs(actual[i]-expected[i]) > 1e-3 {
			t.Errorf("glimpse value %d is %f, expected %f", i, actual[i],
				expected[i])
		}
	}
}

func TestAttentionEmptyInput(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(3))
	att := NewContentAttention(c, 6, 8, 0.1, rng)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	att.Attend(anyseq.ConstSeqList(c, [][]anyvec.Vector{}))
}

func TestAttentionEmptyLane(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(4))
	att := NewContentAttention(c, 6, 8, 0.1, rng)

	lanes := [][]anyvec.Vector{
		randomVecs(c, rng, 2, 8),
		{},
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	att.Attend(anyseq.ConstSeqList(c, lanes))
}
