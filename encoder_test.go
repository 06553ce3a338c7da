package punctuation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestWordEncoderShapes(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(1))
	enc := NewWordEncoder(c, 10, 4, 8, 0.1, rng)

	out := enc.Encode([][]int{{1, 2, 0}, {3, 4, 5, 6, 7}}).Output()
	if len(out) != 5 {
		t.Fatalf("got %d timesteps, expected 5", len(out))
	}
	for i, batch := range out {
		expected := batch.NumPresent() * 16
		if batch.Packed.Len() != expected {
			t.Errorf("step %d: packed length %d should be %d", i,
				batch.Packed.Len(), expected)
		}
	}
	if out[2].NumPresent() != 2 || out[3].NumPresent() != 1 {
		t.Error("bad lane structure")
	}
}

func TestWordEncoderBatchInvariance(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(2))
	enc := NewWordEncoder(c, 10, 4, 8, 0.1, rng)

	short := []int{1, 2, 0}
	long := []int{3, 4, 5, 6, 7}
	batched := enc.Encode([][]int{short, long}).Output()
	alone := enc.Encode([][]int{short}).Output()

	width := 16
	for step := range alone {
		got := vecData(batched[step].Packed)[:width]
		want := vecData(alone[step].Packed)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-3 {
				t.Fatalf("step %d: value %d is %f, expected %f", step, i,
					got[i], want[i])
			}
		}
	}
}

func TestAudioEncoderShapes(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(3))
	enc := NewAudioEncoder(c, 3, 4, 8, 0.1, rng)

	frames := [][]anyvec.Vector{
		randomVecs(c, rng, 6, 3),
		randomVecs(c, rng, 4, 3),
	}
	wordEnds := [][]int{{1, 3, 5}, {0, 2}}
	out := enc.Encode(frames, wordEnds).Output()
	if len(out) != 3 {
		t.Fatalf("got %d timesteps, expected 3", len(out))
	}
	for i, batch := range out {
		expected := batch.NumPresent() * 16
		if batch.Packed.Len() != expected {
			t.Errorf("step %d: packed length %d should be %d", i,
				batch.Packed.Len(), expected)
		}
	}
	if out[1].NumPresent() != 2 || out[2].NumPresent() != 1 {
		t.Error("bad lane structure")
	}
}

func TestAudioEncoderEmptyLanes(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(8))
	enc := NewAudioEncoder(c, 3, 4, 8, 0.1, rng)

	frames := [][]anyvec.Vector{
		randomVecs(c, rng, 4, 3),
		randomVecs(c, rng, 2, 3),
	}
	out := enc.Encode(frames, [][]int{{1, 3}, {}}).Output()
	if len(out) != 2 {
		t.Fatalf("got %d timesteps, expected 2", len(out))
	}
	for i, batch := range out {
		if batch.NumPresent() != 1 || !batch.Present[0] {
			t.Errorf("step %d: only lane 0 should be present", i)
		}
		if batch.Packed.Len() != 16 {
			t.Errorf("step %d: packed length %d should be 16", i,
				batch.Packed.Len())
		}
	}

	// A lane with no frames and no words should drop out
	// without disturbing the others.
	out = enc.Encode([][]anyvec.Vector{
		randomVecs(c, rng, 4, 3),
		{},
	}, [][]int{{0, 2}, {}}).Output()
	if len(out) != 2 {
		t.Fatalf("got %d timesteps, expected 2", len(out))
	}
	for i, batch := range out {
		if batch.NumPresent() != 1 || !batch.Present[0] {
			t.Errorf("step %d: only lane 0 should be present", i)
		}
	}
}

func TestAudioEncoderBadWordEnd(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(4))
	enc := NewAudioEncoder(c, 3, 4, 8, 0.1, rng)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	enc.Encode([][]anyvec.Vector{randomVecs(c, rng, 4, 3)}, [][]int{{1, 4}})
}

func TestGatherAtEnds(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(5))
	frames := [][]anyvec.Vector{
		randomVecs(c, rng, 3, 2),
		randomVecs(c, rng, 2, 2),
	}
	seq := anyseq.ConstSeqList(c, frames)
	flat := flattenSeq(seq, 2)
	gathered := gatherAtEnds(c, flat, 3, 2, [][]int{{2, 0}, {1}}).Output()

	if len(gathered) != 2 {
		t.Fatalf("got %d timesteps, expected 2", len(gathered))
	}
	step0 := vecData(gathered[0].Packed)
	expect0 := append(vecData(frames[0][2]), vecData(frames[1][1])...)
	step1 := vecData(gathered[1].Packed)
	expect1 := vecData(frames[0][0])
	for i, x := range expect0 {
		if math.Abs(step0[i]-x) > 1e-4 {
			t.Errorf("step 0 value %d is %f, expected %f", i, step0[i], x)
		}
	}
	for i, x := range expect1 {
		if math.Abs(step1[i]-x) > 1e-4 {
			t.Errorf("step 1 value %d is %f, expected %f", i, step1[i], x)
		}
	}
}

func TestFuseRepresentations(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(6))
	words := NewWordEncoder(c, 10, 4, 8, 0.1, rng)
	audio := NewAudioEncoder(c, 3, 4, 8, 0.1, rng)

	wordOut := words.Encode([][]int{{1, 2, 0}, {3, 4}})
	audioOut := audio.Encode([][]anyvec.Vector{
		randomVecs(c, rng, 6, 3),
		randomVecs(c, rng, 4, 3),
	}, [][]int{{1, 3, 5}, {0, 2}})

	fused := FuseRepresentations(wordOut, audioOut).Output()
	for step, batch := range fused {
		a := vecData(wordOut.Output()[step].Packed)
		b := vecData(audioOut.Output()[step].Packed)
		got := vecData(batch.Packed)
		for i := range got {
			want := math.Max(a[i], b[i])
			if math.Abs(got[i]-want) > 1e-4 {
				t.Errorf("step %d value %d is %f, expected %f", step, i,
					got[i], want)
			}
		}
	}
}

func TestFuseMismatchPanics(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	rng := rand.New(rand.NewSource(7))
	enc := NewWordEncoder(c, 10, 4, 8, 0.1, rng)

	a := enc.Encode([][]int{{1, 2, 0}})
	b := enc.Encode([][]int{{1, 2}})
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	FuseRepresentations(a, b)
}
