package punctuation

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var r Readout
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeReadout)
}

// A Readout turns a decoder state, a glimpse, and a
// feedback embedding into output logits.
//
// The three inputs are projected to a common width and
// summed, a maxout over pairs halves the width, and two
// linear maps produce the logits through a bottleneck of
// the embedding width.
type Readout struct {
	StateDim  int
	EmbedDim  int
	VocabSize int

	StateTrans    *anynet.FC
	GlimpseTrans  *anynet.FC
	FeedbackTrans *anynet.FC

	// MaxoutBias is added to the merged sum before the
	// maxout, one entry per merged column.
	MaxoutBias *anydiff.Var

	// HiddenTrans maps the maxout output to the embedding
	// width.
	HiddenTrans *anynet.FC

	// OutTrans maps the bottleneck to the vocabulary.
	OutTrans *anynet.FC
}

// NewReadout creates a readout for decoder states of
// width stateDim, glimpses of width reprDim, feedback
// embeddings of width embedDim, and vocab output tokens.
// stateDim must be even.
func NewReadout(c anyvec.Creator, stateDim, reprDim, embedDim, vocab int,
	scale float64, rng *rand.Rand) *Readout {
	if stateDim%2 != 0 {
		panic("readout state size must be even")
	}
	res := &Readout{
		StateDim:      stateDim,
		EmbedDim:      embedDim,
		VocabSize:     vocab,
		StateTrans:    newFC(c, stateDim, stateDim, scale, rng),
		GlimpseTrans:  newFC(c, reprDim, stateDim, scale, rng),
		FeedbackTrans: newFC(c, embedDim, stateDim, scale, rng),
		MaxoutBias:    anydiff.NewVar(c.MakeVector(stateDim)),
		HiddenTrans:   newFC(c, stateDim/2, embedDim, scale, rng),
		OutTrans:      newFC(c, embedDim, vocab, scale, rng),
	}
	initZero(res.MaxoutBias)
	return res
}

// DeserializeReadout deserializes a Readout.
func DeserializeReadout(d []byte) (*Readout, error) {
	var stateDim, embedDim, vocab serializer.Int
	var res Readout
	err := serializer.DeserializeAny(d, &stateDim, &embedDim, &vocab,
		&res.StateTrans, &res.GlimpseTrans, &res.FeedbackTrans,
		&res.MaxoutBias, &res.HiddenTrans, &res.OutTrans)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Readout", err)
	}
	res.StateDim = int(stateDim)
	res.EmbedDim = int(embedDim)
	res.VocabSize = int(vocab)
	return &res, nil
}

// Apply computes logits for a batch of n lanes.
func (r *Readout) Apply(state, glimpse, feedback anydiff.Res, n int) anydiff.Res {
	c := r.MaxoutBias.Vector.Creator()
	merged := anydiff.Add(
		anydiff.Add(
			r.StateTrans.Apply(state, n),
			r.GlimpseTrans.Apply(glimpse, n),
		),
		r.FeedbackTrans.Apply(feedback, n),
	)
	bias := matMul(onesRes(c, n), n, 1, r.MaxoutBias, r.StateDim)
	merged = anydiff.Add(merged, bias)

	half := r.StateDim / 2
	evens := constMatrix(c, r.StateDim, half, func(i, j int) float64 {
		if i == 2*j {
			return 1
		}
		return 0
	})
	odds := constMatrix(c, r.StateDim, half, func(i, j int) float64 {
		if i == 2*j+1 {
			return 1
		}
		return 0
	})
	maxed := elemMax(
		matMul(merged, n, r.StateDim, evens, half),
		matMul(merged, n, r.StateDim, odds, half),
		n,
	)

	hidden := r.HiddenTrans.Apply(maxed, n)
	return r.OutTrans.Apply(hidden, n)
}

// Parameters returns the readout's parameters.
func (r *Readout) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{r.MaxoutBias}
	layers := []anynet.Layer{
		r.StateTrans, r.GlimpseTrans, r.FeedbackTrans,
		r.HiddenTrans, r.OutTrans,
	}
	for _, l := range layers {
		if p, ok := l.(anynet.Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Readout with the serializer package.
func (r *Readout) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.Readout"
}

// Serialize serializes the Readout.
func (r *Readout) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(r.StateDim),
		serializer.Int(r.EmbedDim),
		serializer.Int(r.VocabSize),
		r.StateTrans,
		r.GlimpseTrans,
		r.FeedbackTrans,
		r.MaxoutBias,
		r.HiddenTrans,
		r.OutTrans,
	)
}
