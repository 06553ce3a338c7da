package punctuation

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var a ContentAttention
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeContentAttention)
}

// ContentAttention scores each encoded position against a
// decoder state and produces a glimpse, the weighted sum
// of the positions.
//
// Energies come from a small network: query and position
// are projected into a shared match space, summed, passed
// through a tanh, and reduced to one scalar.
// This is the content-based mechanism from
// https://arxiv.org/abs/1409.0473.
type ContentAttention struct {
	MatchDim int
	ReprDim  int

	// QueryTrans projects decoder states into the match
	// space.
	QueryTrans *anynet.FC

	// EncTrans projects encoded positions into the match
	// space.
	EncTrans *anynet.FC

	// OutTrans turns a match-space sum into one energy.
	OutTrans anynet.Layer
}

// NewContentAttention creates an attention mechanism for
// decoder states of width stateDim and encoded positions
// of width reprDim.
// The match space has width stateDim.
func NewContentAttention(c anyvec.Creator, stateDim, reprDim int, scale float64,
	rng *rand.Rand) *ContentAttention {
	return &ContentAttention{
		MatchDim:   stateDim,
		ReprDim:    reprDim,
		QueryTrans: newFC(c, stateDim, stateDim, scale, rng),
		EncTrans:   newFC(c, reprDim, stateDim, scale, rng),
		OutTrans: anynet.Net{
			anynet.Tanh,
			newFC(c, stateDim, 1, scale, rng),
		},
	}
}

// DeserializeContentAttention deserializes a
// ContentAttention.
func DeserializeContentAttention(d []byte) (*ContentAttention, error) {
	var matchDim, reprDim serializer.Int
	var out anynet.Net
	var res ContentAttention
	err := serializer.DeserializeAny(d, &matchDim, &reprDim, &res.QueryTrans,
		&res.EncTrans, &out)
	if err != nil {
		return nil, essentials.AddCtx("deserialize ContentAttention", err)
	}
	res.MatchDim = int(matchDim)
	res.ReprDim = int(reprDim)
	res.OutTrans = out
	return &res, nil
}

// Attend precomputes the position projections for a batch
// of encoded sequences, so that repeated Focus calls only
// pay for the query-dependent part.
//
// The batch must have at least one timestep and every
// lane must be non-empty; attending over nothing has no
// meaningful output and panics.
func (a *ContentAttention) Attend(encoded anyseq.Seq) *Attended {
	outs := encoded.Output()
	if len(outs) == 0 {
		panic("cannot have empty input sequence")
	}
	if outs[0].NumPresent() != len(outs[0].Present) {
		panic("cannot attend over an empty lane")
	}
	proj := anyseq.Map(encoded, func(v anydiff.Res, n int) anydiff.Res {
		return a.EncTrans.Apply(v, n)
	})
	return &Attended{
		att:     a,
		encoded: encoded,
		proj:    proj,
		n:       len(outs[0].Present),
	}
}

// Parameters returns the mechanism's parameters.
func (a *ContentAttention) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range []anynet.Layer{a.QueryTrans, a.EncTrans, a.OutTrans} {
		if p, ok := l.(anynet.Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a ContentAttention with the serializer package.
func (a *ContentAttention) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.ContentAttention"
}

// Serialize serializes the ContentAttention.
func (a *ContentAttention) Serialize() ([]byte, error) {
	net, ok := a.OutTrans.(anynet.Net)
	if !ok {
		net = anynet.Net{a.OutTrans}
	}
	return serializer.SerializeAny(
		serializer.Int(a.MatchDim),
		serializer.Int(a.ReprDim),
		a.QueryTrans,
		a.EncTrans,
		net,
	)
}

// Attended is a batch of encoded sequences prepared for
// attention.
type Attended struct {
	att     *ContentAttention
	encoded anyseq.Seq
	proj    anyseq.Seq

	n int
}

// NumLanes returns the batch size.
func (a *Attended) NumLanes() int {
	return a.n
}

// Focus attends with a batch of queries, one row per
// lane.
//
// It returns the glimpses, one ReprDim row per lane, and
// the attention weights over the encoded positions.
// Each lane's weights are non-negative and sum to one
// over that lane's own length.
func (a *Attended) Focus(query anydiff.Res) (glimpse anydiff.Res, weights anyseq.Seq) {
	c := a.encoded.Creator()
	projQuery := a.att.QueryTrans.Apply(query, a.n)
	energyBlock := &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			energy := a.att.OutTrans.Apply(anydiff.Add(in, state), n)
			return energy, state
		},
		MakeStart: func(n int) anydiff.Res {
			if n != a.n {
				panic("bad state size")
			}
			return projQuery
		},
	}
	energies := anyrnn.Map(a.proj, energyBlock)
	weights = maskedSoftmax(energies)
	weighted := anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		return scaleRows(c, v[1], v[0], n, a.att.ReprDim)
	}, weights, a.encoded)
	glimpse = anyseq.SumEach(weighted)
	return
}
