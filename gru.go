package punctuation

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g GRU
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGRU)
}

// A GRU is a gated recurrent cell together with its input
// fork.
//
// The fork is split into two affine maps for efficiency:
// GateIn drives the reset and update gates, CellIn drives
// the candidate state.
// The recurrent matrices StateGates and StateTrans are
// initialized orthogonally; the fork carries the biases.
type GRU struct {
	InDim int
	Dim   int

	GateIn *anynet.FC
	CellIn *anynet.FC

	// StateGates is Dim-by-2*Dim, row major, with reset
	// columns first and update columns second.
	StateGates *anydiff.Var

	// StateTrans is the Dim-by-Dim candidate matrix.
	StateTrans *anydiff.Var
}

// NewGRU creates a GRU for inputs of width inDim and a
// state of width dim.
func NewGRU(c anyvec.Creator, inDim, dim int, scale float64, rng *rand.Rand) *GRU {
	res := &GRU{
		InDim:      inDim,
		Dim:        dim,
		GateIn:     newFC(c, inDim, 2*dim, scale, rng),
		CellIn:     newFC(c, inDim, dim, scale, rng),
		StateGates: anydiff.NewVar(c.MakeVector(dim * 2 * dim)),
		StateTrans: anydiff.NewVar(c.MakeVector(dim * dim)),
	}
	initOrthogonal(res.StateGates, dim, 2*dim, rng)
	initOrthogonal(res.StateTrans, dim, dim, rng)
	return res
}

// DeserializeGRU deserializes a GRU.
func DeserializeGRU(d []byte) (*GRU, error) {
	var inDim, dim serializer.Int
	var res GRU
	err := serializer.DeserializeAny(d, &inDim, &dim, &res.GateIn, &res.CellIn,
		&res.StateGates, &res.StateTrans)
	if err != nil {
		return nil, essentials.AddCtx("deserialize GRU", err)
	}
	res.InDim = int(inDim)
	res.Dim = int(dim)
	return &res, nil
}

// Step advances a batch of n states by one timestep.
func (g *GRU) Step(state, in anydiff.Res, n int) anydiff.Res {
	c := state.Output().Creator()
	gates := anynet.Sigmoid.Apply(anydiff.Add(
		g.GateIn.Apply(in, n),
		matMul(state, n, g.Dim, g.StateGates, 2*g.Dim),
	), n)
	reset := takeCols(c, gates, n, 2*g.Dim, 0, g.Dim)
	update := takeCols(c, gates, n, 2*g.Dim, g.Dim, 2*g.Dim)
	cand := anynet.Tanh.Apply(anydiff.Add(
		g.CellIn.Apply(in, n),
		matMul(anydiff.Mul(reset, state), n, g.Dim, g.StateTrans, g.Dim),
	), n)
	return anydiff.Add(state, anydiff.Mul(update, anydiff.Sub(cand, state)))
}

// Block wraps the cell as an RNN block.
//
// The start argument produces the step-0 state batch; if
// it is nil, the state starts at zero.
func (g *GRU) Block(start func(n int) anydiff.Res) *anyrnn.FuncBlock {
	if start == nil {
		start = func(n int) anydiff.Res {
			c := g.StateTrans.Vector.Creator()
			return anydiff.NewConst(c.MakeVector(n * g.Dim))
		}
	}
	return &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			next := g.Step(state, in, n)
			return next, next
		},
		MakeStart: start,
	}
}

// Parameters returns the cell's parameters.
func (g *GRU) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{g.StateGates, g.StateTrans}
	for _, l := range []anynet.Layer{g.GateIn, g.CellIn} {
		if p, ok := l.(anynet.Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a GRU with the serializer package.
func (g *GRU) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.GRU"
}

// Serialize serializes the GRU.
func (g *GRU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(g.InDim),
		serializer.Int(g.Dim),
		g.GateIn,
		g.CellIn,
		g.StateGates,
		g.StateTrans,
	)
}
