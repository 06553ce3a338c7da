package punctuation

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
)

// maskedSoftmax normalizes each lane's energies across
// time, treating the whole lane as one distribution.
//
// Because absent timesteps never enter a lane's batch,
// shorter lanes are normalized over their own length
// only; positions past a lane's end are exactly zero in
// the output.
func maskedSoftmax(s anyseq.Seq) anyseq.Seq {
	return anyseq.Pool(s, func(s anyseq.Seq) anyseq.Seq {
		maxes := maxPerLane(s)
		exps := subAndExp(s, maxes)
		return anyseq.Pool(exps, func(exps anyseq.Seq) anyseq.Seq {
			sum := anyseq.SumEach(exps)
			c := sum.Output().Creator()
			ones := c.MakeVector(sum.Output().Len())
			ones.AddScalar(c.MakeNumeric(1))
			scalers := anydiff.Div(anydiff.NewConst(ones), sum)
			return applyScalers(exps, scalers)
		})
	})
}

// maxPerLane computes the maximum energy of each lane,
// used to keep the exponentials in range.
func maxPerLane(rawOuts anyseq.Seq) anyvec.Vector {
	maxBlock := &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			running := in.Output().Copy()
			anyvec.ElemMax(running, state.Output())
			return nil, anydiff.NewConst(running)
		},
		MakeStart: func(n int) anydiff.Res {
			c := rawOuts.Creator()
			outs := c.MakeVector(n)
			// Below any plausible energy, so the first
			// timestep always wins the max.
			outs.AddScalar(c.MakeNumeric(-10000))
			return anydiff.NewConst(outs)
		},
	}
	return anyseq.Tail(anyrnn.Map(rawOuts, maxBlock)).Output()
}

// subAndExp subtracts each lane's maximum and then
// exponentiates.
func subAndExp(rawOuts anyseq.Seq, maxes anyvec.Vector) anyseq.Seq {
	expBlock := &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			return anydiff.Exp(anydiff.Sub(in, state)), state
		},
		MakeStart: func(n int) anydiff.Res {
			if n != maxes.Len() {
				panic("bad state size")
			}
			return anydiff.NewConst(maxes)
		},
	}
	return anyrnn.Map(rawOuts, expBlock)
}

// applyScalers multiplies every timestep of a lane by
// that lane's scaler.
func applyScalers(s anyseq.Seq, scalers anydiff.Res) anyseq.Seq {
	scaleBlock := &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			return anydiff.Mul(in, state), state
		},
		MakeStart: func(n int) anydiff.Res {
			if n != scalers.Output().Len() {
				panic("bad state size")
			}
			return scalers
		},
	}
	return anyrnn.Map(s, scaleBlock)
}
