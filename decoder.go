package punctuation

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Decoder
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDecoder)
}

// A Feedback is the previous output token fed back into
// the decoder, or the absence of one at the first step.
type Feedback struct {
	Token int
	Known bool
}

// A Decoder emits target tokens conditioned on an encoded
// source, attending over the source at every step.
type Decoder struct {
	VocabSize    int
	EmbeddingDim int
	StateDim     int
	ReprDim      int

	// Embedding is the VocabSize-by-EmbeddingDim feedback
	// lookup table, row major.
	Embedding *anydiff.Var

	// Cell consumes the feedback embedding concatenated
	// with the glimpse.
	Cell *GRU

	// InitTrans maps the backward encoder state at the
	// first source position to the initial decoder state.
	InitTrans *anynet.FC

	Attention *ContentAttention
	Readout   *Readout
}

// NewDecoder creates a decoder over a target vocabulary
// of size vocab, attending to encoders with a
// per-direction state of width encState.
func NewDecoder(c anyvec.Creator, vocab, embedding, stateDim, encState int,
	scale float64, rng *rand.Rand) *Decoder {
	reprDim := 2 * encState
	res := &Decoder{
		VocabSize:    vocab,
		EmbeddingDim: embedding,
		StateDim:     stateDim,
		ReprDim:      reprDim,
		Embedding:    anydiff.NewVar(c.MakeVector(vocab * embedding)),
		Cell:         NewGRU(c, embedding+reprDim, stateDim, scale, rng),
		InitTrans:    newFC(c, encState, stateDim, scale, rng),
		Attention:    NewContentAttention(c, stateDim, reprDim, scale, rng),
		Readout:      NewReadout(c, stateDim, reprDim, embedding, vocab, scale, rng),
	}
	initGaussian(res.Embedding, scale, rng)
	return res
}

// DeserializeDecoder deserializes a Decoder.
func DeserializeDecoder(d []byte) (*Decoder, error) {
	var vocab, embedding, stateDim, reprDim serializer.Int
	var res Decoder
	err := serializer.DeserializeAny(d, &vocab, &embedding, &stateDim, &reprDim,
		&res.Embedding, &res.Cell, &res.InitTrans, &res.Attention, &res.Readout)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Decoder", err)
	}
	res.VocabSize = int(vocab)
	res.EmbeddingDim = int(embedding)
	res.StateDim = int(stateDim)
	res.ReprDim = int(reprDim)
	return &res, nil
}

// initialState derives the step-0 decoder state from the
// backward encoder state at the first source position.
func (d *Decoder) initialState(encoded anyseq.Seq, n int) anydiff.Res {
	c := encoded.Creator()
	first := anyseq.Tail(anyseq.Reverse(encoded))
	half := d.ReprDim / 2
	backward := takeCols(c, first, n, d.ReprDim, half, d.ReprDim)
	return anynet.Tanh.Apply(d.InitTrans.Apply(backward, n), n)
}

// embedFeedback looks up feedback embeddings for a batch.
// An unknown feedback embeds to zero.
func (d *Decoder) embedFeedback(fbs []Feedback) anydiff.Res {
	c := d.Embedding.Vector.Creator()
	n := len(fbs)
	oneHot := constMatrix(c, n, d.VocabSize, func(i, j int) float64 {
		if fbs[i].Known && fbs[i].Token == j {
			return 1
		}
		return 0
	})
	return matMul(oneHot, n, d.VocabSize, d.Embedding, d.EmbeddingDim)
}

// step runs one decoding step: attend from the current
// state, read out logits, and advance the cell.
func (d *Decoder) step(att *Attended, h anydiff.Res, fbs []Feedback,
	n int) (logits, nextState anydiff.Res) {
	c := d.Embedding.Vector.Creator()
	fbEmb := d.embedFeedback(fbs)
	glimpse, _ := att.Focus(h)
	logits = d.Readout.Apply(h, glimpse, fbEmb, n)
	in := concatCols(c, n, fbEmb, d.EmbeddingDim, glimpse, d.ReprDim)
	nextState = d.Cell.Step(h, in, n)
	return
}

// Cost computes the teacher-forced negative log
// likelihood of the targets, summed per lane over that
// lane's own length and averaged over lanes.
//
// There must be one target sequence per encoded lane, and
// every token must be in [0, VocabSize).
func (d *Decoder) Cost(encoded anyseq.Seq, targets [][]int) anydiff.Res {
	if len(encoded.Output()) == 0 {
		panic("cannot have empty input sequence")
	}
	n := len(encoded.Output()[0].Present)
	if len(targets) != n {
		panic(fmt.Sprintf("decoder: got %d target sequences for %d lanes",
			len(targets), n))
	}
	maxLen := 0
	for _, seq := range targets {
		for _, tok := range seq {
			if tok < 0 || tok >= d.VocabSize {
				panic(fmt.Sprintf("decoder: token %d out of range", tok))
			}
		}
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}

	c := encoded.Creator()
	att := d.Attention.Attend(encoded)
	h := d.initialState(encoded, n)
	fbs := make([]Feedback, n)
	var total anydiff.Res = anydiff.NewConst(c.MakeVector(n))
	for t := 0; t < maxLen; t++ {
		logits, next := d.step(att, h, fbs, n)
		logProbs := anynet.LogSoftmax.Apply(logits, n)
		picked := constMatrix(c, n, d.VocabSize, func(i, j int) float64 {
			if t < len(targets[i]) && targets[i][t] == j {
				return 1
			}
			return 0
		})
		perLane := matMul(anydiff.Mul(logProbs, picked), n, d.VocabSize,
			onesRes(c, d.VocabSize), 1)
		total = anydiff.Sub(total, perLane)
		for i := range fbs {
			if t < len(targets[i]) {
				fbs[i] = Feedback{Token: targets[i][t], Known: true}
			}
		}
		h = next
	}
	return anydiff.Scale(sumLanes(c, total, n), c.MakeNumeric(1/float64(n)))
}

// Generate samples one token sequence per lane, running
// every lane for exactly steps steps.
//
// Tokens are drawn from the softmax distribution at each
// step using rng; a nil rng is seeded automatically.
func (d *Decoder) Generate(encoded anyseq.Seq, steps int, rng *rand.Rand) [][]int {
	if len(encoded.Output()) == 0 {
		panic("cannot have empty input sequence")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	n := len(encoded.Output()[0].Present)
	c := encoded.Creator()

	att := d.Attention.Attend(encoded)
	h := d.initialState(encoded, n)
	fbs := make([]Feedback, n)
	res := make([][]int, n)
	for t := 0; t < steps; t++ {
		logits, next := d.step(att, h, fbs, n)
		noisy := logits.Output().Copy()
		noise := make([]float64, n*d.VocabSize)
		for i := range noise {
			noise[i] = -math.Log(-math.Log(rng.Float64()))
		}
		noisy.Add(c.MakeVectorData(c.MakeNumericList(noise)))
		for i := 0; i < n; i++ {
			lane := noisy.Slice(i*d.VocabSize, (i+1)*d.VocabSize)
			tok := anyvec.MaxIndex(lane)
			res[i] = append(res[i], tok)
			fbs[i] = Feedback{Token: tok, Known: true}
		}
		h = next
	}
	return res
}

// Parameters returns the decoder's parameters.
func (d *Decoder) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{d.Embedding}
	res = append(res, d.Cell.Parameters()...)
	res = append(res, d.InitTrans.Parameters()...)
	res = append(res, d.Attention.Parameters()...)
	res = append(res, d.Readout.Parameters()...)
	return res
}

// SerializerType returns the unique ID used to serialize
// a Decoder with the serializer package.
func (d *Decoder) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.Decoder"
}

// Serialize serializes the Decoder.
func (d *Decoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(d.VocabSize),
		serializer.Int(d.EmbeddingDim),
		serializer.Int(d.StateDim),
		serializer.Int(d.ReprDim),
		d.Embedding,
		d.Cell,
		d.InitTrans,
		d.Attention,
		d.Readout,
	)
}
