package punctuation

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var b BidirGRU
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBidirGRU)
	var w WordEncoder
	serializer.RegisterTypedDeserializer(w.SerializerType(), DeserializeWordEncoder)
	var a AudioEncoder
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeAudioEncoder)
}

// A BidirGRU runs two independent GRUs over a sequence,
// one in natural order and one in reverse, and
// concatenates their outputs per position.
// Each direction has its own input fork and recurrent
// parameters.
type BidirGRU struct {
	Forward  *GRU
	Backward *GRU
}

// NewBidirGRU creates a bidirectional pass for inputs of
// width inDim with a per-direction state of width dim.
func NewBidirGRU(c anyvec.Creator, inDim, dim int, scale float64, rng *rand.Rand) *BidirGRU {
	return &BidirGRU{
		Forward:  NewGRU(c, inDim, dim, scale, rng),
		Backward: NewGRU(c, inDim, dim, scale, rng),
	}
}

// DeserializeBidirGRU deserializes a BidirGRU.
func DeserializeBidirGRU(d []byte) (*BidirGRU, error) {
	var res BidirGRU
	err := serializer.DeserializeAny(d, &res.Forward, &res.Backward)
	if err != nil {
		return nil, essentials.AddCtx("deserialize BidirGRU", err)
	}
	return &res, nil
}

// OutDim returns the concatenated output width.
func (b *BidirGRU) OutDim() int {
	return b.Forward.Dim + b.Backward.Dim
}

// Apply runs both directions over the sequence.
//
// Sequences of length zero produce no outputs and do not
// fail; shorter sequences in the batch simply stop
// contributing once they end.
func (b *BidirGRU) Apply(in anyseq.Seq) anyseq.Seq {
	c := in.Creator()
	return anyseq.Pool(in, func(in anyseq.Seq) anyseq.Seq {
		forw := anyrnn.Map(in, b.Forward.Block(nil))
		back := anyseq.Reverse(anyrnn.Map(anyseq.Reverse(in), b.Backward.Block(nil)))
		return anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
			return concatCols(c, n, v[0], b.Forward.Dim, v[1], b.Backward.Dim)
		}, forw, back)
	})
}

// Parameters returns the parameters of both directions.
func (b *BidirGRU) Parameters() []*anydiff.Var {
	return append(b.Forward.Parameters(), b.Backward.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a BidirGRU with the serializer package.
func (b *BidirGRU) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.BidirGRU"
}

// Serialize serializes the BidirGRU.
func (b *BidirGRU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(b.Forward, b.Backward)
}

// A WordEncoder turns batches of word token sequences
// into per-word representations.
type WordEncoder struct {
	VocabSize    int
	EmbeddingDim int

	// Embedding is the VocabSize-by-EmbeddingDim lookup
	// table, row major.
	Embedding *anydiff.Var

	Bidir *BidirGRU
}

// NewWordEncoder creates a word encoder.
func NewWordEncoder(c anyvec.Creator, vocab, embedding, state int, scale float64,
	rng *rand.Rand) *WordEncoder {
	res := &WordEncoder{
		VocabSize:    vocab,
		EmbeddingDim: embedding,
		Embedding:    anydiff.NewVar(c.MakeVector(vocab * embedding)),
		Bidir:        NewBidirGRU(c, embedding, state, scale, rng),
	}
	initGaussian(res.Embedding, scale, rng)
	return res
}

// DeserializeWordEncoder deserializes a WordEncoder.
func DeserializeWordEncoder(d []byte) (*WordEncoder, error) {
	var vocab, embedding serializer.Int
	var res WordEncoder
	err := serializer.DeserializeAny(d, &vocab, &embedding, &res.Embedding, &res.Bidir)
	if err != nil {
		return nil, essentials.AddCtx("deserialize WordEncoder", err)
	}
	res.VocabSize = int(vocab)
	res.EmbeddingDim = int(embedding)
	return &res, nil
}

// Encode produces the representation of a batch of word
// sequences, one output vector per word.
//
// Tokens must be in [0, VocabSize); anything else is a
// caller error and panics.
func (w *WordEncoder) Encode(words [][]int) anyseq.Seq {
	c := w.Embedding.Vector.Creator()
	oneHots := make([][]anyvec.Vector, len(words))
	for i, seq := range words {
		oneHots[i] = make([]anyvec.Vector, len(seq))
		for j, tok := range seq {
			if tok < 0 || tok >= w.VocabSize {
				panic(fmt.Sprintf("word encoder: token %d out of range", tok))
			}
			oneHots[i][j] = oneHotVector(c, tok, w.VocabSize)
		}
	}
	in := anyseq.ConstSeqList(c, oneHots)
	embedded := anyseq.Map(in, func(v anydiff.Res, n int) anydiff.Res {
		return matMul(v, n, w.VocabSize, w.Embedding, w.EmbeddingDim)
	})
	return w.Bidir.Apply(embedded)
}

// Parameters returns the encoder's parameters.
func (w *WordEncoder) Parameters() []*anydiff.Var {
	return append([]*anydiff.Var{w.Embedding}, w.Bidir.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a WordEncoder with the serializer package.
func (w *WordEncoder) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.WordEncoder"
}

// Serialize serializes the WordEncoder.
func (w *WordEncoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(w.VocabSize),
		serializer.Int(w.EmbeddingDim),
		w.Embedding,
		w.Bidir,
	)
}

// An AudioEncoder turns batches of audio feature frames
// into per-word representations.
//
// Encoding runs in two nested bidirectional stages: the
// first pass embeds raw frames at frame rate, the output
// is re-indexed at each word's ending frame, and the
// second pass encodes the resulting word-rate sequence.
type AudioEncoder struct {
	FeatureSize  int
	EmbeddingDim int

	// Embedding is the frame-rate pass; its input fork is
	// the linear projection of raw feature frames.
	Embedding *BidirGRU

	// Bidir is the word-rate pass over gathered
	// embeddings.
	Bidir *BidirGRU
}

// NewAudioEncoder creates an audio encoder.
func NewAudioEncoder(c anyvec.Creator, features, embedding, state int, scale float64,
	rng *rand.Rand) *AudioEncoder {
	return &AudioEncoder{
		FeatureSize:  features,
		EmbeddingDim: embedding,
		Embedding:    NewBidirGRU(c, features, embedding, scale, rng),
		Bidir:        NewBidirGRU(c, 2*embedding, state, scale, rng),
	}
}

// DeserializeAudioEncoder deserializes an AudioEncoder.
func DeserializeAudioEncoder(d []byte) (*AudioEncoder, error) {
	var features, embedding serializer.Int
	var res AudioEncoder
	err := serializer.DeserializeAny(d, &features, &embedding, &res.Embedding, &res.Bidir)
	if err != nil {
		return nil, essentials.AddCtx("deserialize AudioEncoder", err)
	}
	res.FeatureSize = int(features)
	res.EmbeddingDim = int(embedding)
	return &res, nil
}

// Encode produces the word-rate representation of a batch
// of frame sequences.
//
// wordEnds gives, per lane, the ending frame index of
// each word; indices must be valid positions in that
// lane's frame sequence.
func (a *AudioEncoder) Encode(frames [][]anyvec.Vector, wordEnds [][]int) anyseq.Seq {
	if len(frames) != len(wordEnds) {
		panic(fmt.Sprintf("audio encoder: got %d frame sequences but %d word-end sequences",
			len(frames), len(wordEnds)))
	}
	var c anyvec.Creator
	for i, seq := range frames {
		for _, frame := range seq {
			if frame.Len() != a.FeatureSize {
				panic(fmt.Sprintf("audio encoder: frame width %d should be %d",
					frame.Len(), a.FeatureSize))
			}
			c = frame.Creator()
		}
		for _, end := range wordEnds[i] {
			if end < 0 || end >= len(seq) {
				panic(fmt.Sprintf("audio encoder: word end %d out of range", end))
			}
		}
	}
	if c == nil {
		c = a.Embedding.Forward.StateTrans.Vector.Creator()
	}

	frameSeq := anyseq.ConstSeqList(c, frames)
	frameRep := a.Embedding.Apply(frameSeq)

	width := a.Embedding.OutDim()
	frameCount := len(frameRep.Output())
	flat := flattenSeq(frameRep, width)
	wordSeq := gatherAtEnds(c, flat, frameCount, width, wordEnds)
	return a.Bidir.Apply(wordSeq)
}

// Parameters returns the encoder's parameters.
func (a *AudioEncoder) Parameters() []*anydiff.Var {
	return append(a.Embedding.Parameters(), a.Bidir.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// an AudioEncoder with the serializer package.
func (a *AudioEncoder) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.AudioEncoder"
}

// Serialize serializes the AudioEncoder.
func (a *AudioEncoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(a.FeatureSize),
		serializer.Int(a.EmbeddingDim),
		a.Embedding,
		a.Bidir,
	)
}

// flattenSeq lays every timestep of each lane side by
// side, producing one row of len(seq)*width values per
// lane.
// Positions past a lane's length stay zero, and a lane
// with no timesteps at all becomes an all-zero row, so
// the result always has one row per lane.
func flattenSeq(s anyseq.Seq, width int) anydiff.Res {
	outs := s.Output()
	c := s.Creator()
	total := len(outs) * width
	if total == 0 {
		return anydiff.NewConst(c.MakeVector(0))
	}
	step := 0
	accum := &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			place := constMatrix(c, width, total, func(i, j int) float64 {
				if j == step*width+i {
					return 1
				}
				return 0
			})
			step++
			next := anydiff.Add(state, matMul(in, n, width, place, total))
			return next, next
		},
		MakeStart: func(n int) anydiff.Res {
			return anydiff.NewConst(c.MakeVector(n * total))
		},
	}
	res := anyseq.Tail(anyrnn.Map(s, accum))
	p0 := outs[0].Present
	if outs[0].NumPresent() < len(p0) {
		res = expandRows(c, res, p0, total)
	}
	return res
}

// gatherAtEnds builds a word-rate sequence by selecting,
// for each word position, the flattened frame row block
// at that word's ending frame.
func gatherAtEnds(c anyvec.Creator, flat anydiff.Res, frameCount, width int,
	wordEnds [][]int) anyseq.Seq {
	oneHots := make([][]anyvec.Vector, len(wordEnds))
	for i, ends := range wordEnds {
		oneHots[i] = make([]anyvec.Vector, len(ends))
		for j, end := range ends {
			oneHots[i][j] = oneHotVector(c, end, frameCount)
		}
	}
	idxSeq := anyseq.ConstSeqList(c, oneHots)
	if len(idxSeq.Output()) == 0 {
		return idxSeq
	}

	expand := constMatrix(c, frameCount, frameCount*width, func(i, j int) float64 {
		if j >= i*width && j < (i+1)*width {
			return 1
		}
		return 0
	})
	stack := constMatrix(c, frameCount*width, width, func(i, j int) float64 {
		if i%width == j {
			return 1
		}
		return 0
	})
	return anyrnn.Map(idxSeq, &anyrnn.FuncBlock{
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			sel := matMul(in, n, frameCount, expand, frameCount*width)
			chosen := anydiff.Mul(state, sel)
			return matMul(chosen, n, frameCount*width, stack, width), state
		},
		MakeStart: func(n int) anydiff.Res {
			if flat.Output().Len() != n*frameCount*width {
				panic("bad state size")
			}
			return flat
		},
	})
}

// FuseRepresentations merges two aligned representations
// with an elementwise maximum.
//
// Both sequences must have identical lane structure and
// width; a disagreement means the encoders were not
// aligned to the same word positions and panics.
func FuseRepresentations(a, b anyseq.Seq) anyseq.Seq {
	aOut, bOut := a.Output(), b.Output()
	if len(aOut) != len(bOut) {
		panic(fmt.Sprintf("fuse: length %d does not match %d", len(aOut), len(bOut)))
	}
	for i, batch := range aOut {
		other := bOut[i]
		if batch.Packed.Len() != other.Packed.Len() ||
			batch.NumPresent() != other.NumPresent() {
			panic(fmt.Sprintf("fuse: shape mismatch at position %d", i))
		}
		for lane, p := range batch.Present {
			if p != other.Present[lane] {
				panic(fmt.Sprintf("fuse: lane %d mismatch at position %d", lane, i))
			}
		}
	}
	return anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		return elemMax(v[0], v[1], n)
	}, a, b)
}
