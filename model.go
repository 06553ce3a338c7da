package punctuation

import (
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// A SourceBatch is one batch of source utterances.
// Words carries token sequences, Audio carries feature
// frame sequences, and WordEnds gives each word's ending
// frame index in its lane's Audio sequence.
// Only the fields the model's modality needs are read.
type SourceBatch struct {
	Words    [][]int
	Audio    [][]anyvec.Vector
	WordEnds [][]int
}

// A Model is a complete encoder-decoder punctuation
// model.
// Depending on the modality, Words, Audio, or both
// encoders are present; the decoder is always shared.
type Model struct {
	Modality Modality

	Words *WordEncoder
	Audio *AudioEncoder

	Decoder *Decoder
}

// NewModel creates a randomly initialized model.
//
// A nil rng is seeded automatically; passing a fixed rng
// makes initialization reproducible.
func NewModel(c anyvec.Creator, cfg *Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	scale := cfg.weightScale()
	res := &Model{Modality: cfg.Modality}
	if cfg.Modality == WordInput || cfg.Modality == FusedInput {
		res.Words = NewWordEncoder(c, cfg.SourceVocab, cfg.EncoderEmbedding,
			cfg.EncoderState, scale, rng)
	}
	if cfg.Modality == AudioInput || cfg.Modality == FusedInput {
		res.Audio = NewAudioEncoder(c, cfg.AudioFeatures, cfg.EncoderEmbedding,
			cfg.EncoderState, scale, rng)
	}
	res.Decoder = NewDecoder(c, cfg.TargetVocab, cfg.DecoderEmbedding,
		cfg.DecoderState, cfg.EncoderState, scale, rng)
	return res, nil
}

// DeserializeModel deserializes a Model.
func DeserializeModel(d []byte) (*Model, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	badSlice := errors.New("invalid model slice")
	if len(slice) < 2 {
		return nil, essentials.AddCtx("deserialize Model", badSlice)
	}
	modality, ok := slice[0].(serializer.Int)
	if !ok {
		return nil, essentials.AddCtx("deserialize Model", badSlice)
	}
	dec, ok := slice[1].(*Decoder)
	if !ok {
		return nil, essentials.AddCtx("deserialize Model", badSlice)
	}
	res := &Model{Modality: Modality(modality), Decoder: dec}
	switch res.Modality {
	case WordInput, AudioInput, FusedInput:
	default:
		return nil, essentials.AddCtx("deserialize Model", badSlice)
	}
	rest := slice[2:]
	if res.Modality == WordInput || res.Modality == FusedInput {
		if len(rest) == 0 {
			return nil, essentials.AddCtx("deserialize Model", badSlice)
		}
		if res.Words, ok = rest[0].(*WordEncoder); !ok {
			return nil, essentials.AddCtx("deserialize Model", badSlice)
		}
		rest = rest[1:]
	}
	if res.Modality == AudioInput || res.Modality == FusedInput {
		if len(rest) == 0 {
			return nil, essentials.AddCtx("deserialize Model", badSlice)
		}
		if res.Audio, ok = rest[0].(*AudioEncoder); !ok {
			return nil, essentials.AddCtx("deserialize Model", badSlice)
		}
	}
	return res, nil
}

// Encode runs the modality's encoder over a source batch.
//
// For FusedInput, every lane's word count must match its
// word-end count, since the two representations are fused
// position by position.
func (m *Model) Encode(b *SourceBatch) anyseq.Seq {
	switch m.Modality {
	case WordInput:
		return m.Words.Encode(b.Words)
	case AudioInput:
		return m.Audio.Encode(b.Audio, b.WordEnds)
	case FusedInput:
		if len(b.Words) != len(b.WordEnds) {
			panic(fmt.Sprintf("encode: got %d word lanes but %d word-end lanes",
				len(b.Words), len(b.WordEnds)))
		}
		for i, seq := range b.Words {
			if len(seq) != len(b.WordEnds[i]) {
				panic(fmt.Sprintf("encode: lane %d has %d words but %d word ends",
					i, len(seq), len(b.WordEnds[i])))
			}
		}
		return FuseRepresentations(m.Words.Encode(b.Words),
			m.Audio.Encode(b.Audio, b.WordEnds))
	}
	panic(fmt.Sprintf("unknown modality: %d", m.Modality))
}

// Cost computes the teacher-forced cost of the targets
// given a source batch.
func (m *Model) Cost(b *SourceBatch, targets [][]int) anydiff.Res {
	return m.Decoder.Cost(m.Encode(b), targets)
}

// MultitaskCost computes the sum of the word-only cost
// and the audio-only cost, decoding both representations
// through the one shared decoder.
// It requires FusedInput.
func (m *Model) MultitaskCost(b *SourceBatch, targets [][]int) anydiff.Res {
	if m.Modality != FusedInput {
		panic("multitask cost requires both encoders")
	}
	wordCost := m.Decoder.Cost(m.Words.Encode(b.Words), targets)
	audioCost := m.Decoder.Cost(m.Audio.Encode(b.Audio, b.WordEnds), targets)
	return anydiff.Add(wordCost, audioCost)
}

// A Generator holds an encoded source batch ready for
// sampling.
type Generator struct {
	model   *Model
	encoded anyseq.Seq
	budget  int
}

// Generator encodes a source batch for sampling.
// The step budget is twice the longest source length.
func (m *Model) Generator(b *SourceBatch) *Generator {
	encoded := m.Encode(b)
	return &Generator{
		model:   m,
		encoded: encoded,
		budget:  2 * len(encoded.Output()),
	}
}

// Budget returns the number of steps each lane will run.
func (g *Generator) Budget() int {
	return g.budget
}

// Generate samples one output sequence per lane.
func (g *Generator) Generate(rng *rand.Rand) [][]int {
	return g.model.Decoder.Generate(g.encoded, g.budget, rng)
}

// Parameters returns every parameter of the model.
func (m *Model) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	if m.Words != nil {
		res = append(res, m.Words.Parameters()...)
	}
	if m.Audio != nil {
		res = append(res, m.Audio.Parameters()...)
	}
	res = append(res, m.Decoder.Parameters()...)
	return res
}

// A ParamInfo names one parameter tensor.
type ParamInfo struct {
	Name  string
	Shape []int
	Var   *anydiff.Var
}

// ParamInfo lists every parameter with a path-style name
// and its logical shape.
func (m *Model) ParamInfo() []ParamInfo {
	var res []ParamInfo
	if m.Words != nil {
		res = append(res, ParamInfo{
			Name:  "words_encoder/embedding",
			Shape: []int{m.Words.VocabSize, m.Words.EmbeddingDim},
			Var:   m.Words.Embedding,
		})
		res = append(res, bidirInfo("words_encoder/bidir", m.Words.Bidir)...)
	}
	if m.Audio != nil {
		res = append(res, bidirInfo("audio_encoder/embedding", m.Audio.Embedding)...)
		res = append(res, bidirInfo("audio_encoder/bidir", m.Audio.Bidir)...)
	}
	d := m.Decoder
	res = append(res, ParamInfo{
		Name:  "decoder/embedding",
		Shape: []int{d.VocabSize, d.EmbeddingDim},
		Var:   d.Embedding,
	})
	res = append(res, gruInfo("decoder/cell", d.Cell)...)
	res = append(res,
		ParamInfo{"decoder/init/weights", []int{d.StateDim, d.ReprDim / 2},
			d.InitTrans.Weights},
		ParamInfo{"decoder/init/biases", []int{d.StateDim}, d.InitTrans.Biases},
	)
	a := d.Attention
	res = append(res,
		ParamInfo{"decoder/attention/query/weights",
			[]int{a.MatchDim, d.StateDim}, a.QueryTrans.Weights},
		ParamInfo{"decoder/attention/query/biases",
			[]int{a.MatchDim}, a.QueryTrans.Biases},
		ParamInfo{"decoder/attention/encoded/weights",
			[]int{a.MatchDim, a.ReprDim}, a.EncTrans.Weights},
		ParamInfo{"decoder/attention/encoded/biases",
			[]int{a.MatchDim}, a.EncTrans.Biases},
	)
	for i, p := range layerParams(a.OutTrans) {
		res = append(res, ParamInfo{
			Name:  fmt.Sprintf("decoder/attention/energy/param%d", i),
			Shape: []int{p.Vector.Len()},
			Var:   p,
		})
	}
	r := d.Readout
	res = append(res,
		ParamInfo{"decoder/readout/state/weights",
			[]int{r.StateDim, r.StateDim}, r.StateTrans.Weights},
		ParamInfo{"decoder/readout/state/biases",
			[]int{r.StateDim}, r.StateTrans.Biases},
		ParamInfo{"decoder/readout/glimpse/weights",
			[]int{r.StateDim, d.ReprDim}, r.GlimpseTrans.Weights},
		ParamInfo{"decoder/readout/glimpse/biases",
			[]int{r.StateDim}, r.GlimpseTrans.Biases},
		ParamInfo{"decoder/readout/feedback/weights",
			[]int{r.StateDim, r.EmbedDim}, r.FeedbackTrans.Weights},
		ParamInfo{"decoder/readout/feedback/biases",
			[]int{r.StateDim}, r.FeedbackTrans.Biases},
		ParamInfo{"decoder/readout/maxout_bias",
			[]int{r.StateDim}, r.MaxoutBias},
		ParamInfo{"decoder/readout/hidden/weights",
			[]int{r.EmbedDim, r.StateDim / 2}, r.HiddenTrans.Weights},
		ParamInfo{"decoder/readout/hidden/biases",
			[]int{r.EmbedDim}, r.HiddenTrans.Biases},
		ParamInfo{"decoder/readout/output/weights",
			[]int{r.VocabSize, r.EmbedDim}, r.OutTrans.Weights},
		ParamInfo{"decoder/readout/output/biases",
			[]int{r.VocabSize}, r.OutTrans.Biases},
	)
	return res
}

// NumParameters counts the scalar parameters of the
// model, with shared tensors counted once.
func (m *Model) NumParameters() int {
	seen := map[*anydiff.Var]bool{}
	total := 0
	for _, v := range m.Parameters() {
		if !seen[v] {
			seen[v] = true
			total += v.Vector.Len()
		}
	}
	return total
}

// LogParameters writes every parameter's name, shape, and
// size to the standard logger, followed by the total.
func (m *Model) LogParameters() {
	total := 0
	for _, info := range m.ParamInfo() {
		log.Printf("parameter %s: shape %v (%d values)", info.Name, info.Shape,
			info.Var.Vector.Len())
		total += info.Var.Vector.Len()
	}
	log.Printf("total parameters: %d", total)
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/gaoyiyeah/acoustic-punctuation.Model"
}

// Serialize serializes the Model.
func (m *Model) Serialize() ([]byte, error) {
	objs := []interface{}{serializer.Int(m.Modality), m.Decoder}
	if m.Words != nil {
		objs = append(objs, m.Words)
	}
	if m.Audio != nil {
		objs = append(objs, m.Audio)
	}
	return serializer.SerializeAny(objs...)
}

func gruInfo(prefix string, g *GRU) []ParamInfo {
	return []ParamInfo{
		{prefix + "/gate_in/weights", []int{2 * g.Dim, g.InDim}, g.GateIn.Weights},
		{prefix + "/gate_in/biases", []int{2 * g.Dim}, g.GateIn.Biases},
		{prefix + "/cell_in/weights", []int{g.Dim, g.InDim}, g.CellIn.Weights},
		{prefix + "/cell_in/biases", []int{g.Dim}, g.CellIn.Biases},
		{prefix + "/state_to_gates", []int{g.Dim, 2 * g.Dim}, g.StateGates},
		{prefix + "/state_to_cell", []int{g.Dim, g.Dim}, g.StateTrans},
	}
}

func bidirInfo(prefix string, b *BidirGRU) []ParamInfo {
	res := gruInfo(prefix+"/forward", b.Forward)
	return append(res, gruInfo(prefix+"/backward", b.Backward)...)
}

func layerParams(l interface{}) []*anydiff.Var {
	if p, ok := l.(interface {
		Parameters() []*anydiff.Var
	}); ok {
		return p.Parameters()
	}
	return nil
}
