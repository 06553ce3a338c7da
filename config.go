package punctuation

import "fmt"

// A Modality selects which source inputs a model encodes.
// It is chosen once at build time; there is no runtime
// modality dispatch.
type Modality int

const (
	// WordInput encodes word tokens only.
	WordInput Modality = 1 + iota

	// AudioInput encodes audio feature frames only.
	AudioInput

	// FusedInput encodes both modalities and fuses the
	// aligned representations with an elementwise max.
	FusedInput
)

// String returns a human-readable modality name.
func (m Modality) String() string {
	switch m {
	case WordInput:
		return "words"
	case AudioInput:
		return "audio"
	case FusedInput:
		return "both"
	}
	return fmt.Sprintf("Modality(%d)", int(m))
}

// DefaultWeightScale is the standard deviation used for
// non-recurrent weights when Config.WeightScale is 0.
const DefaultWeightScale = 0.01

// A Config specifies every dimension of a model.
// It is immutable once passed to NewModel; all component
// shapes are derived from it eagerly.
type Config struct {
	// Modality selects the source input type.
	Modality Modality

	// SourceVocab is the size of the source-word
	// vocabulary.
	// It is required for WordInput and FusedInput.
	SourceVocab int

	// TargetVocab is the size of the output token
	// vocabulary.
	TargetVocab int

	// EncoderEmbedding is the width of source-word
	// embeddings and of the frame-rate audio embeddings.
	EncoderEmbedding int

	// EncoderState is the per-direction state size of the
	// encoder recurrences.
	// The representation width is twice this.
	EncoderState int

	// DecoderEmbedding is the width of target-token
	// feedback embeddings.
	DecoderEmbedding int

	// DecoderState is the decoder cell state size.
	// It must be even, since the readout's maxout halves
	// it.
	DecoderState int

	// AudioFeatures is the width of one audio feature
	// frame.
	// It is required for AudioInput and FusedInput.
	AudioFeatures int

	// WeightScale is the standard deviation for the
	// Gaussian weight initialization.
	// If it is 0, DefaultWeightScale is used.
	WeightScale float64
}

// A ConfigError describes a Config that cannot produce a
// valid model.
// It is reported at construction and is fatal; there is
// no recovery short of fixing the configuration.
type ConfigError struct {
	Field  string
	Reason string
}

// Error returns a message naming the offending field.
func (c *ConfigError) Error() string {
	return "invalid config: " + c.Field + ": " + c.Reason
}

// Validate checks the configuration, returning a
// *ConfigError describing the first problem found.
func (c *Config) Validate() error {
	switch c.Modality {
	case WordInput, AudioInput, FusedInput:
	default:
		return &ConfigError{Field: "Modality", Reason: "unsupported modality"}
	}
	if c.TargetVocab <= 0 {
		return &ConfigError{Field: "TargetVocab", Reason: "must be positive"}
	}
	if c.EncoderEmbedding <= 0 {
		return &ConfigError{Field: "EncoderEmbedding", Reason: "must be positive"}
	}
	if c.EncoderState <= 0 {
		return &ConfigError{Field: "EncoderState", Reason: "must be positive"}
	}
	if c.DecoderEmbedding <= 0 {
		return &ConfigError{Field: "DecoderEmbedding", Reason: "must be positive"}
	}
	if c.DecoderState <= 0 {
		return &ConfigError{Field: "DecoderState", Reason: "must be positive"}
	}
	if c.DecoderState%2 != 0 {
		return &ConfigError{Field: "DecoderState", Reason: "must be even for the maxout readout"}
	}
	if c.Modality == WordInput || c.Modality == FusedInput {
		if c.SourceVocab <= 0 {
			return &ConfigError{Field: "SourceVocab", Reason: "required for word input"}
		}
	}
	if c.Modality == AudioInput || c.Modality == FusedInput {
		if c.AudioFeatures <= 0 {
			return &ConfigError{Field: "AudioFeatures", Reason: "required for audio input"}
		}
	}
	if c.WeightScale < 0 {
		return &ConfigError{Field: "WeightScale", Reason: "must not be negative"}
	}
	return nil
}

// weightScale returns the effective initialization scale.
func (c *Config) weightScale() float64 {
	if c.WeightScale == 0 {
		return DefaultWeightScale
	}
	return c.WeightScale
}

// representationDim returns the width of an encoded
// position: forward and backward states concatenated.
func (c *Config) representationDim() int {
	return 2 * c.EncoderState
}
