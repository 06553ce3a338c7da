// Package punctuation implements an attention-based
// encoder-decoder model for restoring punctuation marks
// in transcribed speech.
//
// A source sentence may be presented as word tokens, as
// audio feature frames, or as both at once.
// Each modality has a bidirectional recurrent encoder
// producing one vector per word position; when both
// modalities are configured the two representations are
// fused by an elementwise maximum.
// A recurrent decoder then emits punctuation tokens,
// focusing on the encoded positions through a content
// attention mechanism similar to the one described in
// https://arxiv.org/abs/1409.0473.
//
// The package is a pure computation layer: it consumes
// already-tokenized batches and produces a differentiable
// training cost and sampled token sequences.
// Vocabulary construction, data streaming, and the
// optimizer all live outside of it.
package punctuation
