package punctuation

import (
	"testing"

	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestMaskedSoftmax(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	inSeq := anyseq.ConstSeqList(c, [][]anyvec.Vector{
		{
			c.MakeVectorData(c.MakeNumericList([]float64{2})),
			c.MakeVectorData(c.MakeNumericList([]float64{0})),
			c.MakeVectorData(c.MakeNumericList([]float64{1})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{0.5})),
			c.MakeVectorData(c.MakeNumericList([]float64{-0.5})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{-3})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{500})),
			c.MakeVectorData(c.MakeNumericList([]float64{499})),
			c.MakeVectorData(c.MakeNumericList([]float64{-500})),
		},
	})
	actual := maskedSoftmax(inSeq)
	expected := anyseq.ConstSeqList(c, [][]anyvec.Vector{
		{
			c.MakeVectorData(c.MakeNumericList([]float64{0.66524095577482})),
			c.MakeVectorData(c.MakeNumericList([]float64{0.09003057317038})),
			c.MakeVectorData(c.MakeNumericList([]float64{0.24472847105479})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{0.731058578630005})),
			c.MakeVectorData(c.MakeNumericList([]float64{0.268941421369995})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{1})),
		},
		{
			c.MakeVectorData(c.MakeNumericList([]float64{0.731058578630005})),
			c.MakeVectorData(c.MakeNumericList([]float64{0.268941421369995})),
			c.MakeVectorData(c.MakeNumericList([]float64{0})),
		},
	})
	if !anydifftest.SeqsClose(actual, expected, 1e-3) {
		t.Error("bad output")
	}
}
