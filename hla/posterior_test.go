package hla

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func TestPairPosteriors(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01", 100, "A"),
		rec("A*02:01", 100, "A"),
		rec("B*07:02", 200, "C"),
		rec("C*01:02", 300, "G"))
	scores := []PairScore{
		{Allele1: 0, Allele2: 0, AlleleLikelihood: -1, Freq1: 1, Freq2: 1},
		{Allele1: 2, Allele2: 2, AlleleLikelihood: -300, Freq1: 1, Freq2: 1},
		{Allele1: 0, Allele2: 1, AlleleLikelihood: -2, Freq1: 1, Freq2: 1},
		{Allele1: 1, Allele2: 1, AlleleLikelihood: math.NaN(), Freq1: 1, Freq2: 1},
		{Allele1: 3, Allele2: 3, AlleleLikelihood: -1, Freq1: 0, Freq2: 1},
	}
	post, emptyLoci := PairPosteriors(c, scores)
	expect.EQ(t, emptyLoci, 1)
	assert.InDelta(t, 1/1.1, post[0], delta)
	assert.InDelta(t, 0.1/1.1, post[2], delta)
	assert.InDelta(t, 1.0, post[0]+post[2]+post[3], delta)
	// A single pair gets all the mass regardless of how small its score is.
	assert.InDelta(t, 1.0, post[1], delta)
	expect.EQ(t, post[3], 0.0)
	expect.EQ(t, post[4], 0.0)
}

func TestAggregateCollapse(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*02:01:01", 100, "A"),
		rec("A*01:01:01", 100, "A"),
		rec("A*01:01:02", 100, "A"),
		rec("B*07:02", 200, "C"))
	scores := []PairScore{
		{Allele1: 0, Allele2: 1, AlleleLikelihood: -1, PhaseLikelihood: -0.5, Freq1: 0.1, Freq2: 0.2},
		{Allele1: 0, Allele2: 2, AlleleLikelihood: -1, PhaseLikelihood: -1.5, Freq1: 0.1, Freq2: 0.4},
		{Allele1: 1, Allele2: 1, AlleleLikelihood: -5, Freq1: 0.2, Freq2: 0.2},
		{Allele1: 1, Allele2: 2, AlleleLikelihood: -5, Freq1: 0.2, Freq2: 0.4},
		{Allele1: 2, Allele2: 2, AlleleLikelihood: -5, Freq1: 0.4, Freq2: 0.4},
		{Allele1: 3, Allele2: 3, Freq1: math.Inf(1), Freq2: 0.5},
	}
	post, _ := PairPosteriors(c, scores)
	opts := DefaultOpts
	opts.PosteriorThreshold = 0
	calls, stats := Aggregate(c, scores, opts)
	expect.EQ(t, stats.EmptyLoci, 1)
	expect.EQ(t, len(calls), 2)

	c0 := calls[0]
	expect.EQ(t, c0.Locus, "A")
	expect.EQ(t, c0.Allele1, "A*01:01")
	expect.EQ(t, c0.Allele2, "A*01:01")
	expect.EQ(t, c0.Pairs, 3)
	assert.InDelta(t, post[2]+post[3]+post[4], c0.Posterior, delta)
	assert.InDelta(t, -5.0, c0.AlleleLikelihood, delta)
	assert.InDelta(t, (0.2+0.2+0.4)/3, c0.Freq1, delta)
	// 8 of the 10 allele copies at locus A are A*01:01.
	assert.InDelta(t, 0.8, c0.CopyFraction, delta)

	c1 := calls[1]
	expect.EQ(t, c1.Allele1, "A*01:01")
	expect.EQ(t, c1.Allele2, "A*02:01")
	expect.EQ(t, c1.Pairs, 2)
	assert.InDelta(t, post[0]+post[1], c1.Posterior, delta)
	assert.InDelta(t, -1.0, c1.PhaseLikelihood, delta)
	// Frequencies follow the allele names when the pair is reordered.
	assert.InDelta(t, 0.3, c1.Freq1, delta)
	assert.InDelta(t, 0.1, c1.Freq2, delta)
	assert.InDelta(t, 1.0, c0.Posterior+c1.Posterior, delta)
	assert.InDelta(t, 1.0, c1.CopyFraction, delta)
}

func TestAggregateThreshold(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01", 100, "A"),
		rec("A*02:01", 100, "A"))
	scores := []PairScore{
		{Allele1: 0, Allele2: 0, AlleleLikelihood: 0, Freq1: 1, Freq2: 1},
		{Allele1: 0, Allele2: 1, AlleleLikelihood: -1, Freq1: 1, Freq2: 1},
		{Allele1: 1, Allele2: 1, AlleleLikelihood: -3, Freq1: 1, Freq2: 1},
	}
	opts := DefaultOpts
	calls, _ := Aggregate(c, scores, opts)
	expect.EQ(t, len(calls), 1)
	expect.EQ(t, calls[0].Allele2, "A*01:01")

	// The threshold is exclusive.
	post, _ := PairPosteriors(c, scores)
	opts.PosteriorThreshold = post[1]
	calls, _ = Aggregate(c, scores, opts)
	expect.EQ(t, len(calls), 1)
	opts.PosteriorThreshold = post[1] - 1e-6
	calls, _ = Aggregate(c, scores, opts)
	expect.EQ(t, len(calls), 2)
	calls, _ = Aggregate(c, nil, opts)
	expect.EQ(t, len(calls), 0)
}
