package hla

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

func TestAlleleLikelihood(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01", 100, "ACGTACGT"),
		rec("A*01:02", 100, "ACCTAGGT"),
		rec("A*02:01", 102, "GTADGT"))
	st, err := NewSiteTable(c, []Site{
		uniformSite(100, map[string]float64{"AA": -100}), // on the span boundary
		uniformSite(102, map[string]float64{"CG": -1, "GG": -0.5, "CC": -2}),
		uniformSite(104, map[string]float64{"AA": -0.125}),
		uniformSite(105, map[string]float64{"CC": -3, "CG": -4, "GG": -5}),
	})
	require.NoError(t, err)
	s := NewScorer(c, st, nil, DefaultOpts)

	assert.InDelta(t, -0.5-0.125-3, s.AlleleLikelihood(0, 0), delta)
	assert.InDelta(t, -1-0.125-4, s.AlleleLikelihood(0, 1), delta)
	assert.InDelta(t, s.AlleleLikelihood(0, 1), s.AlleleLikelihood(1, 0), delta)
	assert.InDelta(t, -2-0.125-5, s.AlleleLikelihood(1, 1), delta)
	// The overlap of alleles 0 and 2 is [102, 107]: only 104 and 105 are inside.
	// Allele 2 has a deletion at 105.
	assert.InDelta(t, -0.125, s.AlleleLikelihood(0, 2), delta)

	ps := s.Score(0, 1)
	expect.EQ(t, ps.Allele1, 0)
	expect.EQ(t, ps.Allele2, 1)
	expect.EQ(t, ps.PhaseLikelihood, 0.0)
}

func TestPhaseLikelihood(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01", 100, "AAAAA"),
		rec("A*01:02", 100, "ACACA"),
		rec("A*02:01", 100, "ADAAA"))
	st, err := NewSiteTable(c, []Site{{Pos: 101}, {Pos: 102}, {Pos: 103}})
	require.NoError(t, err)
	pt, _ := accumulate(t, st,
		read(100, "AAAAA"),
		read(100, "AAAAA"),
		read(100, "AAAAA"),
		read(100, "ACACA"))

	inPhase := math.Log10(1 - DefaultOpts.PhaseErrorRate)
	outOfPhase := math.Log10(DefaultOpts.PhaseErrorRate)

	nearest := NewScorer(c, st, pt, DefaultOpts)
	opts := DefaultOpts
	opts.PhasePolicy = PhaseAllPartners
	all := NewScorer(c, st, pt, opts)

	// Self pair of allele 0: (101,102) and (102,103) have 3 in-phase and 1
	// out-of-phase read each.  PhaseAllPartners adds (101,103).
	assert.InDelta(t, 2*(3*inPhase+outOfPhase), nearest.PhaseLikelihood(0, 0), delta)
	assert.InDelta(t, 3*(3*inPhase+outOfPhase), all.PhaseLikelihood(0, 0), delta)
	expect.EQ(t, pt.JointCount(0, BaseA, 1, BaseA), uint32(3))

	// Alleles 0 and 1 explain every read.
	assert.InDelta(t, 2*4*inPhase, nearest.PhaseLikelihood(0, 1), delta)
	assert.InDelta(t, 3*4*inPhase, all.PhaseLikelihood(0, 1), delta)
	assert.InDelta(t, nearest.PhaseLikelihood(1, 0), nearest.PhaseLikelihood(0, 1), delta)

	// Allele 2 has a deletion at 101; no read supports its combinations
	// there, so only allele 0's combinations are in-phase.
	assert.InDelta(t, 2*(3*inPhase+outOfPhase), nearest.PhaseLikelihood(0, 2), delta)
	assert.InDelta(t, 3*(3*inPhase+outOfPhase), all.PhaseLikelihood(0, 2), delta)
	// Self pair of allele 2: every read at (101, *) is out-of-phase.
	assert.InDelta(t, 4*outOfPhase+(3*inPhase+outOfPhase), nearest.PhaseLikelihood(2, 2), delta)
	assert.InDelta(t, 8*outOfPhase+(3*inPhase+outOfPhase), all.PhaseLikelihood(2, 2), delta)
}

func TestPhaseLikelihoodDeletion(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01", 100, "AAAAA"),
		rec("A*01:02", 100, "ADAAA"))
	st, err := NewSiteTable(c, []Site{{Pos: 101}, {Pos: 102}, {Pos: 103}})
	require.NoError(t, err)
	pt, _ := accumulate(t, st,
		read(100, "AAAAA"),
		read(100, "AAAAA"),
		read(100, "AAAAA"),
		read(100, "AAAAA"))
	inPhase := math.Log10(1 - DefaultOpts.PhaseErrorRate)
	outOfPhase := math.Log10(DefaultOpts.PhaseErrorRate)
	s := NewScorer(c, st, pt, DefaultOpts)

	concordant := s.PhaseLikelihood(0, 0)
	deleted := s.PhaseLikelihood(1, 1)
	assert.InDelta(t, 2*4*inPhase, concordant, delta)
	// The scan for site 101 stops at 102 even though the allele pair carries
	// a deletion at 101.
	assert.InDelta(t, 4*outOfPhase+4*inPhase, deleted, delta)
	expect.True(t, concordant > deleted, concordant, deleted)
}

func TestPhaseLikelihoodNoOutOfPhase(t *testing.T) {
	c := newTestCatalog(t, rec("A*01:01", 100, "AAAAA"))
	st, err := NewSiteTable(c, []Site{{Pos: 101}, {Pos: 103}})
	require.NoError(t, err)
	pt, _ := accumulate(t, st, read(100, "AAAAA"), read(100, "AAAAA"))
	opts := DefaultOpts
	opts.PhaseErrorRate = 0.5
	s := NewScorer(c, st, pt, opts)
	assert.InDelta(t, 2*math.Log10(0.5), s.PhaseLikelihood(0, 0), delta)
}

func TestCombined(t *testing.T) {
	s := PairScore{AlleleLikelihood: -2, PhaseLikelihood: -3, Freq1: 0.1, Freq2: 0.01}
	assert.InDelta(t, -8.0, s.Combined(), delta)
}

func TestParsePhasePolicy(t *testing.T) {
	for _, p := range []PhasePolicy{PhaseNearestPartner, PhaseAllPartners} {
		got, err := ParsePhasePolicy(p.String())
		expect.NoError(t, err)
		expect.EQ(t, got, p)
	}
	_, err := ParsePhasePolicy("first")
	expect.True(t, err != nil)
}
