// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hla

import (
	"fmt"
	"math"
)

// PhasePolicy selects which site pairs contribute to the phase likelihood.
type PhasePolicy int

const (
	// PhaseNearestPartner scores, for each site i, only the first site j > i
	// (in position order) inside the pair's overlap that has phase
	// observations.
	PhaseNearestPartner PhasePolicy = iota
	// PhaseAllPartners scores every site pair with phase observations.
	PhaseAllPartners
)

var phasePolicyNames = map[PhasePolicy]string{
	PhaseNearestPartner: "nearest",
	PhaseAllPartners:    "all",
}

func (p PhasePolicy) String() string {
	if s, ok := phasePolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PhasePolicy(%d)", int(p))
}

// ParsePhasePolicy converts "nearest" or "all" into a PhasePolicy.
func ParsePhasePolicy(s string) (PhasePolicy, error) {
	for p, name := range phasePolicyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("ParsePhasePolicy: unknown policy '%s'", s)
}

// PairScore is the raw evidence for one allele pair.
type PairScore struct {
	Allele1, Allele2 int
	AlleleLikelihood float64
	PhaseLikelihood  float64
	Freq1, Freq2     float64
}

// Combined returns the log10 score used for ranking: both likelihoods plus
// the log10 frequency priors of both alleles.
func (s PairScore) Combined() float64 {
	return s.AlleleLikelihood + s.PhaseLikelihood + math.Log10(s.Freq1) + math.Log10(s.Freq2)
}

// Scorer computes allele and phase likelihoods of allele pairs against frozen
// evidence tables.  Thread safe.
type Scorer struct {
	catalog *Catalog
	sites   *SiteTable
	phase   *PhaseTable
	policy  PhasePolicy

	// log10(1-errRate) and log10(errRate).
	logInPhase, logOutOfPhase float64
}

// NewScorer creates a Scorer.  The phase table may be nil, in which case all
// phase likelihoods are zero.
func NewScorer(catalog *Catalog, sites *SiteTable, phase *PhaseTable, opts Opts) *Scorer {
	return &Scorer{
		catalog:       catalog,
		sites:         sites,
		phase:         phase,
		policy:        opts.PhasePolicy,
		logInPhase:    math.Log10(1 - opts.PhaseErrorRate),
		logOutOfPhase: math.Log10(opts.PhaseErrorRate),
	}
}

// AlleleLikelihood sums, over the sites strictly inside the overlap of the two
// allele spans, the site log10 likelihood of the genotype formed by the two
// alleles' bases.  Sites where either allele has a deletion or another non
// A/C/G/T symbol are skipped.
func (s *Scorer) AlleleLikelihood(i1, i2 int) float64 {
	a1, a2 := s.catalog.Allele(i1), s.catalog.Allele(i2)
	start, stop, ok := a1.Overlap(a2)
	if !ok {
		return 0
	}
	lo, hi := s.sites.Range(start, stop)
	ll := 0.0
	for k := lo; k < hi; k++ {
		site := s.sites.Site(k)
		g := GenotypeIndex(a1.Base(site.Pos), a2.Base(site.Pos))
		if g < 0 {
			continue
		}
		ll += site.LL[g]
	}
	return ll
}

// PhaseLikelihood scores how well the pair explains the base combinations
// observed together on reads.  For each qualifying site pair (i, j), the
// reads agreeing with either allele's (base_i, base_j) combination are
// in-phase, and the rest out-of-phase; the term is
//
//   inPhase*log10(1-errRate) + outOfPhase*log10(errRate).
//
// A site pair qualifies if both sites lie strictly inside the overlap of the
// two allele spans and it has phase observations.  An allele symbol other
// than A/C/G/T (a deletion, typically) is looked up as BaseX, which reads
// never record, so every read at that pair is out-of-phase for that allele.
// See PhasePolicy for which qualifying pairs are scored.
func (s *Scorer) PhaseLikelihood(i1, i2 int) float64 {
	if s.phase == nil {
		return 0
	}
	a1, a2 := s.catalog.Allele(i1), s.catalog.Allele(i2)
	start, stop, ok := a1.Overlap(a2)
	if !ok {
		return 0
	}
	lo, hi := s.sites.Range(start, stop)
	ll := 0.0
	for i := lo; i < hi; i++ {
		posI := s.sites.Site(i).Pos
		b1i, b2i := a1.Base(posI), a2.Base(posI)
		for _, j32 := range s.phase.Partners(i) {
			j := int(j32)
			if j >= hi {
				break
			}
			posJ := s.sites.Site(j).Pos
			b1j, b2j := a1.Base(posJ), a2.Base(posJ)
			total := s.phase.Total(i, j)
			inPhase := s.phase.JointCount(i, b1i, j, b1j)
			if b1i != b2i || b1j != b2j {
				inPhase += s.phase.JointCount(i, b2i, j, b2j)
			}
			ll += float64(inPhase) * s.logInPhase
			if outOfPhase := total - inPhase; outOfPhase > 0 {
				ll += float64(outOfPhase) * s.logOutOfPhase
			}
			if s.policy == PhaseNearestPartner {
				break
			}
		}
	}
	return ll
}

// Score returns the allele and phase likelihoods of the pair.  Frequencies are
// left unset.
func (s *Scorer) Score(i1, i2 int) PairScore {
	return PairScore{
		Allele1:          i1,
		Allele2:          i2,
		AlleleLikelihood: s.AlleleLikelihood(i1, i2),
		PhaseLikelihood:  s.PhaseLikelihood(i1, i2),
	}
}
