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
	"math"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
)

// Call is one reported genotype: a pair of 4-digit alleles with its summed
// posterior and the mean evidence of the finer-resolution pairs behind it.
type Call struct {
	Locus string
	// Allele1 <= Allele2, lexicographically.
	Allele1, Allele2 string
	// Mean per-pair components over the Pairs contributing pairs.
	AlleleLikelihood float64
	PhaseLikelihood  float64
	Freq1, Freq2     float64
	Combined         float64
	// Posterior is the sum of the contributing pairs' posteriors.
	Posterior float64
	// Pairs is the number of finer-resolution pairs collapsed into this call.
	Pairs int
	// CopyFraction is the number of appearances of this call's alleles among
	// the locus's scored pairs, divided by the total number of allele
	// appearances (two per pair) at the locus.
	CopyFraction float64
}

// callAccum sums the pairs that collapse into one call.
type callAccum struct {
	locus, a1, a2                     string
	sumAL, sumPL, sumF1, sumF2, sumLL float64
	posterior                         float64
	n                                 int
	copyFraction                      float64
}

// Compare implements llrb.Comparable.
func (c *callAccum) Compare(b llrb.Comparable) int {
	o := b.(*callAccum)
	if r := strings.Compare(c.locus, o.locus); r != 0 {
		return r
	}
	if r := strings.Compare(c.a1, o.a1); r != 0 {
		return r
	}
	return strings.Compare(c.a2, o.a2)
}

// PairPosteriors normalizes the combined scores of each locus's pairs into
// probabilities.  post[k] is the posterior of scores[k]; pairs with a
// non-finite combined score get zero and do not enter the normalization.  The
// posteriors of every locus with at least one finite pair sum to one.
// emptyLoci counts the loci without any finite pair.
func PairPosteriors(catalog *Catalog, scores []PairScore) (post []float64, emptyLoci int) {
	post = make([]float64, len(scores))
	for locus, idx := range groupByLocus(catalog, scores) {
		lmax := math.Inf(-1)
		for _, k := range idx {
			post[k] = scores[k].Combined()
			if isFinite(post[k]) && post[k] > lmax {
				lmax = post[k]
			}
		}
		if math.IsInf(lmax, -1) {
			if len(idx) > 0 {
				log.Printf("PairPosteriors: locus %s has no finite pair score", catalog.LocusName(LocusID(locus)))
			}
			emptyLoci++
			for _, k := range idx {
				post[k] = 0
			}
			continue
		}
		denom := 0.0
		for _, k := range idx {
			if isFinite(post[k]) {
				post[k] = math.Pow(10, post[k]-lmax)
				denom += post[k]
			} else {
				post[k] = 0
			}
		}
		for _, k := range idx {
			post[k] /= denom
		}
	}
	return post, emptyLoci
}

func groupByLocus(catalog *Catalog, scores []PairScore) [][]int {
	byLocus := make([][]int, catalog.NLoci())
	for k := range scores {
		locus := catalog.Allele(scores[k].Allele1).Locus
		byLocus[locus] = append(byLocus[locus], k)
	}
	return byLocus
}

// Aggregate turns raw pair scores into per-locus posteriors, collapses them to
// 4-digit pairs, and returns the calls whose posterior exceeds
// opts.PosteriorThreshold.  Calls are sorted by (locus, Allele1, Allele2).
//
// A locus without any finite-scored pair produces no calls.
func Aggregate(catalog *Catalog, scores []PairScore, opts Opts) ([]Call, Stats) {
	var stats Stats
	post, emptyLoci := PairPosteriors(catalog, scores)
	stats.EmptyLoci = emptyLoci
	tree := &llrb.Tree{}
	for locus, idx := range groupByLocus(catalog, scores) {
		if len(idx) == 0 {
			continue
		}
		copies := map[GroupID]int{}
		for _, k := range idx {
			copies[catalog.Allele(scores[k].Allele1).Group4]++
			copies[catalog.Allele(scores[k].Allele2).Group4]++
		}
		totalCopies := float64(2 * len(idx))

		locusName := catalog.LocusName(LocusID(locus))
		for _, k := range idx {
			s := scores[k]
			combined := s.Combined()
			if !isFinite(combined) {
				continue
			}
			g1 := catalog.Allele(s.Allele1).Group4
			g2 := catalog.Allele(s.Allele2).Group4
			n1, n2 := catalog.GroupName(g1), catalog.GroupName(g2)
			f1, f2 := s.Freq1, s.Freq2
			if n2 < n1 {
				n1, n2 = n2, n1
				f1, f2 = f2, f1
			}
			key := &callAccum{locus: locusName, a1: n1, a2: n2}
			acc, _ := tree.Get(key).(*callAccum)
			if acc == nil {
				acc = key
				nCopies := copies[g1]
				if g2 != g1 {
					nCopies += copies[g2]
				}
				acc.copyFraction = float64(nCopies) / totalCopies
				tree.Insert(acc)
			}
			acc.sumAL += s.AlleleLikelihood
			acc.sumPL += s.PhaseLikelihood
			acc.sumF1 += f1
			acc.sumF2 += f2
			acc.sumLL += combined
			acc.posterior += post[k]
			acc.n++
		}
	}

	var calls []Call
	tree.Do(func(c llrb.Comparable) (done bool) {
		acc := c.(*callAccum)
		if acc.posterior <= opts.PosteriorThreshold {
			return false
		}
		n := float64(acc.n)
		calls = append(calls, Call{
			Locus:            acc.locus,
			Allele1:          acc.a1,
			Allele2:          acc.a2,
			AlleleLikelihood: acc.sumAL / n,
			PhaseLikelihood:  acc.sumPL / n,
			Freq1:            acc.sumF1 / n,
			Freq2:            acc.sumF2 / n,
			Combined:         acc.sumLL / n,
			Posterior:        acc.posterior,
			Pairs:            acc.n,
			CopyFraction:     acc.copyFraction,
		})
		return false
	})
	log.Printf("Aggregate: %d calls from %d pairs (%d collapsed pairs, %d empty loci)", len(calls), len(scores), tree.Len(), stats.EmptyLoci)
	return calls, stats
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
