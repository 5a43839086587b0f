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
	"context"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/willf/bitset"
)

// Candidate search runs in two stages:
//
// 1. ScreenHomozygous scores every allele paired with itself, using the
//    allele likelihood only, and keeps the best few alleles of each
//    (locus, 2-digit group).
//
// 2. ScorePairs computes the full PairScore of every unordered pair of
//    retained alleles at the same locus whose spans overlap and whose
//    frequencies clear Opts.MinFrequency.
//
// Only the retained set (Candidates) is passed from stage 1 to stage 2.

// Candidates is the set of alleles retained by the homozygous screen.
type Candidates struct {
	catalog *Catalog
	set     *bitset.BitSet
	// SelfLikelihood[i] is the self-pair allele likelihood of catalog allele
	// i.
	SelfLikelihood []float64
}

// Contains checks if catalog allele i was retained.
func (c *Candidates) Contains(i int) bool { return c.set.Test(uint(i)) }

// Len returns the number of retained alleles.
func (c *Candidates) Len() int { return int(c.set.Count()) }

// Locus returns the retained alleles of the given locus, in catalog order.
func (c *Candidates) Locus(id LocusID) []int {
	var r []int
	for _, i := range c.catalog.LocusAlleles(id) {
		if c.set.Test(uint(i)) {
			r = append(r, i)
		}
	}
	return r
}

// parallelFor calls fn(i) for every i in [0, n), splitting the range into
// contiguous chunks across workers.  It stops early if ctx is done.
func parallelFor(ctx context.Context, parallelism, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}
	if parallelism > n {
		parallelism = n
	}
	return traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * n) / parallelism
		endIdx := ((jobIdx + 1) * n) / parallelism
		for i := startIdx; i < endIdx; i++ {
			if (i-startIdx)%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			fn(i)
		}
		return nil
	})
}

// ScreenHomozygous runs the first candidate-search stage.
func ScreenHomozygous(ctx context.Context, scorer *Scorer, opts Opts) (*Candidates, Stats, error) {
	catalog := scorer.catalog
	n := catalog.Len()
	c := &Candidates{
		catalog:        catalog,
		set:            bitset.New(uint(n)),
		SelfLikelihood: make([]float64, n),
	}
	var stats Stats
	if err := parallelFor(ctx, opts.parallelism(), n, func(i int) {
		c.SelfLikelihood[i] = scorer.AlleleLikelihood(i, i)
	}); err != nil {
		return nil, stats, err
	}
	stats.AllelesScreened = n

	groups := make([][]int, catalog.NGroups())
	for i := 0; i < n; i++ {
		g := catalog.Allele(i).Group2
		groups[g] = append(groups[g], i)
	}
	for _, members := range groups {
		if len(members) == 0 {
			continue
		}
		stats.CandidateGroups++
		// Ties are broken by catalog order, so a larger cap always retains a
		// superset.
		sort.SliceStable(members, func(x, y int) bool {
			return c.SelfLikelihood[members[x]] > c.SelfLikelihood[members[y]]
		})
		k := opts.groupCap(len(members))
		if k > len(members) {
			k = len(members)
		}
		for _, i := range members[:k] {
			c.set.Set(uint(i))
		}
	}
	stats.CandidatesRetained = c.Len()
	log.Printf("ScreenHomozygous: retained %d of %d alleles in %d groups", stats.CandidatesRetained, n, stats.CandidateGroups)
	return c, stats, nil
}

type pairJob struct {
	i1, i2       int
	freq1, freq2 float64
}

// ScorePairs runs the second candidate-search stage.  The result is ordered
// by locus, then by catalog index of the first and second allele.
func ScorePairs(ctx context.Context, scorer *Scorer, cands *Candidates, freqs *Frequencies, opts Opts) ([]PairScore, Stats, error) {
	catalog := scorer.catalog
	var (
		stats Stats
		jobs  []pairJob
	)
	for locus := LocusID(0); int(locus) < catalog.NLoci(); locus++ {
		members := cands.Locus(locus)
		nJobs := len(jobs)
		for x, i1 := range members {
			f1, found1 := freqs.Lookup(catalog, i1)
			for _, i2 := range members[x:] {
				if _, _, ok := catalog.Allele(i1).Overlap(catalog.Allele(i2)); !ok {
					continue
				}
				f2, found2 := freqs.Lookup(catalog, i2)
				if f1 <= opts.MinFrequency || f2 <= opts.MinFrequency {
					stats.PairsSkippedFrequency++
					continue
				}
				if !found1 {
					stats.FrequencyMisses++
				}
				if !found2 {
					stats.FrequencyMisses++
				}
				jobs = append(jobs, pairJob{i1, i2, f1, f2})
			}
		}
		if len(jobs) == nJobs {
			log.Debug.Printf("ScorePairs: no candidate pairs at locus %s", catalog.LocusName(locus))
		}
	}
	scores := make([]PairScore, len(jobs))
	if err := parallelFor(ctx, opts.parallelism(), len(jobs), func(k int) {
		job := jobs[k]
		s := scorer.Score(job.i1, job.i2)
		s.Freq1, s.Freq2 = job.freq1, job.freq2
		scores[k] = s
	}); err != nil {
		return nil, stats, err
	}
	stats.PairsScored = len(scores)
	log.Printf("ScorePairs: scored %d pairs from %d candidates", len(scores), cands.Len())
	return scores, stats, nil
}
