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
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Engine runs one typing invocation: phase accumulation over the read stream,
// then candidate search, pairwise scoring and posterior aggregation over the
// frozen evidence.  Thread compatible.
type Engine struct {
	opts    Opts
	catalog *Catalog
	sites   *SiteTable
	freqs   *Frequencies

	// phase and scorer are set by Accumulate.
	phase  *PhaseTable
	scorer *Scorer
	stats  Stats
}

// NewEngine creates an Engine.  freqs may be nil, in which case every allele
// gets opts.MissingFrequency.
func NewEngine(catalog *Catalog, sites *SiteTable, freqs *Frequencies, opts Opts) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	if freqs == nil {
		var err error
		if freqs, err = NewFrequencies(nil, opts.FrequencyResolution, opts.MissingFrequency); err != nil {
			return nil, err
		}
	}
	return &Engine{opts: opts, catalog: catalog, sites: sites, freqs: freqs}, nil
}

// Catalog returns the allele catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Stats returns the statistics collected so far.
func (e *Engine) Stats() Stats { return e.stats }

// Accumulate consumes the read stream and freezes the phase table.  It must be
// called exactly once, before any scoring.
func (e *Engine) Accumulate(ctx context.Context, src ReadSource) error {
	if e.phase != nil {
		return fmt.Errorf("Engine.Accumulate: reads already accumulated")
	}
	pa := NewPhaseAccumulator(e.sites)
	if err := pa.AddAll(ctx, src); err != nil {
		return err
	}
	e.stats = e.stats.Merge(pa.Stats())
	e.phase = pa.Freeze()
	e.scorer = NewScorer(e.catalog, e.sites, e.phase, e.opts)
	return nil
}

func (e *Engine) checkFrozen(caller string) error {
	if e.scorer == nil {
		return fmt.Errorf("Engine.%s: called before Accumulate", caller)
	}
	return nil
}

// Screen runs the homozygous screen.
func (e *Engine) Screen(ctx context.Context) (*Candidates, error) {
	if err := e.checkFrozen("Screen"); err != nil {
		return nil, err
	}
	cands, stats, err := ScreenHomozygous(ctx, e.scorer, e.opts)
	if err != nil {
		return nil, err
	}
	e.stats = e.stats.Merge(stats)
	return cands, nil
}

// ScorePairs scores every admissible pair of the retained candidates.
func (e *Engine) ScorePairs(ctx context.Context, cands *Candidates) ([]PairScore, error) {
	if err := e.checkFrozen("ScorePairs"); err != nil {
		return nil, err
	}
	scores, stats, err := ScorePairs(ctx, e.scorer, cands, e.freqs, e.opts)
	if err != nil {
		return nil, err
	}
	e.stats = e.stats.Merge(stats)
	return scores, nil
}

// Aggregate converts raw scores into calls.
func (e *Engine) Aggregate(scores []PairScore) []Call {
	calls, stats := Aggregate(e.catalog, scores, e.opts)
	e.stats = e.stats.Merge(stats)
	return calls
}

// Call runs candidate search, scoring and aggregation.  It returns the calls
// together with the raw scores they were derived from.
func (e *Engine) Call(ctx context.Context) ([]Call, []PairScore, error) {
	cands, err := e.Screen(ctx)
	if err != nil {
		return nil, nil, err
	}
	scores, err := e.ScorePairs(ctx, cands)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	calls := e.Aggregate(scores)
	log.Printf("Engine.Call: stats %+v", e.stats)
	return calls, scores, nil
}

// ScorePair computes the raw score of two named alleles, bypassing candidate
// search.
func (e *Engine) ScorePair(name1, name2 string) (PairScore, error) {
	if err := e.checkFrozen("ScorePair"); err != nil {
		return PairScore{}, err
	}
	a1, a2 := e.catalog.AlleleByName(name1), e.catalog.AlleleByName(name2)
	if a1 == nil || a2 == nil {
		return PairScore{}, errors.E(errors.NotExist, fmt.Sprintf("Engine.ScorePair: allele pair %s,%s not in catalog", name1, name2))
	}
	s := e.scorer.Score(a1.Index, a2.Index)
	s.Freq1, _ = e.freqs.Lookup(e.catalog, a1.Index)
	s.Freq2, _ = e.freqs.Lookup(e.catalog, a2.Index)
	return s, nil
}
