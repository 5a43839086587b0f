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

// Stats represents high-level statistics of one typing run.
type Stats struct {
	// ReadsSeen is the # of reads given to the phase accumulator.
	ReadsSeen int64
	// ReadsUsed is the # of reads covering at least two sites with A/C/G/T
	// symbols.
	ReadsUsed int64
	// PairObservations is the total # of (site, site) observations recorded.
	PairObservations int64
	// AllelesScreened is the # of alleles scored by the homozygous screen.
	AllelesScreened int
	// CandidateGroups is the # of non-empty (locus, 2-digit group) buckets
	// the homozygous screen ranked.
	CandidateGroups int
	// CandidatesRetained is the # of alleles surviving the homozygous screen.
	CandidatesRetained int
	// PairsScored is the # of allele pairs given a full pairwise score.
	PairsScored int
	// PairsSkippedFrequency is the # of overlapping candidate pairs dropped
	// because an allele frequency did not exceed Opts.MinFrequency.
	PairsSkippedFrequency int
	// FrequencyMisses is the # of scored alleles (counting each pair member)
	// that fell back to Opts.MissingFrequency.
	FrequencyMisses int
	// EmptyLoci is the # of loci with no finite-scored pair.
	EmptyLoci int
}

// Merge adds the field values of the two Stats objects and creates new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.ReadsSeen += o.ReadsSeen
	s.ReadsUsed += o.ReadsUsed
	s.PairObservations += o.PairObservations
	s.AllelesScreened += o.AllelesScreened
	s.CandidateGroups += o.CandidateGroups
	s.CandidatesRetained += o.CandidatesRetained
	s.PairsScored += o.PairsScored
	s.PairsSkippedFrequency += o.PairsSkippedFrequency
	s.FrequencyMisses += o.FrequencyMisses
	s.EmptyLoci += o.EmptyLoci
	return s
}
