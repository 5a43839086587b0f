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

// Package hla infers the most likely pair of HLA alleles per locus from
// sequencing evidence.
//
// The inputs are a Catalog of padded allele sequences, a SiteTable of diploid
// genotype log10 likelihoods at polymorphic positions, population
// Frequencies, and a stream of padded reads.  An Engine runs one invocation:
//
//   e, err := hla.NewEngine(catalog, sites, freqs, hla.DefaultOpts)
//   err = e.Accumulate(ctx, reads)   // builds the PhaseTable
//   calls, scores, err := e.Call(ctx)
//
// Call runs the homozygous screen (ScreenHomozygous), scores the retained
// pairs (ScorePairs) and normalizes the pair scores into per-locus
// posteriors collapsed to 4-digit resolution (Aggregate).  All likelihoods
// are log10.
package hla
