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
	"sort"

	"github.com/grailbio/base/errors"
)

// Site is a polymorphic position with its diploid base likelihoods.
type Site struct {
	// Pos is the 0-based genomic position.
	Pos PosType
	// LL[g] is the log10 likelihood of the diploid genotype with canonical
	// index g (see GenotypeNames).
	LL [NGenotype]float64
}

// SiteTable is the sorted, immutable list of polymorphic sites.
type SiteTable struct {
	sites []Site
}

// NewSiteTable validates the sites against the catalog and builds a
// SiteTable.  The input does not need to be sorted; it is not modified.
//
// It is an error for a site to be duplicated, to carry a non-finite
// likelihood, or to lie outside the span of every allele in the catalog.
// Site vectors are stored as given.
func NewSiteTable(catalog *Catalog, sites []Site) (*SiteTable, error) {
	st := &SiteTable{sites: append([]Site(nil), sites...)}
	sort.SliceStable(st.sites, func(i, j int) bool { return st.sites[i].Pos < st.sites[j].Pos })
	for i := range st.sites {
		s := &st.sites[i]
		if i > 0 && st.sites[i-1].Pos == s.Pos {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewSiteTable: duplicate site at position %d", s.Pos))
		}
		for g, ll := range s.LL {
			if math.IsNaN(ll) || math.IsInf(ll, 0) {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("NewSiteTable: site %d has non-finite likelihood %v for %s", s.Pos, ll, GenotypeNames[g]))
			}
		}
	}
	if err := st.checkCoverage(catalog); err != nil {
		return nil, err
	}
	return st, nil
}

// checkCoverage verifies that every site lies inside the span of at least one
// allele.
func (st *SiteTable) checkCoverage(catalog *Catalog) error {
	if len(st.sites) == 0 {
		return nil
	}
	covered := make([]bool, len(st.sites))
	for i := 0; i < catalog.Len(); i++ {
		a := catalog.Allele(i)
		lo := sort.Search(len(st.sites), func(k int) bool { return st.sites[k].Pos >= a.Start })
		for k := lo; k < len(st.sites) && st.sites[k].Pos <= a.Stop; k++ {
			covered[k] = true
		}
	}
	for k, ok := range covered {
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("NewSiteTable: site at position %d is outside every allele span", st.sites[k].Pos))
		}
	}
	return nil
}

// Len returns the number of sites.
func (st *SiteTable) Len() int { return len(st.sites) }

// Site returns the i'th site, in ascending position order.
func (st *SiteTable) Site(i int) *Site { return &st.sites[i] }

// Range returns the half-open index range [lo, hi) of the sites whose
// positions lie strictly inside (start, stop).
func (st *SiteTable) Range(start, stop PosType) (lo, hi int) {
	lo = sort.Search(len(st.sites), func(k int) bool { return st.sites[k].Pos > start })
	hi = sort.Search(len(st.sites), func(k int) bool { return st.sites[k].Pos >= stop })
	if hi < lo {
		hi = lo
	}
	return
}
