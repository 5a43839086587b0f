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

	"github.com/grailbio/base/errors"
)

// Frequencies maps allele names to population frequencies.  Thread safe once
// constructed.
type Frequencies struct {
	res     Resolution
	freqs   map[string]float64
	missing float64
}

// NewFrequencies creates a frequency lookup over the given table.  Keys are
// allele names at resolution res (longer catalog names are truncated to res
// before lookup).  Alleles absent from the table get frequency missing.
//
// Every frequency in the table, and missing itself, must lie in (0, 1].
func NewFrequencies(table map[string]float64, res Resolution, missing float64) (*Frequencies, error) {
	if !(missing > 0 && missing <= 1) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("NewFrequencies: default frequency %v not in (0, 1]", missing))
	}
	f := &Frequencies{res: res, freqs: make(map[string]float64, len(table)), missing: missing}
	for name, v := range table {
		if !(v > 0 && v <= 1) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewFrequencies: frequency %v of %s not in (0, 1]", v, name))
		}
		f.freqs[name] = v
	}
	return f, nil
}

// Len returns the number of table entries.
func (f *Frequencies) Len() int { return len(f.freqs) }

// LookupName returns the frequency of the named allele.  The exact name is
// tried first, then its truncation to the table resolution.  found is false
// if neither is present, in which case freq is the default frequency.
func (f *Frequencies) LookupName(name string) (freq float64, found bool) {
	if v, ok := f.freqs[name]; ok {
		return v, true
	}
	if f.res != ResolutionFull {
		if an, err := ParseAlleleName(name); err == nil {
			key := an.FourDigit
			if f.res == ResolutionTwoDigit {
				key = an.TwoDigit
			}
			if v, ok := f.freqs[key]; ok {
				return v, true
			}
		}
	}
	return f.missing, false
}

// Lookup returns the frequency of catalog allele i.  See LookupName.
func (f *Frequencies) Lookup(catalog *Catalog, i int) (freq float64, found bool) {
	if v, ok := f.freqs[catalog.Allele(i).Name]; ok {
		return v, true
	}
	if v, ok := f.freqs[catalog.ResolvedName(i, f.res)]; ok {
		return v, true
	}
	return f.missing, false
}
