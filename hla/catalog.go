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
	"encoding/binary"
	"fmt"
	"strings"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
)

// LocusID is a dense sequence number (0, 1, 2, ...) assigned to a locus (e.g.,
// "HLA-A").  IDs are valid only within one Catalog.
type LocusID int32

// GroupID is a dense sequence number assigned to a resolution group (e.g.,
// "HLA-A*02" or "HLA-A*02:01").  2-digit and 4-digit groups share one ID
// space.  IDs are valid only within one Catalog.
type GroupID int32

// AlleleRecord is one entry of the allele dictionary, as produced by the
// dictionary reader.
type AlleleRecord struct {
	// Name is the full allele name, e.g. "HLA-A*02:01:01:01".
	Name string
	// Start and Stop are the 0-based, inclusive genomic span of the allele.
	Start, Stop PosType
	// Seq holds one symbol per genomic position in [Start, Stop].  Deleted
	// positions carry DeletionChar.
	Seq []byte
}

// Allele is a catalog entry.  It is immutable once the Catalog is built.
type Allele struct {
	// Index is the position of this allele in the Catalog.
	Index int
	Name  string
	Locus LocusID
	// Group2 and Group4 are the 2-digit and 4-digit resolution groups.
	Group2, Group4 GroupID
	Start, Stop    PosType
	Seq            []byte
}

// Base returns the A/C/G/T/X enum value of the allele at the given position.
// Positions outside the allele span yield BaseX.
func (a *Allele) Base(pos PosType) byte {
	if pos < a.Start || pos > a.Stop {
		return BaseX
	}
	return ASCIIToEnumTable[a.Seq[pos-a.Start]]
}

// Overlap returns the intersection of the spans of a and b.  ok is false if
// the spans are disjoint.
func (a *Allele) Overlap(b *Allele) (start, stop PosType, ok bool) {
	start, stop = a.Start, a.Stop
	if b.Start > start {
		start = b.Start
	}
	if b.Stop < stop {
		stop = b.Stop
	}
	return start, stop, start <= stop
}

// AlleleName holds the parsed components of an allele name.
type AlleleName struct {
	Locus     string
	TwoDigit  string
	FourDigit string
}

// ParseAlleleName splits an allele name into its locus and its 2-digit and
// 4-digit resolution prefixes.
//
// Example: "HLA-A*02:01:01:01" -> {"HLA-A", "HLA-A*02", "HLA-A*02:01"}.
// Names without ':' separators use fixed-width fields:
// "A*020101" -> {"A", "A*02", "A*0201"}.
func ParseAlleleName(name string) (AlleleName, error) {
	star := strings.IndexByte(name, '*')
	if star <= 0 || star == len(name)-1 {
		return AlleleName{}, fmt.Errorf("ParseAlleleName: malformed allele name '%s'", name)
	}
	locus := name[:star]
	fields := name[star+1:]
	var two, four string
	if strings.IndexByte(fields, ':') >= 0 {
		parts := strings.Split(fields, ":")
		two = parts[0]
		four = two
		if len(parts) > 1 {
			four = parts[0] + ":" + parts[1]
		}
	} else {
		two = fields[:minInt(2, len(fields))]
		four = fields[:minInt(4, len(fields))]
	}
	return AlleleName{
		Locus:     locus,
		TwoDigit:  locus + "*" + two,
		FourDigit: locus + "*" + four,
	}, nil
}

// Resolution selects how much of an allele name is significant.
type Resolution int

const (
	// ResolutionFull uses the complete allele name.
	ResolutionFull Resolution = iota
	// ResolutionTwoDigit truncates names to the first field.
	ResolutionTwoDigit
	// ResolutionFourDigit truncates names to the first two fields.
	ResolutionFourDigit
)

// Catalog stores the candidate alleles of one run. Thread compatible; all
// methods are safe for concurrent use once NewCatalog returns.
type Catalog struct {
	alleles []Allele
	names   map[string]int

	loci     []string
	locusIDs map[string]LocusID
	byLocus  [][]int // LocusID -> allele indices, in catalog order
	groups   []string
	groupIDs map[string]GroupID
}

// NewCatalog validates the records and builds a Catalog.  Records are kept in
// the given order.
func NewCatalog(records []AlleleRecord) (*Catalog, error) {
	c := &Catalog{
		alleles:  make([]Allele, 0, len(records)),
		names:    make(map[string]int, len(records)),
		locusIDs: map[string]LocusID{},
		groupIDs: map[string]GroupID{},
	}
	for i, rec := range records {
		if rec.Name == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewCatalog: record %d has no name", i))
		}
		if _, ok := c.names[rec.Name]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewCatalog: duplicate allele %s", rec.Name))
		}
		if rec.Stop < rec.Start {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewCatalog: allele %s has span [%d, %d]", rec.Name, rec.Start, rec.Stop))
		}
		if len(rec.Seq) != int(rec.Stop-rec.Start)+1 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("NewCatalog: allele %s spans %d positions but its sequence has length %d",
				rec.Name, rec.Stop-rec.Start+1, len(rec.Seq)))
		}
		an, err := ParseAlleleName(rec.Name)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		locus := c.internLocus(an.Locus)
		c.names[rec.Name] = len(c.alleles)
		c.alleles = append(c.alleles, Allele{
			Index:  len(c.alleles),
			Name:   rec.Name,
			Locus:  locus,
			Group2: c.internGroup(an.TwoDigit),
			Group4: c.internGroup(an.FourDigit),
			Start:  rec.Start,
			Stop:   rec.Stop,
			Seq:    rec.Seq,
		})
		c.byLocus[locus] = append(c.byLocus[locus], i)
	}
	return c, nil
}

func (c *Catalog) internLocus(name string) LocusID {
	if id, ok := c.locusIDs[name]; ok {
		return id
	}
	id := LocusID(len(c.loci))
	c.locusIDs[name] = id
	c.loci = append(c.loci, name)
	c.byLocus = append(c.byLocus, nil)
	return id
}

func (c *Catalog) internGroup(name string) GroupID {
	if id, ok := c.groupIDs[name]; ok {
		return id
	}
	id := GroupID(len(c.groups))
	c.groupIDs[name] = id
	c.groups = append(c.groups, name)
	return id
}

// Len returns the number of alleles.
func (c *Catalog) Len() int { return len(c.alleles) }

// Allele returns the allele with the given index.
//
// REQUIRES: 0 <= i < Len().
func (c *Catalog) Allele(i int) *Allele { return &c.alleles[i] }

// AlleleByName returns the allele with the given name, or nil if there is
// none.
func (c *Catalog) AlleleByName(name string) *Allele {
	i, ok := c.names[name]
	if !ok {
		return nil
	}
	return &c.alleles[i]
}

// NLoci returns the number of distinct loci.
func (c *Catalog) NLoci() int { return len(c.loci) }

// LocusName returns the name of the given locus.
func (c *Catalog) LocusName(id LocusID) string { return c.loci[id] }

// LocusAlleles returns the indices of the alleles at the given locus.  The
// caller must not modify the result.
func (c *Catalog) LocusAlleles(id LocusID) []int { return c.byLocus[id] }

// NGroups returns the number of distinct resolution groups.
func (c *Catalog) NGroups() int { return len(c.groups) }

// GroupName returns the name of the given resolution group.
func (c *Catalog) GroupName(id GroupID) string { return c.groups[id] }

// ResolvedName returns the name of allele i at the given resolution.
func (c *Catalog) ResolvedName(i int, res Resolution) string {
	a := &c.alleles[i]
	switch res {
	case ResolutionTwoDigit:
		return c.groups[a.Group2]
	case ResolutionFourDigit:
		return c.groups[a.Group4]
	}
	return a.Name
}

// Fingerprint returns a hash of the allele names, spans and sequences.  Two
// catalogs with equal fingerprints are assumed to be identical.
func (c *Catalog) Fingerprint() uint64 {
	var buf []byte
	var span [8]byte
	for i := range c.alleles {
		a := &c.alleles[i]
		buf = append(buf, a.Name...)
		buf = append(buf, 0)
		binary.LittleEndian.PutUint32(span[:4], uint32(a.Start))
		binary.LittleEndian.PutUint32(span[4:], uint32(a.Stop))
		buf = append(buf, span[:]...)
		buf = append(buf, a.Seq...)
	}
	return farm.Fingerprint64(buf)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
