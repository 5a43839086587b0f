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
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Read is one aligned read, padded the same way as catalog alleles: Seq[k] is
// the symbol at genomic position Start+k, and Stop is inclusive.
type Read struct {
	Start, Stop PosType
	Seq         []byte
}

// ReadSource yields reads one at a time.
//
//   for src.Scan() {
//     r := src.Get()
//     ...
//   }
//   if err := src.Err(); err != nil { ... }
type ReadSource interface {
	// Scan advances to the next read.  It returns false at the end of the
	// stream or on error.
	Scan() bool
	// Get returns the read loaded by the last Scan call.  The read may be
	// overwritten by the next call to Scan.
	Get() Read
	// Err returns the error, if any, that stopped Scan.
	Err() error
}

// jointKey identifies a (site, base) x (site, base) observation.  Each
// component is siteIndex*NBaseEnum + baseEnum.
type jointKey struct{ a, b int32 }

// sitePair identifies an ordered site pair (i, j), i < j.
type sitePair struct{ i, j int32 }

func jointIndex(site int, base byte) int32 {
	return int32(site*NBaseEnum) + int32(base)
}

// PhaseAccumulator builds base co-occurrence counts over pairs of polymorphic
// sites observed on the same read.  Thread compatible.
type PhaseAccumulator struct {
	sites *SiteTable
	joint map[jointKey]uint32
	total map[sitePair]uint32
	stats Stats

	siteBuf []int32 // sites covered by the current read
	baseBuf []byte  // bases of the current read at siteBuf
	frozen  bool
}

// NewPhaseAccumulator creates an empty accumulator over the given sites.
func NewPhaseAccumulator(sites *SiteTable) *PhaseAccumulator {
	return &PhaseAccumulator{
		sites: sites,
		joint: map[jointKey]uint32{},
		total: map[sitePair]uint32{},
	}
}

// Add records the site pairs observed on one read.  Sites are considered only
// if they lie strictly inside the read span, and only A/C/G/T symbols count.
//
// REQUIRES: Freeze has not been called.
func (pa *PhaseAccumulator) Add(r Read) error {
	if pa.frozen {
		panic("PhaseAccumulator.Add: called after Freeze")
	}
	if r.Stop < r.Start || len(r.Seq) != int(r.Stop-r.Start)+1 {
		return errors.E(errors.Invalid, fmt.Sprintf("PhaseAccumulator.Add: read span [%d, %d] does not match sequence length %d", r.Start, r.Stop, len(r.Seq)))
	}
	pa.stats.ReadsSeen++
	lo, hi := pa.sites.Range(r.Start, r.Stop)
	pa.siteBuf = pa.siteBuf[:0]
	pa.baseBuf = pa.baseBuf[:0]
	for k := lo; k < hi; k++ {
		base := ASCIIToEnumTable[r.Seq[pa.sites.Site(k).Pos-r.Start]]
		if base == BaseX {
			continue
		}
		pa.siteBuf = append(pa.siteBuf, int32(k))
		pa.baseBuf = append(pa.baseBuf, base)
	}
	n := len(pa.siteBuf)
	if n < 2 {
		return nil
	}
	pa.stats.ReadsUsed++
	for x := 0; x < n; x++ {
		i := pa.siteBuf[x]
		a := jointIndex(int(i), pa.baseBuf[x])
		for y := x + 1; y < n; y++ {
			j := pa.siteBuf[y]
			pa.joint[jointKey{a, jointIndex(int(j), pa.baseBuf[y])}]++
			pa.total[sitePair{i, j}]++
		}
	}
	pa.stats.PairObservations += int64(n * (n - 1) / 2)
	return nil
}

// AddAll consumes src until it is exhausted.  It checks ctx between reads.
func (pa *PhaseAccumulator) AddAll(ctx context.Context, src ReadSource) error {
	n := 0
	for src.Scan() {
		if err := pa.Add(src.Get()); err != nil {
			return err
		}
		n++
		if n%(1024*1024) == 0 {
			log.Printf("PhaseAccumulator: %dMi reads", n/(1024*1024))
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// Stats returns the read counters accumulated so far.
func (pa *PhaseAccumulator) Stats() Stats { return pa.stats }

// Freeze finishes accumulation and returns the read-only table.  The
// accumulator cannot be used afterwards.
func (pa *PhaseAccumulator) Freeze() *PhaseTable {
	pa.frozen = true
	pt := &PhaseTable{
		joint:    pa.joint,
		total:    pa.total,
		partners: make([][]int32, pa.sites.Len()),
	}
	for p := range pa.total {
		pt.partners[p.i] = append(pt.partners[p.i], p.j)
	}
	for i := range pt.partners {
		js := pt.partners[i]
		sort.Slice(js, func(x, y int) bool { return js[x] < js[y] })
	}
	log.Printf("PhaseAccumulator: froze %d site pairs (%d joint cells) from %d of %d reads",
		len(pa.total), len(pa.joint), pa.stats.ReadsUsed, pa.stats.ReadsSeen)
	pa.joint, pa.total = nil, nil
	return pt
}

// PhaseTable is the frozen result of a PhaseAccumulator.  Thread safe.
type PhaseTable struct {
	joint map[jointKey]uint32
	total map[sitePair]uint32
	// partners[i] lists, in ascending order, every j > i with a nonzero total.
	partners [][]int32
}

// JointCount returns the number of reads carrying base bi at site i and base
// bj at site j.
//
// REQUIRES: i < j.
func (pt *PhaseTable) JointCount(i int, bi byte, j int, bj byte) uint32 {
	return pt.joint[jointKey{jointIndex(i, bi), jointIndex(j, bj)}]
}

// Total returns the number of reads with A/C/G/T symbols at both sites i and
// j.  Only i < j is populated; other orders return zero.
func (pt *PhaseTable) Total(i, j int) uint32 {
	return pt.total[sitePair{int32(i), int32(j)}]
}

// Partners returns the sites j > i with Total(i, j) > 0, in ascending order.
// The caller must not modify the result.
func (pt *PhaseTable) Partners(i int) []int32 {
	return pt.partners[i]
}

// NSitePairs returns the number of site pairs with a nonzero total.
func (pt *PhaseTable) NSitePairs() int { return len(pt.total) }
