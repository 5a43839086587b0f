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

// Package padded converts aligned SAM/BAM records into padded sequences: one
// symbol per reference position covered by the alignment, with deleted
// positions marked by hla.DeletionChar.  It is used both for the allele
// dictionary and for the read stream.
package padded

import (
	"github.com/grailbio/hlacall/hla"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// ExcludeFlags is the set of SAM flags whose reads are dropped from the read
// stream: unmapped, secondary, QC-fail, duplicate and supplementary.
const ExcludeFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate | sam.Supplementary

// Pad expands the CIGAR of rec.  start and stop are the 0-based, inclusive
// reference span, and seq[k] is the symbol aligned to reference position
// start+k.  Insertions and clips are dropped; deletions and skipped regions
// are filled with hla.DeletionChar.
//
// The returned sequence is appended to buf[:0].
func Pad(rec *sam.Record, buf []byte) (start, stop hla.PosType, seq []byte, err error) {
	if len(rec.Cigar) == 0 {
		return 0, 0, nil, errors.Errorf("padded.Pad %s: no CIGAR", rec.Name)
	}
	bases := rec.Seq.Expand()
	seq = buf[:0]
	posInRead := 0
	for _, co := range rec.Cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if posInRead+cLen > len(bases) {
				return 0, 0, nil, errors.Errorf("padded.Pad %s: CIGAR %v consumes %d bases, but the read has %d",
					rec.Name, rec.Cigar, posInRead+cLen, len(bases))
			}
			seq = append(seq, bases[posInRead:posInRead+cLen]...)
			posInRead += cLen
		case sam.CigarSkipped:
			// Same handling as deletion.
			fallthrough
		case sam.CigarDeletion:
			for i := 0; i < cLen; i++ {
				seq = append(seq, hla.DeletionChar)
			}
		case sam.CigarInsertion, sam.CigarSoftClipped:
			posInRead += cLen
		case sam.CigarHardClipped, sam.CigarPadded:
			// do nothing
		default:
			return 0, 0, nil, errors.Errorf("padded.Pad %s: unexpected CIGAR code %v", rec.Name, co)
		}
	}
	if len(seq) == 0 {
		return 0, 0, nil, errors.Errorf("padded.Pad %s: CIGAR %v covers no reference positions", rec.Name, rec.Cigar)
	}
	start = hla.PosType(rec.Pos)
	stop = start + hla.PosType(len(seq)) - 1
	return start, stop, seq, nil
}
