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

// PosType is the integer type used to represent genomic positions.
type PosType = int32

// These constants index both the per-read base symbols used by the phase
// accumulator and the rows of the diploid genotype table.
const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all.  It covers the deletion sentinel, N, and every other
	// symbol that is not one of A/C/G/T.
	BaseX
)

const (
	// NBase is the number of regular base types.
	NBase = 4
	// NBaseEnum counts BaseX as well as the regular base types.
	NBaseEnum = 5
	// NGenotype is the number of unordered diploid base pairs.
	NGenotype = NBase * (NBase + 1) / 2
)

// DeletionChar is the padded-sequence symbol for a deleted reference position.
const DeletionChar = 'D'

// ASCIIToEnumTable is the ASCII -> A/C/G/T/X enum mapping.  Lowercase bases
// map to the same values as uppercase ones.
var ASCIIToEnumTable [256]byte

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// GenotypeNames lists the genotypes in canonical index order.
var GenotypeNames = [NGenotype]string{"AA", "AC", "AG", "AT", "CC", "CG", "CT", "GG", "GT", "TT"}

// genotypeTable[b1][b2] is the canonical genotype index of the unordered pair
// {b1, b2}.
var genotypeTable [NBase][NBase]int

func init() {
	for i := range ASCIIToEnumTable {
		ASCIIToEnumTable[i] = BaseX
	}
	for b, c := range EnumToASCIITable[:NBase] {
		ASCIIToEnumTable[c] = byte(b)
		ASCIIToEnumTable[c+'a'-'A'] = byte(b)
	}
	idx := 0
	for b1 := 0; b1 < NBase; b1++ {
		for b2 := b1; b2 < NBase; b2++ {
			genotypeTable[b1][b2] = idx
			genotypeTable[b2][b1] = idx
			idx++
		}
	}
}

// GenotypeIndex returns the canonical index (0..9) of the unordered diploid
// pair {b1, b2}.  It returns -1 if either base is BaseX.
func GenotypeIndex(b1, b2 byte) int {
	if b1 >= NBase || b2 >= NBase {
		return -1
	}
	return genotypeTable[b1][b2]
}

// GenotypeIndexASCII is GenotypeIndex for ASCII base symbols.
func GenotypeIndexASCII(c1, c2 byte) int {
	return GenotypeIndex(ASCIIToEnumTable[c1], ASCIIToEnumTable[c2])
}
