package hla

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestGenotypeIndex(t *testing.T) {
	seen := map[int]bool{}
	for b1 := byte(0); b1 < NBase; b1++ {
		for b2 := byte(0); b2 < NBase; b2++ {
			g := GenotypeIndex(b1, b2)
			expect.EQ(t, g, GenotypeIndex(b2, b1))
			name := GenotypeNames[g]
			expect.True(t, (name[0] == EnumToASCIITable[b1] && name[1] == EnumToASCIITable[b2]) ||
				(name[0] == EnumToASCIITable[b2] && name[1] == EnumToASCIITable[b1]), name)
			seen[g] = true
		}
	}
	expect.EQ(t, len(seen), NGenotype)
	expect.EQ(t, GenotypeIndex(BaseA, BaseX), -1)
	expect.EQ(t, GenotypeIndexASCII('g', 'C'), 5)
	expect.EQ(t, GenotypeIndexASCII('T', 'T'), 9)
	expect.EQ(t, GenotypeIndexASCII('D', 'A'), -1)
	expect.EQ(t, GenotypeIndexASCII('N', 'N'), -1)
}
