package hla

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

var testCalls = []Call{
	{
		Locus: "A", Allele1: "A*01:01", Allele2: "A*02:01",
		AlleleLikelihood: -1.5, PhaseLikelihood: -0.25, Freq1: 0.1, Freq2: 1e-4,
		Combined: -6.75, Posterior: 0.875, Pairs: 3, CopyFraction: 0.5,
	},
	{
		Locus: "B", Allele1: "B*07:02", Allele2: "B*07:02",
		AlleleLikelihood: 0, PhaseLikelihood: 0, Freq1: 0.5, Freq2: 0.5,
		Combined: -0.60206, Posterior: 1, Pairs: 1, CopyFraction: 1,
	},
}

const testCallsTSV = `LOCUS	ALLELE1	ALLELE2	ALLELE_LL	PHASE_LL	FREQ1	FREQ2	COMBINED	POSTERIOR	PAIRS	COPY_FRACTION
A	A*01:01	A*02:01	-1.5	-0.25	0.1	0.0001	-6.75	0.875	3	0.5
B	B*07:02	B*07:02	0	0	0.5	0.5	-0.60206	1	1	1
`

func TestWriteCalls(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteCalls(testCalls, &buf))
	expect.EQ(t, buf.String(), testCallsTSV)
}

func TestWritePairScores(t *testing.T) {
	c := newTestCatalog(t, rec("A*01:01", 100, "A"), rec("A*02:01", 100, "A"))
	var buf bytes.Buffer
	assert.NoError(t, WritePairScores(c, []PairScore{
		{Allele1: 0, Allele2: 1, AlleleLikelihood: -2, PhaseLikelihood: -1, Freq1: 0.1, Freq2: 0.01},
	}, &buf))
	expect.EQ(t, buf.String(), "ALLELE1\tALLELE2\tALLELE_LL\tPHASE_LL\tFREQ1\tFREQ2\tCOMBINED\n"+
		"A*01:01\tA*02:01\t-2\t-1\t0.1\t0.01\t-6\n")
}

func TestWriteCallsFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "calls.tsv")
	assert.NoError(t, WriteCallsFile(ctx, path, testCalls))
	data, err := file.ReadFile(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, string(data), testCallsTSV)

	path = filepath.Join(tmpdir, "calls.tsv.gz")
	assert.NoError(t, WriteCallsFile(ctx, path, testCalls))
	data, err = file.ReadFile(ctx, path)
	assert.NoError(t, err)
	gz, err := gzip.NewReader(bytes.NewReader(data))
	assert.NoError(t, err)
	data, err = ioutil.ReadAll(gz)
	assert.NoError(t, err)
	expect.True(t, strings.HasPrefix(string(data), "LOCUS\t"))
	expect.EQ(t, string(data), testCallsTSV)
}
