package hlatable_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hlacall/encoding/hlatable"
	"github.com/grailbio/hlacall/hla"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const siteTable = `# sites
POS	AA	AC	AG	AT	CC	CG	CT	GG	GT	TT
103	2.0	0	0	0	0	0	0	0	0	0
101	-0.1	-1	-2	-3	-4	-5	-6	-7	-8	-9
`

func TestParseSites(t *testing.T) {
	sites, err := hlatable.ParseSites(strings.NewReader(siteTable))
	assert.NoError(t, err)
	expect.EQ(t, sites, []hla.Site{
		{Pos: 102, LL: [hla.NGenotype]float64{2}},
		{Pos: 100, LL: [hla.NGenotype]float64{-0.1, -1, -2, -3, -4, -5, -6, -7, -8, -9}},
	})

	_, err = hlatable.ParseSites(strings.NewReader("POS\tAA\tAC\tAG\tAT\tCC\tCG\tCT\tGG\tGT\tTT\n0\t0\t0\t0\t0\t0\t0\t0\t0\t0\t0\n"))
	expect.True(t, err != nil)
	_, err = hlatable.ParseSites(strings.NewReader("POS\tAA\tAC\tAG\tAT\tCC\tCG\tCT\tGG\tGT\tTT\n3000000000\t0\t0\t0\t0\t0\t0\t0\t0\t0\t0\n"))
	expect.True(t, err != nil)
	_, err = hlatable.ParseSites(strings.NewReader("POS\tAA\tAC\tAG\tAT\tCC\tCG\tCT\tGG\tGT\tTT\n5\tx\t0\t0\t0\t0\t0\t0\t0\t0\t0\n"))
	expect.True(t, err != nil)
}

func TestParseFrequencies(t *testing.T) {
	freqs, err := hlatable.ParseFrequencies(strings.NewReader("ALLELE\tFREQ\nA*01:01\t0.15\nA*02\t0.3\n"))
	assert.NoError(t, err)
	expect.EQ(t, freqs, map[string]float64{"A*01:01": 0.15, "A*02": 0.3})

	_, err = hlatable.ParseFrequencies(strings.NewReader("ALLELE\tFREQ\nA*01:01\t0.15\nA*01:01\t0.3\n"))
	expect.True(t, err != nil)
}

func TestReadSitesFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(siteTable))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	path := filepath.Join(tmpdir, "sites.tsv.gz")
	assert.NoError(t, file.WriteFile(ctx, path, buf.Bytes()))

	sites, err := hlatable.ReadSites(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, len(sites), 2)
	expect.EQ(t, sites[0].Pos, hla.PosType(102))

	path = filepath.Join(tmpdir, "freq.tsv")
	assert.NoError(t, file.WriteFile(ctx, path, []byte("ALLELE\tFREQ\nB*07:02\t0.5\n")))
	freqs, err := hlatable.ReadFrequencies(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, freqs["B*07:02"], 0.5)

	_, err = hlatable.ReadSites(ctx, filepath.Join(tmpdir, "missing.tsv"))
	expect.True(t, err != nil)
}
