package hla

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestFrequencies(t *testing.T) {
	c := newTestCatalog(t,
		rec("A*01:01:01:01", 100, "A"),
		rec("A*01:01:02", 100, "A"),
		rec("A*02:01:01", 100, "A"),
		rec("A*03:01", 100, "A"))
	f, err := NewFrequencies(map[string]float64{
		"A*01:01":    0.25,
		"A*01:01:02": 0.01,
		"A*02":       0.5,
	}, ResolutionFourDigit, 1e-5)
	require.NoError(t, err)
	expect.EQ(t, f.Len(), 3)

	tests := []struct {
		i     int
		freq  float64
		found bool
	}{
		{0, 0.25, true},
		{1, 0.01, true},
		{2, 1e-5, false},
		{3, 1e-5, false},
	}
	for _, test := range tests {
		freq, found := f.Lookup(c, test.i)
		expect.EQ(t, freq, test.freq, test)
		expect.EQ(t, found, test.found, test)
		freq, found = f.LookupName(c.Allele(test.i).Name)
		expect.EQ(t, freq, test.freq, test)
		expect.EQ(t, found, test.found, test)
	}

	f, err = NewFrequencies(map[string]float64{"A*02": 0.5}, ResolutionTwoDigit, 1e-5)
	require.NoError(t, err)
	freq, found := f.Lookup(c, 2)
	expect.EQ(t, freq, 0.5)
	expect.True(t, found)
}

func TestFrequenciesErrors(t *testing.T) {
	for _, v := range []float64{0, -0.1, 1.5} {
		_, err := NewFrequencies(map[string]float64{"A*01:01": v}, ResolutionFourDigit, 1e-4)
		expect.True(t, errors.Is(errors.Invalid, err), v)
	}
	_, err := NewFrequencies(nil, ResolutionFourDigit, 0)
	expect.True(t, errors.Is(errors.Invalid, err))
}
