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

// Package hlatable reads the tab-separated tables consumed by the typing
// engine: the polymorphic site table and the population frequency table.
//
// The site table has a header row with columns POS, AA, AC, AG, AT, CC, CG,
// CT, GG, GT and TT.  POS is 1-based; each genotype column is a log10
// likelihood.
//
// The frequency table has a header row with columns ALLELE and FREQ.
//
// Lines starting with '#' are ignored.  Files may be compressed.
package hlatable

import (
	"context"
	"io"
	"math"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hlacall/hla"
	"github.com/pkg/errors"
)

// siteRow is one row of the site table.
type siteRow struct {
	Pos int64   `tsv:"POS"`
	AA  float64 `tsv:"AA"`
	AC  float64 `tsv:"AC"`
	AG  float64 `tsv:"AG"`
	AT  float64 `tsv:"AT"`
	CC  float64 `tsv:"CC"`
	CG  float64 `tsv:"CG"`
	CT  float64 `tsv:"CT"`
	GG  float64 `tsv:"GG"`
	GT  float64 `tsv:"GT"`
	TT  float64 `tsv:"TT"`
}

// freqRow is one row of the frequency table.
type freqRow struct {
	Allele string  `tsv:"ALLELE"`
	Freq   float64 `tsv:"FREQ"`
}

func newReader(r io.Reader) *tsv.Reader {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	tr.Comment = '#'
	return tr
}

// ParseSites parses a site table.  The sites are returned in file order with
// 0-based positions.
func ParseSites(r io.Reader) ([]hla.Site, error) {
	tr := newReader(r)
	var sites []hla.Site
	for line := 1; ; line++ {
		var row siteRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "hlatable.ParseSites: row %d", line)
		}
		if row.Pos < 1 || row.Pos-1 > math.MaxInt32 {
			return nil, errors.Errorf("hlatable.ParseSites: row %d: invalid POS %d", line, row.Pos)
		}
		sites = append(sites, hla.Site{
			Pos: hla.PosType(row.Pos - 1),
			LL:  [hla.NGenotype]float64{row.AA, row.AC, row.AG, row.AT, row.CC, row.CG, row.CT, row.GG, row.GT, row.TT},
		})
	}
	return sites, nil
}

// ParseFrequencies parses a frequency table.  An allele may appear only once.
func ParseFrequencies(r io.Reader) (map[string]float64, error) {
	tr := newReader(r)
	freqs := map[string]float64{}
	for line := 1; ; line++ {
		var row freqRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "hlatable.ParseFrequencies: row %d", line)
		}
		if _, ok := freqs[row.Allele]; ok {
			return nil, errors.Errorf("hlatable.ParseFrequencies: row %d: duplicate allele %s", line, row.Allele)
		}
		freqs[row.Allele] = row.Freq
	}
	return freqs, nil
}

// openTable opens path and calls parse on its (decompressed) contents.
func openTable(ctx context.Context, path string, parse func(r io.Reader) error) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, path); u != nil {
		defer func() {
			if e := u.Close(); e != nil && err == nil {
				err = e
			}
		}()
		r = u
	}
	if err = parse(r); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}

// ReadSites reads a site table file.  See ParseSites.
func ReadSites(ctx context.Context, path string) (sites []hla.Site, err error) {
	err = openTable(ctx, path, func(r io.Reader) (err error) {
		sites, err = ParseSites(r)
		return
	})
	return
}

// ReadFrequencies reads a frequency table file.  See ParseFrequencies.
func ReadFrequencies(ctx context.Context, path string) (freqs map[string]float64, err error) {
	err = openTable(ctx, path, func(r io.Reader) (err error) {
		freqs, err = ParseFrequencies(r)
		return
	})
	return
}
