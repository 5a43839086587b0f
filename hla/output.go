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
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

const callHeader = "LOCUS\tALLELE1\tALLELE2\tALLELE_LL\tPHASE_LL\tFREQ1\tFREQ2\tCOMBINED\tPOSTERIOR\tPAIRS\tCOPY_FRACTION"

const pairHeader = "ALLELE1\tALLELE2\tALLELE_LL\tPHASE_LL\tFREQ1\tFREQ2\tCOMBINED"

func writeFloat(w *tsv.Writer, v float64) {
	w.WriteFloat64(v, 'g', 6)
}

// WriteCalls writes the calls as a TSV with a header line.
func WriteCalls(calls []Call, w io.Writer) (err error) {
	tw := tsv.NewWriter(w)
	tw.WriteString(callHeader)
	if err = tw.EndLine(); err != nil {
		return
	}
	for _, c := range calls {
		tw.WriteString(c.Locus)
		tw.WriteString(c.Allele1)
		tw.WriteString(c.Allele2)
		writeFloat(tw, c.AlleleLikelihood)
		writeFloat(tw, c.PhaseLikelihood)
		writeFloat(tw, c.Freq1)
		writeFloat(tw, c.Freq2)
		writeFloat(tw, c.Combined)
		writeFloat(tw, c.Posterior)
		tw.WriteInt64(int64(c.Pairs))
		writeFloat(tw, c.CopyFraction)
		if err = tw.EndLine(); err != nil {
			return
		}
	}
	return tw.Flush()
}

// WritePairScores writes raw pair scores as a TSV with a header line.
func WritePairScores(catalog *Catalog, scores []PairScore, w io.Writer) (err error) {
	tw := tsv.NewWriter(w)
	tw.WriteString(pairHeader)
	if err = tw.EndLine(); err != nil {
		return
	}
	for _, s := range scores {
		tw.WriteString(catalog.Allele(s.Allele1).Name)
		tw.WriteString(catalog.Allele(s.Allele2).Name)
		writeFloat(tw, s.AlleleLikelihood)
		writeFloat(tw, s.PhaseLikelihood)
		writeFloat(tw, s.Freq1)
		writeFloat(tw, s.Freq2)
		writeFloat(tw, s.Combined())
		if err = tw.EndLine(); err != nil {
			return
		}
	}
	return tw.Flush()
}

// WriteCallsFile writes the calls to the given path.  Paths ending in ".gz"
// are gzip-compressed.
func WriteCallsFile(ctx context.Context, path string, calls []Call) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create calls file:", path)
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "error closing calls file:", path)
		}
	}()
	var w io.Writer = out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = errors.E(e, "error compressing calls file:", path)
			}
		}()
		w = gz
	}
	if err = WriteCalls(calls, w); err != nil {
		return errors.E(err, "error writing calls file:", path)
	}
	log.Printf("WriteCallsFile: wrote %d calls to %s", len(calls), path)
	return nil
}
