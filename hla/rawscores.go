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

// This file defines WriteRawScores and ReadRawScores. The raw-score file holds
// the Tier-2 pair scores of one run, so that aggregation can be re-run (for
// example with another posterior threshold) without re-reading the reads.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	// <fileVersionHeader, fileVersion> is stored in a recordio header.
	fileVersionHeader = "hlarawversion"
	fileVersion       = "HLA_RAW_V1"
)

// rawScoreTrailer is stored in the trailer section of the recordio file.
type rawScoreTrailer struct {
	// Opts is the list of options used to generate the scores.
	Opts Opts
	// Stats are the statistics of the run that produced the scores.
	Stats Stats
	// Fingerprint is Catalog.Fingerprint() of the catalog the allele indices
	// refer to.
	Fingerprint uint64
	// NScores is the number of records.
	NScores int
}

// WriteRawScores dumps the pair scores into a recordio file.
func WriteRawScores(ctx context.Context, path string, catalog *Catalog, opts Opts, stats Stats, scores []PairScore) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "couldn't create raw score file:", path)
	}
	once := errors.Once{}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	w.AddHeader(recordio.KeyTrailer, true)
	for _, s := range scores {
		b := bytes.NewBuffer(nil)
		if err := gob.NewEncoder(b).Encode(s); err != nil {
			once.Set(err)
			break
		}
		w.Append(b.Bytes())
	}
	b := bytes.NewBuffer(nil)
	once.Set(gob.NewEncoder(b).Encode(rawScoreTrailer{
		Opts:        opts,
		Stats:       stats,
		Fingerprint: catalog.Fingerprint(),
		NScores:     len(scores),
	}))
	w.SetTrailer(b.Bytes())
	once.Set(w.Finish())
	once.Set(out.Close(ctx))
	if err = once.Err(); err != nil {
		return errors.E(err, "error writing raw score file:", path)
	}
	log.Printf("WriteRawScores: wrote %d scores to %s", len(scores), path)
	return nil
}

// ReadRawScores reads a file written by WriteRawScores.  The catalog must be
// identical to the one the file was written with.
func ReadRawScores(ctx context.Context, path string, catalog *Catalog) (scores []PairScore, opts Opts, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, opts, errors.E(err, "couldn't open raw score file:", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			if v, _ := kv.Value.(string); v != fileVersion {
				return nil, opts, errors.E(errors.Invalid, fmt.Sprintf("ReadRawScores %s: file version mismatch, got %v, expect %v", path, kv.Value, fileVersion))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, opts, errors.E(errors.Invalid, fmt.Sprintf("ReadRawScores %s: %s header not found", path, fileVersionHeader))
	}
	var trailer rawScoreTrailer
	if err = gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&trailer); err != nil {
		return nil, opts, errors.E(err, "couldn't decode raw score trailer:", path)
	}
	if fp := catalog.Fingerprint(); fp != trailer.Fingerprint {
		return nil, opts, errors.E(errors.Invalid, fmt.Sprintf("ReadRawScores %s: catalog fingerprint %x does not match file fingerprint %x", path, fp, trailer.Fingerprint))
	}
	scores = make([]PairScore, 0, trailer.NScores)
	for r.Scan() {
		var s PairScore
		if err = gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&s); err != nil {
			return nil, opts, errors.E(err, "couldn't decode raw score:", path)
		}
		if s.Allele1 < 0 || s.Allele1 >= catalog.Len() || s.Allele2 < 0 || s.Allele2 >= catalog.Len() {
			return nil, opts, errors.E(errors.Invalid, fmt.Sprintf("ReadRawScores %s: allele index out of range in %+v", path, s))
		}
		scores = append(scores, s)
	}
	if err = r.Err(); err != nil {
		return nil, opts, errors.E(err, "error reading raw score file:", path)
	}
	if err = r.Finish(); err != nil {
		return nil, opts, err
	}
	log.Printf("ReadRawScores: read %d scores from %s", len(scores), path)
	return scores, trailer.Opts, nil
}
