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

package padded

import (
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlacall/hla"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// recordReader is implemented by both sam.Reader and bam.Reader.
type recordReader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
}

// isSAM checks if path names a SAM file, possibly compressed.
func isSAM(path string) bool {
	for _, ext := range []string{".sam", ".sam.gz", ".sam.bz2", ".sam.zst"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// source is an open SAM or BAM file.
type source struct {
	path string
	in   file.File
	rc   io.ReadCloser // decompressor, if any
	r    recordReader
}

func openSource(ctx context.Context, path string) (*source, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	s := &source{path: path, in: in}
	var r io.Reader = in.Reader(ctx)
	if isSAM(path) {
		if u := compress.NewReaderPath(r, path); u != nil {
			s.rc = u
			r = u
		}
		var sr *sam.Reader
		if sr, err = sam.NewReader(r); err == nil {
			s.r = sr
		}
	} else {
		var br *bam.Reader
		if br, err = bam.NewReader(r, runtime.NumCPU()); err == nil {
			s.r = br
		}
	}
	if err != nil {
		_ = s.close(ctx)
		return nil, errors.E(err, "read header of", path)
	}
	return s, nil
}

func (s *source) close(ctx context.Context) error {
	once := errors.Once{}
	if br, ok := s.r.(*bam.Reader); ok {
		once.Set(br.Close())
	}
	if s.rc != nil {
		once.Set(s.rc.Close())
	}
	once.Set(s.in.Close(ctx))
	return once.Err()
}

// Scanner reads an aligned SAM or BAM file and yields padded reads.  It
// implements hla.ReadSource.  Records matching ExcludeFlags are skipped.
//
//   sc, err := padded.NewScanner(ctx, "reads.bam")
//   ...
//   for sc.Scan() {
//     r := sc.Get()
//   }
//   err = sc.Close(ctx)
type Scanner struct {
	src  *source
	read hla.Read
	buf  []byte
	err  error

	nRecords, nSkipped int
}

// NewScanner opens the given file.  Files ending in ".sam" (optionally
// followed by a compression suffix) are parsed as SAM, others as BAM.
func NewScanner(ctx context.Context, path string) (*Scanner, error) {
	src, err := openSource(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Scanner{src: src}, nil
}

// Header returns the SAM header of the file.
func (s *Scanner) Header() *sam.Header { return s.src.r.Header() }

// Scan reads the next usable record.  It returns false on EOF or error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for {
		rec, err := s.src.r.Read()
		if err != nil {
			if err != io.EOF {
				s.err = errors.E(err, "read", s.src.path)
			}
			return false
		}
		s.nRecords++
		if rec.Flags&ExcludeFlags != 0 || len(rec.Cigar) == 0 {
			s.nSkipped++
			sam.PutInFreePool(rec)
			continue
		}
		s.read.Start, s.read.Stop, s.buf, err = Pad(rec, s.buf)
		sam.PutInFreePool(rec)
		if err != nil {
			s.err = errors.E(errors.Invalid, err, s.src.path)
			return false
		}
		s.read.Seq = s.buf
		return true
	}
}

// Get returns the read loaded by the last Scan call.  Its sequence is
// overwritten by the next Scan.
func (s *Scanner) Get() hla.Read { return s.read }

// Err returns the error that stopped Scan, if any.
func (s *Scanner) Err() error { return s.err }

// Close closes the underlying file.
func (s *Scanner) Close(ctx context.Context) error {
	log.Printf("padded.Scanner %s: %d records, %d skipped", s.src.path, s.nRecords, s.nSkipped)
	return s.src.close(ctx)
}

// ReadDictionary reads the allele dictionary: one aligned record per allele,
// with the allele name in the QNAME field.  Unmapped records are skipped.
func ReadDictionary(ctx context.Context, path string) (recs []hla.AlleleRecord, err error) {
	src, err := openSource(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := src.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	nSkipped := 0
	for {
		rec, e := src.r.Read()
		if e != nil {
			if e != io.EOF {
				return nil, errors.E(e, "read", path)
			}
			break
		}
		if rec.Flags&sam.Unmapped != 0 || len(rec.Cigar) == 0 {
			nSkipped++
			continue
		}
		start, stop, seq, e := Pad(rec, nil)
		if e != nil {
			return nil, errors.E(errors.Invalid, e, path)
		}
		recs = append(recs, hla.AlleleRecord{Name: rec.Name, Start: start, Stop: stop, Seq: seq})
	}
	log.Printf("ReadDictionary %s: %d alleles, %d unmapped records skipped", path, len(recs), nSkipped)
	return recs, nil
}
