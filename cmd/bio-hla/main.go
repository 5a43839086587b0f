package main

// bio-hla infers the diploid HLA genotype of a sample from reads aligned
// against the HLA region.
//
// This application has two phases
//
//   1. accumulate phase evidence from the reads, prune the allele catalog and
//      score every surviving allele pair.  The raw scores can be saved with
//      -raw-output.
//
//   2. turn the pair scores into per-locus posteriors and report the 4-digit
//      calls.
//
// Example 1: run both phases.
//
//    bio-hla -freq=freq.tsv -out=calls.tsv -raw-output=scores.rio dict.bam reads.bam sites.tsv
//
// Example 2: run only the 2nd phase using the result from the previous example.
//
//    bio-hla -raw-input=scores.rio -posterior-threshold=0.05 dict.bam

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hlacall/encoding/hlatable"
	"github.com/grailbio/hlacall/encoding/padded"
	"github.com/grailbio/hlacall/hla"
	yaml "gopkg.in/yaml.v2"
)

// Collection of options set via cmdline flags
type hlaFlags struct {
	freqPath      string
	outputPath    string
	rawOutputPath string
	rawInputPath  string
	configPath    string
	debugPair     string
}

func usage() {
	fmt.Fprintln(os.Stderr, `
bio-hla reads an allele dictionary (allele sequences aligned to the reference,
one record per allele, allele name in QNAME), sample reads aligned to the same
reference, and a table of per-site genotype log10 likelihoods.  It writes the
called allele pairs of each locus as a TSV file.

Usage:
  bio-hla [flags] dictionary.{sam,bam} reads.{sam,bam} sites.tsv
  bio-hla [flags] -raw-input=scores.rio dictionary.{sam,bam}

Flags:`)
	flag.PrintDefaults()
}

type resolutionFlag struct{ r *hla.Resolution }

func (f resolutionFlag) String() string {
	if f.r == nil {
		return ""
	}
	return f.r.String()
}

func (f resolutionFlag) Set(s string) (err error) {
	*f.r, err = hla.ParseResolution(s)
	return
}

type phasePolicyFlag struct{ p *hla.PhasePolicy }

func (f phasePolicyFlag) String() string {
	if f.p == nil {
		return ""
	}
	return f.p.String()
}

func (f phasePolicyFlag) Set(s string) (err error) {
	*f.p, err = hla.ParsePhasePolicy(s)
	return
}

// loadConfig reads Opts from a YAML file, starting from hla.DefaultOpts.
func loadConfig(ctx context.Context, path string) hla.Opts {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		log.Panicf("read %v: %v", path, err)
	}
	opts := hla.DefaultOpts
	if err := yaml.UnmarshalStrict(data, &opts); err != nil {
		log.Panicf("parse %v: %v", path, err)
	}
	return opts
}

// applyConfig replaces *opts with the contents of the config file, then
// re-applies the flags given on the command line so that they take precedence.
func applyConfig(ctx context.Context, fs *flag.FlagSet, path string, opts *hla.Opts) {
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
	*opts = loadConfig(ctx, path)
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			log.Panicf("flag -%s=%s: %v", name, value, err)
		}
	}
	log.Printf("Options loaded from %s: %+v", path, *opts)
}

func loadCatalog(ctx context.Context, path string) *hla.Catalog {
	recs, err := padded.ReadDictionary(ctx, path)
	if err != nil {
		log.Panicf("read dictionary %v: %v", path, err)
	}
	catalog, err := hla.NewCatalog(recs)
	if err != nil {
		log.Panicf("dictionary %v: %v", path, err)
	}
	log.Printf("Catalog: %d alleles at %d loci", catalog.Len(), catalog.NLoci())
	return catalog
}

func loadFrequencies(ctx context.Context, path string, opts hla.Opts) *hla.Frequencies {
	var table map[string]float64
	if path != "" {
		var err error
		if table, err = hlatable.ReadFrequencies(ctx, path); err != nil {
			log.Panicf("read frequencies %v: %v", path, err)
		}
	}
	freqs, err := hla.NewFrequencies(table, opts.FrequencyResolution, opts.MissingFrequency)
	if err != nil {
		log.Panicf("frequencies %v: %v", path, err)
	}
	return freqs
}

func writeCalls(ctx context.Context, path string, calls []hla.Call) {
	var err error
	if path == "" {
		err = hla.WriteCalls(calls, os.Stdout)
	} else {
		err = hla.WriteCallsFile(ctx, path, calls)
	}
	if err != nil {
		log.Panicf("write calls: %v", err)
	}
}

// debugPair scores the comma-separated pair of allele names and writes it to
// w.
func debugPair(e *hla.Engine, pair string, w io.Writer) {
	names := strings.Split(pair, ",")
	if len(names) != 2 {
		log.Panicf("-debug-pair %s: expect two comma-separated allele names", pair)
	}
	s, err := e.ScorePair(names[0], names[1])
	if err != nil {
		log.Panicf("-debug-pair: %v", err)
	}
	log.Printf("Pair %s,%s: allele %v phase %v freqs %v,%v combined %v",
		names[0], names[1], s.AlleleLikelihood, s.PhaseLikelihood, s.Freq1, s.Freq2, s.Combined())
	if err := hla.WritePairScores(e.Catalog(), []hla.PairScore{s}, w); err != nil {
		log.Panicf("-debug-pair: %v", err)
	}
}

// reaggregate runs only the aggregation phase over previously saved scores.
func reaggregate(ctx context.Context, flags hlaFlags, opts hla.Opts, dictPath string) {
	catalog := loadCatalog(ctx, dictPath)
	scores, rawOpts, err := hla.ReadRawScores(ctx, flags.rawInputPath, catalog)
	if err != nil {
		log.Panicf("read raw scores: %v", err)
	}
	log.Printf("Raw scores were computed with %+v", rawOpts)
	calls, _ := hla.Aggregate(catalog, scores, opts)
	writeCalls(ctx, flags.outputPath, calls)
}

// callGenotypes runs both phases.
func callGenotypes(ctx context.Context, flags hlaFlags, opts hla.Opts, dictPath, readsPath, sitesPath string) {
	catalog := loadCatalog(ctx, dictPath)
	siteList, err := hlatable.ReadSites(ctx, sitesPath)
	if err != nil {
		log.Panicf("read sites %v: %v", sitesPath, err)
	}
	sites, err := hla.NewSiteTable(catalog, siteList)
	if err != nil {
		log.Panicf("sites %v: %v", sitesPath, err)
	}
	e, err := hla.NewEngine(catalog, sites, loadFrequencies(ctx, flags.freqPath, opts), opts)
	if err != nil {
		log.Panicf("%v", err)
	}

	sc, err := padded.NewScanner(ctx, readsPath)
	if err != nil {
		log.Panicf("open reads %v: %v", readsPath, err)
	}
	if err := e.Accumulate(ctx, sc); err != nil {
		log.Panicf("accumulate %v: %v", readsPath, err)
	}
	if err := sc.Close(ctx); err != nil {
		log.Panicf("close %v: %v", readsPath, err)
	}
	if flags.debugPair != "" {
		// Calls may go to stdout.
		debugPair(e, flags.debugPair, os.Stderr)
	}

	calls, scores, err := e.Call(ctx)
	if err != nil {
		log.Panicf("%v", err)
	}
	if flags.rawOutputPath != "" {
		if err := hla.WriteRawScores(ctx, flags.rawOutputPath, catalog, opts, e.Stats(), scores); err != nil {
			log.Panicf("%v", err)
		}
	}
	writeCalls(ctx, flags.outputPath, calls)
}

// registerFlags defines the bio-hla flags on fs.  Option flags write into
// *opts.
func registerFlags(fs *flag.FlagSet, flags *hlaFlags, opts *hla.Opts) {
	fs.StringVar(&flags.freqPath, "freq", "", "TSV file (ALLELE, FREQ) of population allele frequencies. If empty, every allele gets -missing-frequency.")
	fs.StringVar(&flags.outputPath, "out", "", "Path of the calls TSV. Paths ending in .gz are compressed. If empty, calls are written to stdout.")
	fs.StringVar(&flags.rawOutputPath, "raw-output", "", "If nonempty, the pair scores are saved in this recordio file.")
	fs.StringVar(&flags.rawInputPath, "raw-input", "", `Recordio file produced by -raw-output. If nonempty, only the aggregation phase
is run, and the only positional argument is the allele dictionary used to produce the file.`)
	fs.StringVar(&flags.configPath, "config", "", "YAML file of options. Flags given explicitly override its values.")
	fs.StringVar(&flags.debugPair, "debug-pair", "", "Comma-separated pair of allele names to score and print, bypassing pruning.")

	fs.IntVar(&opts.TopK, "top-k", hla.DefaultOpts.TopK, "Number of alleles kept per 2-digit group by the homozygous screen")
	fs.Float64Var(&opts.TopFraction, "top-fraction", hla.DefaultOpts.TopFraction,
		"If positive, keep at least this fraction of each 2-digit group in the homozygous screen")
	fs.Float64Var(&opts.MinFrequency, "min-frequency", hla.DefaultOpts.MinFrequency,
		"Pairs with an allele frequency at or below this value are not scored")
	fs.Float64Var(&opts.MissingFrequency, "missing-frequency", hla.DefaultOpts.MissingFrequency,
		"Frequency of alleles absent from the -freq table")
	fs.Var(resolutionFlag{&opts.FrequencyResolution}, "frequency-resolution",
		"Resolution of the allele names in the -freq table: full, 2 or 4")
	fs.Float64Var(&opts.PhaseErrorRate, "phase-error-rate", hla.DefaultOpts.PhaseErrorRate,
		"Probability that a read pairs bases from different haplotypes")
	fs.Var(phasePolicyFlag{&opts.PhasePolicy}, "phase-policy",
		"Site pairs scored by the phase likelihood: nearest (first partner of each site) or all")
	fs.Float64Var(&opts.PosteriorThreshold, "posterior-threshold", hla.DefaultOpts.PosteriorThreshold,
		"Calls with a posterior at or below this value are not reported")
	fs.IntVar(&opts.Parallelism, "parallelism", hla.DefaultOpts.Parallelism, "Number of scoring threads. If <= 0, use all CPUs")
}

func main() {
	flag.Usage = usage
	opts := hla.DefaultOpts
	flags := hlaFlags{}
	registerFlags(flag.CommandLine, &flags, &opts)

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if flags.configPath != "" {
		applyConfig(ctx, flag.CommandLine, flags.configPath, &opts)
	}
	if err := opts.Validate(); err != nil {
		log.Fatal(err)
	}
	if flags.rawInputPath != "" {
		if flag.NArg() != 1 {
			log.Fatal("with -raw-input, exactly one argument (<dictionary>) is required")
		}
		reaggregate(ctx, flags, opts, flag.Arg(0))
	} else {
		if flag.NArg() != 3 {
			log.Fatal("exactly three arguments (<dictionary> <reads> <sites>) are required")
		}
		callGenotypes(ctx, flags, opts, flag.Arg(0), flag.Arg(1), flag.Arg(2))
	}
	log.Printf("All done")
}
