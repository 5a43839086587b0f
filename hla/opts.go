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
	"fmt"
	"math"
	"runtime"
)

// Opts controls candidate pruning, scoring and reporting.
type Opts struct {
	// TopK is the number of alleles retained per (locus, 2-digit group) by the
	// homozygous screen.
	TopK int `yaml:"top-k"`
	// TopFraction, if positive, raises the per-group cap to
	// ceil(TopFraction * groupSize) when that exceeds TopK.
	TopFraction float64 `yaml:"top-fraction"`
	// MinFrequency is the exclusive lower bound on the population frequency of
	// both alleles of a scored pair.
	MinFrequency float64 `yaml:"min-frequency"`
	// MissingFrequency is used for alleles absent from the frequency table.
	MissingFrequency float64 `yaml:"missing-frequency"`
	// FrequencyResolution is the allele-name resolution of the frequency table
	// keys.
	FrequencyResolution Resolution `yaml:"frequency-resolution"`
	// PhaseErrorRate is the per-observation probability that a read pairs
	// bases from different haplotypes.
	PhaseErrorRate float64 `yaml:"phase-error-rate"`
	// PhasePolicy selects which site pairs contribute to phase likelihoods.
	PhasePolicy PhasePolicy `yaml:"phase-policy"`
	// PosteriorThreshold is the exclusive lower bound on the summed posterior
	// of a reported call.
	PosteriorThreshold float64 `yaml:"posterior-threshold"`
	// Parallelism is the number of scoring workers; <= 0 means
	// runtime.NumCPU().
	Parallelism int `yaml:"parallelism"`
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	TopK:                5,
	TopFraction:         0,
	MinFrequency:        0,
	MissingFrequency:    1e-4,
	FrequencyResolution: ResolutionFourDigit,
	PhaseErrorRate:      0.01,
	PhasePolicy:         PhaseNearestPartner,
	PosteriorThreshold:  0.1,
	Parallelism:         0,
}

// Validate checks that the options are in range.
func (o *Opts) Validate() error {
	if o.TopK < 1 {
		return fmt.Errorf("Opts: top-k must be positive, got %d", o.TopK)
	}
	if o.TopFraction < 0 || o.TopFraction > 1 {
		return fmt.Errorf("Opts: top-fraction must be in [0, 1], got %v", o.TopFraction)
	}
	if !(o.MissingFrequency > 0 && o.MissingFrequency <= 1) {
		return fmt.Errorf("Opts: missing-frequency must be in (0, 1], got %v", o.MissingFrequency)
	}
	if o.MinFrequency < 0 || o.MinFrequency >= 1 {
		return fmt.Errorf("Opts: min-frequency must be in [0, 1), got %v", o.MinFrequency)
	}
	if !(o.PhaseErrorRate > 0 && o.PhaseErrorRate < 1) {
		return fmt.Errorf("Opts: phase-error-rate must be in (0, 1), got %v", o.PhaseErrorRate)
	}
	if _, ok := phasePolicyNames[o.PhasePolicy]; !ok {
		return fmt.Errorf("Opts: invalid phase policy %v", o.PhasePolicy)
	}
	if _, ok := resolutionNames[o.FrequencyResolution]; !ok {
		return fmt.Errorf("Opts: invalid frequency resolution %v", o.FrequencyResolution)
	}
	if o.PosteriorThreshold < 0 || o.PosteriorThreshold >= 1 {
		return fmt.Errorf("Opts: posterior-threshold must be in [0, 1), got %v", o.PosteriorThreshold)
	}
	return nil
}

// groupCap returns the number of alleles to retain from a 2-digit group of
// the given size.
func (o *Opts) groupCap(groupSize int) int {
	k := o.TopK
	if o.TopFraction > 0 {
		if f := int(math.Ceil(o.TopFraction * float64(groupSize))); f > k {
			k = f
		}
	}
	return k
}

func (o *Opts) parallelism() int {
	if o.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return o.Parallelism
}

var resolutionNames = map[Resolution]string{
	ResolutionFull:      "full",
	ResolutionTwoDigit:  "2",
	ResolutionFourDigit: "4",
}

func (r Resolution) String() string {
	if s, ok := resolutionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// ParseResolution converts "full", "2" or "4" into a Resolution.
func ParseResolution(s string) (Resolution, error) {
	for r, name := range resolutionNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("ParseResolution: unknown resolution '%s'", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Resolution) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseResolution(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r Resolution) MarshalYAML() (interface{}, error) { return r.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PhasePolicy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParsePhasePolicy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (p PhasePolicy) MarshalYAML() (interface{}, error) { return p.String(), nil }
