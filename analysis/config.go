// signatureID: a tool for consolidating drug-response gene signatures
// across cell lines.
// Copyright (c) 2025 Omar Sherif.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/omaaarsh/signatureid-csv-exporter/blob/master/LICENSE.txt>.

package analysis

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/omaaarsh/signatureid-csv-exporter/enrichr"
)

// ErrConfigInvalid is wrapped by every Verify failure.
var ErrConfigInvalid = errors.New("analysis configuration is invalid")

// EnrichmentConfig configures the external annotation source.
type EnrichmentConfig struct {
	// endpoint of the Enrichr API; empty means the public endpoint
	URL string `yaml:"url,omitempty"`

	// pathway/ontology libraries to query
	Databases []string `yaml:"databases"`

	// adjusted p-value cutoff for significant terms
	Cutoff float64 `yaml:"cutoff"`

	// bound on every request to the annotation source
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// Config holds the analysis thresholds and the enrichment settings.
type Config struct {
	// magnitude cutoff for up/down classification
	FoldChangeThreshold float64 `yaml:"foldChangeThreshold"`

	// minimum % of cell lines required to agree
	ConsistencyThresholdPct int `yaml:"consistencyThresholdPct"`

	// significance pre-filter applied per cell-line table at load time
	PValueThreshold float64 `yaml:"pvalueThreshold"`

	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() *Config {
	return &Config{
		FoldChangeThreshold:     1.0,
		ConsistencyThresholdPct: 50,
		PValueThreshold:         0.2,
		Enrichment: EnrichmentConfig{
			Databases:      enrichr.DefaultDatabases,
			Cutoff:         enrichr.DefaultCutoff,
			TimeoutSeconds: 60,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(buf, config); err != nil {
		return nil, err
	}
	return config, nil
}

// Verify checks that every knob is inside its supported range.
//
// # Return
//
// nil if the configuration is valid. Otherwise, an error wrapping
// ErrConfigInvalid.
func (c *Config) Verify() error {
	if c.FoldChangeThreshold < 0.5 || c.FoldChangeThreshold > 3.0 {
		return fmt.Errorf("%w: fold-change threshold %v outside [0.5, 3.0]", ErrConfigInvalid, c.FoldChangeThreshold)
	}
	if c.ConsistencyThresholdPct < 30 || c.ConsistencyThresholdPct > 100 {
		return fmt.Errorf("%w: consistency threshold %v%% outside [30, 100]", ErrConfigInvalid, c.ConsistencyThresholdPct)
	}
	if c.PValueThreshold < 0.0 || c.PValueThreshold > 0.2 {
		return fmt.Errorf("%w: p-value threshold %v outside [0.0, 0.2]", ErrConfigInvalid, c.PValueThreshold)
	}
	if len(c.Enrichment.Databases) == 0 {
		return fmt.Errorf("%w: no enrichment databases configured", ErrConfigInvalid)
	}
	if c.Enrichment.Cutoff <= 0 || c.Enrichment.Cutoff > 1 {
		return fmt.Errorf("%w: enrichment cutoff %v outside (0, 1]", ErrConfigInvalid, c.Enrichment.Cutoff)
	}
	if c.Enrichment.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: enrichment timeout %vs is not positive", ErrConfigInvalid, c.Enrichment.TimeoutSeconds)
	}
	return nil
}

// NewService returns the enrichment client described by the
// configuration.
func (c *Config) NewService() enrichr.Service {
	return enrichr.NewClient(c.Enrichment.URL, time.Duration(c.Enrichment.TimeoutSeconds)*time.Second)
}
