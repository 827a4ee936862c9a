package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/wippyai/wasm-ir/ir"
)

// fileConfig mirrors ir.Config for the TOML file. Every key is optional;
// absent keys keep the NewConfig defaults, and command-line flags
// override whatever the file set.
type fileConfig struct {
	SkipValidation   *bool          `toml:"skip-validation"`
	ParallelEncoding *bool          `toml:"parallel-encoding"`
	EmitNames        *bool          `toml:"emit-names"`
	EmitProducers    *bool          `toml:"emit-producers"`
	PreserveCustoms  *bool          `toml:"preserve-customs"`
	Features         *featureConfig `toml:"features"`
}

type featureConfig struct {
	SignExtension        *bool `toml:"sign-extension"`
	SaturatingTruncation *bool `toml:"saturating-truncation"`
	BulkMemory           *bool `toml:"bulk-memory"`
	MultiValue           *bool `toml:"multi-value"`
	ReferenceTypes       *bool `toml:"reference-types"`
}

func loadConfig() (ir.Config, error) {
	cfg := ir.NewConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}

	setBool(&cfg.SkipValidation, fc.SkipValidation)
	setBool(&cfg.ParallelEncoding, fc.ParallelEncoding)
	setBool(&cfg.EmitNameSection, fc.EmitNames)
	setBool(&cfg.EmitProducersSection, fc.EmitProducers)
	setBool(&cfg.PreserveCustomSections, fc.PreserveCustoms)
	if f := fc.Features; f != nil {
		setBool(&cfg.Features.SignExtension, f.SignExtension)
		setBool(&cfg.Features.SaturatingTruncation, f.SaturatingTruncation)
		setBool(&cfg.Features.BulkMemory, f.BulkMemory)
		setBool(&cfg.Features.MultiValue, f.MultiValue)
		setBool(&cfg.Features.ReferenceTypes, f.ReferenceTypes)
	}
	return cfg, nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
