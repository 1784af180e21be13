// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

type ParsingMode string

const (
	Strict     ParsingMode = "strict"
	BestEffort ParsingMode = "best-effort"
)

// Config carries the engine-level settings plus the per-component
// configs. Component configs validate themselves through their own
// constructors; Validate here covers the whole tree.
type Config struct {
	MaxConcurrentDocs int           `validate:"min=1,max=10"`
	MaxWorkersPerDoc  int           `validate:"min=1,max=10"`
	PageTimeout       time.Duration `validate:"required"`
	ParsingMode       ParsingMode   `validate:"oneof=strict best-effort"`
	MaxRetries        int           `validate:"min=0,max=3"`
	// FailOn is the lowest severity that blocks Save.
	FailOn  Severity `validate:"oneof=warning error critical"`
	DebugOn bool
	Logger  logger.LogFunc

	Fit       FitConfig
	Rewrite   RewriteConfig
	ZOrder    ZOrderConfig
	Validator ValidatorConfig
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxConcurrentDocs: 5,
		MaxWorkersPerDoc:  1,
		PageTimeout:       5 * time.Second,
		ParsingMode:       BestEffort,
		MaxRetries:        3,
		FailOn:            SeverityError,
		DebugOn:           false,
		Fit:               NewDefaultFitConfig(),
		Rewrite:           NewDefaultRewriteConfig(),
		ZOrder:            NewDefaultZOrderConfig(),
		Validator:         NewDefaultValidatorConfig(),
	}
}

func (cfg *Config) Validate() error {
	logger.Debug("Validating Config Object")
	// Nested component configs are validated by their own tags as
	// part of the struct walk.
	validate := validator.New()
	return validate.Struct(cfg)
}
