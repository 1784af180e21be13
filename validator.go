// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// Severity ranks validation issues.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparisons; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.rank() >= other.rank() }

// Category groups rules by the part of the document they inspect.
type Category string

const (
	CategoryStructure     Category = "structure"
	CategoryFonts         Category = "fonts"
	CategoryContent       Category = "content"
	CategoryModifications Category = "modifications"
)

// Issue is one finding from a validation rule.
type Issue struct {
	Code     string
	Severity Severity
	Category Category
	Message  string
	Page     int // -1 when not page-specific
	Context  string
}

func (i Issue) String() string {
	if i.Page >= 0 {
		return fmt.Sprintf("[%s] %s (page %d): %s", i.Severity, i.Code, i.Page, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
}

// FontInfo describes one font available to the document.
type FontInfo struct {
	Name     string
	Embedded bool
	Subset   bool
}

// PageInfo describes one page for validation purposes.
type PageInfo struct {
	Width, Height float64
	OverlayCount  int
}

// ModificationInfo is one pending text modification.
type ModificationInfo struct {
	Page    int
	Font    string
	Payload string
	Rect    Rect
}

// DocumentInfo is the snapshot the engine hands to validation rules.
// Rules read it and never mutate it.
type DocumentInfo struct {
	Pages               []PageInfo
	Fonts               []FontInfo
	Modifications       []ModificationInfo
	UncommittedOverlays int
}

// Rule is one validation check. Check returns the issues it found;
// an error (or panic) is downgraded to a warning issue so one broken
// rule never blocks a save decision.
type Rule struct {
	Code     string
	Category Category
	Severity Severity
	Enabled  bool
	Check    func(info *DocumentInfo) []Issue
}

// ValidationResult is the overall verdict.
type ValidationResult string

const (
	ResultPass ValidationResult = "pass"
	ResultWarn ValidationResult = "warn"
	ResultFail ValidationResult = "fail"
)

// Report is the output of a validation run.
type Report struct {
	Result    ValidationResult
	Issues    []Issue
	Counts    map[Severity]int
	RulesRun  int
	Truncated bool
	Duration  time.Duration
}

// ValidatorConfig bounds a validation run.
type ValidatorConfig struct {
	MaxIssues int           `validate:"min=1"`
	Timeout   time.Duration `validate:"min=0"`
}

// NewDefaultValidatorConfig returns the standard limits.
func NewDefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MaxIssues: 100, Timeout: 30 * time.Second}
}

// Validate checks the config values.
func (c *ValidatorConfig) Validate() error {
	return validator.New().Struct(c)
}

// Validator runs a rule set against a document snapshot before save.
type Validator struct {
	cfg   ValidatorConfig
	rules []*Rule
}

// NewValidator builds a validator with the built-in rule set.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validator config: %w", err)
	}
	v := &Validator{cfg: cfg}
	for _, r := range builtinRules() {
		rule := r
		v.rules = append(v.rules, &rule)
	}
	return v, nil
}

// Register adds a rule, replacing any existing rule with the same
// code.
func (v *Validator) Register(r Rule) {
	for i, existing := range v.rules {
		if existing.Code == r.Code {
			v.rules[i] = &r
			return
		}
	}
	v.rules = append(v.rules, &r)
}

// SetEnabled toggles a rule by code.
func (v *Validator) SetEnabled(code string, enabled bool) bool {
	for _, r := range v.rules {
		if r.Code == code {
			r.Enabled = enabled
			return true
		}
	}
	return false
}

// Validate runs every enabled rule grouped by category. Hitting the
// MaxIssues cap closes out the current category with a warning issue
// and moves on to the next one.
func (v *Validator) Validate(ctx context.Context, info *DocumentInfo) *Report {
	return v.run(ctx, info, func(*Rule) bool { return true })
}

// QuickValidate runs only critical-severity rules, for cheap checks
// during interactive editing.
func (v *Validator) QuickValidate(ctx context.Context, info *DocumentInfo) *Report {
	return v.run(ctx, info, func(r *Rule) bool { return r.Severity == SeverityCritical })
}

func (v *Validator) run(ctx context.Context, info *DocumentInfo, want func(*Rule) bool) *Report {
	start := time.Now()
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}
	rep := &Report{Counts: make(map[Severity]int)}
	// Rules run grouped by category. The issue cap closes only the
	// category that hit it; the remaining categories still run so the
	// report never goes completely blind on one noisy family.
	categories := make([]Category, 0, 4)
	seen := make(map[Category]bool)
	for _, rule := range v.rules {
		if !seen[rule.Category] {
			seen[rule.Category] = true
			categories = append(categories, rule.Category)
		}
	}
run:
	for _, cat := range categories {
		for _, rule := range v.rules {
			if rule.Category != cat || !rule.Enabled || !want(rule) {
				continue
			}
			if err := ctx.Err(); err != nil {
				rep.Issues = append(rep.Issues, Issue{
					Code:     "VAL_TIMEOUT",
					Severity: SeverityWarning,
					Category: CategoryStructure,
					Message:  fmt.Sprintf("validation stopped early: %v", err),
					Page:     -1,
				})
				rep.Truncated = true
				break run
			}
			if len(rep.Issues) >= v.cfg.MaxIssues {
				rep.Issues = append(rep.Issues, Issue{
					Code:     "VAL_LIMIT",
					Severity: SeverityWarning,
					Category: cat,
					Message:  fmt.Sprintf("issue limit of %d reached, remaining %s checks skipped", v.cfg.MaxIssues, cat),
					Page:     -1,
				})
				rep.Truncated = true
				continue run
			}
			issues := v.runRule(rule, info)
			rep.RulesRun++
			rep.Issues = append(rep.Issues, issues...)
		}
	}
	for _, issue := range rep.Issues {
		rep.Counts[issue.Severity]++
	}
	switch {
	case rep.Counts[SeverityCritical] > 0 || rep.Counts[SeverityError] > 0:
		rep.Result = ResultFail
	case rep.Counts[SeverityWarning] > 0:
		rep.Result = ResultWarn
	default:
		rep.Result = ResultPass
	}
	rep.Duration = time.Since(start)
	logger.Debug("validation finished",
		"result", string(rep.Result), "issues", len(rep.Issues), "rules", rep.RulesRun)
	return rep
}

// runRule isolates one rule: a panic becomes a warning issue.
func (v *Validator) runRule(rule *Rule, info *DocumentInfo) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("validation rule panicked", "code", rule.Code, "panic", r)
			issues = []Issue{{
				Code:     rule.Code,
				Severity: SeverityWarning,
				Category: rule.Category,
				Message:  fmt.Sprintf("rule failed to run: %v", r),
				Page:     -1,
			}}
		}
	}()
	return rule.Check(info)
}

var standard14 = map[string]bool{
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// controlChars matches C0 control characters that have no business in
// replacement text. Tab, newline and carriage return are allowed.
var controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]")

const maxPayloadChars = 100000

// The PDF user-space limits most producers honor.
const (
	minPageDim = 3
	maxPageDim = 14400
)

func builtinRules() []Rule {
	return []Rule{
		{
			Code: "STRUCT_001", Category: CategoryStructure, Severity: SeverityCritical, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				if len(info.Pages) == 0 {
					return []Issue{{
						Code: "STRUCT_001", Severity: SeverityCritical, Category: CategoryStructure,
						Message: "document has no pages", Page: -1,
					}}
				}
				return nil
			},
		},
		{
			Code: "STRUCT_002", Category: CategoryStructure, Severity: SeverityWarning, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for i, p := range info.Pages {
					if p.Width < minPageDim || p.Width > maxPageDim ||
						p.Height < minPageDim || p.Height > maxPageDim {
						out = append(out, Issue{
							Code: "STRUCT_002", Severity: SeverityWarning, Category: CategoryStructure,
							Message: fmt.Sprintf("page size %.1fx%.1f outside the %d..%d range",
								p.Width, p.Height, minPageDim, maxPageDim),
							Page: i,
						})
					}
				}
				return out
			},
		},
		{
			Code: "STRUCT_003", Category: CategoryStructure, Severity: SeverityError, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, mod := range info.Modifications {
					if mod.Page < 0 || mod.Page >= len(info.Pages) {
						out = append(out, Issue{
							Code: "STRUCT_003", Severity: SeverityError, Category: CategoryStructure,
							Message: fmt.Sprintf("modification targets page %d of %d", mod.Page, len(info.Pages)),
							Page:    mod.Page,
						})
					}
				}
				return out
			},
		},
		{
			Code: "FONT_001", Category: CategoryFonts, Severity: SeverityWarning, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, f := range info.Fonts {
					if !f.Embedded && !standard14[baseFontName(f.Name)] {
						out = append(out, Issue{
							Code: "FONT_001", Severity: SeverityWarning, Category: CategoryFonts,
							Message: fmt.Sprintf("font %q is neither embedded nor standard", f.Name),
							Page:    -1, Context: f.Name,
						})
					}
				}
				return out
			},
		},
		{
			Code: "FONT_002", Category: CategoryFonts, Severity: SeverityWarning, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				subset := make(map[string]bool)
				for _, f := range info.Fonts {
					if f.Subset || isSubsetName(f.Name) {
						subset[f.Name] = true
					}
				}
				var out []Issue
				for _, mod := range info.Modifications {
					if subset[mod.Font] && mod.Payload != "" {
						out = append(out, Issue{
							Code: "FONT_002", Severity: SeverityWarning, Category: CategoryFonts,
							Message: fmt.Sprintf("new text uses subset font %q which may lack needed glyphs", mod.Font),
							Page:    mod.Page, Context: mod.Font,
						})
					}
				}
				return out
			},
		},
		{
			Code: "FONT_003", Category: CategoryFonts, Severity: SeverityError, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				known := make(map[string]bool, len(info.Fonts))
				for _, f := range info.Fonts {
					known[f.Name] = true
				}
				var out []Issue
				for _, mod := range info.Modifications {
					if mod.Font != "" && !known[mod.Font] {
						out = append(out, Issue{
							Code: "FONT_003", Severity: SeverityError, Category: CategoryFonts,
							Message: fmt.Sprintf("modification references unknown font %q", mod.Font),
							Page:    mod.Page, Context: mod.Font,
						})
					}
				}
				return out
			},
		},
		{
			Code: "CONTENT_001", Category: CategoryContent, Severity: SeverityError, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, mod := range info.Modifications {
					if loc := controlChars.FindStringIndex(mod.Payload); loc != nil {
						out = append(out, Issue{
							Code: "CONTENT_001", Severity: SeverityError, Category: CategoryContent,
							Message: fmt.Sprintf("replacement text contains control character 0x%02x", mod.Payload[loc[0]]),
							Page:    mod.Page,
						})
					}
				}
				return out
			},
		},
		{
			Code: "CONTENT_002", Category: CategoryContent, Severity: SeverityError, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, mod := range info.Modifications {
					if n := len([]rune(mod.Payload)); n > maxPayloadChars {
						out = append(out, Issue{
							Code: "CONTENT_002", Severity: SeverityError, Category: CategoryContent,
							Message: fmt.Sprintf("replacement text of %d characters exceeds the %d limit", n, maxPayloadChars),
							Page:    mod.Page,
						})
					}
				}
				return out
			},
		},
		{
			Code: "CONTENT_003", Category: CategoryContent, Severity: SeverityInfo, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, mod := range info.Modifications {
					if strings.TrimSpace(mod.Payload) == "" && mod.Rect.Area() > 0 {
						out = append(out, Issue{
							Code: "CONTENT_003", Severity: SeverityInfo, Category: CategoryContent,
							Message: "modification erases text without replacement", Page: mod.Page,
						})
					}
				}
				return out
			},
		},
		{
			Code: "MOD_001", Category: CategoryModifications, Severity: SeverityCritical, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				if info.UncommittedOverlays > 0 {
					return []Issue{{
						Code: "MOD_001", Severity: SeverityCritical, Category: CategoryModifications,
						Message: fmt.Sprintf("%d overlays are not committed", info.UncommittedOverlays),
						Page:    -1,
					}}
				}
				return nil
			},
		},
		{
			Code: "MOD_002", Category: CategoryModifications, Severity: SeverityError, Enabled: true,
			Check: func(info *DocumentInfo) []Issue {
				var out []Issue
				for _, mod := range info.Modifications {
					if mod.Page < 0 || mod.Page >= len(info.Pages) {
						continue // STRUCT_003 reports this
					}
					p := info.Pages[mod.Page]
					page := Rect{URX: p.Width, URY: p.Height}
					if mod.Rect.Area() > 0 {
						if _, ok := mod.Rect.Intersect(page); !ok {
							out = append(out, Issue{
								Code: "MOD_002", Severity: SeverityError, Category: CategoryModifications,
								Message: "modification rectangle lies outside the page", Page: mod.Page,
							})
						}
					}
				}
				return out
			},
		},
	}
}

// baseFontName strips a subset prefix like "ABCDEF+" from a font
// name.
func baseFontName(name string) string {
	if isSubsetName(name) {
		return name[7:]
	}
	return name
}

// isSubsetName reports whether name carries the six-uppercase-letter
// subset tag convention.
func isSubsetName(name string) bool {
	if len(name) < 8 || name[6] != '+' {
		return false
	}
	for i := 0; i < 6; i++ {
		if name[i] < 'A' || name[i] > 'Z' {
			return false
		}
	}
	return true
}
