// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// FontMetrics supplies glyph advance widths in 1/1000 em units.
type FontMetrics interface {
	// GlyphWidth returns the advance of r. ok is false when the font
	// has no glyph for r; callers fall back to MissingWidth.
	GlyphWidth(r rune) (width float64, ok bool)
	// MissingWidth is the advance used for absent glyphs.
	MissingWidth() float64
	Name() string
	// Approximate reports whether widths are table estimates rather
	// than values read from a real font program.
	Approximate() bool
}

// builtinFamily is an approximate width table for one standard font
// family.
type builtinFamily struct {
	name   string
	def    float64
	widths map[rune]float64
}

var (
	helveticaWidths = builtinFamily{
		name: "Helvetica",
		def:  556,
		widths: map[rune]float64{
			' ': 278, '!': 278, ',': 278, '.': 278, ':': 278, ';': 278,
			'i': 278, 'j': 222, 'l': 222, 'f': 278, 't': 278, 'r': 333,
			'm': 889, 'w': 722, 'I': 278, 'M': 833, 'W': 1000, '-': 333,
			'\'': 191, '(': 333, ')': 333, '1': 556,
		},
	}
	timesWidths = builtinFamily{
		name: "Times-Roman",
		def:  500,
		widths: map[rune]float64{
			' ': 250, '!': 333, ',': 250, '.': 250, ':': 278, ';': 278,
			'i': 278, 'j': 278, 'l': 278, 'f': 333, 't': 278, 'r': 333,
			'm': 778, 'w': 722, 'I': 333, 'M': 889, 'W': 944, '-': 333,
		},
	}
	courierWidths = builtinFamily{name: "Courier", def: 600}
)

// BuiltinMetrics serves approximate widths for the standard PDF font
// families. It is the fallback when no embedded font program is
// available to measure.
type BuiltinMetrics struct {
	family builtinFamily
	font   string
}

// BuiltinMetricsFor picks a family table from a font resource or base
// font name. Subset prefixes ("ABCDEF+Helvetica") are stripped before
// matching; unknown names resolve to Helvetica.
func BuiltinMetricsFor(font string) *BuiltinMetrics {
	base := font
	if i := strings.IndexByte(base, '+'); i >= 0 && i == 6 {
		base = base[i+1:]
	}
	lower := strings.ToLower(base)
	fam := helveticaWidths
	switch {
	case strings.Contains(lower, "courier") || strings.Contains(lower, "mono"):
		fam = courierWidths
	case strings.Contains(lower, "times") || strings.Contains(lower, "serif") ||
		strings.Contains(lower, "georgia") || strings.Contains(lower, "garamond"):
		fam = timesWidths
	}
	return &BuiltinMetrics{family: fam, font: font}
}

func (m *BuiltinMetrics) GlyphWidth(r rune) (float64, bool) {
	if m.family.widths != nil {
		if w, ok := m.family.widths[r]; ok {
			return w, true
		}
	}
	if r < 0x20 {
		return 0, false
	}
	return m.family.def, true
}

func (m *BuiltinMetrics) MissingWidth() float64 { return m.family.def }
func (m *BuiltinMetrics) Name() string          { return m.font }
func (m *BuiltinMetrics) Approximate() bool     { return true }

// MeasureText returns the text-space width of text at the given size
// with the given character spacing, word spacing and horizontal
// scaling (1.0 == 100%).
func MeasureText(text string, m FontMetrics, size, tc, tw, th float64) float64 {
	var width float64
	for _, r := range text {
		w, ok := m.GlyphWidth(r)
		if !ok {
			w = m.MissingWidth()
		}
		width += w/1000*size + tc
		if r == ' ' {
			width += tw
		}
	}
	return width * th
}

// FitStrategy selects how the fitter reconciles a replacement's
// natural width with the target width. Callers choose one per fit;
// the zero value falls back to the configured default.
type FitStrategy string

const (
	FitExact    FitStrategy = "exact"
	FitCompress FitStrategy = "compress"
	FitExpand   FitStrategy = "expand"
	FitTruncate FitStrategy = "truncate"
	FitEllipsis FitStrategy = "ellipsis"
	FitScale    FitStrategy = "scale"
	FitOverflow FitStrategy = "allow_overflow"
)

// FitConfig bounds the adjustments the fitter may apply. Spacing
// values are in points, HScale values in percent.
type FitConfig struct {
	WidthTolerance float64 `validate:"gte=0"`
	TrackingMin    float64 `validate:"lte=0"`
	TrackingMax    float64 `validate:"gte=0"`
	WordSpacingMin float64 `validate:"lte=0"`
	WordSpacingMax float64 `validate:"gte=0"`
	HScaleMin      float64 `validate:"gt=0,lte=100"`
	HScaleMax      float64 `validate:"gte=100"`
	// Strategy is used when a fit call does not name one.
	Strategy       FitStrategy
	Ellipsis       string
	TruncateAtWord bool
}

// NewDefaultFitConfig returns the fitting bounds used when callers do
// not supply their own.
func NewDefaultFitConfig() FitConfig {
	return FitConfig{
		WidthTolerance: 0.5,
		TrackingMin:    -3,
		TrackingMax:    5,
		WordSpacingMin: -5,
		WordSpacingMax: 10,
		HScaleMin:      50,
		HScaleMax:      150,
		Strategy:       FitExact,
		Ellipsis:       "...",
		TruncateAtWord: true,
	}
}

// Validate checks the config bounds.
func (c *FitConfig) Validate() error {
	return validator.New().Struct(c)
}

// FitResult is the plan for rendering a replacement string into the
// horizontal space of the original.
type FitResult struct {
	Strategy     FitStrategy
	Text         string  // possibly truncated replacement
	TargetWidth  float64 // width being matched, in points
	NaturalWidth float64 // width of Text with no adjustments
	Delta        float64 // NaturalWidth - TargetWidth before fitting
	Tracking     float64 // extra points per inter-glyph gap
	WordSpacing  float64 // extra points per space
	HScale       float64 // horizontal scaling percent, 100 == none
	Overflow     float64 // points past the target when infeasible
	Feasible     bool    // false when no in-range adjustment exists
}

// Fitter plans width-preserving substitutions for one font at one
// size. The same inputs always produce the same plan.
type Fitter struct {
	cfg     FitConfig
	metrics FontMetrics
	size    float64
}

// NewFitter builds a fitter. A nil metrics falls back to Helvetica
// approximations.
func NewFitter(cfg FitConfig, metrics FontMetrics, size float64) *Fitter {
	if metrics == nil {
		metrics = BuiltinMetricsFor("Helvetica")
	}
	return &Fitter{cfg: cfg, metrics: metrics, size: size}
}

// Measure returns the natural width of text with no adjustments.
func (f *Fitter) Measure(text string) float64 {
	return MeasureText(text, f.metrics, f.size, 0, 0, 1)
}

// Fit plans how to render replacement into targetWidth points using
// the requested strategy (the configured default when empty). Every
// strategy first checks the width tolerance and short-circuits to a
// no-op exact plan when the natural width already matches.
func (f *Fitter) Fit(targetWidth float64, replacement string, strategy FitStrategy) FitResult {
	natural := f.Measure(replacement)
	res := FitResult{
		Text:         replacement,
		TargetWidth:  targetWidth,
		NaturalWidth: natural,
		Delta:        natural - targetWidth,
		HScale:       100,
		Feasible:     true,
	}
	if strategy == "" {
		strategy = f.cfg.Strategy
	}
	if strategy == "" {
		strategy = FitExact
	}
	if math.Abs(res.Delta) <= f.cfg.WidthTolerance {
		res.Strategy = FitExact
		return res
	}
	switch strategy {
	case FitCompress:
		// Only acts on text wider than the target.
		if res.Delta <= 0 {
			res.Strategy = FitCompress
			return res
		}
		return f.fitExact(res)
	case FitExpand:
		// Only acts on text narrower than the target.
		if res.Delta >= 0 {
			res.Strategy = FitExpand
			return res
		}
		return f.fitExact(res)
	case FitTruncate:
		return f.fitTruncate(res)
	case FitEllipsis:
		return f.fitEllipsis(res)
	case FitScale:
		return f.fitScale(res)
	case FitOverflow:
		res.Strategy = FitOverflow
		res.Overflow = res.Delta
		res.Feasible = false
		logger.Debug("width fit overflow accepted",
			"font", f.metrics.Name(), "target", targetWidth, "natural", natural)
		return res
	default:
		return f.fitExact(res)
	}
}

// fitExact absorbs the delta with word spacing if the per-space value
// stays in range, else per-character tracking, else a 60/40 split of
// word-spacing and tracking where both shares must be in range. When
// no spacing adjustment fits, it falls back to horizontal scaling.
func (f *Fitter) fitExact(res FitResult) FitResult {
	spaces := float64(strings.Count(res.Text, " "))
	runes := []rune(res.Text)
	gaps := float64(len(runes) - 1)
	nonSpace := len(runes) - strings.Count(res.Text, " ")
	strategy := FitCompress
	if res.Delta < 0 {
		strategy = FitExpand
	}

	if spaces > 0 {
		ws := -res.Delta / spaces
		if ws >= f.cfg.WordSpacingMin && ws <= f.cfg.WordSpacingMax {
			res.Strategy = strategy
			res.WordSpacing = ws
			return res
		}
	}
	if gaps > 0 && nonSpace > 1 {
		tr := -res.Delta / gaps
		if tr >= f.cfg.TrackingMin && tr <= f.cfg.TrackingMax {
			res.Strategy = strategy
			res.Tracking = tr
			return res
		}
	}
	if spaces > 0 && gaps > 0 {
		ws := -0.6 * res.Delta / spaces
		tr := -0.4 * res.Delta / gaps
		if ws >= f.cfg.WordSpacingMin && ws <= f.cfg.WordSpacingMax &&
			tr >= f.cfg.TrackingMin && tr <= f.cfg.TrackingMax {
			res.Strategy = strategy
			res.WordSpacing = ws
			res.Tracking = tr
			return res
		}
	}
	return f.fitScale(res)
}

// fitTruncate drops trailing characters until the text fits, cutting
// at the last space when configured. No terminator is appended.
func (f *Fitter) fitTruncate(res FitResult) FitResult {
	text, ok := f.shrink(res.Text, res.TargetWidth+f.cfg.WidthTolerance)
	if !ok {
		res.Feasible = false
		res.Overflow = res.Delta
		return res
	}
	res.Strategy = FitTruncate
	res.Text = text
	res.NaturalWidth = f.Measure(text)
	return res
}

// fitEllipsis reserves room for the terminator, truncates the rest,
// and appends the terminator. When not even the terminator fits, only
// its first character is kept.
func (f *Fitter) fitEllipsis(res FitResult) FitResult {
	available := res.TargetWidth + f.cfg.WidthTolerance - f.Measure(f.cfg.Ellipsis)
	res.Strategy = FitEllipsis
	if available <= 0 {
		first := []rune(f.cfg.Ellipsis)
		if len(first) == 0 {
			res.Feasible = false
			res.Overflow = res.Delta
			return res
		}
		res.Text = string(first[:1])
		res.NaturalWidth = f.Measure(res.Text)
		return res
	}
	text, ok := f.shrink(res.Text, available)
	if !ok {
		text = ""
	}
	res.Text = strings.TrimRight(text, " ") + f.cfg.Ellipsis
	res.NaturalWidth = f.Measure(res.Text)
	return res
}

// shrink removes trailing characters until text measures at most
// budget points. ok is false when nothing remains.
func (f *Fitter) shrink(text string, budget float64) (string, bool) {
	runes := []rune(text)
	for len(runes) > 0 && f.Measure(string(runes)) > budget {
		if f.cfg.TruncateAtWord {
			if i := strings.LastIndexByte(strings.TrimRight(string(runes), " "), ' '); i > 0 {
				runes = []rune(strings.TrimRight(string(runes)[:i], " "))
				continue
			}
		}
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return "", false
	}
	return strings.TrimRight(string(runes), " "), true
}

// fitScale squeezes or stretches glyphs horizontally. Outside the
// configured range the fit fails with the uncovered overflow amount.
func (f *Fitter) fitScale(res FitResult) FitResult {
	if res.NaturalWidth <= 0 {
		res.Feasible = false
		res.Overflow = res.Delta
		return res
	}
	scale := res.TargetWidth / res.NaturalWidth * 100
	if scale < f.cfg.HScaleMin || scale > f.cfg.HScaleMax {
		res.Feasible = false
		res.Overflow = res.Delta
		logger.Debug("width fit out of scale range",
			"font", f.metrics.Name(), "scale", scale, "overflow", res.Overflow)
		return res
	}
	res.Strategy = FitScale
	res.HScale = scale
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TJItem is one element of a TJ show array: a run of text followed by
// a pen adjustment in 1/1000 em (positive pulls the pen back).
type TJItem struct {
	Text   string
	Adjust float64
}

// maxTJAdjust bounds one TJ gap adjustment in 1/1000 em; anything
// larger reads as visibly broken spacing.
const maxTJAdjust = 200

// TJPlan renders a fit plan as a TJ array. Tracking and word spacing
// become per-gap numeric adjustments so the surrounding Tc/Tw state
// is left untouched. Each adjustment is clamped to maxTJAdjust, and
// negligible ones are folded into the surrounding run. Horizontal
// scaling is not representable in TJ and is returned for the caller
// to emit as a Tz operand.
func (f *Fitter) TJPlan(res FitResult) []TJItem {
	if f.size <= 0 {
		return []TJItem{{Text: res.Text}}
	}
	runes := []rune(res.Text)
	if len(runes) == 0 {
		return nil
	}
	var plan []TJItem
	var run []rune
	flush := func(adjust float64) {
		if len(run) == 0 && adjust == 0 {
			return
		}
		plan = append(plan, TJItem{Text: string(run), Adjust: adjust})
		run = run[:0]
	}
	for i, r := range runes {
		run = append(run, r)
		if i == len(runes)-1 {
			flush(0)
			break
		}
		gap := res.Tracking
		if r == ' ' {
			gap += res.WordSpacing
		}
		// Positive TJ numbers move the pen backwards, so extra space
		// needs a negative adjustment.
		adj := clamp(-gap*1000/f.size, -maxTJAdjust, maxTJAdjust)
		if math.Abs(adj) > 0.1 {
			flush(adj)
		}
	}
	return plan
}

// PlannedWidth returns the width in points that a TJ plan occupies,
// for verifying a fit.
func (f *Fitter) PlannedWidth(plan []TJItem, hscale float64) float64 {
	var w float64
	for _, item := range plan {
		w += f.Measure(item.Text)
		w -= item.Adjust / 1000 * f.size
	}
	return w * hscale / 100
}
