// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// OverlayStrategy selects how original text is hidden before the
// replacement is drawn. Editing the original content stream in place
// is deliberately not offered: it invalidates offsets for the rest of
// the stream and risks corrupting operators we did not parse.
type OverlayStrategy string

const (
	// StrategyRedactThenInsert removes the covered content below the
	// replacement text. The safe default.
	StrategyRedactThenInsert OverlayStrategy = "redact_then_insert"
	// StrategyWhiteBackground paints an opaque box over the original
	// below the replacement. Survives viewers that ignore redactions.
	StrategyWhiteBackground OverlayStrategy = "white_background"
	// StrategyTransparentErase removes the covered content with a
	// non-opaque erase layer below the replacement. Pure erasure is an
	// empty replacement string, not a separate strategy.
	StrategyTransparentErase OverlayStrategy = "transparent_erase"
	// StrategyDirectOverlay draws on top without hiding anything.
	StrategyDirectOverlay OverlayStrategy = "direct_overlay"
)

// LayerKind is the render instruction one overlay layer carries.
type LayerKind string

const (
	LayerRedaction  LayerKind = "redaction"
	LayerBackground LayerKind = "background"
	LayerErase      LayerKind = "erase"
	LayerText       LayerKind = "text"
)

// OverlayLayer is one drawable slice of an overlay. Every strategy
// except direct_overlay pairs a hide layer with the text layer; the
// hide layer's z must stay below the text layer's.
type OverlayLayer struct {
	Kind    LayerKind
	Rect    Rect
	Level   LayerLevel
	Z       int
	Opacity float64
	Gray    float64 // fill level, background layers only
}

// PositionMode controls where the replacement is anchored.
type PositionMode string

const (
	PositionOriginal PositionMode = "original" // reuse the source transform
	PositionBaseline PositionMode = "baseline" // source baseline, upright
	PositionCentered PositionMode = "centered" // centered in the freed width
)

// OverlayState is the lifecycle of one overlay.
type OverlayState string

const (
	OverlayPlanned   OverlayState = "planned"
	OverlayApplied   OverlayState = "applied"
	OverlayCommitted OverlayState = "committed"
)

var (
	ErrOverlayNotFound  = errors.New("overlay not found")
	ErrOverlayCommitted = errors.New("overlay already committed")
)

// OverlayText is the drawable replacement passed to the document
// sink.
type OverlayText struct {
	Plan     []TJItem
	Font     string
	FontSize float64
	HScale   float64
	Color    [3]float64 // RGB, 0..1
	Matrix   Matrix
	ZOrder   int
}

// Overlay is one planned text substitution. Layers holds the
// per-strategy render slices in creation order; Apply draws them in
// ascending z.
type Overlay struct {
	ID       string
	Page     int
	Target   Rect // area hidden, includes the redaction margin
	Strategy OverlayStrategy
	Mode     PositionMode
	Fit      FitResult
	Plan     []TJItem
	Matrix   Matrix
	Font     string
	FontSize float64
	Color    [3]float64
	Layers   []OverlayLayer
	Level    LayerLevel
	ZOrder   int
	State    OverlayState
}

// RewriteConfig carries the rewriter defaults.
type RewriteConfig struct {
	// RedactMargin inflates the hidden rectangle, in points.
	RedactMargin    float64         `validate:"gte=0"`
	DefaultStrategy OverlayStrategy `validate:"oneof=redact_then_insert white_background transparent_erase direct_overlay"`
	DefaultMode     PositionMode    `validate:"oneof=original baseline centered"`
	// BackgroundGray is the fill level for white_background overlays.
	BackgroundGray float64 `validate:"gte=0,lte=1"`
}

// NewDefaultRewriteConfig returns the standard rewriter settings.
func NewDefaultRewriteConfig() RewriteConfig {
	return RewriteConfig{
		RedactMargin:    1.0,
		DefaultStrategy: StrategyRedactThenInsert,
		DefaultMode:     PositionOriginal,
		BackgroundGray:  1.0,
	}
}

// Validate checks the config values.
func (c *RewriteConfig) Validate() error {
	return validator.New().Struct(c)
}

// DocumentSink is the host document surface the rewriter draws
// through. Implementations own page content and object allocation;
// the rewriter only decides what to draw where.
type DocumentSink interface {
	// AddRedaction removes the content intersecting rect on page.
	AddRedaction(ctx context.Context, page int, rect Rect) error
	// AddFill paints an opaque rectangle in the given gray level.
	AddFill(ctx context.Context, page int, rect Rect, gray float64) error
	// AddText draws a replacement text run.
	AddText(ctx context.Context, page int, text OverlayText) error
	// RemoveOverlay undoes a previously applied overlay.
	RemoveOverlay(ctx context.Context, page int, overlayID string) error
}

// OverlayOptions override the rewriter defaults for one overlay.
// Zero values fall back to the configured defaults; in particular a
// zero Level means LevelText and the zero Color is black.
type OverlayOptions struct {
	Strategy OverlayStrategy
	Mode     PositionMode
	Level    LayerLevel
	Color    [3]float64
}

// Rewriter plans and applies text overlays. Safe for concurrent use.
type Rewriter struct {
	cfg    RewriteConfig
	mu     sync.Mutex
	nextID int
	order  []string
	byID   map[string]*Overlay
}

// NewRewriter builds a rewriter with validated config.
func NewRewriter(cfg RewriteConfig) (*Rewriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rewrite config: %w", err)
	}
	return &Rewriter{cfg: cfg, byID: make(map[string]*Overlay)}, nil
}

// Plan records an overlay replacing span with the fitted text. The
// overlay starts in the planned state; nothing touches the document
// until Apply.
func (rw *Rewriter) Plan(page int, span Span, fit FitResult, plan []TJItem, opts OverlayOptions) *Overlay {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	strategy := opts.Strategy
	if strategy == "" {
		strategy = rw.cfg.DefaultStrategy
	}
	mode := opts.Mode
	if mode == "" {
		mode = rw.cfg.DefaultMode
	}
	level := opts.Level
	if level == 0 {
		level = LevelText
	}

	rw.nextID++
	ov := &Overlay{
		ID:       fmt.Sprintf("ov-%d", rw.nextID),
		Page:     page,
		Target:   span.Rect().Inflate(rw.cfg.RedactMargin),
		Strategy: strategy,
		Mode:     mode,
		Fit:      fit,
		Plan:     plan,
		Matrix:   placementMatrix(span, fit, mode),
		Font:     span.Font,
		FontSize: span.FontSize,
		Color:    opts.Color,
		Level:    level,
		State:    OverlayPlanned,
	}
	ov.Layers = rw.layersFor(ov)
	rw.byID[ov.ID] = ov
	rw.order = append(rw.order, ov.ID)
	logger.Debug("overlay planned",
		"id", ov.ID, "page", page, "strategy", string(strategy),
		"layers", len(ov.Layers), "fit", string(fit.Strategy))
	return ov
}

// layersFor builds the render slices for an overlay's strategy. Every
// strategy gets a text layer; all but direct_overlay put a hide layer
// underneath it.
func (rw *Rewriter) layersFor(ov *Overlay) []OverlayLayer {
	text := OverlayLayer{
		Kind:    LayerText,
		Rect:    ov.Target,
		Level:   ov.Level,
		Opacity: 1,
	}
	switch ov.Strategy {
	case StrategyRedactThenInsert:
		return []OverlayLayer{
			{Kind: LayerRedaction, Rect: ov.Target, Level: LevelRedaction, Opacity: 1},
			text,
		}
	case StrategyWhiteBackground:
		return []OverlayLayer{
			{Kind: LayerBackground, Rect: ov.Target, Level: LevelTextBackground,
				Opacity: 1, Gray: rw.cfg.BackgroundGray},
			text,
		}
	case StrategyTransparentErase:
		return []OverlayLayer{
			{Kind: LayerErase, Rect: ov.Target, Level: LevelRedaction},
			text,
		}
	default:
		return []OverlayLayer{text}
	}
}

// placementMatrix positions the replacement per the mode. Centered
// shifts the device-space origin by half the freed width.
func placementMatrix(span Span, fit FitResult, mode PositionMode) Matrix {
	switch mode {
	case PositionBaseline:
		return Translation(span.X, span.Y)
	case PositionCentered:
		m := span.Trm
		scale := fit.HScale / 100
		m.E += (span.Width - fit.NaturalWidth*scale) / 2
		return m
	default:
		return span.Trm
	}
}

// Recommend picks an overlay strategy for replacing span. Signed
// documents get a direct overlay so existing marks stay untouched, as
// does rotated or skewed text. A small length change in the same font
// only needs a transparent erase; substantial growth gets an opaque
// backing box so overflow cannot reveal the old glyph edges.
func (rw *Rewriter) Recommend(span Span, replacement string, fontChanged, hasSignatures bool) OverlayStrategy {
	if hasSignatures {
		return StrategyDirectOverlay
	}
	if span.Trm.HasSkew() || span.Trm.HasRotation() {
		return StrategyDirectOverlay
	}
	delta := len([]rune(replacement)) - len([]rune(span.Text))
	if delta >= -3 && delta <= 3 && !fontChanged {
		return StrategyTransparentErase
	}
	if delta > 10 {
		return StrategyWhiteBackground
	}
	return StrategyRedactThenInsert
}

// Apply draws the overlay through the sink. Applying an already
// applied overlay is a no-op; applying a committed one is an error.
func (rw *Rewriter) Apply(ctx context.Context, sink DocumentSink, overlayID string) error {
	rw.mu.Lock()
	ov, ok := rw.byID[overlayID]
	rw.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOverlayNotFound, overlayID)
	}
	switch ov.State {
	case OverlayApplied:
		return nil
	case OverlayCommitted:
		return fmt.Errorf("apply %s: %w", overlayID, ErrOverlayCommitted)
	}

	layers := append([]OverlayLayer(nil), ov.Layers...)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Z < layers[j].Z })
	for _, layer := range layers {
		switch layer.Kind {
		case LayerRedaction, LayerErase:
			if err := sink.AddRedaction(ctx, ov.Page, layer.Rect); err != nil {
				return fmt.Errorf("redact for %s: %w", overlayID, err)
			}
		case LayerBackground:
			if err := sink.AddFill(ctx, ov.Page, layer.Rect, layer.Gray); err != nil {
				return fmt.Errorf("fill for %s: %w", overlayID, err)
			}
		case LayerText:
			if len(ov.Plan) == 0 {
				continue
			}
			text := OverlayText{
				Plan:     ov.Plan,
				Font:     ov.Font,
				FontSize: ov.FontSize,
				HScale:   ov.Fit.HScale,
				Color:    ov.Color,
				Matrix:   ov.Matrix,
				ZOrder:   layer.Z,
			}
			if err := sink.AddText(ctx, ov.Page, text); err != nil {
				return fmt.Errorf("draw for %s: %w", overlayID, err)
			}
		}
	}

	rw.mu.Lock()
	ov.State = OverlayApplied
	rw.mu.Unlock()
	return nil
}

// Revert removes a planned or applied overlay. Committed overlays
// cannot be reverted.
func (rw *Rewriter) Revert(ctx context.Context, sink DocumentSink, overlayID string) error {
	rw.mu.Lock()
	ov, ok := rw.byID[overlayID]
	rw.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOverlayNotFound, overlayID)
	}
	if ov.State == OverlayCommitted {
		return fmt.Errorf("revert %s: %w", overlayID, ErrOverlayCommitted)
	}
	if ov.State == OverlayApplied {
		if err := sink.RemoveOverlay(ctx, ov.Page, overlayID); err != nil {
			return fmt.Errorf("remove %s: %w", overlayID, err)
		}
	}
	rw.mu.Lock()
	delete(rw.byID, overlayID)
	for i, id := range rw.order {
		if id == overlayID {
			rw.order = append(rw.order[:i], rw.order[i+1:]...)
			break
		}
	}
	rw.mu.Unlock()
	return nil
}

// Commit finalizes every applied overlay and returns how many were
// committed. Overlays still in the planned state are skipped with a
// log entry; commit them by applying first.
func (rw *Rewriter) Commit(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	committed := 0
	for _, id := range rw.order {
		ov := rw.byID[id]
		switch ov.State {
		case OverlayApplied:
			ov.State = OverlayCommitted
			committed++
		case OverlayPlanned:
			logger.Debug("skipping unapplied overlay at commit", "id", id, "page", ov.Page)
		}
	}
	return committed, nil
}

// Overlays returns the overlays for a page in plan order. Page -1
// returns all pages.
func (rw *Rewriter) Overlays(page int) []*Overlay {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	var out []*Overlay
	for _, id := range rw.order {
		ov := rw.byID[id]
		if page < 0 || ov.Page == page {
			c := *ov
			out = append(out, &c)
		}
	}
	return out
}

// UncommittedCount reports overlays not yet committed, for pre-save
// validation.
func (rw *Rewriter) UncommittedCount() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	n := 0
	for _, ov := range rw.byID {
		if ov.State != OverlayCommitted {
			n++
		}
	}
	return n
}
