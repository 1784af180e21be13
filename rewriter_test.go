// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpan() Span {
	return Span{
		Text: "125000", Font: "F1", FontSize: 10,
		Trm: Translation(72, 700), X: 72, Y: 700, Width: 33.36,
	}
}

func newTestRewriter(t *testing.T) *Rewriter {
	t.Helper()
	rw, err := NewRewriter(NewDefaultRewriteConfig())
	require.NoError(t, err)
	return rw
}

func TestRewriter_PlanDefaults(t *testing.T) {
	rw := newTestRewriter(t)
	span := testSpan()
	fit := FitResult{Text: "130000", HScale: 100, Strategy: FitExact}

	ov := rw.Plan(1, span, fit, []TJItem{{Text: "130000"}}, OverlayOptions{})
	assert.Equal(t, StrategyRedactThenInsert, ov.Strategy)
	assert.Equal(t, PositionOriginal, ov.Mode)
	assert.Equal(t, LevelText, ov.Level)
	assert.Equal(t, OverlayPlanned, ov.State)
	assert.Equal(t, [3]float64{0, 0, 0}, ov.Color, "default text color is black")
	// Target includes the redaction margin on every side.
	rect := span.Rect()
	assert.InDelta(t, rect.LLX-1, ov.Target.LLX, 1e-9)
	assert.InDelta(t, rect.URY+1, ov.Target.URY, 1e-9)
}

func TestRewriter_PlanLayers(t *testing.T) {
	tests := []struct {
		name     string
		strategy OverlayStrategy
		kinds    []LayerKind
	}{
		{"redact then insert", StrategyRedactThenInsert, []LayerKind{LayerRedaction, LayerText}},
		{"white background", StrategyWhiteBackground, []LayerKind{LayerBackground, LayerText}},
		{"transparent erase", StrategyTransparentErase, []LayerKind{LayerErase, LayerText}},
		{"direct overlay", StrategyDirectOverlay, []LayerKind{LayerText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := newTestRewriter(t)
			fit := FitResult{Text: "x", HScale: 100}
			ov := rw.Plan(1, testSpan(), fit, []TJItem{{Text: "x"}}, OverlayOptions{Strategy: tt.strategy})
			var kinds []LayerKind
			for _, layer := range ov.Layers {
				kinds = append(kinds, layer.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}

	t.Run("hide layer sits below the text layer", func(t *testing.T) {
		rw := newTestRewriter(t)
		ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, []TJItem{{Text: "x"}}, OverlayOptions{})
		require.Len(t, ov.Layers, 2)
		assert.Less(t, int(ov.Layers[0].Level), int(ov.Layers[1].Level))
	})

	t.Run("background layer carries the configured gray", func(t *testing.T) {
		rw := newTestRewriter(t)
		ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, nil,
			OverlayOptions{Strategy: StrategyWhiteBackground})
		require.Len(t, ov.Layers, 2)
		assert.Equal(t, 1.0, ov.Layers[0].Gray)
		assert.Equal(t, 1.0, ov.Layers[0].Opacity)
	})

	t.Run("erase layer is non-opaque", func(t *testing.T) {
		rw := newTestRewriter(t)
		ov := rw.Plan(1, testSpan(), FitResult{HScale: 100}, nil,
			OverlayOptions{Strategy: StrategyTransparentErase})
		require.Len(t, ov.Layers, 2)
		assert.Zero(t, ov.Layers[0].Opacity)
	})
}

func TestRewriter_Recommend(t *testing.T) {
	rw := newTestRewriter(t)

	tests := []struct {
		name        string
		span        Span
		replacement string
		fontChanged bool
		signatures  bool
		want        OverlayStrategy
	}{
		{
			name: "signed document never disturbs existing marks",
			span: testSpan(), replacement: "130000", signatures: true,
			want: StrategyDirectOverlay,
		},
		{
			name: "rotated text gets direct overlay",
			span: Span{Text: "abc", Font: "F1", FontSize: 10, Trm: RotationDeg(45)},
			replacement: "xyz",
			want:        StrategyDirectOverlay,
		},
		{
			name: "small length change in the same font only needs erase",
			span: testSpan(), replacement: "130000",
			want: StrategyTransparentErase,
		},
		{
			name: "small change in a different font re-redacts",
			span: testSpan(), replacement: "130000", fontChanged: true,
			want: StrategyRedactThenInsert,
		},
		{
			name: "substantial growth gets opaque backing",
			span: testSpan(), replacement: "125000125000125000",
			want: StrategyWhiteBackground,
		},
		{
			name: "moderate shrink gets redact then insert",
			span: Span{Text: "long original text", Font: "F1", FontSize: 10, Trm: Translation(72, 700)},
			replacement: "short",
			want:        StrategyRedactThenInsert,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rw.Recommend(tt.span, tt.replacement, tt.fontChanged, tt.signatures))
		})
	}
}

func TestRewriter_ApplyStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy OverlayStrategy
		want     []DrawKind
	}{
		{"redact then insert", StrategyRedactThenInsert, []DrawKind{DrawRedaction, DrawText}},
		{"white background", StrategyWhiteBackground, []DrawKind{DrawFill, DrawText}},
		{"transparent erase still draws the text", StrategyTransparentErase, []DrawKind{DrawRedaction, DrawText}},
		{"direct overlay", StrategyDirectOverlay, []DrawKind{DrawText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := newTestRewriter(t)
			doc := NewMemDocument(MemPage{Width: 612, Height: 792})
			fit := FitResult{Text: "x", HScale: 100}
			ov := rw.Plan(1, testSpan(), fit, []TJItem{{Text: "x"}}, OverlayOptions{Strategy: tt.strategy})

			require.NoError(t, rw.Apply(context.Background(), doc, ov.ID))
			var kinds []DrawKind
			for _, op := range doc.Ops() {
				kinds = append(kinds, op.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}

	t.Run("empty plan erases without drawing text", func(t *testing.T) {
		rw := newTestRewriter(t)
		doc := NewMemDocument(MemPage{Width: 612, Height: 792})
		ov := rw.Plan(1, testSpan(), FitResult{HScale: 100}, nil,
			OverlayOptions{Strategy: StrategyTransparentErase})
		require.NoError(t, rw.Apply(context.Background(), doc, ov.ID))
		ops := doc.Ops()
		require.Len(t, ops, 1)
		assert.Equal(t, DrawRedaction, ops[0].Kind)
	})

	t.Run("layers render in ascending z", func(t *testing.T) {
		rw := newTestRewriter(t)
		doc := NewMemDocument(MemPage{Width: 612, Height: 792})
		ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, []TJItem{{Text: "x"}}, OverlayOptions{})
		// Simulate stacking assignment with the text slot below the
		// redaction slot; Apply must reorder by z, not creation order.
		ov.Layers[0].Z = 400
		ov.Layers[1].Z = 100
		require.NoError(t, rw.Apply(context.Background(), doc, ov.ID))
		ops := doc.Ops()
		require.Len(t, ops, 2)
		assert.Equal(t, DrawText, ops[0].Kind)
		assert.Equal(t, DrawRedaction, ops[1].Kind)
	})

	t.Run("text op carries the color", func(t *testing.T) {
		rw := newTestRewriter(t)
		doc := NewMemDocument(MemPage{Width: 612, Height: 792})
		ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, []TJItem{{Text: "x"}},
			OverlayOptions{Strategy: StrategyDirectOverlay, Color: [3]float64{0.2, 0.4, 0.6}})
		require.NoError(t, rw.Apply(context.Background(), doc, ov.ID))
		ops := doc.Ops()
		require.Len(t, ops, 1)
		assert.Equal(t, [3]float64{0.2, 0.4, 0.6}, ops[0].Text.Color)
	})
}

func TestRewriter_ApplyIdempotent(t *testing.T) {
	rw := newTestRewriter(t)
	doc := NewMemDocument(MemPage{Width: 612, Height: 792})
	ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, []TJItem{{Text: "x"}}, OverlayOptions{})

	ctx := context.Background()
	require.NoError(t, rw.Apply(ctx, doc, ov.ID))
	require.NoError(t, rw.Apply(ctx, doc, ov.ID))
	assert.Len(t, doc.Ops(), 2, "second apply must not draw again")
}

func TestRewriter_Lifecycle(t *testing.T) {
	rw := newTestRewriter(t)
	doc := NewMemDocument(MemPage{Width: 612, Height: 792})
	ctx := context.Background()

	applied := rw.Plan(1, testSpan(), FitResult{Text: "a", HScale: 100}, []TJItem{{Text: "a"}}, OverlayOptions{})
	planned := rw.Plan(1, testSpan(), FitResult{Text: "b", HScale: 100}, []TJItem{{Text: "b"}}, OverlayOptions{})
	require.NoError(t, rw.Apply(ctx, doc, applied.ID))
	assert.Equal(t, 2, rw.UncommittedCount())

	committed, err := rw.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, committed, "only the applied overlay commits")
	assert.Equal(t, 1, rw.UncommittedCount(), "planned overlay stays pending")

	// The committed overlay is frozen.
	err = rw.Apply(ctx, doc, applied.ID)
	assert.ErrorIs(t, err, ErrOverlayCommitted)
	err = rw.Revert(ctx, doc, applied.ID)
	assert.ErrorIs(t, err, ErrOverlayCommitted)

	// The planned one can still be reverted.
	require.NoError(t, rw.Revert(ctx, doc, planned.ID))
	assert.Len(t, rw.Overlays(1), 1)

	err = rw.Apply(ctx, doc, "ov-999")
	assert.ErrorIs(t, err, ErrOverlayNotFound)
}

func TestRewriter_RevertApplied(t *testing.T) {
	rw := newTestRewriter(t)
	doc := NewMemDocument(MemPage{Width: 612, Height: 792})
	ctx := context.Background()

	ov := rw.Plan(1, testSpan(), FitResult{Text: "x", HScale: 100}, []TJItem{{Text: "x"}}, OverlayOptions{})
	require.NoError(t, rw.Apply(ctx, doc, ov.ID))
	require.NoError(t, rw.Revert(ctx, doc, ov.ID))
	assert.Empty(t, rw.Overlays(1))
	assert.Zero(t, rw.UncommittedCount())
}

func TestRewriter_OverlaysFilterByPage(t *testing.T) {
	rw := newTestRewriter(t)
	rw.Plan(1, testSpan(), FitResult{Text: "a", HScale: 100}, nil, OverlayOptions{})
	rw.Plan(2, testSpan(), FitResult{Text: "b", HScale: 100}, nil, OverlayOptions{})
	rw.Plan(2, testSpan(), FitResult{Text: "c", HScale: 100}, nil, OverlayOptions{})

	assert.Len(t, rw.Overlays(1), 1)
	assert.Len(t, rw.Overlays(2), 2)
	assert.Len(t, rw.Overlays(-1), 3)
}

func TestPlacementMatrix(t *testing.T) {
	span := testSpan()
	fit := FitResult{Text: "x", HScale: 100, NaturalWidth: 10}

	orig := placementMatrix(span, fit, PositionOriginal)
	assert.Equal(t, span.Trm, orig)

	base := placementMatrix(span, fit, PositionBaseline)
	x, y := base.Apply(0, 0)
	assert.InDelta(t, span.X, x, 1e-9)
	assert.InDelta(t, span.Y, y, 1e-9)

	center := placementMatrix(span, fit, PositionCentered)
	cx, _ := center.Apply(0, 0)
	assert.InDelta(t, span.X+(span.Width-10)/2, cx, 1e-9)
}
