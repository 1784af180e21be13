// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"context"
	"fmt"
	"sync"
)

// DrawKind tags one recorded drawing operation on a MemDocument.
type DrawKind string

const (
	DrawRedaction DrawKind = "redaction"
	DrawFill      DrawKind = "fill"
	DrawText      DrawKind = "text"
)

// DrawOp is one operation a MemDocument received through the sink
// interface.
type DrawOp struct {
	Kind DrawKind
	Page int
	Rect Rect
	Gray float64
	Text OverlayText
}

// MemPage is one page of an in-memory document.
type MemPage struct {
	Content       []byte
	Width, Height float64
	Fonts         []FontInfo
}

// MemDocument is a Document held entirely in memory. It records the
// drawing operations it receives instead of mutating PDF objects,
// which makes it the reference host for tests and examples.
type MemDocument struct {
	mu        sync.Mutex
	pages     []MemPage
	ops       []DrawOp
	metricsBy map[string]FontMetrics
}

// NewMemDocument builds a document from pages; page 1 is pages[0].
func NewMemDocument(pages ...MemPage) *MemDocument {
	return &MemDocument{pages: pages, metricsBy: make(map[string]FontMetrics)}
}

// SetMetrics registers exact metrics for a font name.
func (d *MemDocument) SetMetrics(font string, m FontMetrics) {
	d.mu.Lock()
	d.metricsBy[font] = m
	d.mu.Unlock()
}

func (d *MemDocument) NumPages() int { return len(d.pages) }

func (d *MemDocument) PageContent(ctx context.Context, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, len(d.pages))
	}
	return d.pages[page-1].Content, nil
}

func (d *MemDocument) PageSize(page int) (float64, float64) {
	if page < 1 || page > len(d.pages) {
		return 0, 0
	}
	p := d.pages[page-1]
	return p.Width, p.Height
}

func (d *MemDocument) Fonts(page int) []FontInfo {
	if page < 1 || page > len(d.pages) {
		return nil
	}
	return d.pages[page-1].Fonts
}

func (d *MemDocument) Metrics(font string) FontMetrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metricsBy[font]
}

func (d *MemDocument) AddRedaction(ctx context.Context, page int, rect Rect) error {
	return d.recordOp(ctx, DrawOp{Kind: DrawRedaction, Page: page, Rect: rect})
}

func (d *MemDocument) AddFill(ctx context.Context, page int, rect Rect, gray float64) error {
	return d.recordOp(ctx, DrawOp{Kind: DrawFill, Page: page, Rect: rect, Gray: gray})
}

func (d *MemDocument) AddText(ctx context.Context, page int, text OverlayText) error {
	return d.recordOp(ctx, DrawOp{Kind: DrawText, Page: page, Text: text})
}

func (d *MemDocument) RemoveOverlay(ctx context.Context, page int, overlayID string) error {
	// The memory host keeps the full op log; reverts are recorded by
	// the rewriter, not replayed here.
	return ctx.Err()
}

func (d *MemDocument) recordOp(ctx context.Context, op DrawOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if op.Page < 1 || op.Page > len(d.pages) {
		return fmt.Errorf("draw on page %d of %d", op.Page, len(d.pages))
	}
	d.mu.Lock()
	d.ops = append(d.ops, op)
	d.mu.Unlock()
	return nil
}

// Ops returns a copy of the recorded drawing operations in order.
func (d *MemDocument) Ops() []DrawOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawOp(nil), d.ops...)
}
