// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"image"
	"sort"

	"github.com/fogleman/gg"
)

// PreviewRenderer rasterizes a page's planned overlays so an edit can
// be inspected before it is committed. The output is a proof sheet,
// not a faithful PDF rendering: redactions draw as black boxes, fills
// in their gray level, and replacement text in a plain face at the
// overlay position.
type PreviewRenderer struct {
	// Scale converts points to pixels; 1.0 yields 72 DPI.
	Scale float64
}

// NewPreviewRenderer returns a renderer at the given pixel scale.
func NewPreviewRenderer(scale float64) *PreviewRenderer {
	if scale <= 0 {
		scale = 1
	}
	return &PreviewRenderer{Scale: scale}
}

// Render draws the overlays onto a white page of the given size in
// points. Overlays are drawn in z order.
func (p *PreviewRenderer) Render(pageWidth, pageHeight float64, overlays []*Overlay) (image.Image, error) {
	if pageWidth <= 0 || pageHeight <= 0 {
		return nil, fmt.Errorf("invalid page size %gx%g", pageWidth, pageHeight)
	}
	w := int(pageWidth*p.Scale + 0.5)
	h := int(pageHeight*p.Scale + 0.5)
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, ov := range sortByZ(overlays) {
		layers := append([]OverlayLayer(nil), ov.Layers...)
		sort.SliceStable(layers, func(i, j int) bool { return layers[i].Z < layers[j].Z })
		for _, layer := range layers {
			switch layer.Kind {
			case LayerRedaction, LayerErase:
				dc.SetRGB(0, 0, 0)
				p.fillRect(dc, layer.Rect, pageHeight)
			case LayerBackground:
				dc.SetRGB(0.9, 0.9, 0.9) // light gray so the box is visible on the proof
				p.fillRect(dc, layer.Rect, pageHeight)
			case LayerText:
				text := planText(ov.Plan)
				if text == "" {
					continue
				}
				dc.SetRGB(0.8, 0, 0)
				x, y := ov.Matrix.Apply(0, 0)
				// gg's y axis points down; flip from PDF coordinates.
				dc.DrawString(text, x*p.Scale, (pageHeight-y)*p.Scale)
			}
		}
	}
	return dc.Image(), nil
}

func (p *PreviewRenderer) fillRect(dc *gg.Context, r Rect, pageHeight float64) {
	dc.DrawRectangle(r.LLX*p.Scale, (pageHeight-r.URY)*p.Scale,
		r.Width()*p.Scale, r.Height()*p.Scale)
	dc.Fill()
}

func planText(plan []TJItem) string {
	var out string
	for _, item := range plan {
		out += item.Text
	}
	return out
}

func sortByZ(overlays []*Overlay) []*Overlay {
	out := append([]*Overlay(nil), overlays...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZOrder < out[j].ZOrder })
	return out
}
