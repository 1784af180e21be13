// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// FaceMetrics adapts a font.Face to the FontMetrics interface. The
// face must be sized so that one point of advance equals one milliem;
// LoadTrueTypeMetrics arranges that.
type FaceMetrics struct {
	face font.Face
	name string
	miss float64
}

// NewFaceMetrics wraps an already-sized face. missing is the advance
// reported for glyphs the face lacks.
func NewFaceMetrics(face font.Face, name string, missing float64) *FaceMetrics {
	return &FaceMetrics{face: face, name: name, miss: missing}
}

// LoadTrueTypeMetrics parses an embedded TrueType program and returns
// exact metrics for it.
func LoadTrueTypeMetrics(data []byte, name string) (*FaceMetrics, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %q: %w", name, err)
	}
	// Size 1000 at 72 DPI makes GlyphAdvance report 1/1000 em units
	// directly.
	face := truetype.NewFace(f, &truetype.Options{Size: 1000, DPI: 72, Hinting: font.HintingNone})
	miss := 500.0
	if adv, ok := face.GlyphAdvance(' '); ok {
		miss = fixedToFloat(adv)
	}
	return &FaceMetrics{face: face, name: name, miss: miss}, nil
}

func (m *FaceMetrics) GlyphWidth(r rune) (float64, bool) {
	adv, ok := m.face.GlyphAdvance(r)
	if !ok {
		return 0, false
	}
	return fixedToFloat(adv), true
}

func (m *FaceMetrics) MissingWidth() float64 { return m.miss }
func (m *FaceMetrics) Name() string          { return m.name }
func (m *FaceMetrics) Approximate() bool     { return false }

// Close releases the face's glyph cache.
func (m *FaceMetrics) Close() error { return m.face.Close() }

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }
