// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"math"
	"strings"

	"github.com/sassoftware/viya-pdf-rewrite/logger"
)

// TextState holds the PDF text and graphics parameters that affect
// how a show operator places glyphs.
type TextState struct {
	Tc    float64 // character spacing
	Tw    float64 // word spacing
	Th    float64 // horizontal scaling, 1.0 == 100%
	Tl    float64 // leading
	Tf    string  // current font resource name
	Tfs   float64 // font size
	Tmode int     // render mode
	Trise float64 // rise
	Tm    Matrix  // text matrix
	Tlm   Matrix  // text line matrix
	CTM   Matrix
}

// Trm returns the text rendering matrix for the current state.
func (g *TextState) Trm() Matrix {
	param := Matrix{A: g.Tfs * g.Th, D: g.Tfs, F: g.Trise}
	return param.Mul(g.Tm).Mul(g.CTM)
}

// Span is one run of shown text with everything needed to place a
// replacement at the same spot.
type Span struct {
	Text      string
	Font      string
	FontSize  float64
	Trm       Matrix
	X, Y      float64 // device-space origin
	Width     float64 // device-space advance
	Start     int     // byte offset of the show operand in the stream
	End       int     // byte offset just past the show operator
	FromArray bool    // element of a TJ array
}

// Rect returns the approximate device-space bounding box of the span,
// using 80% ascent and 20% descent of the effective size.
func (s Span) Rect() Rect {
	size := math.Abs(s.Trm.Decompose().ScaleY)
	if size == 0 {
		size = s.FontSize
	}
	return Rect{
		LLX: s.X,
		LLY: s.Y - 0.2*size,
		URX: s.X + s.Width,
		URY: s.Y + 0.8*size,
	}
}

// Diagnostic records a recoverable problem found while interpreting a
// content stream.
type Diagnostic struct {
	Offset  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("offset %d: %s", d.Offset, d.Message)
}

// Result is the output of interpreting one content stream.
type Result struct {
	Spans       []Span
	Diagnostics []Diagnostic
	UnknownOps  map[string]int
}

// ParseOptions configures content interpretation.
type ParseOptions struct {
	// Metrics resolves a font resource name to width metrics. When
	// nil, or when it returns nil, built-in approximations are used.
	Metrics func(font string) FontMetrics
	// InitialCTM seeds the transform stack, normally the page's
	// rotation/media transform. Zero value means identity.
	InitialCTM Matrix
}

// ParseContent interprets a content stream and returns the text spans
// it shows. Malformed input never returns an error: problems are
// recorded as diagnostics and interpretation continues with whatever
// state can be salvaged.
func ParseContent(data []byte, opts ParseOptions) *Result {
	ctm := opts.InitialCTM
	if (ctm == Matrix{}) {
		ctm = Identity()
	}
	in := &interp{
		res: &Result{UnknownOps: make(map[string]int)},
		g:   TextState{Th: 1, CTM: ctm},
		metrics: func(font string) FontMetrics {
			if opts.Metrics != nil {
				if m := opts.Metrics(font); m != nil {
					return m
				}
			}
			return BuiltinMetricsFor(font)
		},
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("content interpretation aborted", "panic", r)
			in.res.Diagnostics = append(in.res.Diagnostics,
				Diagnostic{Offset: in.lastOp, Message: fmt.Sprintf("interpreter panic: %v", r)})
		}
	}()
	in.run(data)
	return in.res
}

type interp struct {
	res     *Result
	g       TextState
	stack   []TextState
	inText  bool
	lastOp  int
	metrics func(string) FontMetrics
}

func (in *interp) diag(off int, format string, args ...interface{}) {
	in.res.Diagnostics = append(in.res.Diagnostics,
		Diagnostic{Offset: off, Message: fmt.Sprintf(format, args...)})
}

func (in *interp) run(data []byte) {
	tok := newTokenizer(data)
	var operands []token
	for {
		t, ok := tok.next()
		if !ok {
			break
		}
		if t.kind != tokOperator {
			operands = append(operands, t)
			continue
		}
		in.lastOp = t.offset
		in.exec(t, operands)
		operands = operands[:0]
	}
	if len(in.stack) > 0 {
		in.diag(len(data), "%d unbalanced q operators", len(in.stack))
	}
	if in.inText {
		in.diag(len(data), "unterminated text object")
	}
}

// num fetches operand i as a float, defaulting to 0 with a diagnostic
// when missing or of the wrong type.
func num(in *interp, ops []token, i int, op string) float64 {
	if i < 0 || i >= len(ops) || ops[i].kind != tokNumber {
		in.diag(in.lastOp, "%s: missing numeric operand %d", op, i)
		return 0
	}
	return ops[i].num
}

func (in *interp) exec(t token, ops []token) {
	switch t.text {
	case "q":
		in.stack = append(in.stack, in.g)
	case "Q":
		if len(in.stack) == 0 {
			// Clamp at the bottom of the stack rather than fail.
			in.diag(t.offset, "Q without matching q")
			return
		}
		in.g = in.stack[len(in.stack)-1]
		in.stack = in.stack[:len(in.stack)-1]
	case "cm":
		m := Matrix{
			A: num(in, ops, 0, "cm"), B: num(in, ops, 1, "cm"),
			C: num(in, ops, 2, "cm"), D: num(in, ops, 3, "cm"),
			E: num(in, ops, 4, "cm"), F: num(in, ops, 5, "cm"),
		}
		in.g.CTM = m.Mul(in.g.CTM)
	case "BT":
		in.inText = true
		in.g.Tm = Identity()
		in.g.Tlm = Identity()
	case "ET":
		in.inText = false
	case "Td":
		in.g.Tlm = Translation(num(in, ops, 0, "Td"), num(in, ops, 1, "Td")).Mul(in.g.Tlm)
		in.g.Tm = in.g.Tlm
	case "TD":
		ty := num(in, ops, 1, "TD")
		in.g.Tl = -ty
		in.g.Tlm = Translation(num(in, ops, 0, "TD"), ty).Mul(in.g.Tlm)
		in.g.Tm = in.g.Tlm
	case "Tm":
		in.g.Tlm = Matrix{
			A: num(in, ops, 0, "Tm"), B: num(in, ops, 1, "Tm"),
			C: num(in, ops, 2, "Tm"), D: num(in, ops, 3, "Tm"),
			E: num(in, ops, 4, "Tm"), F: num(in, ops, 5, "Tm"),
		}
		in.g.Tm = in.g.Tlm
	case "T*":
		in.nextLine()
	case "Tc":
		in.g.Tc = num(in, ops, 0, "Tc")
	case "Tw":
		in.g.Tw = num(in, ops, 0, "Tw")
	case "Tz":
		in.g.Th = num(in, ops, 0, "Tz") / 100
	case "TL":
		in.g.Tl = num(in, ops, 0, "TL")
	case "Tf":
		if len(ops) >= 2 && ops[0].kind == tokName {
			in.g.Tf = ops[0].text
			in.g.Tfs = num(in, ops, 1, "Tf")
		} else {
			in.diag(t.offset, "Tf: want name and size operands")
		}
	case "Tr":
		in.g.Tmode = int(num(in, ops, 0, "Tr"))
	case "Ts":
		in.g.Trise = num(in, ops, 0, "Ts")
	case "Tj":
		if len(ops) >= 1 && ops[0].kind == tokString {
			in.show(ops[0], t, false)
		} else {
			in.diag(t.offset, "Tj: want string operand")
		}
	case "'":
		in.nextLine()
		if len(ops) >= 1 && ops[0].kind == tokString {
			in.show(ops[0], t, false)
		} else {
			in.diag(t.offset, "': want string operand")
		}
	case "\"":
		if len(ops) >= 3 && ops[2].kind == tokString {
			in.g.Tw = num(in, ops, 0, "\"")
			in.g.Tc = num(in, ops, 1, "\"")
			in.nextLine()
			in.show(ops[2], t, false)
		} else {
			in.diag(t.offset, "\": want two numbers and a string")
		}
	case "TJ":
		if len(ops) >= 1 && ops[0].kind == tokArray {
			in.showArray(ops[0], t)
		} else {
			in.diag(t.offset, "TJ: want array operand")
		}
	case ")", "]", "}", "{", ">":
		// Delimiters that are never operators; the stream is damaged
		// around here.
		in.diag(t.offset, "unexpected %q", t.text)
	default:
		in.res.UnknownOps[t.text]++
	}
}

func (in *interp) nextLine() {
	in.g.Tlm = Translation(0, -in.g.Tl).Mul(in.g.Tlm)
	in.g.Tm = in.g.Tlm
}

// show emits a span for one shown string and advances the text matrix
// by the pen displacement.
func (in *interp) show(str token, op token, fromArray bool) {
	if !in.inText {
		in.diag(op.offset, "%s outside BT/ET", op.text)
	}
	text := decodeLatin1(str.str)
	if text == "" {
		return
	}
	trm := in.g.Trm()
	x, y := trm.Apply(0, 0)
	tx := in.advance(text)
	dx, dy := in.g.Tm.Mul(in.g.CTM).ApplyDistance(tx, 0)
	in.res.Spans = append(in.res.Spans, Span{
		Text:      text,
		Font:      in.g.Tf,
		FontSize:  in.g.Tfs,
		Trm:       trm,
		X:         x,
		Y:         y,
		Width:     math.Hypot(dx, dy),
		Start:     str.offset,
		End:       op.offset + len(op.text),
		FromArray: fromArray,
	})
	in.g.Tm = Translation(tx, 0).Mul(in.g.Tm)
}

// showArray handles TJ: strings show text, numbers pull the pen back
// by n/1000 em (negative numbers move the pen forward).
func (in *interp) showArray(arr token, op token) {
	for _, el := range arr.arr {
		switch el.kind {
		case tokString:
			in.show(el, op, true)
		case tokNumber:
			tx := -el.num / 1000 * in.g.Tfs * in.g.Th
			in.g.Tm = Translation(tx, 0).Mul(in.g.Tm)
		default:
			in.diag(el.offset, "TJ: unexpected %v element", el.kind)
		}
	}
}

// advance returns the text-space pen displacement of showing text in
// the current state.
func (in *interp) advance(text string) float64 {
	m := in.metrics(in.g.Tf)
	var tx float64
	for _, r := range text {
		w, ok := m.GlyphWidth(r)
		if !ok {
			w = m.MissingWidth()
		}
		tx += w/1000*in.g.Tfs + in.g.Tc
		if r == ' ' {
			tx += in.g.Tw
		}
	}
	return tx * in.g.Th
}

// decodeLatin1 maps content-stream string bytes to text, one byte per
// rune. Simple fonts are effectively Latin-1 for our purposes; CID
// text needs the host document's encoding tables and is out of scope
// here.
func decodeLatin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// Match is a located needle within a parsed page.
type Match struct {
	Text      string
	Rect      Rect
	SpanStart int // index of the first covering span
	SpanEnd   int // index one past the last covering span
}

// FindText locates needle within the concatenated text of adjacent
// spans that share a baseline. It returns every non-overlapping match
// in span order.
func FindText(spans []Span, needle string) []Match {
	if needle == "" || len(spans) == 0 {
		return nil
	}
	var matches []Match
	for start := 0; start < len(spans); start++ {
		// Collect the run of spans on the same baseline.
		end := start + 1
		for end < len(spans) && sameBaseline(spans[end-1], spans[end]) {
			end++
		}
		line := make([]int, 0, end-start) // cumulative text lengths
		var text strings.Builder
		for i := start; i < end; i++ {
			line = append(line, text.Len())
			text.WriteString(spans[i].Text)
		}
		joined := text.String()
		off := 0
		for {
			idx := strings.Index(joined[off:], needle)
			if idx < 0 {
				break
			}
			idx += off
			first, last := coveringSpans(line, idx, idx+len(needle))
			m := Match{Text: needle, SpanStart: start + first, SpanEnd: start + last + 1}
			m.Rect = spans[m.SpanStart].Rect()
			for i := m.SpanStart + 1; i < m.SpanEnd; i++ {
				m.Rect = unionRect(m.Rect, spans[i].Rect())
			}
			matches = append(matches, m)
			off = idx + len(needle)
		}
		start = end - 1
	}
	return matches
}

func sameBaseline(a, b Span) bool {
	const eps = 0.5
	dy := a.Y - b.Y
	return dy < eps && dy > -eps && b.X >= a.X
}

func coveringSpans(starts []int, lo, hi int) (first, last int) {
	for i, s := range starts {
		if s <= lo {
			first = i
		}
		if s < hi {
			last = i
		}
	}
	return first, last
}

func unionRect(a, b Rect) Rect {
	if a.LLX > b.LLX {
		a.LLX = b.LLX
	}
	if a.LLY > b.LLY {
		a.LLY = b.LLY
	}
	if a.URX < b.URX {
		a.URX = b.URX
	}
	if a.URY < b.URY {
		a.URY = b.URY
	}
	return a
}
