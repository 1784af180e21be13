// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import "strconv"

type tokKind int

const (
	tokNumber tokKind = iota
	tokString
	tokName
	tokArray
	tokDictOpen
	tokDictClose
	tokOperator
)

func (k tokKind) String() string {
	switch k {
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokName:
		return "name"
	case tokArray:
		return "array"
	case tokDictOpen:
		return "<<"
	case tokDictClose:
		return ">>"
	default:
		return "operator"
	}
}

type token struct {
	kind   tokKind
	num    float64
	str    []byte  // tokString payload, decoded
	text   string  // name (without slash) or operator text
	arr    []token // tokArray elements
	offset int
}

// tokenizer splits a content stream into postscript-style tokens. It
// is deliberately forgiving: anything it cannot make sense of becomes
// an operator token, which the interpreter then counts as unknown.
type tokenizer struct {
	data []byte
	pos  int
}

func newTokenizer(data []byte) *tokenizer {
	return &tokenizer{data: data}
}

func isWhite(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (t *tokenizer) skipSpace() {
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		if isWhite(c) {
			t.pos++
			continue
		}
		if c == '%' {
			for t.pos < len(t.data) && t.data[t.pos] != '\n' && t.data[t.pos] != '\r' {
				t.pos++
			}
			continue
		}
		return
	}
}

func (t *tokenizer) next() (token, bool) {
	t.skipSpace()
	if t.pos >= len(t.data) {
		return token{}, false
	}
	start := t.pos
	c := t.data[t.pos]
	switch {
	case c == '(':
		t.pos++
		return token{kind: tokString, str: t.literalString(), offset: start}, true
	case c == '<':
		if t.pos+1 < len(t.data) && t.data[t.pos+1] == '<' {
			t.pos += 2
			return token{kind: tokDictOpen, offset: start}, true
		}
		t.pos++
		return token{kind: tokString, str: t.hexString(), offset: start}, true
	case c == '>':
		if t.pos+1 < len(t.data) && t.data[t.pos+1] == '>' {
			t.pos += 2
			return token{kind: tokDictClose, offset: start}, true
		}
		t.pos++
		return token{kind: tokOperator, text: ">", offset: start}, true
	case c == '[':
		t.pos++
		return token{kind: tokArray, arr: t.array(), offset: start}, true
	case c == ']':
		t.pos++
		return token{kind: tokOperator, text: "]", offset: start}, true
	case c == '/':
		t.pos++
		return token{kind: tokName, text: t.name(), offset: start}, true
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		if tk, ok := t.number(start); ok {
			return tk, true
		}
		fallthrough
	default:
		for t.pos < len(t.data) && !isWhite(t.data[t.pos]) && !isDelim(t.data[t.pos]) {
			t.pos++
		}
		if t.pos == start {
			// Lone delimiter we do not otherwise handle.
			t.pos++
		}
		return token{kind: tokOperator, text: string(t.data[start:t.pos]), offset: start}, true
	}
}

func (t *tokenizer) number(start int) (token, bool) {
	pos := t.pos
	if t.data[pos] == '+' || t.data[pos] == '-' {
		pos++
	}
	digits := 0
	for pos < len(t.data) && t.data[pos] >= '0' && t.data[pos] <= '9' {
		pos++
		digits++
	}
	if pos < len(t.data) && t.data[pos] == '.' {
		pos++
		for pos < len(t.data) && t.data[pos] >= '0' && t.data[pos] <= '9' {
			pos++
			digits++
		}
	}
	if digits == 0 {
		return token{}, false
	}
	if pos < len(t.data) && !isWhite(t.data[pos]) && !isDelim(t.data[pos]) {
		return token{}, false
	}
	v, err := strconv.ParseFloat(string(t.data[t.pos:pos]), 64)
	if err != nil {
		return token{}, false
	}
	t.pos = pos
	return token{kind: tokNumber, num: v, offset: start}, true
}

// literalString consumes a (...) string after the opening paren,
// handling balanced parens, escapes and octal codes. An unterminated
// string runs to the end of the stream.
func (t *tokenizer) literalString() []byte {
	var out []byte
	depth := 1
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		t.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if t.pos >= len(t.data) {
				return out
			}
			e := t.data[t.pos]
			t.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// Line continuation; swallow a following \n too.
				if t.pos < len(t.data) && t.data[t.pos] == '\n' {
					t.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && t.pos < len(t.data); i++ {
						d := t.data[t.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						t.pos++
					}
					out = append(out, byte(v))
				} else {
					// Unknown escape: the backslash is dropped.
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hexString consumes a <...> string after the opening bracket. An odd
// trailing digit is padded with zero per the PDF convention.
func (t *tokenizer) hexString() []byte {
	var out []byte
	var hi int = -1
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		t.pos++
		if c == '>' {
			break
		}
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		default:
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	if hi >= 0 {
		out = append(out, byte(hi<<4))
	}
	return out
}

func (t *tokenizer) name() string {
	start := t.pos
	var out []byte
	for t.pos < len(t.data) && !isWhite(t.data[t.pos]) && !isDelim(t.data[t.pos]) {
		c := t.data[t.pos]
		if c == '#' && t.pos+2 < len(t.data) {
			if h, ok := hexPair(t.data[t.pos+1], t.data[t.pos+2]); ok {
				out = append(out, t.data[start:t.pos]...)
				out = append(out, h)
				t.pos += 3
				start = t.pos
				continue
			}
		}
		t.pos++
	}
	out = append(out, t.data[start:t.pos]...)
	return string(out)
}

func hexPair(a, b byte) (byte, bool) {
	av, aok := hexVal(a)
	bv, bok := hexVal(b)
	if !aok || !bok {
		return 0, false
	}
	return av<<4 | bv, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// array consumes tokens until the matching close bracket. Nested
// arrays are kept as array tokens.
func (t *tokenizer) array() []token {
	var out []token
	for {
		tk, ok := t.next()
		if !ok {
			return out
		}
		if tk.kind == tokOperator && tk.text == "]" {
			return out
		}
		out = append(out, tk)
	}
}
