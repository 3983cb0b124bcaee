// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type kind int

const (
	kindFalse kind = iota
	kindTrue
	kindNull
	kindNumber
	kindString
	kindArray
	kindObject
)

// item is a node of the JSON tree. Object members keep their insertion order.
type item struct {
	kind     kind
	name     string // member name inside an object
	num      float64
	str      string
	children []*item
	parent   *item
	freed    bool
}

func (it *item) free() {
	it.freed = true
	for _, c := range it.children {
		c.free()
	}
}

func (it *item) attach(c *item) {
	c.parent = it
	it.children = append(it.children, c)
}

func (it *item) detach(idx int) *item {
	c := it.children[idx]
	it.children = append(it.children[:idx:idx], it.children[idx+1:]...)
	c.parent = nil
	return c
}

func (it *item) find(name string, caseSensitive bool) int {
	for i, c := range it.children {
		if caseSensitive && c.name == name || !caseSensitive && strings.EqualFold(c.name, name) {
			return i
		}
	}
	return -1
}

func (it *item) duplicate(recurse bool) *item {
	dup := &item{kind: it.kind, name: it.name, num: it.num, str: it.str}
	if recurse {
		for _, c := range it.children {
			dup.attach(c.duplicate(true))
		}
	}
	return dup
}

func compare(a, b *item, caseSensitive bool) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindNumber:
		return a.num == b.num
	case kindString:
		return a.str == b.str
	case kindArray:
		if len(a.children) != len(b.children) {
			return false
		}
		for i := range a.children {
			if !compare(a.children[i], b.children[i], caseSensitive) {
				return false
			}
		}
		return true
	case kindObject:
		if len(a.children) != len(b.children) {
			return false
		}
		for _, c := range a.children {
			idx := b.find(c.name, caseSensitive)
			if idx == -1 || !compare(c, b.children[idx], caseSensitive) {
				return false
			}
		}
		return true
	}
	return true
}

func (it *item) print(formatted bool) []byte {
	buf := new(bytes.Buffer)
	it.printTo(buf, formatted, 0)
	return buf.Bytes()
}

func (it *item) printTo(buf *bytes.Buffer, formatted bool, depth int) {
	switch it.kind {
	case kindFalse:
		buf.WriteString("false")
	case kindTrue:
		buf.WriteString("true")
	case kindNull:
		buf.WriteString("null")
	case kindNumber:
		buf.WriteString(formatNumber(it.num))
	case kindString:
		writeString(buf, it.str)
	case kindArray:
		buf.WriteByte('[')
		for i, c := range it.children {
			if i != 0 {
				buf.WriteByte(',')
				if formatted {
					buf.WriteByte(' ')
				}
			}
			c.printTo(buf, formatted, depth+1)
		}
		buf.WriteByte(']')
	case kindObject:
		buf.WriteByte('{')
		if formatted {
			buf.WriteByte('\n')
		}
		for i, c := range it.children {
			if formatted {
				buf.WriteString(strings.Repeat("\t", depth+1))
			}
			writeString(buf, c.name)
			buf.WriteByte(':')
			if formatted {
				buf.WriteByte('\t')
			}
			c.printTo(buf, formatted, depth+1)
			if i != len(it.children)-1 {
				buf.WriteByte(',')
			}
			if formatted {
				buf.WriteByte('\n')
			}
		}
		if formatted {
			buf.WriteString(strings.Repeat("\t", depth))
		}
		buf.WriteByte('}')
	}
}

// formatNumber prints integral values as integers and others with the shortest of 15 or 17
// significant digits that reads back to the same value. NaN and infinities become null.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "null"
	case v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32:
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'g', 15, 64)
	if back, err := strconv.ParseFloat(s, 64); err != nil || back != v {
		s = strconv.FormatFloat(v, 'g', 17, 64)
	}
	return s
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}

var errUnexpectedEnd = errors.New("unexpected end of input")

// parse reads the first JSON value of data, trailing data is ignored.
func parse(data []byte) (*item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return parseValue(dec, 0)
}

const maxNesting = 1000

func parseValue(dec *json.Decoder, depth int) (*item, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("nesting deeper than %v", maxNesting)
	}
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, errUnexpectedEnd
	}
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case nil:
		return &item{kind: kindNull}, nil
	case bool:
		if v {
			return &item{kind: kindTrue}, nil
		}
		return &item{kind: kindFalse}, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, err
		}
		return &item{kind: kindNumber, num: f}, nil
	case string:
		return &item{kind: kindString, str: v}, nil
	case json.Delim:
		it := &item{kind: kindArray}
		if v == '{' {
			it.kind = kindObject
		}
		for dec.More() {
			name := ""
			if it.kind == kindObject {
				tok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name = tok.(string)
			}
			c, err := parseValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			c.name = name
			it.attach(c)
		}
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				err = errUnexpectedEnd
			}
			return nil, err
		}
		return it, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// minify removes whitespace outside of strings and /* */ and // comments.
func minify(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			end := bytes.Index(data[i+2:], []byte("*/"))
			if end == -1 {
				return out
			}
			i += end + 3
		case c == '"':
			start := i
			for i++; i < len(data) && data[i] != '"'; i++ {
				if data[i] == '\\' {
					i++
				}
			}
			out = append(out, data[start:min(i+1, len(data))]...)
		default:
			out = append(out, c)
		}
	}
	return out
}
