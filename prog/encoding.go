// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// String generates a very compact program description (mostly for debug output).
func (p *Prog) String() string {
	buf := new(bytes.Buffer)
	for i, c := range p.Calls {
		if i != 0 {
			fmt.Fprintf(buf, "-")
		}
		fmt.Fprintf(buf, "%v", c.Op.Name)
	}
	return buf.String()
}

// Serialize renders the program in the text notation.
// Variables are renumbered and only results that are used get bound.
func (p *Prog) Serialize() []byte {
	buf := new(bytes.Buffer)
	uses := p.Uses()
	vars := make(map[*Call]int)
	varSeq := 0
	for _, c := range p.Calls {
		if uses[c] {
			fmt.Fprintf(buf, "r%v = ", varSeq)
			vars[c] = varSeq
			varSeq++
		}
		fmt.Fprintf(buf, "%v(", c.Op.Name)
		for i, a := range c.Args {
			if i != 0 {
				fmt.Fprintf(buf, ", ")
			}
			serializeArg(buf, a, vars)
		}
		fmt.Fprintf(buf, ")")
		var props []string
		if c.Props.Guard != 0 {
			props = append(props, fmt.Sprintf("guard: %v", c.Props.Guard))
		}
		if c.Props.Errno != nil {
			props = append(props, fmt.Sprintf("errno: %v", *c.Props.Errno))
		}
		if len(props) != 0 {
			fmt.Fprintf(buf, " (%v)", strings.Join(props, ", "))
		}
		fmt.Fprintf(buf, "\n")
	}
	return buf.Bytes()
}

func serializeArg(buf *bytes.Buffer, arg Arg, vars map[*Call]int) {
	switch a := arg.(type) {
	case *ConstArg:
		if a.Name != "" {
			buf.WriteString(a.Name)
		} else {
			fmt.Fprintf(buf, "%v", a.Val)
		}
	case *DataArg:
		switch {
		case a.Nil:
			buf.WriteString("nil")
		case isText(a.Data):
			buf.WriteString(quoteText(a.Data))
		default:
			fmt.Fprintf(buf, "\"%v\"", hex.EncodeToString(a.Data))
		}
	case *ResultArg:
		id, ok := vars[a.Res]
		if !ok {
			panic("no result")
		}
		fmt.Fprintf(buf, "r%v", id)
	default:
		panic("unknown arg kind")
	}
}

func isText(data []byte) bool {
	for _, v := range data {
		if (v < 0x20 || v >= 0x7f) && v != '\n' && v != '\t' {
			return false
		}
	}
	return true
}

func quoteText(data []byte) string {
	buf := new(strings.Builder)
	buf.WriteByte('\'')
	for _, v := range data {
		switch v {
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\\':
			buf.WriteString(`\\`)
		case '\'':
			buf.WriteString(`\'`)
		default:
			buf.WriteByte(v)
		}
	}
	buf.WriteByte('\'')
	return buf.String()
}

type DeserializeMode int

const (
	// Strict parses programs written by us: every non-comment line must be a call.
	Strict DeserializeMode = iota
	// NonStrict parses model replies: prose, code fences, "return 66" and trailing ';' are tolerated.
	NonStrict
)

// SyntaxError is returned for lines that are not well-formed calls.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line #%v: %v\n%v", e.Line, e.Msg, e.Text)
}

// LinkError is returned for references to ops or constants the target does not have.
type LinkError struct {
	Line int
	Name string
	Msg  string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("line #%v: %v", e.Line, e.Msg)
}

// TypeError is returned when calls do not fit op signatures or misuse resources.
type TypeError struct {
	Line int
	Call int
	Msg  string
}

func (e *TypeError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("call #%v: %v", e.Call, e.Msg)
	}
	return fmt.Sprintf("line #%v: %v", e.Line, e.Msg)
}

var callLineRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\s*=\s*)?[A-Za-z_][A-Za-z0-9_]*\s*\(`)

// Deserialize parses a program in the text notation and validates it.
func (target *Target) Deserialize(data []byte, mode DeserializeMode) (*Prog, error) {
	target.initOnce()
	prog := &Prog{Target: target}
	p := newParser(data)
	p.nonStrictText = mode == NonStrict
	vars := make(map[string]*Call)
	var lines []int
	for p.Scan() {
		if mode == NonStrict {
			p.s = strings.TrimSpace(p.s)
			if strings.HasPrefix(p.s, "```") || strings.HasPrefix(p.s, "//") ||
				!callLineRe.MatchString(p.s) {
				continue
			}
			p.s = strings.TrimRight(p.s, "; \t")
		}
		p.SkipWs()
		if p.EOF() || p.Char() == '#' {
			continue
		}
		c, r := p.parseCall(target, vars)
		if p.e != nil {
			return nil, p.e
		}
		prog.Calls = append(prog.Calls, c)
		lines = append(lines, p.l)
		if r != "" {
			if c.Op.Ret == nil {
				return nil, &TypeError{Line: p.l, Call: len(prog.Calls) - 1,
					Msg: fmt.Sprintf("%v returns nothing, can't bind %v", c.Op.Name, r)}
			}
			vars[r] = c
		}
	}
	if p.Err() != nil {
		return nil, p.Err()
	}
	if err := prog.validate(); err != nil {
		if te, ok := err.(*TypeError); ok {
			te.Line = lines[te.Call]
		}
		return nil, err
	}
	return prog, nil
}

func (p *parser) parseCall(target *Target, vars map[string]*Call) (*Call, string) {
	name := p.Ident()
	r := ""
	if !p.EOF() && p.Char() == '=' {
		r = name
		p.Parse('=')
		name = p.Ident()
	}
	if p.e != nil {
		return nil, ""
	}
	op := target.OpMap[name]
	if op == nil {
		p.e = &LinkError{Line: p.l, Name: name, Msg: fmt.Sprintf("unknown op %v", name)}
		return nil, ""
	}
	c := &Call{Op: op}
	p.Parse('(')
	for p.e == nil && p.Char() != ')' {
		arg := p.parseArg(target, vars)
		c.Args = append(c.Args, arg)
		if p.e == nil && p.Char() != ')' {
			p.Parse(',')
		}
	}
	p.Parse(')')
	if p.e == nil && !p.EOF() && p.Char() == '(' {
		p.parseProps(target, &c.Props)
	}
	if p.e == nil && !p.EOF() && p.Char() != '#' {
		p.failf("tailing data")
	}
	return c, r
}

func (p *parser) parseArg(target *Target, vars map[string]*Call) Arg {
	switch ch := p.Char(); {
	case ch == '\'':
		data := p.parseText()
		return MakeData(data)
	case ch == '"':
		return p.parseHex()
	case ch == '-' || ch >= '0' && ch <= '9':
		return MakeConst(p.parseInt())
	default:
		id := p.Ident()
		if p.e != nil {
			return nil
		}
		if id == "nil" || id == "NULL" {
			return MakeNil()
		}
		if c := vars[id]; c != nil {
			return MakeResult(c)
		}
		if val, ok := target.Consts[id]; ok {
			return &ConstArg{Val: val, Name: id}
		}
		if isVarName(id) {
			p.e = &TypeError{Line: p.l, Msg: fmt.Sprintf("undefined variable %v", id)}
			return nil
		}
		p.e = &LinkError{Line: p.l, Name: id, Msg: fmt.Sprintf("unknown constant %v", id)}
		return nil
	}
}

func isVarName(id string) bool {
	if len(id) < 2 || id[0] != 'r' {
		return false
	}
	_, err := strconv.Atoi(id[1:])
	return err == nil
}

func (p *parser) parseInt() int64 {
	if p.Char() == 0 && p.e != nil {
		return 0
	}
	i := p.i
	if p.s[p.i] == '-' {
		p.i++
	}
	for p.i < len(p.s) && isIdentChar(p.s[p.i]) {
		p.i++
	}
	str := p.s[i:p.i]
	p.SkipWs()
	v, err := strconv.ParseInt(str, 0, 64)
	if err != nil {
		u, err1 := strconv.ParseUint(str, 0, 64)
		if err1 != nil {
			p.failf("bad integer %q", str)
			return 0
		}
		v = int64(u)
	}
	return v
}

func (p *parser) parseText() []byte {
	p.i++ // opening quote
	var data []byte
	for {
		if p.EOF() {
			p.failf("unterminated string")
			return nil
		}
		ch := p.s[p.i]
		p.i++
		if ch == '\'' {
			break
		}
		if ch != '\\' {
			data = append(data, ch)
			continue
		}
		if p.EOF() {
			p.failf("unterminated escape")
			return nil
		}
		esc := p.s[p.i]
		p.i++
		switch esc {
		case 'n':
			data = append(data, '\n')
		case 't':
			data = append(data, '\t')
		case 'r':
			data = append(data, '\r')
		case '0':
			data = append(data, 0)
		case '\\', '\'', '"':
			data = append(data, esc)
		case 'x':
			if p.i+2 > len(p.s) {
				p.failf("bad \\x escape")
				return nil
			}
			v, err := strconv.ParseUint(p.s[p.i:p.i+2], 16, 8)
			if err != nil {
				p.failf("bad \\x escape: %v", err)
				return nil
			}
			data = append(data, byte(v))
			p.i += 2
		default:
			p.failf("unknown escape \\%c", esc)
			return nil
		}
	}
	p.SkipWs()
	return data
}

func (p *parser) parseHex() Arg {
	p.i++ // opening quote
	end := strings.IndexByte(p.s[p.i:], '"')
	if end == -1 {
		p.failf("unterminated string")
		return nil
	}
	str := p.s[p.i : p.i+end]
	p.i += end + 1
	p.SkipWs()
	data, err := hex.DecodeString(str)
	if err != nil {
		if p.nonStrictText {
			return MakeData([]byte(str))
		}
		p.failf("bad hex data %q: %v", str, err)
		return nil
	}
	return MakeData(data)
}

func (p *parser) parseProps(target *Target, props *CallProps) {
	p.Parse('(')
	for p.e == nil && p.Char() != ')' {
		key := p.Ident()
		p.Parse(':')
		if p.e != nil {
			return
		}
		var val int64
		if ch := p.Char(); ch == '-' || ch >= '0' && ch <= '9' {
			val = p.parseInt()
		} else if name := p.Ident(); p.e == nil {
			v, ok := target.Consts[name]
			if !ok {
				p.e = &LinkError{Line: p.l, Name: name, Msg: fmt.Sprintf("unknown constant %v", name)}
				return
			}
			val = v
		}
		switch key {
		case "guard":
			props.Guard = int(val)
		case "errno":
			errno := int(val)
			props.Errno = &errno
		default:
			p.failf("unknown call property %v", key)
			return
		}
		if p.e == nil && p.Char() != ')' {
			p.Parse(',')
		}
	}
	p.Parse(')')
}

type parser struct {
	r *bufio.Scanner
	s string
	i int
	l int
	e error

	// Double-quoted strings that are not hex are taken as text (model replies use C strings).
	nonStrictText bool
}

func newParser(data []byte) *parser {
	p := &parser{r: bufio.NewScanner(bytes.NewReader(data))}
	p.r.Buffer(nil, 64<<20)
	return p
}

func (p *parser) Scan() bool {
	if p.e != nil {
		return false
	}
	if !p.r.Scan() {
		p.e = p.r.Err()
		return false
	}
	p.s = p.r.Text()
	p.i = 0
	p.l++
	return true
}

func (p *parser) Err() error {
	return p.e
}

func (p *parser) EOF() bool {
	return p.i == len(p.s)
}

func (p *parser) Char() byte {
	if p.e != nil {
		return 0
	}
	if p.EOF() {
		p.failf("unexpected eof")
		return 0
	}
	return p.s[p.i]
}

func (p *parser) Parse(ch byte) {
	if p.e != nil {
		return
	}
	if p.EOF() {
		p.failf("want %s, got EOF", string(ch))
		return
	}
	if p.s[p.i] != ch {
		p.failf("want '%v', got '%v'", string(ch), string(p.s[p.i]))
		return
	}
	p.i++
	p.SkipWs()
}

func (p *parser) SkipWs() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t') {
		p.i++
	}
}

func isIdentChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' ||
		ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' ||
		ch == '_'
}

func (p *parser) Ident() string {
	if p.e != nil {
		return ""
	}
	i := p.i
	for p.i < len(p.s) && isIdentChar(p.s[p.i]) {
		p.i++
	}
	if i == p.i {
		p.failf("failed to parse identifier at pos %v", i)
		return ""
	}
	s := p.s[i:p.i]
	p.SkipWs()
	return s
}

func (p *parser) failf(msg string, args ...any) {
	p.e = &SyntaxError{Line: p.l, Text: p.s, Msg: fmt.Sprintf(msg, args...)}
}
