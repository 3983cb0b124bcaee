// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cre2

import (
	"errors"
	"fmt"
	"regexp"
	"regexp/syntax"
	"sort"
	"strings"
)

type options struct {
	caseSensitive bool
	longestMatch  bool
	literal       bool
	dotNL         bool
	posixSyntax   bool
	oneLine       bool
	neverCapture  bool
	freed         bool
}

func defaultOptions() *options {
	return &options{caseSensitive: true}
}

func (opt *options) flags() syntax.Flags {
	flags := syntax.Perl
	if opt.posixSyntax {
		flags = syntax.POSIX
		if opt.oneLine {
			flags |= syntax.OneLine
		}
	}
	if !opt.caseSensitive {
		flags |= syntax.FoldCase
	}
	if opt.literal {
		flags |= syntax.Literal
	}
	if opt.dotNL {
		flags |= syntax.DotNL
	}
	return flags
}

// rex is a compiled cre2_regexp_t. Patterns that fail to compile still produce a handle
// that reports the error.
type rex struct {
	pattern string
	opt     options
	errCode int
	errMsg  string
	errArg  string

	re       *regexp.Regexp
	anchored [4]*regexp.Regexp // by anchor

	// groups holds the submatches of the last match, nil entries for unset groups.
	groups [][]byte
}

func compile(pattern string, opt *options) *rex {
	r := &rex{pattern: pattern, opt: *opt}
	tree, err := syntax.Parse(pattern, opt.flags())
	if err != nil {
		r.setError(err)
		return r
	}
	if name := duplicateName(tree, map[string]bool{}); name != "" {
		r.errCode, r.errArg = errBadNamedCapture, "(?P<"+name+">"
		r.errMsg = "invalid named capture group: " + r.errArg
		return r
	}
	if opt.neverCapture {
		tree = stripCaptures(tree)
	}
	expr := tree.String()
	re, err := regexp.Compile(expr)
	if err != nil {
		r.setError(err)
		return r
	}
	if opt.longestMatch {
		re.Longest()
	}
	r.re = re
	r.anchored[unanchored] = re
	return r
}

func (r *rex) setError(err error) {
	r.errCode, r.errMsg = errInternal, err.Error()
	var serr *syntax.Error
	if errors.As(err, &serr) {
		r.errCode, r.errArg = errorCode(serr.Code), serr.Expr
	}
}

func errorCode(code syntax.ErrorCode) int {
	switch code {
	case syntax.ErrInvalidEscape:
		return errBadEscape
	case syntax.ErrInvalidCharClass:
		return errBadCharClass
	case syntax.ErrInvalidCharRange:
		return errBadCharRange
	case syntax.ErrMissingBracket:
		return errMissingBracket
	case syntax.ErrMissingParen, syntax.ErrUnexpectedParen:
		return errMissingParen
	case syntax.ErrTrailingBackslash:
		return errTrailingBackslash
	case syntax.ErrMissingRepeatArgument:
		return errRepeatArgument
	case syntax.ErrInvalidRepeatSize:
		return errRepeatSize
	case syntax.ErrInvalidRepeatOp:
		return errRepeatOp
	case syntax.ErrInvalidPerlOp:
		return errBadPerlOp
	case syntax.ErrInvalidUTF8:
		return errBadUTF8
	case syntax.ErrInvalidNamedCapture:
		return errBadNamedCapture
	case syntax.ErrLarge, syntax.ErrNestingDepth:
		return errPatternTooLarge
	}
	return errInternal
}

// duplicateName returns the first capture name that is used twice, in pattern order.
func duplicateName(re *syntax.Regexp, seen map[string]bool) string {
	if re.Op == syntax.OpCapture && re.Name != "" {
		if seen[re.Name] {
			return re.Name
		}
		seen[re.Name] = true
	}
	for _, sub := range re.Sub {
		if name := duplicateName(sub, seen); name != "" {
			return name
		}
	}
	return ""
}

// stripCaptures turns capturing groups into plain groups.
func stripCaptures(re *syntax.Regexp) *syntax.Regexp {
	for re.Op == syntax.OpCapture {
		re = re.Sub[0]
	}
	for i, sub := range re.Sub {
		re.Sub[i] = stripCaptures(sub)
	}
	return re
}

func (r *rex) ok() bool {
	return r.re != nil
}

func (r *rex) numGroups() int {
	if !r.ok() {
		return -1
	}
	return r.re.NumSubexp()
}

// anchoredRe returns the expression for anchor, the group numbering is unchanged.
func (r *rex) anchoredRe(anchor int) (*regexp.Regexp, error) {
	if anchor < unanchored || anchor > anchorBoth {
		return nil, fmt.Errorf("bad anchor %v", anchor)
	}
	if re := r.anchored[anchor]; re != nil {
		return re, nil
	}
	expr := `\A(?:` + r.re.String() + `)`
	if anchor == anchorBoth {
		expr += `\z`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if r.opt.longestMatch {
		re.Longest()
	}
	r.anchored[anchor] = re
	return re, nil
}

// match matches text against the expression and records nmatch groups of the result.
// Offsets in the recorded groups are relative to text.
func (r *rex) match(text []byte, anchor, nmatch int) (bool, []int, error) {
	if !r.ok() {
		return false, nil, nil
	}
	if nmatch < 0 || nmatch > 1+r.numGroups() {
		return false, nil, nil
	}
	re, err := r.anchoredRe(anchor)
	if err != nil {
		return false, nil, err
	}
	loc := re.FindSubmatchIndex(text)
	if loc == nil {
		r.groups = nil
		return false, nil, nil
	}
	r.groups = make([][]byte, nmatch)
	for i := range r.groups {
		if loc[2*i] >= 0 {
			r.groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return true, loc, nil
}

// consume matches at the start of input (or anywhere with find) and returns the rest of the input.
// n is the number of submatches to record, starting with group 1.
func (r *rex) consume(input []byte, n int, find bool) ([]byte, bool) {
	if !r.ok() || n < 0 || n > r.numGroups() {
		return nil, false
	}
	anchor := anchorStart
	if find {
		anchor = unanchored
	}
	re, err := r.anchoredRe(anchor)
	if err != nil {
		return nil, false
	}
	loc := re.FindSubmatchIndex(input)
	if loc == nil {
		r.groups = nil
		return nil, false
	}
	r.groups = make([][]byte, n+1)
	for i := range r.groups {
		if loc[2*i] >= 0 {
			r.groups[i] = input[loc[2*i]:loc[2*i+1]]
		}
	}
	return input[loc[1]:], true
}

type namedGroup struct {
	name string
	pos  int
}

// namedGroups returns named groups ordered by name.
func (r *rex) namedGroups() []namedGroup {
	if !r.ok() {
		return nil
	}
	var res []namedGroup
	for i, name := range r.re.SubexpNames() {
		if name != "" {
			res = append(res, namedGroup{name, i})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].name < res[j].name
	})
	return res
}

// rewrite expands an RE2 rewrite string (\0 to \9 refer to groups, \\ is a backslash)
// into a regexp.Expand template.
func (r *rex) rewrite(rewrite []byte) ([]byte, error) {
	var tmpl []byte
	for i := 0; i < len(rewrite); i++ {
		c := rewrite[i]
		switch {
		case c == '$':
			tmpl = append(tmpl, "$$"...)
		case c != '\\':
			tmpl = append(tmpl, c)
		case i+1 == len(rewrite):
			return nil, fmt.Errorf("rewrite ends with a backslash")
		case rewrite[i+1] == '\\':
			tmpl = append(tmpl, '\\')
			i++
		case rewrite[i+1] >= '0' && rewrite[i+1] <= '9':
			n := int(rewrite[i+1] - '0')
			if n > r.numGroups() {
				return nil, fmt.Errorf("rewrite refers to group %v, the pattern has %v", n, r.numGroups())
			}
			tmpl = append(tmpl, fmt.Sprintf("${%v}", n)...)
			i++
		default:
			return nil, fmt.Errorf("bad escape \\%c in rewrite", rewrite[i+1])
		}
	}
	return tmpl, nil
}

// replace substitutes the first match (or all matches with global) and returns the result
// together with the number of replacements.
func (r *rex) replace(text, rewrite []byte, global bool) ([]byte, int, error) {
	if !r.ok() {
		return nil, 0, fmt.Errorf("%v", r.errMsg)
	}
	tmpl, err := r.rewrite(rewrite)
	if err != nil {
		return nil, 0, err
	}
	var out []byte
	count, last := 0, 0
	for _, loc := range r.re.FindAllSubmatchIndex(text, -1) {
		out = append(out, text[last:loc[0]]...)
		out = r.re.Expand(out, tmpl, text, loc)
		last = loc[1]
		count++
		if !global {
			break
		}
	}
	return append(out, text[last:]...), count, nil
}

// quoteMeta escapes every byte except ASCII letters, digits, '_' and UTF-8 sequences;
// NUL becomes \x00.
func quoteMeta(s []byte) []byte {
	var buf strings.Builder
	for _, c := range s {
		switch {
		case c == 0:
			buf.WriteString(`\x00`)
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80:
			buf.WriteByte(c)
		default:
			buf.WriteByte('\\')
			buf.WriteByte(c)
		}
	}
	return []byte(buf.String())
}
