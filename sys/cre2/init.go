// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cre2 describes the cre2 C bindings of RE2 on top of Go's regexp and regexp/syntax,
// which implement the same RE2 syntax and matching guarantees.
package cre2

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// Error codes reported by cre2_error_code.
const (
	errNone              = 0
	errInternal          = 1
	errBadEscape         = 2
	errBadCharClass      = 3
	errBadCharRange      = 4
	errMissingBracket    = 5
	errMissingParen      = 6
	errTrailingBackslash = 7
	errRepeatArgument    = 8
	errRepeatSize        = 9
	errRepeatOp          = 10
	errBadPerlOp         = 11
	errBadUTF8           = 12
	errBadNamedCapture   = 13
	errPatternTooLarge   = 14
)

// Anchors.
const (
	unanchored  = 1
	anchorStart = 2
	anchorBoth  = 3
)

// errNoMatch is the code of calls that return false in the C API.
const errNoMatch = 0

var (
	optRes  = &prog.ResourceDesc{Name: "cre2_options", Release: "cre2_opt_delete"}
	rexRes  = &prog.ResourceDesc{Name: "cre2_regexp", Release: "cre2_delete"}
	iterRes = &prog.ResourceDesc{Name: "cre2_named_groups_iter", Release: "cre2_named_groups_iter_delete"}
)

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name:      "cre2",
	Desc:      "cre2 (C bindings of RE2): compile patterns with options, match, consume, replace and iterate named groups",
	Resources: []*prog.ResourceDesc{optRes, rexRes, iterRes},
	Consts: map[string]int64{
		"CRE2_NO_ERROR":                 errNone,
		"CRE2_ERROR_INTERNAL":           errInternal,
		"CRE2_ERROR_BAD_ESCAPE":         errBadEscape,
		"CRE2_ERROR_BAD_CHAR_CLASS":     errBadCharClass,
		"CRE2_ERROR_BAD_CHAR_RANGE":     errBadCharRange,
		"CRE2_ERROR_MISSING_BRACKET":    errMissingBracket,
		"CRE2_ERROR_MISSING_PAREN":      errMissingParen,
		"CRE2_ERROR_TRAILING_BACKSLASH": errTrailingBackslash,
		"CRE2_ERROR_REPEAT_ARGUMENT":    errRepeatArgument,
		"CRE2_ERROR_REPEAT_SIZE":        errRepeatSize,
		"CRE2_ERROR_REPEAT_OP":          errRepeatOp,
		"CRE2_ERROR_BAD_PERL_OP":        errBadPerlOp,
		"CRE2_ERROR_BAD_UTF8":           errBadUTF8,
		"CRE2_ERROR_BAD_NAMED_CAPTURE":  errBadNamedCapture,
		"CRE2_ERROR_PATTERN_TOO_LARGE":  errPatternTooLarge,
		"CRE2_UNANCHORED":               unanchored,
		"CRE2_ANCHOR_START":             anchorStart,
		"CRE2_ANCHOR_BOTH":              anchorBoth,
		"CRE2_NO_MATCH":                 errNoMatch,
	},
	Rules: []string{
		"cre2_new always returns a handle, check cre2_error_code before matching.",
		"cre2_match and cre2_easy_match return 0 when nothing matches. Consume, replace and extract ops return " +
			"the resulting text and fail with errno CRE2_NO_MATCH instead; mark expected failures with " +
			"(errno: CRE2_NO_MATCH).",
		"Match groups of the last cre2_match, cre2_consume_re or cre2_find_and_consume_re call on a regexp " +
			"are read with cre2_match_group (group 0 is the whole match for cre2_match).",
		"Every cre2_named_groups_iter_new needs cre2_named_groups_iter_delete; every cre2_opt_new needs cre2_opt_delete.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(append(optOps, regexpOps...), matchOps...)
	prog.RegisterTarget(target)
	registerFocal()
}
