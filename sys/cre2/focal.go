// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cre2

import (
	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
)

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "cre2_new",
		Target: "cre2",
		Focal:  "cre2_new",
		Cases: []focal.Case{
			{Name: "error_codes", Run: func(t *check.T, c *focal.Ctx) {
				tests := []struct {
					pattern string
					code    int
				}{
					{"ciao", errNone},
					{"(abc", errMissingParen},
					{"abc)", errMissingParen},
					{"[a", errMissingBracket},
					{"[z-a]", errBadCharRange},
					{"a**", errRepeatOp},
					{"*a", errRepeatArgument},
					{"a{1001}", errRepeatSize},
					{`a\`, errTrailingBackslash},
					{`\q`, errBadEscape},
					{"(?z)", errBadPerlOp},
					{"(?P<n>a)(?P<n>b)", errBadNamedCapture},
					{"\xff", errBadUTF8},
				}
				for _, test := range tests {
					r, err := c.Call(test.pattern, nil)
					if !t.ExpectNoErr(err, "%q", test.pattern) {
						continue
					}
					t.ExpectEq(c.Int("cre2_error_code", r), test.code, "%q", test.pattern)
					c.CallOp("cre2_delete", r)
				}
			}},
			{Name: "error_arg", Run: func(t *check.T, c *focal.Ctx) {
				r, _ := c.Call("x(abc", nil)
				t.ExpectEq(c.Buf("cre2_error_arg", r), "x(abc")
				t.ExpectEq(c.Int("cre2_num_capturing_groups", r), -1)
				t.ExpectNe(string(c.Buf("cre2_error_string", r)), "")
				ok, _ := c.CallOp("cre2_match", r, "x(abc", 0, 5, unanchored, 0)
				t.ExpectEq(ok, 0, "an invalid pattern matches nothing")
			}},
			{Name: "options", Run: func(t *check.T, c *focal.Ctx) {
				match := func(pattern, text string, setup func(opt any)) int64 {
					opt, _ := c.CallOp("cre2_opt_new")
					defer c.CallOp("cre2_opt_delete", opt)
					setup(opt)
					r, _ := c.Call(pattern, opt)
					defer c.CallOp("cre2_delete", r)
					c.CallOp("cre2_match", r, text, 0, len(text), anchorBoth, 1)
					return int64(len(c.Buf("cre2_match_group", r, 0)))
				}
				none := func(opt any) {}
				t.ExpectEq(match("ABC", "abc", none), 0)
				t.ExpectEq(match("ABC", "abc", func(opt any) {
					c.CallOp("cre2_opt_set_case_sensitive", opt, 0)
				}), 3)
				t.ExpectEq(match("a.c", "abc", func(opt any) {
					c.CallOp("cre2_opt_set_literal", opt, 1)
				}), 0)
				t.ExpectEq(match("a.c", "a\nc", func(opt any) {
					c.CallOp("cre2_opt_set_dot_nl", opt, 1)
				}), 3)
			}},
			{Name: "longest_match", Run: func(t *check.T, c *focal.Ctx) {
				opt, _ := c.CallOp("cre2_opt_new")
				defer c.CallOp("cre2_opt_delete", opt)
				first, _ := c.Call("a|ab", nil)
				defer c.CallOp("cre2_delete", first)
				c.CallOp("cre2_opt_set_longest_match", opt, 1)
				t.ExpectEq(c.Int("cre2_opt_longest_match", opt), 1)
				longest, _ := c.Call("a|ab", opt)
				defer c.CallOp("cre2_delete", longest)
				c.CallOp("cre2_match", first, "ab", 0, 2, unanchored, 1)
				t.ExpectEq(c.Buf("cre2_match_group", first, 0), "a")
				c.CallOp("cre2_match", longest, "ab", 0, 2, unanchored, 1)
				t.ExpectEq(c.Buf("cre2_match_group", longest, 0), "ab")
			}},
			{Name: "posix_syntax", Run: func(t *check.T, c *focal.Ctx) {
				opt, _ := c.CallOp("cre2_opt_new")
				defer c.CallOp("cre2_opt_delete", opt)
				c.CallOp("cre2_opt_set_posix_syntax", opt, 1)
				r, _ := c.Call(`\d`, opt)
				defer c.CallOp("cre2_delete", r)
				t.ExpectEq(c.Int("cre2_error_code", r), errBadEscape, "Perl classes need Perl syntax")
			}},
			{Name: "never_capture", Run: func(t *check.T, c *focal.Ctx) {
				opt, _ := c.CallOp("cre2_opt_new")
				defer c.CallOp("cre2_opt_delete", opt)
				c.CallOp("cre2_opt_set_never_capture", opt, 1)
				r, _ := c.Call("(a)(?P<x>b)", opt)
				defer c.CallOp("cre2_delete", r)
				t.ExpectEq(c.Int("cre2_num_capturing_groups", r), 0)
				t.ExpectEq(c.Int("cre2_match", r, "ab", 0, 2, anchorBoth, 1), 1)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "cre2_named_groups",
		Target: "cre2",
		Focal:  "cre2_named_groups_iter_next",
		Cases: []focal.Case{
			{Name: "no_groups", Run: func(t *check.T, c *focal.Ctx) {
				r, _ := c.CallOp("cre2_new", "ciao", nil)
				defer c.CallOp("cre2_delete", r)
				it, _ := c.CallOp("cre2_named_groups_iter_new", r)
				defer c.CallOp("cre2_named_groups_iter_delete", it)
				t.ExpectEq(c.Int("cre2_named_groups_iter_next", it), 0)
				t.ExpectNil(c.Buf("cre2_named_groups_iter_name", it))
				t.ExpectEq(c.Int("cre2_named_groups_iter_pos", it), -1)
			}},
			{Name: "one_named_group", Run: func(t *check.T, c *focal.Ctx) {
				r, _ := c.CallOp("cre2_new", "((.)(?P<dot>.))", nil)
				defer c.CallOp("cre2_delete", r)
				it, _ := c.CallOp("cre2_named_groups_iter_new", r)
				defer c.CallOp("cre2_named_groups_iter_delete", it)
				t.ExpectEq(c.Int("cre2_named_groups_iter_next", it), 1)
				t.ExpectEq(c.Buf("cre2_named_groups_iter_name", it), "dot")
				t.ExpectEq(c.Int("cre2_named_groups_iter_pos", it), 3)
				t.ExpectEq(c.Int("cre2_named_groups_iter_next", it), 0)
				t.ExpectEq(c.Int("cre2_named_groups_iter_pos", it), -1)
				t.ExpectEq(c.Int("cre2_named_groups_iter_next", it), 0, "the iterator stays at the end")
			}},
			{Name: "ordered_by_name", Run: func(t *check.T, c *focal.Ctx) {
				r, _ := c.CallOp("cre2_new", "(?P<year>\\d+)-(?P<month>\\d+)-(?P<day>\\d+)", nil)
				defer c.CallOp("cre2_delete", r)
				it, _ := c.CallOp("cre2_named_groups_iter_new", r)
				defer c.CallOp("cre2_named_groups_iter_delete", it)
				for _, want := range []struct {
					name string
					pos  int
				}{{"day", 3}, {"month", 2}, {"year", 1}} {
					t.ExpectEq(c.Int("cre2_named_groups_iter_next", it), 1)
					t.ExpectEq(c.Buf("cre2_named_groups_iter_name", it), want.name)
					t.ExpectEq(c.Int("cre2_named_groups_iter_pos", it), want.pos)
				}
				t.ExpectEq(c.Int("cre2_find_named_capturing_groups", r, "month"), 2)
				t.ExpectEq(c.Int("cre2_find_named_capturing_groups", r, "week"), -1)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "cre2_find_and_consume",
		Target: "cre2",
		Focal:  "cre2_find_and_consume",
		Cases: []focal.Case{
			{Name: "full_buffer", Run: func(t *check.T, c *focal.Ctx) {
				rest, err := c.Call("ci.*ut", "prefix ciao salut", 0)
				t.ExpectNoErr(err)
				t.ExpectEq(rest, "")
			}},
			{Name: "partial_buffer", Run: func(t *check.T, c *focal.Ctx) {
				rest, err := c.Call("ci.*ut", "prefix ciao salut hello", 0)
				t.ExpectNoErr(err)
				t.ExpectEq(rest, " hello")
			}},
			{Name: "no_match", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call("ci.*ut", "prefix ciao hello", 0)
				t.ExpectErrno(err, errNoMatch)
			}},
			{Name: "too_many_groups", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call("(ciao) salut", "prefix ciao salut hello", 2)
				t.ExpectErrno(err, errNoMatch)
			}},
			{Name: "groups_of_compiled_regexp", Run: func(t *check.T, c *focal.Ctx) {
				r, _ := c.CallOp("cre2_new", "(ciao) (salut)", nil)
				defer c.CallOp("cre2_delete", r)
				rest, err := c.CallOp("cre2_find_and_consume_re", r, "prefix ciao salut hello", 2)
				t.ExpectNoErr(err)
				t.ExpectEq(rest, " hello")
				t.ExpectEq(c.Buf("cre2_match_group", r, 1), "ciao")
				t.ExpectEq(c.Buf("cre2_match_group", r, 2), "salut")
				_, err = c.CallOp("cre2_consume_re", r, "prefix ciao salut", 2)
				t.ExpectErrno(err, errNoMatch, "consume is anchored at the start")
			}},
		},
	})
}
