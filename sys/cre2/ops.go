// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cre2

import (
	"github.com/seqfuzz/seqfuzz/prog"
)

const version = "0.3.6"

func optArg(args []prog.Value, i int) (*options, error) {
	opt, ok := prog.ResArg[*options](args, i)
	if !ok {
		return nil, prog.Errnof(-1, "NULL options")
	}
	if opt.freed {
		return nil, prog.Errnof(-1, "options are deleted")
	}
	return opt, nil
}

func rexArg(args []prog.Value, i int) (*rex, error) {
	r, ok := prog.ResArg[*rex](args, i)
	if !ok {
		return nil, prog.Errnof(-1, "NULL regexp")
	}
	return r, nil
}

func optSetter(name string, set func(opt *options, v bool)) *prog.Op {
	return &prog.Op{
		Name: "cre2_opt_set_" + name,
		Args: []prog.Field{{Name: "opt", Type: prog.Handle(optRes)}, {Name: "flag", Type: prog.Int}},
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			opt, err := optArg(args, 0)
			if err != nil {
				return nil, err
			}
			set(opt, prog.IntArg(args, 1) != 0)
			return nil, nil
		},
	}
}

func optGetter(name string, get func(opt *options) bool) *prog.Op {
	return &prog.Op{
		Name: "cre2_opt_" + name,
		Args: []prog.Field{{Name: "opt", Type: prog.Handle(optRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			opt, err := optArg(args, 0)
			if err != nil {
				return nil, err
			}
			return prog.BoolInt(get(opt)), nil
		},
	}
}

var optOps = []*prog.Op{
	{
		Name: "cre2_opt_new",
		Doc:  "allocates options with RE2 defaults (case sensitive, leftmost-first, Perl syntax)",
		Ret:  prog.Handle(optRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return defaultOptions(), nil
		},
	},
	{
		Name:    "cre2_opt_delete",
		Args:    []prog.Field{{Name: "opt", Type: prog.Handle(optRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			opt, ok := prog.ResArg[*options](args, 0)
			if !ok {
				return nil, nil
			}
			if opt.freed {
				return nil, prog.Errnof(-1, "options deleted twice")
			}
			opt.freed = true
			return nil, nil
		},
	},
	optSetter("case_sensitive", func(opt *options, v bool) { opt.caseSensitive = v }),
	optSetter("longest_match", func(opt *options, v bool) { opt.longestMatch = v }),
	optSetter("literal", func(opt *options, v bool) { opt.literal = v }),
	optSetter("dot_nl", func(opt *options, v bool) { opt.dotNL = v }),
	optSetter("posix_syntax", func(opt *options, v bool) { opt.posixSyntax = v }),
	optSetter("one_line", func(opt *options, v bool) { opt.oneLine = v }),
	optSetter("never_capture", func(opt *options, v bool) { opt.neverCapture = v }),
	optGetter("case_sensitive", func(opt *options) bool { return opt.caseSensitive }),
	optGetter("longest_match", func(opt *options) bool { return opt.longestMatch }),
	optGetter("literal", func(opt *options) bool { return opt.literal }),
	optGetter("posix_syntax", func(opt *options) bool { return opt.posixSyntax }),
}

var regexpOps = []*prog.Op{
	{
		Name: "cre2_new",
		Doc:  "compiles pattern with opt (NULL for defaults); an invalid pattern still returns a handle, see cre2_error_code",
		Args: []prog.Field{{Name: "pattern", Type: prog.Buffer}, {Name: "opt", Type: prog.Handle(optRes)}},
		Ret:  prog.Handle(rexRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			opt := defaultOptions()
			if args[1] != nil {
				var err error
				if opt, err = optArg(args, 1); err != nil {
					return nil, err
				}
			}
			return compile(string(prog.BufArg(args, 0)), opt), nil
		},
	},
	{
		Name:    "cre2_delete",
		Args:    []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return nil, nil
		},
	},
	{
		Name: "cre2_pattern",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(r.pattern), nil
		},
	},
	{
		Name: "cre2_error_code",
		Doc:  "returns CRE2_NO_ERROR or the CRE2_ERROR_* code of the compilation",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(r.errCode), nil
		},
	},
	{
		Name: "cre2_error_string",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(r.errMsg), nil
		},
	},
	{
		Name: "cre2_error_arg",
		Doc:  "returns the fragment of the pattern the compilation error refers to",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(r.errArg), nil
		},
	},
	{
		Name: "cre2_num_capturing_groups",
		Doc:  "returns the number of capturing groups, -1 for an invalid pattern",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(r.numGroups()), nil
		},
	},
	{
		Name: "cre2_find_named_capturing_groups",
		Doc:  "returns the index of the group called name, -1 if there is none",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}, {Name: "name", Type: prog.Buffer}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			name := string(prog.BufArg(args, 1))
			for _, g := range r.namedGroups() {
				if g.name == name {
					return int64(g.pos), nil
				}
			}
			return int64(-1), nil
		},
	},
	{
		Name: "cre2_named_groups_iter_new",
		Doc:  "creates an iterator over the named groups of rex, ordered by name",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}},
		Ret:  prog.Handle(iterRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			return &groupIter{groups: r.namedGroups(), cur: -1}, nil
		},
	},
	{
		Name: "cre2_named_groups_iter_next",
		Doc:  "advances the iterator, returns 0 at the end (then the name is NULL and the position -1)",
		Args: []prog.Field{{Name: "iter", Type: prog.Handle(iterRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			it, err := iterArg(args, 0)
			if err != nil {
				return nil, err
			}
			return prog.BoolInt(it.next()), nil
		},
	},
	{
		Name: "cre2_named_groups_iter_name",
		Args: []prog.Field{{Name: "iter", Type: prog.Handle(iterRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			it, err := iterArg(args, 0)
			if err != nil {
				return nil, err
			}
			if g := it.current(); g != nil {
				return []byte(g.name), nil
			}
			return nil, nil
		},
	},
	{
		Name: "cre2_named_groups_iter_pos",
		Args: []prog.Field{{Name: "iter", Type: prog.Handle(iterRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			it, err := iterArg(args, 0)
			if err != nil {
				return nil, err
			}
			if g := it.current(); g != nil {
				return int64(g.pos), nil
			}
			return int64(-1), nil
		},
	},
	{
		Name:    "cre2_named_groups_iter_delete",
		Args:    []prog.Field{{Name: "iter", Type: prog.Handle(iterRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return nil, nil
		},
	},
	{
		Name: "cre2_quote_meta",
		Doc:  "escapes text so that it matches literally",
		Args: []prog.Field{{Name: "text", Type: prog.Buffer}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return quoteMeta(prog.BufArg(args, 0)), nil
		},
	},
	{
		Name: "cre2_version_string",
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return []byte(version), nil
		},
	},
}

type groupIter struct {
	groups []namedGroup
	cur    int
}

func (it *groupIter) next() bool {
	if it.cur < len(it.groups) {
		it.cur++
	}
	return it.cur < len(it.groups)
}

func (it *groupIter) current() *namedGroup {
	if it.cur < 0 || it.cur >= len(it.groups) {
		return nil
	}
	return &it.groups[it.cur]
}

func iterArg(args []prog.Value, i int) (*groupIter, error) {
	it, ok := prog.ResArg[*groupIter](args, i)
	if !ok {
		return nil, prog.Errnof(-1, "NULL iterator")
	}
	return it, nil
}

// patternRex compiles the pattern argument of the ops that take a pattern instead of a regexp.
func patternRex(args []prog.Value, i int) (*rex, error) {
	r := compile(string(prog.BufArg(args, i)), defaultOptions())
	if !r.ok() {
		return nil, prog.Errnof(errNoMatch, "invalid pattern: %v", r.errMsg)
	}
	return r, nil
}

func noMatch() error {
	return prog.Errnof(errNoMatch, "no match")
}

func consumeOp(name, doc string, find, re bool) *prog.Op {
	first := prog.Field{Name: "pattern", Type: prog.Buffer}
	if re {
		first = prog.Field{Name: "rex", Type: prog.Handle(rexRes)}
	}
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{first, {Name: "input", Type: prog.Buffer}, {Name: "nmatch", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			var r *rex
			var err error
			if re {
				r, err = rexArg(args, 0)
			} else {
				r, err = patternRex(args, 0)
			}
			if err != nil {
				return nil, err
			}
			rest, ok := r.consume(prog.BufArg(args, 1), int(prog.IntArg(args, 2)), find)
			if !ok {
				return nil, noMatch()
			}
			return append([]byte{}, rest...), nil
		},
	}
}

func replaceOp(name, doc string, global, re bool) *prog.Op {
	first := prog.Field{Name: "pattern", Type: prog.Buffer}
	if re {
		first = prog.Field{Name: "rex", Type: prog.Handle(rexRes)}
	}
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{first, {Name: "text", Type: prog.Buffer}, {Name: "rewrite", Type: prog.Buffer}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			var r *rex
			var err error
			if re {
				r, err = rexArg(args, 0)
			} else {
				r, err = patternRex(args, 0)
			}
			if err != nil {
				return nil, err
			}
			out, count, err := r.replace(prog.BufArg(args, 1), prog.BufArg(args, 2), global)
			if err != nil {
				return nil, prog.Errnof(-1, "%v", err)
			}
			if count == 0 && !global {
				return nil, noMatch()
			}
			return out, nil
		},
	}
}

var matchOps = []*prog.Op{
	{
		Name: "cre2_match",
		Doc: "matches text[start:end] with the given anchor, returns 1 on a match and records nmatch groups " +
			"(group 0 is the whole match)",
		Args: []prog.Field{
			{Name: "rex", Type: prog.Handle(rexRes)},
			{Name: "text", Type: prog.Buffer},
			{Name: "start", Type: prog.Int},
			{Name: "end", Type: prog.Int},
			{Name: "anchor", Type: prog.Int},
			{Name: "nmatch", Type: prog.Int},
		},
		Ret: prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			text := prog.BufArg(args, 1)
			start, end := prog.IntArg(args, 2), prog.IntArg(args, 3)
			if start < 0 || end > int64(len(text)) || start > end {
				return int64(0), nil
			}
			ok, _, err := r.match(text[start:end], int(prog.IntArg(args, 4)), int(prog.IntArg(args, 5)))
			if err != nil {
				return nil, prog.Errnof(-1, "%v", err)
			}
			return prog.BoolInt(ok), nil
		},
	},
	{
		Name: "cre2_match_group",
		Doc:  "returns group i of the last match on rex, NULL if the group did not participate",
		Args: []prog.Field{{Name: "rex", Type: prog.Handle(rexRes)}, {Name: "i", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := rexArg(args, 0)
			if err != nil {
				return nil, err
			}
			i := prog.IntArg(args, 1)
			if i < 0 || i >= int64(len(r.groups)) {
				return nil, nil
			}
			return append([]byte(nil), r.groups[i]...), nil
		},
	},
	{
		Name: "cre2_easy_match",
		Doc:  "compiles pattern and matches text unanchored: 1 on a match, 0 otherwise, 2 for an invalid pattern",
		Args: []prog.Field{{Name: "pattern", Type: prog.Buffer}, {Name: "text", Type: prog.Buffer},
			{Name: "nmatch", Type: prog.Int}},
		Ret: prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r := compile(string(prog.BufArg(args, 0)), defaultOptions())
			if !r.ok() {
				return int64(2), nil
			}
			ok, _, err := r.match(prog.BufArg(args, 1), unanchored, int(prog.IntArg(args, 2)))
			if err != nil {
				return nil, prog.Errnof(-1, "%v", err)
			}
			return prog.BoolInt(ok), nil
		},
	},
	consumeOp("cre2_consume", "matches pattern at the start of input and returns the rest of input", false, false),
	consumeOp("cre2_find_and_consume", "finds pattern anywhere in input and returns the input after the match",
		true, false),
	consumeOp("cre2_consume_re", "like cre2_consume with a compiled regexp, groups 1..nmatch are recorded",
		false, true),
	consumeOp("cre2_find_and_consume_re", "like cre2_find_and_consume with a compiled regexp, groups 1..nmatch "+
		"are recorded", true, true),
	replaceOp("cre2_replace", "replaces the first match of pattern with rewrite (\\0 to \\9 refer to groups)",
		false, false),
	replaceOp("cre2_replace_re", "like cre2_replace with a compiled regexp", false, true),
	replaceOp("cre2_global_replace", "replaces every match of pattern with rewrite", true, false),
	replaceOp("cre2_global_replace_re", "like cre2_global_replace with a compiled regexp", true, true),
	{
		Name: "cre2_extract",
		Doc:  "returns rewrite expanded with the groups of the first match of pattern in text",
		Args: []prog.Field{{Name: "pattern", Type: prog.Buffer}, {Name: "text", Type: prog.Buffer},
			{Name: "rewrite", Type: prog.Buffer}},
		Ret: prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			r, err := patternRex(args, 0)
			if err != nil {
				return nil, err
			}
			tmpl, err := r.rewrite(prog.BufArg(args, 2))
			if err != nil {
				return nil, prog.Errnof(-1, "%v", err)
			}
			text := prog.BufArg(args, 1)
			loc := r.re.FindSubmatchIndex(text)
			if loc == nil {
				return nil, noMatch()
			}
			return r.re.Expand([]byte{}, tmpl, text, loc), nil
		},
	},
}
