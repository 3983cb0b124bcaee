// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package audit inspects C/C++ API-sequence harnesses: the calls they make, the value
// they return on the nominal path and the resources they leave open.
package audit

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/prog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"golang.org/x/sync/errgroup"
)

// Sentinel is the value a harness returns after a complete nominal run.
const Sentinel = "66"

type File struct {
	Path string `json:"path"`
	// Partial is set when the parser had to recover from syntax errors.
	Partial bool        `json:"partial,omitempty"`
	Funcs   []*Function `json:"funcs"`
}

type Function struct {
	Name  string   `json:"name"`
	Line  int      `json:"line"`
	Calls []string `json:"calls"`
	// Triples are the distinct windows of 3 consecutive calls.
	Triples    []string `json:"triples"`
	Return     string   `json:"return"`
	SentinelOK bool     `json:"sentinel_ok"`
	// Unbalanced lists acquisitions with no release on the nominal path.
	Unbalanced []string       `json:"unbalanced,omitempty"`
	EarlyLeaks []*EarlyReturn `json:"early_leaks,omitempty"`
}

// EarlyReturn is a return before the final one that leaves acquired resources open.
type EarlyReturn struct {
	Line  int      `json:"line"`
	Value string   `json:"value"`
	Live  []string `json:"live"`
}

func (fn *Function) Problems() []string {
	var res []string
	if !fn.SentinelOK {
		ret := fn.Return
		if ret == "" {
			ret = "nothing"
		}
		res = append(res, fmt.Sprintf("returns %v on the nominal path, want %v", ret, fn.sentinel()))
	}
	if len(fn.Unbalanced) != 0 {
		res = append(res, fmt.Sprintf("never released: %v", strings.Join(fn.Unbalanced, ", ")))
	}
	for _, early := range fn.EarlyLeaks {
		res = append(res, fmt.Sprintf("line %v: return %v leaks %v",
			early.Line, early.Value, strings.Join(early.Live, ", ")))
	}
	return res
}

func (fn *Function) sentinel() string {
	if fn.Name == "main" {
		return "0"
	}
	return Sentinel
}

var harnessRe = regexp.MustCompile(`^test_\w+_api_sequence$`)

// IsHarness says if a function is an entry point of a harness.
func IsHarness(name string) bool {
	return name == "main" || harnessRe.MatchString(name)
}

type Options struct {
	// AllFuncs audits every function definition, not only harness entry points.
	AllFuncs bool
}

// Source audits one translation unit.
func Source(ctx context.Context, path string, src []byte, opts Options) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()
	file := &File{
		Path:    path,
		Partial: root.HasError(),
	}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "function_definition" {
			name := declName(n.ChildByFieldName("declarator"), src)
			body := n.ChildByFieldName("body")
			if body != nil && (opts.AllFuncs || IsHarness(name)) {
				file.Funcs = append(file.Funcs, analyze(name, n, body, src))
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
	return file, nil
}

// Files audits the files in parallel, results follow the order of paths.
func Files(ctx context.Context, paths []string, procs int, opts Options) ([]*File, error) {
	res := make([]*File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(procs, 1))
	for i, path := range paths {
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			file, err := Source(ctx, path, src, opts)
			if err != nil {
				return err
			}
			log.Logf(2, "%v: %v functions", path, len(file.Funcs))
			res[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

var sourceExts = map[string]bool{".c": true, ".cc": true, ".cpp": true, ".cxx": true}

// Collect expands directories into the C/C++ sources they contain.
func Collect(paths []string) ([]string, error) {
	var res []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			res = append(res, path)
			continue
		}
		err = filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && sourceExts[filepath.Ext(file)] {
				res = append(res, file)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type Summary struct {
	Files       int `json:"files"`
	Funcs       int `json:"funcs"`
	BadSentinel int `json:"bad_sentinel"`
	Unbalanced  int `json:"unbalanced"`
	EarlyLeaks  int `json:"early_leaks"`
	Triples     int `json:"triples"`
}

func Summarize(files []*File) Summary {
	s := Summary{Files: len(files)}
	triples := make(map[string]bool)
	for _, file := range files {
		for _, fn := range file.Funcs {
			s.Funcs++
			if !fn.SentinelOK {
				s.BadSentinel++
			}
			if len(fn.Unbalanced) != 0 {
				s.Unbalanced++
			}
			if len(fn.EarlyLeaks) != 0 {
				s.EarlyLeaks++
			}
			for _, t := range fn.Triples {
				triples[t] = true
			}
		}
	}
	s.Triples = len(triples)
	return s
}

type span struct {
	start, end uint32
}

func spanOf(n *sitter.Node) span {
	return span{n.StartByte(), n.EndByte()}
}

func (s span) contains(pos uint32) bool {
	return s.start <= pos && pos < s.end
}

type event struct {
	name   string
	pos    uint32
	fam    *family
	eff    effect
	blocks []span // enclosing compound statements, innermost last
}

// guard is the if statement around a return.
type guard struct {
	start uint32
	cond  span
}

type ret struct {
	at     span
	line   int
	value  string
	blocks []span
	guard  *guard
}

type analyzer struct {
	src     []byte
	events  []*event
	returns []*ret
}

func analyze(name string, def, body *sitter.Node, src []byte) *Function {
	a := &analyzer{src: src}
	a.walk(body, nil, nil)
	fn := &Function{
		Name:    name,
		Line:    int(def.StartPoint().Row) + 1,
		Calls:   []string{},
		Triples: []string{},
	}
	for _, ev := range a.events {
		fn.Calls = append(fn.Calls, ev.name)
	}
	for _, t := range prog.TriplesOf(fn.Calls) {
		fn.Triples = append(fn.Triples, t.String())
	}
	bodySpan := spanOf(body)
	var final *ret
	for _, r := range a.returns {
		if r.blocks[len(r.blocks)-1] == bodySpan {
			final = r
		}
	}
	if final != nil {
		fn.Return = final.value
		fn.SentinelOK = strings.Trim(final.value, "() ") == fn.sentinel()
	}
	exits := make(map[span]bool)
	for _, r := range a.returns {
		// Only the branch a guarded return sits in is an exit path.
		b := r.blocks[len(r.blocks)-1]
		if r == final || r.guard == nil || b == bodySpan || b.start < r.guard.start {
			continue
		}
		exits[b] = true
	}
	fn.Unbalanced = a.nominal(final, exits)
	for _, r := range a.returns {
		if r == final {
			continue
		}
		if live := a.liveAt(r); len(live) != 0 {
			fn.EarlyLeaks = append(fn.EarlyLeaks, &EarlyReturn{
				Line:  r.line,
				Value: r.value,
				Live:  live,
			})
		}
	}
	return fn
}

func (a *analyzer) walk(n *sitter.Node, blocks []span, g *guard) {
	switch n.Type() {
	case "compound_statement":
		blocks = append(blocks[:len(blocks):len(blocks)], spanOf(n))
	case "if_statement":
		g = &guard{start: n.StartByte()}
		if cond := n.ChildByFieldName("condition"); cond != nil {
			g.cond = spanOf(cond)
		}
	case "lambda_expression":
		return
	case "return_statement":
		r := &ret{
			at:     spanOf(n),
			line:   int(n.StartPoint().Row) + 1,
			blocks: blocks,
			guard:  g,
		}
		if n.NamedChildCount() != 0 {
			r.value = n.NamedChild(0).Content(a.src)
		}
		a.returns = append(a.returns, r)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a.walk(n.NamedChild(i), blocks, g)
	}
	// Calls are recorded after their arguments, in evaluation order.
	if n.Type() == "call_expression" {
		if name := callName(n.ChildByFieldName("function"), a.src); name != "" {
			fam, eff := classifyCall(name)
			a.events = append(a.events, &event{
				name:   name,
				pos:    n.StartByte(),
				fam:    fam,
				eff:    eff,
				blocks: blocks,
			})
		}
	}
}

// nominal returns the acquisitions still open when the function reaches its final return.
func (a *analyzer) nominal(final *ret, exits map[span]bool) []string {
	open := make(map[*family][]string)
outer:
	for _, ev := range a.events {
		if final != nil && ev.pos >= final.at.end {
			continue
		}
		for _, b := range ev.blocks {
			if exits[b] {
				continue outer
			}
		}
		apply(open, ev)
	}
	return flatten(open)
}

// liveAt returns the acquisitions open at an early return. Calls in sibling branches
// are not on its path, and the acquisition checked by the guarding if owns nothing.
func (a *analyzer) liveAt(r *ret) []string {
	var path []*event
	for _, ev := range a.events {
		if ev.pos >= r.at.start || len(ev.blocks) == 0 || !ev.blocks[len(ev.blocks)-1].contains(r.at.start) {
			continue
		}
		if r.guard != nil && r.guard.cond.contains(ev.pos) {
			continue
		}
		path = append(path, ev)
	}
	if r.guard != nil {
		for i := len(path) - 1; i >= 0; i-- {
			if path[i].pos < r.guard.start {
				if path[i].eff == acquires {
					path = append(path[:i], path[i+1:]...)
				}
				break
			}
		}
	}
	open := make(map[*family][]string)
	for _, ev := range path {
		apply(open, ev)
	}
	return flatten(open)
}

func apply(open map[*family][]string, ev *event) {
	switch ev.eff {
	case acquires:
		open[ev.fam] = append(open[ev.fam], ev.name)
	case releases:
		if n := len(open[ev.fam]); n != 0 {
			open[ev.fam] = open[ev.fam][:n-1]
		}
	}
}

func flatten(open map[*family][]string) []string {
	var res []string
	for _, fam := range families {
		res = append(res, open[fam]...)
	}
	sort.Strings(res)
	return res
}

func declName(n *sitter.Node, src []byte) string {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "qualified_identifier", "destructor_name":
			return n.Content(src)
		}
		n = n.ChildByFieldName("declarator")
	}
	return ""
}

func callName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "field_expression":
		if field := n.ChildByFieldName("field"); field != nil {
			return field.Content(src)
		}
	case "template_function":
		if name := n.ChildByFieldName("name"); name != nil {
			return callName(name, src)
		}
	case "qualified_identifier":
		name := n.Content(src)
		if i := strings.LastIndex(name, "::"); i >= 0 {
			name = name[i+2:]
		}
		return name
	case "identifier":
		return n.Content(src)
	}
	return ""
}
