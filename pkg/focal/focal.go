// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package focal holds unit suites that target one library op (the focal function) each.
// Suites are registered by target packages and run by tools/seq-focal.
package focal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/prog"
)

type Suite struct {
	Name   string
	Target string
	// Focal is the name of the op under test.
	Focal string
	Cases []Case
}

type Case struct {
	Name string
	Run  func(t *check.T, c *Ctx)
}

var (
	mu     sync.Mutex
	suites = make(map[string]*Suite)
)

func Register(suite *Suite) {
	mu.Lock()
	defer mu.Unlock()
	if suites[suite.Name] != nil {
		panic(fmt.Sprintf("duplicate focal suite %v", suite.Name))
	}
	suites[suite.Name] = suite
}

// Suites returns registered suites sorted by name.
func Suites() []*Suite {
	mu.Lock()
	defer mu.Unlock()
	var res []*Suite
	for _, s := range suites {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

// Ctx gives cases access to the focal op, other ops of the target and a scratch directory.
type Ctx struct {
	Target *prog.Target
	Op     *prog.Op
	ctx    context.Context
	dir    string
}

func (c *Ctx) Context() context.Context {
	return c.ctx
}

func (c *Ctx) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	return filepath.Join(c.dir, filepath.Base(name)), nil
}

// Call invokes the focal op.
func (c *Ctx) Call(args ...prog.Value) (prog.Value, error) {
	return c.CallOp(c.Op.Name, args...)
}

// CallOp invokes another op of the target, e.g. to create a handle the focal op needs.
// Arguments are converted the way programs pass them: ints become int64, strings become buffers.
func (c *Ctx) CallOp(name string, args ...prog.Value) (prog.Value, error) {
	op := c.Target.OpMap[name]
	if op == nil {
		panic(fmt.Sprintf("unknown op %v", name))
	}
	if len(args) != len(op.Args) {
		panic(fmt.Sprintf("%v: got %v args, want %v", name, len(args), len(op.Args)))
	}
	vals := make([]prog.Value, len(args))
	for i, arg := range args {
		vals[i] = convert(arg)
	}
	return op.Fn(c, vals)
}

// Int calls an op returning an int.
func (c *Ctx) Int(name string, args ...prog.Value) int64 {
	ret, _ := c.CallOp(name, args...)
	v, _ := ret.(int64)
	return v
}

// Buf calls an op returning a buffer.
func (c *Ctx) Buf(name string, args ...prog.Value) []byte {
	ret, _ := c.CallOp(name, args...)
	v, _ := ret.([]byte)
	return v
}

func convert(v prog.Value) prog.Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case string:
		return []byte(x)
	}
	return v
}

// Run runs the suites, prints a report to w and returns the number of failed expectations.
func Run(list []*Suite, w io.Writer) int {
	failures := 0
	cases := 0
	for _, suite := range list {
		target, err := prog.GetTarget(suite.Target)
		if err != nil {
			fmt.Fprintf(w, "[ FAIL ] %v: %v\n", suite.Name, err)
			failures++
			continue
		}
		op := target.OpMap[suite.Focal]
		if op == nil {
			fmt.Fprintf(w, "[ FAIL ] %v: no op %v in %v\n", suite.Name, suite.Focal, suite.Target)
			failures++
			continue
		}
		for _, tc := range suite.Cases {
			cases++
			failures += runCase(w, suite, tc, target, op)
		}
	}
	fmt.Fprintf(w, "%v cases, %v failures\n", cases, failures)
	return failures
}

func runCase(w io.Writer, suite *Suite, tc Case, target *prog.Target, op *prog.Op) int {
	name := suite.Name + "." + tc.Name
	t := check.New(name)
	dir, err := os.MkdirTemp("", "seq-focal-")
	if err != nil {
		fmt.Fprintf(w, "[ FAIL ] %v: %v\n", name, err)
		return 1
	}
	defer os.RemoveAll(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &Ctx{Target: target, Op: op, ctx: ctx, dir: dir}
	fmt.Fprintf(w, "[ RUN  ] %v\n", name)
	func() {
		defer func() {
			if err := recover(); err != nil {
				t.Errorf("panic: %v\n%s", err, debug.Stack())
			}
		}()
		tc.Run(t, c)
	}()
	res := t.Failures()
	if len(res) == 0 {
		fmt.Fprintf(w, "[  OK  ] %v\n", name)
		return 0
	}
	for _, f := range res {
		fmt.Fprintf(w, "  %v\n", strings.ReplaceAll(f, "\n", "\n  "))
	}
	fmt.Fprintf(w, "[ FAIL ] %v\n", name)
	log.Logf(1, "focal case %v failed with %v failures", name, len(res))
	return len(res)
}

// Filter returns suites whose name or focal op matches one of names (all suites if names is empty).
func Filter(list []*Suite, names []string) []*Suite {
	if len(names) == 0 {
		return list
	}
	var res []*Suite
	for _, s := range list {
		for _, name := range names {
			if s.Name == name || s.Focal == name || s.Target == name {
				res = append(res, s)
				break
			}
		}
	}
	return res
}
