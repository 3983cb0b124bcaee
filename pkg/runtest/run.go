// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package runtest is a driver for end-to-end testing of harness programs.
// Test programs are located in sys/*/test/* files and are embedded into targets as seeds.
// Header comments describe the expected outcome:
//
//	# result: 3       expected harness return value (66 if absent)
//	# mode: fuzz      execution mode (strict if absent)
//	# leaks: 2        number of handles the runner is expected to release
package runtest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/prog"
	"golang.org/x/sync/errgroup"
)

type Test struct {
	Name   string
	P      *prog.Prog
	Mode   runner.Mode
	Result int
	Leaks  int // -1 if not checked

	Res *runner.Result
	Err error
}

type Context struct {
	Target  *prog.Target
	Procs   int
	Timeout time.Duration
	// Filter selects tests by name prefix.
	Filter  string
	LogFunc func(text string)

	mu    sync.Mutex
	tests []*Test
}

func (ctx *Context) log(msg string, args ...any) {
	if ctx.LogFunc != nil {
		ctx.LogFunc(fmt.Sprintf(msg, args...))
	}
}

// Run executes all seed programs of the target and returns an error if any of them failed.
func (ctx *Context) Run(parent context.Context) error {
	tests, err := LoadTests(ctx.Target, ctx.Filter)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(parent)
	g.SetLimit(max(ctx.Procs, 1))
	for _, test := range tests {
		g.Go(func() error {
			res, err := runner.Exec(gctx, test.P, &runner.ExecOpts{Mode: test.Mode, Timeout: ctx.Timeout})
			if err != nil {
				return err
			}
			test.Res = res
			test.Err = checkResult(test, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ctx.mu.Lock()
	ctx.tests = tests
	ctx.mu.Unlock()
	var ok, fail int
	for _, test := range tests {
		result := "OK"
		if test.Err != nil {
			fail++
			result = fmt.Sprintf("FAIL: %v", strings.ReplaceAll(test.Err.Error(), "\n", "\n\t"))
		} else {
			ok++
		}
		ctx.log("%-38v: %v", ctx.Target.Name+"/"+test.Name, result)
	}
	ctx.log("ok: %v, fail: %v", ok, fail)
	if fail != 0 {
		return fmt.Errorf("tests failed")
	}
	return nil
}

// Tests returns the tests of the last Run with their results.
func (ctx *Context) Tests() []*Test {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.tests
}

// LoadTests parses the seed programs of the target whose names start with filter.
func LoadTests(target *prog.Target, filter string) ([]*Test, error) {
	if target.Seeds == nil {
		return nil, nil
	}
	files, err := fs.ReadDir(target.Seeds, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read %v seeds: %w", target.Name, err)
	}
	var tests []*Test
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), filter) {
			continue
		}
		data, err := fs.ReadFile(target.Seeds, file.Name())
		if err != nil {
			return nil, err
		}
		test, err := ParseTest(target, file.Name(), data)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	sort.Slice(tests, func(i, j int) bool {
		return tests[i].Name < tests[j].Name
	})
	return tests, nil
}

func ParseTest(target *prog.Target, name string, data []byte) (*Test, error) {
	p, err := target.Deserialize(data, prog.Strict)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize %v: %w", name, err)
	}
	test := &Test{
		Name:   name,
		P:      p,
		Mode:   runner.ModeStrict,
		Result: runner.CodeOK,
		Leaks:  -1,
	}
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(strings.TrimSpace(line[1:]), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "result":
			if test.Result, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("%v: bad result %q", name, val)
			}
		case "leaks":
			if test.Leaks, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("%v: bad leaks %q", name, val)
			}
		case "mode":
			switch val {
			case "strict":
				test.Mode = runner.ModeStrict
			case "fuzz":
				test.Mode = runner.ModeFuzz
			default:
				return nil, fmt.Errorf("%v: unknown mode %q", name, val)
			}
		}
	}
	if test.Leaks == -1 && test.Result == runner.CodeOK {
		test.Leaks = 0
	}
	return test, nil
}

func checkResult(test *Test, res *runner.Result) error {
	if res.Crash != "" {
		return fmt.Errorf("crashed: %v", res.Crash)
	}
	if res.Hanged {
		return fmt.Errorf("hanged")
	}
	if len(res.Failures) != 0 {
		return fmt.Errorf("%v", strings.Join(res.Failures, "\n"))
	}
	if res.Code != test.Result {
		return fmt.Errorf("returned %v, want %v", res.Code, test.Result)
	}
	if test.Leaks != -1 && len(res.Leaks) != test.Leaks {
		return fmt.Errorf("released %v leaked handles, want %v: %v",
			len(res.Leaks), test.Leaks, strings.Join(res.Leaks, ", "))
	}
	return nil
}
