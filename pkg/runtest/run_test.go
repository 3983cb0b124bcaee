// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runtest

import (
	"context"
	"flag"
	"testing"
	"testing/fstest"

	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Can be used as:
// go test -v -run=TestSeeds/zlib ./pkg/runtest -filter=gz
// to select a subset of tests to run.
var flagFilter = flag.String("filter", "", "prefix to match test file names")

func TestSeeds(t *testing.T) {
	for _, target := range prog.AllTargets() {
		if target.Seeds == nil || target == testTarget {
			continue
		}
		t.Run(target.Name, func(t *testing.T) {
			t.Parallel()
			ctx := &Context{
				Target:  target,
				Procs:   4,
				Filter:  *flagFilter,
				LogFunc: func(text string) { t.Log(text) },
			}
			if err := ctx.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
		})
	}
}

var counterRes = &prog.ResourceDesc{Name: "counter", Release: "counter_free"}

var testTarget = &prog.Target{
	Name:      "runtest-test",
	Resources: []*prog.ResourceDesc{counterRes},
	Consts:    map[string]int64{"E_FAIL": -7},
	Ops: []*prog.Op{
		{
			Name: "counter_new",
			Ret:  prog.Handle(counterRes),
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				return new(int64), nil
			},
		},
		{
			Name:    "counter_free",
			Args:    []prog.Field{{Name: "c", Type: prog.Handle(counterRes)}},
			Release: true,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				return nil, nil
			},
		},
		{
			Name: "fail",
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				return nil, prog.Errnof(-7, "failed")
			},
		},
	},
	Seeds: fstest.MapFS{
		"ok": {Data: []byte("r0 = counter_new()\ncounter_free(r0)\n")},
		"guarded": {Data: []byte("# result: 5\n# leaks: 1\n" +
			"r0 = counter_new()\nfail() (guard: 5)\ncounter_free(r0)\n")},
		"errno":     {Data: []byte("fail() (errno: E_FAIL)\n")},
		"fuzz_mode": {Data: []byte("# mode: fuzz\nfail()\n")},
		"leaky":     {Data: []byte("r0 = counter_new()\n")},
		"wrong":     {Data: []byte("# result: 3\nfail()\n")},
	},
}

func init() {
	prog.RegisterTarget(testTarget)
}

func TestParseTest(t *testing.T) {
	target, err := prog.GetTarget("runtest-test")
	require.NoError(t, err)
	test, err := ParseTest(target, "t", []byte("# result: 7\n# mode: fuzz\n# comment: ignored\nfail()\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, test.Result)
	assert.Equal(t, runner.ModeFuzz, test.Mode)
	assert.Equal(t, -1, test.Leaks)
	for _, bad := range []string{"# result: x\n", "# mode: lax\n", "# leaks: many\n", "nope()\n"} {
		_, err := ParseTest(target, "bad", []byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestRunResults(t *testing.T) {
	target, err := prog.GetTarget("runtest-test")
	require.NoError(t, err)
	var logs []string
	ctx := &Context{
		Target:  target,
		LogFunc: func(text string) { logs = append(logs, text) },
	}
	err = ctx.Run(context.Background())
	require.Error(t, err)
	got := make(map[string]bool)
	for _, test := range ctx.Tests() {
		got[test.Name] = test.Err == nil
	}
	assert.Equal(t, map[string]bool{
		"ok":        true,
		"guarded":   true,
		"errno":     true,
		"fuzz_mode": true,
		"leaky":     false,
		"wrong":     false,
	}, got)
	assert.Contains(t, logs[len(logs)-1], "ok: 4, fail: 2")
}

func TestFilter(t *testing.T) {
	target, err := prog.GetTarget("runtest-test")
	require.NoError(t, err)
	tests, err := LoadTests(target, "fuzz")
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "fuzz_mode", tests[0].Name)
}
