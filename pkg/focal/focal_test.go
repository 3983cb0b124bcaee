// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package focal

import (
	"bytes"
	"os"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	prog.RegisterTarget(&prog.Target{
		Name: "focal-test",
		Ops: []*prog.Op{
			{
				Name: "twice",
				Args: []prog.Field{{Name: "v", Type: prog.Int}},
				Ret:  prog.Int,
				Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
					return 2 * prog.IntArg(args, 0), nil
				},
			},
			{
				Name: "touch",
				Args: []prog.Field{{Name: "file", Type: prog.Buffer}},
				Ret:  prog.Buffer,
				Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
					path, err := env.Path(string(prog.BufArg(args, 0)))
					if err != nil {
						return nil, err
					}
					return []byte(path), os.WriteFile(path, nil, 0644)
				},
			},
		},
	})
}

func TestRun(t *testing.T) {
	var scratch string
	list := []*Suite{
		{
			Name:   "twice_test",
			Target: "focal-test",
			Focal:  "twice",
			Cases: []Case{
				{"positive", func(t *check.T, c *Ctx) {
					v, err := c.Call(21)
					t.ExpectNoErr(err)
					t.ExpectEq(v, 42)
				}},
				{"wrong", func(t *check.T, c *Ctx) {
					t.ExpectEq(c.Int("twice", 1), 3)
					t.ExpectEq(c.Int("twice", -1), -3)
				}},
				{"panics", func(t *check.T, c *Ctx) {
					c.CallOp("no_such_op")
				}},
			},
		},
		{
			Name:   "touch_test",
			Target: "focal-test",
			Focal:  "touch",
			Cases: []Case{
				{"scratch", func(t *check.T, c *Ctx) {
					scratch = string(c.Buf("touch", "/etc/x.txt"))
					_, err := os.Stat(scratch)
					t.ExpectNoErr(err)
				}},
			},
		},
		{
			Name:   "missing",
			Target: "focal-test",
			Focal:  "nope",
		},
	}
	buf := new(bytes.Buffer)
	failures := Run(list, buf)
	out := buf.String()
	assert.Equal(t, 4, failures, out)
	assert.Contains(t, out, "[  OK  ] twice_test.positive\n")
	assert.Contains(t, out, "[ FAIL ] twice_test.wrong\n")
	assert.Contains(t, out, "focal_test.go:")
	assert.Contains(t, out, "got 2, want 3")
	assert.Contains(t, out, "panic: unknown op no_such_op")
	assert.Contains(t, out, "[  OK  ] touch_test.scratch\n")
	assert.Contains(t, out, "[ FAIL ] missing: no op nope in focal-test\n")
	assert.Contains(t, out, "4 cases, 4 failures\n")
	// Scratch dirs are removed after each case.
	require.NotEmpty(t, scratch)
	_, err := os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry(t *testing.T) {
	s := &Suite{Name: "registry_test", Target: "focal-test", Focal: "twice"}
	Register(s)
	assert.Panics(t, func() { Register(s) })
	assert.Contains(t, Suites(), s)
	list := []*Suite{
		{Name: "a", Target: "zlib", Focal: "adler32"},
		{Name: "b", Target: "zlib", Focal: "crc32"},
		{Name: "c", Target: "cjson", Focal: "cJSON_Parse"},
	}
	assert.Equal(t, list, Filter(list, nil))
	assert.Equal(t, list[:2], Filter(list, []string{"zlib"}))
	assert.Equal(t, list[1:], Filter(list, []string{"crc32", "c"}))
}
