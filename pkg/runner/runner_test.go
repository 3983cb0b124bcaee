// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testBox struct {
	name string
	data []byte
}

var (
	releasedMu sync.Mutex
	released   []string
)

func takeReleased() []string {
	releasedMu.Lock()
	defer releasedMu.Unlock()
	res := released
	released = nil
	return res
}

var boxDesc = &prog.ResourceDesc{Name: "box", Release: "box_free"}

var testTarget = &prog.Target{
	Name:      "runner-test",
	Resources: []*prog.ResourceDesc{boxDesc},
	Consts:    map[string]int64{"E_BAD": -3},
	Ops: []*prog.Op{
		{
			Name: "box_new",
			Args: []prog.Field{{Name: "name", Type: prog.Buffer}},
			Ret:  prog.Handle(boxDesc),
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				name := prog.BufArg(args, 0)
				if name == nil {
					return nil, prog.Errnof(-3, "no name")
				}
				return &testBox{name: string(name)}, nil
			},
		},
		{
			Name:    "box_free",
			Args:    []prog.Field{{Name: "b", Type: prog.Handle(boxDesc)}},
			Release: true,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				b, ok := prog.ResArg[*testBox](args, 0)
				if !ok {
					return nil, nil
				}
				releasedMu.Lock()
				released = append(released, b.name)
				releasedMu.Unlock()
				return nil, nil
			},
		},
		{
			Name: "box_put",
			Args: []prog.Field{{Name: "b", Type: prog.Handle(boxDesc)}, {Name: "data", Type: prog.Buffer}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				b, ok := prog.ResArg[*testBox](args, 0)
				if !ok {
					return nil, prog.Errnof(-2, "null box")
				}
				data := prog.BufArg(args, 1)
				b.data = append(b.data, data...)
				// Scribble over the input to check that programs are not affected.
				for i := range data {
					data[i] = 0
				}
				return int64(len(b.data)), nil
			},
		},
		{
			Name: "box_get",
			Args: []prog.Field{{Name: "b", Type: prog.Handle(boxDesc)}},
			Ret:  prog.Buffer,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				b, _ := prog.ResArg[*testBox](args, 0)
				return b.data, nil
			},
		},
		{
			Name: "box_save",
			Args: []prog.Field{{Name: "b", Type: prog.Handle(boxDesc)}, {Name: "file", Type: prog.Buffer}},
			Ret:  prog.Int,
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				b, _ := prog.ResArg[*testBox](args, 0)
				path, err := env.Path(string(prog.BufArg(args, 1)))
				if err != nil {
					return nil, err
				}
				return int64(0), os.WriteFile(path, b.data, 0644)
			},
		},
		{
			Name: "crash",
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				var m map[string]int
				m["boom"] = 1
				return nil, nil
			},
		},
		{
			Name: "block",
			Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
				<-env.Context().Done()
				return nil, env.Context().Err()
			},
		},
	},
}

func init() {
	prog.RegisterTarget(testTarget)
}

func parse(t *testing.T, text string) *prog.Prog {
	target, err := prog.GetTarget("runner-test")
	require.NoError(t, err)
	p, err := target.Deserialize([]byte(text), prog.Strict)
	require.NoError(t, err)
	return p
}

func TestExecNominal(t *testing.T) {
	takeReleased()
	p := parse(t, `
r0 = box_new('a') (guard: 1)
r1 = box_put(r0, 'hello')
expect_eq(r1, 5)
r2 = box_put(r0, ' world')
r3 = box_get(r0)
expect_eq(r3, 'hello world')
box_free(r0)
`)
	res, err := Exec(context.Background(), p, &ExecOpts{Mode: ModeStrict})
	require.NoError(t, err)
	assert.Equal(t, CodeOK, res.Code, res.String())
	assert.False(t, res.Failed())
	assert.Empty(t, res.Leaks)
	assert.Equal(t, []string{"a"}, takeReleased())
	require.Len(t, res.Calls, 7)
	assert.Equal(t, "box_put", res.Calls[1].Op)
	assert.Equal(t, "5", res.Calls[1].Ret)
	assert.Equal(t, CallExecuted|CallFinished, res.Calls[1].Flags)
	// The op zeroed its input, the program still carries the original data.
	assert.Contains(t, string(p.Serialize()), "'hello'")
}

func TestExecReleasesOnAllPaths(t *testing.T) {
	tests := []struct {
		name     string
		prog     string
		mode     Mode
		code     int
		failures int
		leaks    []string
		released []string
	}{
		{
			name: "forgotten release",
			prog: "r0 = box_new('a')\nr1 = box_new('b')\nbox_free(r0)\n",
			mode: ModeFuzz,
			code: CodeOK,
			// Only flagged in fuzz mode.
			leaks:    []string{"box from call #1 box_new"},
			released: []string{"a", "b"},
		},
		{
			name:     "forgotten release strict",
			prog:     "r0 = box_new('a')\nr1 = box_new('b')\n",
			mode:     ModeStrict,
			code:     CodeFailed,
			failures: 2,
			leaks:    []string{"box from call #1 box_new", "box from call #0 box_new"},
			released: []string{"b", "a"},
		},
		{
			name:     "guarded early exit",
			prog:     "r0 = box_new('a') (guard: 1)\nr1 = box_new(nil) (guard: 2)\nbox_free(r0)\n",
			mode:     ModeStrict,
			code:     2,
			leaks:    []string{"box from call #0 box_new"},
			released: []string{"a"},
		},
		{
			name:     "crash",
			prog:     "r0 = box_new('a')\nr1 = box_new('b')\ncrash()\nbox_free(r1)\nbox_free(r0)\n",
			mode:     ModeFuzz,
			code:     CodeCrash,
			leaks:    []string{"box from call #1 box_new", "box from call #0 box_new"},
			released: []string{"b", "a"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			takeReleased()
			res, err := Exec(context.Background(), parse(t, test.prog), &ExecOpts{Mode: test.mode})
			require.NoError(t, err)
			assert.Equal(t, test.code, res.Code, res.String())
			assert.Len(t, res.Failures, test.failures, res.String())
			assert.Equal(t, test.leaks, res.Leaks)
			assert.Equal(t, test.released, takeReleased())
		})
	}
}

func TestExecCrashReport(t *testing.T) {
	res, err := Exec(context.Background(), parse(t, "crash()"), nil)
	require.NoError(t, err)
	assert.Equal(t, CodeCrash, res.Code)
	assert.Contains(t, res.Crash, "call #0 crash: panic: assignment to entry in nil map")
	assert.True(t, res.Failed())
}

func TestExecUnguardedErrors(t *testing.T) {
	text := `
r0 = box_new('a')
box_put(nil, 'x')
box_put(nil, 'x') (errno: -2)
box_new(nil) (errno: E_BAD)
box_free(r0)
`
	res, err := Exec(context.Background(), parse(t, text), &ExecOpts{Mode: ModeFuzz})
	require.NoError(t, err)
	assert.Equal(t, CodeOK, res.Code)
	assert.Empty(t, res.Failures)
	assert.Equal(t, -2, res.Calls[1].Errno)
	assert.Equal(t, "-2", res.Calls[1].Ret)
	assert.Equal(t, "null box (errno -2)", res.Calls[1].Err)
	assert.NotZero(t, res.Calls[1].Flags&CallFailed)

	res, err = Exec(context.Background(), parse(t, text), &ExecOpts{Mode: ModeStrict})
	require.NoError(t, err)
	assert.Equal(t, CodeFailed, res.Code)
	assert.Equal(t, []string{"call #1 box_put: null box (errno -2)"}, res.Failures)
}

func TestExecErrnoMismatch(t *testing.T) {
	res, err := Exec(context.Background(), parse(t, "r0 = box_new('a') (errno: -3)\nbox_free(r0)"),
		&ExecOpts{Mode: ModeStrict})
	require.NoError(t, err)
	assert.Equal(t, CodeFailed, res.Code)
	assert.Equal(t, []string{"call #0 box_new: errno 0, want -3"}, res.Failures)
}

func TestExecCheckFailures(t *testing.T) {
	p := parse(t, `
r0 = box_new('a')
r1 = box_put(r0, 'abc')
expect_eq(r1, 4)
expect_len('abc', 3)
expect_ne(r1, 3)
box_free(r0)
`)
	for _, mode := range []Mode{ModeFuzz, ModeStrict} {
		res, err := Exec(context.Background(), p, &ExecOpts{Mode: mode})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"call #2 expect_eq: 3 vs 4",
			"call #4 expect_ne: 3 vs 3",
		}, res.Failures)
		assert.True(t, res.Failed())
		if mode == ModeFuzz {
			assert.Equal(t, CodeOK, res.Code)
		} else {
			assert.Equal(t, CodeFailed, res.Code)
		}
	}
}

func TestExecHang(t *testing.T) {
	takeReleased()
	p := parse(t, "r0 = box_new('a')\nblock()\nbox_free(r0)\n")
	start := time.Now()
	res, err := Exec(context.Background(), p, &ExecOpts{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.Hanged)
	assert.Equal(t, CodeHang, res.Code)
	assert.Equal(t, []string{"call #1 block: timed out"}, res.Failures)
	// Released by the runner after the blocked op noticed the timeout.
	assert.Eventually(t, func() bool {
		releasedMu.Lock()
		defer releasedMu.Unlock()
		return len(released) == 1
	}, 5*time.Second, 10*time.Millisecond)
	takeReleased()
}

func TestExecCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := Exec(ctx, parse(t, "block()"), nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecScratchDir(t *testing.T) {
	dir := t.TempDir()
	p := parse(t, `
r0 = box_new('a')
box_put(r0, 'data')
box_save(r0, '/etc/test.bin')
box_save(r0, '../escape.bin')
box_free(r0)
`)
	var files []string
	res, err := Exec(context.Background(), p, &ExecOpts{Mode: ModeStrict, TempDir: dir})
	require.NoError(t, err)
	assert.False(t, res.Failed(), res.String())
	// The scratch directory is gone after the run.
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if path != dir {
			files = append(files, path)
		}
		return nil
	})
	assert.Empty(t, files)
	takeReleased()
}

func TestEnvPath(t *testing.T) {
	e := &env{dir: "/scratch"}
	for name, want := range map[string]string{
		"test.gz":          "/scratch/test.gz",
		"/tmp/test.gz":     "/scratch/test.gz",
		"../../etc/passwd": "/scratch/passwd",
		"sub/../x":         "/scratch/x",
	} {
		got, err := e.Path(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := e.Path("")
	assert.Error(t, err)
}

func TestSignal(t *testing.T) {
	op := &prog.Op{Name: "x"}
	assert.Equal(t, signal(op, 0, int64(5)), signal(op, 0, int64(7)))
	assert.NotEqual(t, signal(op, 0, int64(5)), signal(op, 0, int64(8)))
	assert.NotEqual(t, signal(op, 0, int64(5)), signal(op, -3, int64(5)))
	assert.NotEqual(t, signal(op, 0, nil), signal(op, 0, &testBox{}))
	assert.Equal(t, signal(op, 0, []byte("ab")), signal(op, 0, []byte("cd")))
	res := &Result{Calls: []CallInfo{
		{Flags: CallExecuted, Signal: 1},
		{Flags: CallExecuted, Signal: 1},
		{Signal: 2},
	}}
	assert.Equal(t, map[uint32]bool{1: true}, res.Signal())
}
