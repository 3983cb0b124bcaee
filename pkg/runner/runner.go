// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package runner executes harness programs: calls run top to bottom, results of earlier calls
// feed later ones, and every acquired library handle is released on all exit paths.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/hash"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/prog"
)

// Mode decides which call outcomes make a program fail.
type Mode int

const (
	// ModeFuzz: only crashes, hangs and failed expect_* checks are failures,
	// errors of unguarded calls are recorded and the sequence continues.
	ModeFuzz Mode = iota
	// ModeStrict: additionally every unguarded call whose error code differs from its
	// errno property and every handle left for the runner to release is a failure.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "fuzz"
}

const (
	CodeOK     = prog.SentinelOK
	CodeFailed = 1
	CodeCrash  = -1
	CodeHang   = -2

	// ErrnoGeneric is reported for op errors that don't carry a library code.
	ErrnoGeneric = -1

	DefaultTimeout = 10 * time.Second
)

type ExecOpts struct {
	Mode    Mode
	Timeout time.Duration // 0 means DefaultTimeout
	// TempDir is the parent of per-execution scratch directories (os.TempDir if empty).
	TempDir string
}

type CallFlags uint32

const (
	CallExecuted CallFlags = 1 << iota // was started at all
	CallFinished                       // finished executing (rather than blocked forever)
	CallFailed                         // returned an error
)

type CallInfo struct {
	Op     string
	Flags  CallFlags
	Errno  int    // call errno (0 if the call was successful)
	Err    string // error message of a failed call
	Ret    string // formatted return value
	Signal uint32 // feedback signal: op, errno and a coarse return value class
}

type Result struct {
	// Code is the harness return value: CodeOK on the nominal path, the guard code of a failed
	// guarded call, CodeFailed on failures in strict mode, CodeCrash, CodeHang.
	Code  int
	Calls []CallInfo
	// Failures describe failed checks and (in strict mode) unexpected call errors.
	Failures []string
	// Leaks name handles that the program did not release (released by the runner).
	Leaks  []string
	Crash  string
	Hanged bool
}

func (res *Result) Failed() bool {
	return res.Code != CodeOK || len(res.Failures) != 0
}

// Signal returns the set of distinct call signals of the execution.
func (res *Result) Signal() map[uint32]bool {
	sig := make(map[uint32]bool)
	for _, info := range res.Calls {
		if info.Flags&CallExecuted != 0 {
			sig[info.Signal] = true
		}
	}
	return sig
}

func (res *Result) String() string {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "code %v", res.Code)
	if res.Hanged {
		fmt.Fprintf(buf, " (hanged)")
	}
	if res.Crash != "" {
		fmt.Fprintf(buf, "\ncrash: %v", res.Crash)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(buf, "\nfailure: %v", f)
	}
	for _, l := range res.Leaks {
		fmt.Fprintf(buf, "\nleak: %v", l)
	}
	return buf.String()
}

// Exec runs p and returns the outcome. The returned error is non-nil only when the program
// could not be started at all (e.g. no scratch directory).
func Exec(parent context.Context, p *prog.Prog, opts *ExecOpts) (*Result, error) {
	if opts == nil {
		opts = &ExecOpts{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	dir, err := os.MkdirTemp(opts.TempDir, "seq-run-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	e := &env{
		ctx:    ctx,
		dir:    dir,
		p:      p,
		mode:   opts.Mode,
		values: make(map[*prog.Call]prog.Value),
		res:    &Result{Code: CodeOK, Calls: make([]CallInfo, len(p.Calls))},
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		defer os.RemoveAll(dir)
		e.run()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// The program either stops at the next call or is blocked in an op that does not honor
		// the context. In the latter case the execution goroutine still releases everything
		// once the op returns.
		select {
		case <-done:
		case <-time.After(hangGrace):
		}
	}
	if e.completed() {
		return e.res, nil
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return e.hangResult(), nil
}

const hangGrace = 50 * time.Millisecond

type resource struct {
	call  *prog.Call
	idx   int
	value prog.Value
}

type env struct {
	ctx  context.Context
	dir  string
	p    *prog.Prog
	mode Mode

	mu      sync.Mutex
	res     *Result
	values  map[*prog.Call]prog.Value
	live    []*resource // acquisition order
	current int
	// done is set once the program returned on its own (not interrupted by the timeout).
	done bool
	// early is set when the program left the nominal path (guard exit or crash).
	early bool
}

func (e *env) Context() context.Context {
	return e.ctx
}

func (e *env) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	name = filepath.Clean(name)
	if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
		name = filepath.Base(name)
	}
	return filepath.Join(e.dir, name), nil
}

func (e *env) completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *env) hangResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := &Result{
		Code:     CodeHang,
		Hanged:   true,
		Calls:    append([]CallInfo{}, e.res.Calls...),
		Failures: append([]string{}, e.res.Failures...),
	}
	if e.current < len(e.p.Calls) {
		res.Failures = append(res.Failures, fmt.Sprintf("call #%v %v: timed out",
			e.current, e.p.Calls[e.current].Op.Name))
	}
	return res
}

func (e *env) run() {
	interrupted := false
	defer func() {
		if err := recover(); err != nil {
			e.mu.Lock()
			e.early = true
			e.res.Code = CodeCrash
			e.res.Crash = fmt.Sprintf("call #%v %v: panic: %v\n%s",
				e.current, e.p.Calls[e.current].Op.Name, err, debug.Stack())
			e.mu.Unlock()
		}
		e.cleanup(interrupted)
		e.mu.Lock()
		e.done = !interrupted && e.ctx.Err() == nil
		e.mu.Unlock()
	}()
	for i, c := range e.p.Calls {
		if e.ctx.Err() != nil {
			interrupted = true
			return
		}
		e.mu.Lock()
		e.current = i
		e.mu.Unlock()
		if exit := e.execCall(i, c); exit {
			return
		}
	}
}

// execCall runs one call and returns true if the program exits early.
func (e *env) execCall(idx int, c *prog.Call) bool {
	args := make([]prog.Value, len(c.Args))
	for i, arg := range c.Args {
		args[i] = e.argValue(arg)
	}
	e.setInfo(idx, CallInfo{Op: c.Op.Name, Flags: CallExecuted})
	ret, err := c.Op.Fn(e, args)
	errno := 0
	var check *prog.CheckError
	if err != nil {
		errno = ErrnoGeneric
		var libErr *prog.Errno
		if errors.As(err, &libErr) {
			errno = libErr.Code
		}
	}
	ret = normalize(c.Op.Ret, ret, errno)
	info := CallInfo{
		Op:     c.Op.Name,
		Flags:  CallExecuted | CallFinished,
		Errno:  errno,
		Ret:    prog.FormatValue(ret),
		Signal: signal(c.Op, errno, ret),
	}
	if err != nil {
		info.Flags |= CallFailed
		info.Err = err.Error()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Calls[idx] = info
	e.values[c] = ret
	e.trackResources(idx, c, ret)
	switch {
	case errors.As(err, &check):
		e.res.Failures = append(e.res.Failures, fmt.Sprintf("call #%v %v", idx, check.Msg))
	case err != nil && c.Props.Guard != 0:
		log.Logf(2, "call #%v %v failed: %v, exiting with %v", idx, c.Op.Name, err, c.Props.Guard)
		e.res.Code = c.Props.Guard
		e.early = true
		return true
	case e.mode == ModeStrict && c.Props.Errno != nil && *c.Props.Errno != errno:
		e.res.Failures = append(e.res.Failures, fmt.Sprintf("call #%v %v: errno %v, want %v",
			idx, c.Op.Name, errno, *c.Props.Errno))
	case e.mode == ModeStrict && c.Props.Errno == nil && err != nil:
		e.res.Failures = append(e.res.Failures, fmt.Sprintf("call #%v %v: %v", idx, c.Op.Name, err))
	}
	return false
}

func (e *env) setInfo(idx int, info CallInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.res.Calls[idx] = info
}

func (e *env) argValue(arg prog.Arg) prog.Value {
	switch a := arg.(type) {
	case *prog.ConstArg:
		return a.Val
	case *prog.DataArg:
		if a.Nil {
			return nil
		}
		// Ops may scribble over their inputs, the program must stay intact.
		return append([]byte{}, a.Data...)
	case *prog.ResultArg:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.values[a.Res]
	}
	panic(fmt.Sprintf("unknown arg %#v", arg))
}

// normalize makes values match the declared return type: int results of failed calls
// become their error code like the C functions return them.
func normalize(typ *prog.Type, ret prog.Value, errno int) prog.Value {
	if typ == nil {
		return nil
	}
	switch typ.Kind {
	case prog.IntKind:
		if _, ok := ret.(int64); !ok {
			return int64(errno)
		}
	case prog.BufferKind:
		if _, ok := ret.([]byte); !ok {
			return nil
		}
	}
	return ret
}

func (e *env) trackResources(idx int, c *prog.Call, ret prog.Value) {
	if c.Op.Ret != nil && c.Op.Ret.Kind == prog.ResourceKind && !c.Op.Borrow && ret != nil {
		e.live = append(e.live, &resource{call: c, idx: idx, value: ret})
	}
	owned := make(map[*prog.Call]bool)
	if c.Op.Release {
		if res, ok := c.Args[0].(*prog.ResultArg); ok {
			owned[res.Res] = true
		}
	}
	for _, i := range c.Op.Consume {
		if res, ok := c.Args[i].(*prog.ResultArg); ok {
			owned[res.Res] = true
		}
	}
	if len(owned) == 0 {
		return
	}
	live := e.live[:0]
	for _, r := range e.live {
		if !owned[r.call] {
			live = append(live, r)
		}
	}
	e.live = live
}

// cleanup releases handles the program did not release, in reverse acquisition order.
func (e *env) cleanup(interrupted bool) {
	e.mu.Lock()
	live := e.live
	e.live = nil
	nominal := !e.early && !interrupted
	e.mu.Unlock()
	for i := len(live) - 1; i >= 0; i-- {
		r := live[i]
		desc := r.call.Op.Ret.Res
		leak := fmt.Sprintf("%v from call #%v %v", desc.Name, r.idx, r.call.Op.Name)
		e.mu.Lock()
		e.res.Leaks = append(e.res.Leaks, leak)
		if e.mode == ModeStrict && nominal {
			e.res.Failures = append(e.res.Failures, "leaked "+leak)
		}
		e.mu.Unlock()
		e.release(e.p.Target.ReleaseOp(desc), r.value)
	}
	e.mu.Lock()
	if e.mode == ModeStrict && nominal && len(e.res.Failures) != 0 {
		e.res.Code = CodeFailed
	}
	e.mu.Unlock()
}

func (e *env) release(op *prog.Op, value prog.Value) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("releasing %v panicked: %v", op.Name, err)
		}
	}()
	args := []prog.Value{value}
	for _, field := range op.Args[1:] {
		args = append(args, zeroValue(field.Type))
	}
	if _, err := op.Fn(e, args); err != nil {
		log.Logf(2, "cleanup %v: %v", op.Name, err)
	}
}

func zeroValue(typ *prog.Type) prog.Value {
	if typ.Kind == prog.IntKind {
		return int64(0)
	}
	return nil
}

// signal summarizes a call outcome: the op, its error code and a coarse class of the result.
func signal(op *prog.Op, errno int, ret prog.Value) uint32 {
	class := ""
	switch v := ret.(type) {
	case nil:
		class = "nil"
	case int64:
		switch {
		case v < 0:
			class = fmt.Sprintf("neg%v", bits.Len64(uint64(-v)))
		case v == 0:
			class = "zero"
		default:
			class = fmt.Sprintf("pos%v", bits.Len64(uint64(v)))
		}
	case []byte:
		class = fmt.Sprintf("len%v", bits.Len(uint(len(v))))
	default:
		class = "handle"
	}
	return hash.Signal(op.Name, fmt.Sprint(errno), class)
}

// Cleanup removes leftovers of executions that were abandoned (e.g. on hang).
func Cleanup(tempDir string) error {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	files, err := osutil.ListDir(tempDir)
	if err != nil {
		return err
	}
	for _, file := range files {
		if strings.HasPrefix(file, "seq-run-") {
			os.RemoveAll(filepath.Join(tempDir, file))
		}
	}
	return nil
}
