// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/prog"
	"golang.org/x/sync/errgroup"
)

type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrLink
	ErrType
	ErrExecute
	ErrHang
)

func (k ErrorKind) String() string {
	return [...]string{"Syntax Error", "Link Error", "Type Error", "Execution Error", "Execution Hang"}[k]
}

// ProgramError says why a generated program was rejected.
type ProgramError struct {
	Kind    ErrorKind
	Details string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Details)
}

// classify maps a deserialization error to the kind reported to the model.
func classify(err error) *ProgramError {
	var linkErr *prog.LinkError
	var typeErr *prog.TypeError
	switch {
	case errors.As(err, &linkErr):
		return &ProgramError{ErrLink, err.Error()}
	case errors.As(err, &typeErr):
		return &ProgramError{ErrType, err.Error()}
	}
	return &ProgramError{ErrSyntax, err.Error()}
}

// Outcome is the result of validating one model reply.
type Outcome struct {
	Text string
	Prog *prog.Prog
	Res  *runner.Result
	Err  *ProgramError
}

// validate parses the reply and runs the program, Err is set if the program is rejected.
// The returned error is non-nil only if the program could not be executed at all.
func (fuzzer *Fuzzer) validate(ctx context.Context, text string) (*Outcome, error) {
	out := &Outcome{Text: text}
	p, err := fuzzer.target.Deserialize([]byte(text), prog.NonStrict)
	if err != nil {
		out.Err = classify(err)
		return out, nil
	}
	out.Prog = p
	if len(p.OpNames()) == 0 {
		out.Err = &ProgramError{ErrSyntax, "the program does not call any library function"}
		return out, nil
	}
	for name := range p.UsedOps() {
		if fuzzer.banned[name] {
			out.Err = &ProgramError{ErrLink, fmt.Sprintf("function %v must not be used", name)}
			return out, nil
		}
	}
	start := time.Now()
	res, err := runner.Exec(ctx, p, fuzzer.execOpts)
	if err != nil {
		return nil, err
	}
	fuzzer.statExecTime.Add(int(time.Since(start) / time.Millisecond))
	fuzzer.statExecs.Add(1)
	out.Res = res
	switch {
	case res.Hanged:
		out.Err = &ProgramError{ErrHang, fmt.Sprintf("the program did not finish in %v", fuzzer.execOpts.Timeout)}
	case res.Crash != "":
		out.Err = &ProgramError{ErrExecute, "crash: " + res.Crash}
	case res.Failed():
		out.Err = &ProgramError{ErrExecute, res.String()}
	}
	return out, nil
}

// validateAll validates replies in parallel, outcomes are in the order of replies.
func (fuzzer *Fuzzer) validateAll(ctx context.Context, texts []string) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fuzzer.cfg.Procs)
	for i, text := range texts {
		g.Go(func() error {
			out, err := fuzzer.validate(gctx, text)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
