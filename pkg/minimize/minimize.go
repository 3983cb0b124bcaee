// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package minimize reduces a corpus to the programs that cover all discovered call triples
// (or all execution signal), and single programs to the calls that preserve an outcome.
package minimize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seqfuzz/seqfuzz/pkg/hash"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/seqfuzz/seqfuzz/pkg/signal"
	"github.com/seqfuzz/seqfuzz/prog"
	"golang.org/x/sync/errgroup"
)

// Input is one corpus program with the feedback it contributes.
type Input struct {
	ID      int
	Prog    *prog.Prog
	Triples []prog.Triple
	Signal  signal.Signal
}

// ByTriples keeps a subset of inputs that still contains every triple of the corpus.
func ByTriples(inputs []*Input) []*Input {
	var ctxs []signal.Context
	for _, inp := range inputs {
		var raw []uint32
		for _, t := range inp.Triples {
			raw = append(raw, tripleSignal(t))
		}
		ctxs = append(ctxs, signal.Context{Signal: signal.FromRaw(raw), Context: inp})
	}
	return collect(signal.Minimize(ctxs))
}

// BySignal keeps a subset of inputs that still contains all execution signal of the corpus.
func BySignal(inputs []*Input) []*Input {
	var ctxs []signal.Context
	for _, inp := range inputs {
		ctxs = append(ctxs, signal.Context{Signal: inp.Signal, Context: inp})
	}
	return collect(signal.Minimize(ctxs))
}

func tripleSignal(t prog.Triple) uint32 {
	return hash.Signal(t[:]...)
}

func collect(res []any) []*Input {
	var inputs []*Input
	for _, v := range res {
		inputs = append(inputs, v.(*Input))
	}
	return inputs
}

// Corpus minimizes the validated programs of store into its min/ dir.
// With bySignal programs are executed to collect their signal, otherwise saved triples are used.
func Corpus(ctx context.Context, store *seeds.Store, bySignal bool, opts *runner.ExecOpts, procs int) ([]*Input, error) {
	loaded, err := store.LoadSucc()
	if err != nil {
		return nil, err
	}
	pairs, err := store.LoadPairs()
	if err != nil {
		return nil, err
	}
	inputs := make([]*Input, len(loaded))
	for i, seed := range loaded {
		triples, ok := pairs[seed.ID]
		if !ok {
			triples = seed.Prog.Triples()
		}
		inputs[i] = &Input{ID: seed.ID, Prog: seed.Prog, Triples: triples}
	}
	var kept []*Input
	if bySignal {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(procs, 1))
		for _, inp := range inputs {
			g.Go(func() error {
				res, err := runner.Exec(gctx, inp.Prog, opts)
				if err != nil {
					return err
				}
				inp.Signal = signal.FromSet(res.Signal())
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		kept = BySignal(inputs)
	} else {
		kept = ByTriples(inputs)
	}
	if err := Save(store.SubDir(seeds.MinDir), kept); err != nil {
		return nil, err
	}
	log.Logf(0, "minimized corpus: %v -> %v programs", len(inputs), len(kept))
	return kept, nil
}

// Save replaces the contents of dir with the inputs.
func Save(dir string, inputs []*Input) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := osutil.MkdirAll(dir); err != nil {
		return err
	}
	for _, inp := range inputs {
		if err := osutil.WriteFile(filepath.Join(dir, seeds.FileName(inp.ID)), inp.Prog.Serialize()); err != nil {
			return err
		}
	}
	return nil
}

// Prog drops calls of p while the execution keeps the same return code and crash status,
// and the number of failures does not drop to zero.
func Prog(ctx context.Context, p *prog.Prog, opts *runner.ExecOpts) (*prog.Prog, *runner.Result, error) {
	res0, err := runner.Exec(ctx, p, opts)
	if err != nil {
		return nil, nil, err
	}
	var execErr error
	minimized := prog.Minimize(p, func(candidate *prog.Prog) bool {
		if execErr != nil {
			return false
		}
		res, err := runner.Exec(ctx, candidate, opts)
		if err != nil {
			execErr = err
			return false
		}
		return res.Code == res0.Code && (res.Crash != "") == (res0.Crash != "") &&
			(len(res.Failures) != 0) == (len(res0.Failures) != 0)
	})
	if execErr != nil {
		return nil, nil, fmt.Errorf("minimization aborted: %w", execErr)
	}
	res, err := runner.Exec(ctx, minimized, opts)
	if err != nil {
		return nil, nil, err
	}
	return minimized, res, nil
}
