// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package observer accumulates the feedback of a generation session: discovered call triples,
// the global execution signal and per-op usage of successful programs.
package observer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/seqfuzz/seqfuzz/pkg/signal"
	"github.com/seqfuzz/seqfuzz/pkg/stat"
	"github.com/seqfuzz/seqfuzz/prog"
)

type Observer struct {
	mu      sync.RWMutex
	ops     []string
	triples map[prog.Triple]bool
	order   []prog.Triple
	signal  signal.Signal
	uses    map[string]int
	progs   int
}

func New(ops []*prog.Op) *Observer {
	o := &Observer{
		triples: make(map[prog.Triple]bool),
		uses:    make(map[string]int),
	}
	for _, op := range ops {
		o.ops = append(o.ops, op.Name)
	}
	stat.New("triples", "Distinct API call triples in successful programs",
		stat.Console, stat.Prometheus("seqfuzz_triples"), func() int { return o.NumTriples() })
	stat.New("signal", "Distinct call signal of successful programs",
		stat.Console, stat.Prometheus("seqfuzz_signal"), func() int { return o.SignalLen() })
	return o
}

// AddTriples merges triples into the discovered set and returns the ones seen for the first time.
func (o *Observer) AddTriples(triples []prog.Triple) []prog.Triple {
	o.mu.Lock()
	defer o.mu.Unlock()
	var fresh []prog.Triple
	for _, t := range triples {
		if o.triples[t] {
			continue
		}
		o.triples[t] = true
		o.order = append(o.order, t)
		fresh = append(fresh, t)
	}
	return fresh
}

func (o *Observer) HasTriple(t prog.Triple) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.triples[t]
}

// Triples returns the discovered triples in order of discovery.
func (o *Observer) Triples() []prog.Triple {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]prog.Triple{}, o.order...)
}

func (o *Observer) NumTriples() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

// NewSignal returns the part of sig that is not in the global signal yet.
func (o *Observer) NewSignal(sig signal.Signal) signal.Signal {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.signal.Diff(sig)
}

func (o *Observer) MergeSignal(sig signal.Signal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signal.Merge(sig)
}

// ResetSignal drops the global signal, it is recomputed when the corpus is rechecked.
func (o *Observer) ResetSignal() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signal = nil
}

func (o *Observer) SignalLen() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.signal.Len()
}

// AddProgram accounts library ops used by a successful program.
func (o *Observer) AddProgram(p *prog.Prog) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progs++
	for name := range p.UsedOps() {
		o.uses[name]++
	}
}

// Uses returns the number of successful programs using every op.
func (o *Observer) Uses() map[string]int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res := make(map[string]int, len(o.uses))
	for k, v := range o.uses {
		res[k] = v
	}
	return res
}

// Coverage returns the number of ops used by at least one successful program and the number of ops.
func (o *Observer) Coverage() (int, int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	used := 0
	for _, name := range o.ops {
		if o.uses[name] != 0 {
			used++
		}
	}
	return used, len(o.ops)
}

// Unused returns ops that no successful program calls yet.
func (o *Observer) Unused() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var res []string
	for _, name := range o.ops {
		if o.uses[name] == 0 {
			res = append(res, name)
		}
	}
	sort.Strings(res)
	return res
}

func (o *Observer) DumpStates() string {
	used, total := o.Coverage()
	o.mu.RLock()
	defer o.mu.RUnlock()
	return fmt.Sprintf("programs: %v, triples: %v, signal: %v, api coverage: %v/%v",
		o.progs, len(o.order), o.signal.Len(), used, total)
}
