// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package schedule decides which API combination the next prompt offers to the model.
// Every op has an energy: ops that took part in newly discovered call triples gain energy,
// and the weight of an op decays with the number of prompts that already offered it.
package schedule

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/prog"
)

const (
	initialEnergy = 1.0
	tripleGain    = 1.0
	// Share of ops (in percent) chosen uniformly at random regardless of their energy.
	randomChoice = 5
	// A combination that produced no success in shuffleWindow attempts is abandoned.
	shuffleWindow = 10
	minCombLen    = 2
)

type Schedule struct {
	mu      sync.Mutex
	ops     []*prog.Op
	energy  map[string]float64
	counter *prompt.Counter
	rnd     *rand.Rand
	power   bool
	combLen int
	loops   int
}

// New creates a schedule over ops. With power == false combinations are uniform random
// ones of exactly combLen ops.
func New(ops []*prog.Op, counter *prompt.Counter, combLen int, power bool, rnd *rand.Rand) *Schedule {
	if counter == nil {
		counter, _ = prompt.LoadCounter("")
	}
	s := &Schedule{
		ops:     ops,
		energy:  make(map[string]float64),
		counter: counter,
		rnd:     rnd,
		power:   power,
		combLen: min(combLen, len(ops)),
	}
	s.ResetEnergies()
	return s
}

func (s *Schedule) ResetEnergies() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.ops {
		s.energy[op.Name] = initialEnergy
	}
}

func (s *Schedule) Energy(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.energy[name]
}

// weight is the energy of op discounted by how many prompts already offered it.
func (s *Schedule) weight(op *prog.Op) float64 {
	return s.energy[op.Name] / float64(1+s.counter.Get(op.Name))
}

// ChooseCombination picks n distinct ops, with probability proportional to their weights.
func (s *Schedule) ChooseCombination(n int) []*prog.Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.ops))
	if !s.power {
		return s.uniform(n)
	}
	left := append([]*prog.Op{}, s.ops...)
	var res []*prog.Op
	for len(res) < n {
		idx := s.choose(left)
		res = append(res, left[idx])
		left = append(left[:idx], left[idx+1:]...)
	}
	return res
}

func (s *Schedule) uniform(n int) []*prog.Op {
	var res []*prog.Op
	for _, idx := range s.rnd.Perm(len(s.ops))[:n] {
		res = append(res, s.ops[idx])
	}
	return res
}

func (s *Schedule) choose(ops []*prog.Op) int {
	if s.rnd.Intn(100) < randomChoice {
		return s.rnd.Intn(len(ops))
	}
	// Cumulative weights, the choice is a binary search for a random point.
	run := make([]float64, len(ops))
	sum := 0.0
	for i, op := range ops {
		sum += s.weight(op)
		run[i] = sum
	}
	if sum <= 0 {
		return s.rnd.Intn(len(ops))
	}
	x := s.rnd.Float64() * sum
	idx := sort.Search(len(run), func(i int) bool {
		return run[i] > x
	})
	return min(idx, len(ops)-1)
}

// CombLen returns the size of the next combination: combLen without the power schedule,
// a random size in [2, combLen] with it.
func (s *Schedule) CombLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.power || s.combLen <= minCombLen {
		return s.combLen
	}
	return minCombLen + s.rnd.Intn(s.combLen-minCombLen+1)
}

// ShouldShuffle says if the current combination is stuck: no successes in the last attempts.
func (s *Schedule) ShouldShuffle(succ, total int) bool {
	return total >= shuffleWindow && succ < 1
}

// UpdateEnergies rewards ops of newly discovered triples.
func (s *Schedule) UpdateEnergies(newTriples []prog.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range newTriples {
		for _, name := range t {
			if _, ok := s.energy[name]; ok {
				s.energy[name] += tripleGain
			}
		}
	}
}

// UpdateCoverage sets energies from the number of successful programs using every op:
// rarely used ops get more energy.
func (s *Schedule) UpdateCoverage(uses map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.ops {
		s.energy[op.Name] = initialEnergy + 1/float64(1+uses[op.Name])
	}
}

// UpdatePrompt replaces the combination of p with a fresh one.
func (s *Schedule) UpdatePrompt(p *prompt.Prompt) {
	comb := s.ChooseCombination(s.CombLen())
	s.mu.Lock()
	s.loops++
	s.mu.Unlock()
	p.SetCombination(comb)
}

func (s *Schedule) Loops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops
}

// String lists the ops with the highest weights.
func (s *Schedule) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := append([]*prog.Op{}, s.ops...)
	sort.SliceStable(ops, func(i, j int) bool {
		return s.weight(ops[i]) > s.weight(ops[j])
	})
	var top []string
	for _, op := range ops[:min(5, len(ops))] {
		top = append(top, fmt.Sprintf("%v=%.2f", op.Name, s.weight(op)))
	}
	return strings.Join(top, " ")
}

func (s *Schedule) Log() {
	log.Logf(1, "schedule: loop %v, top ops: %v", s.Loops(), s)
}
