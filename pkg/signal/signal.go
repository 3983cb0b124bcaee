// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package signal provides types for working with execution feedback signal:
// sets of 32-bit call outcome hashes produced by the runner.
package signal

import (
	"sort"
)

type Signal map[uint32]struct{}

func FromRaw(raw []uint32) Signal {
	if len(raw) == 0 {
		return nil
	}
	s := make(Signal, len(raw))
	for _, e := range raw {
		s[e] = struct{}{}
	}
	return s
}

// FromSet converts the runner's signal set.
func FromSet(set map[uint32]bool) Signal {
	if len(set) == 0 {
		return nil
	}
	s := make(Signal, len(set))
	for e := range set {
		s[e] = struct{}{}
	}
	return s
}

func (s Signal) Len() int {
	return len(s)
}

func (s Signal) Empty() bool {
	return len(s) == 0
}

func (s Signal) Copy() Signal {
	c := make(Signal, len(s))
	for e := range s {
		c[e] = struct{}{}
	}
	return c
}

// Serialize returns the sorted elements.
func (s Signal) Serialize() []uint32 {
	res := make([]uint32, 0, len(s))
	for e := range s {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Diff returns elements of s1 that are not in s.
func (s Signal) Diff(s1 Signal) Signal {
	var res Signal
	for e := range s1 {
		if _, ok := s[e]; ok {
			continue
		}
		if res == nil {
			res = make(Signal)
		}
		res[e] = struct{}{}
	}
	return res
}

func (s Signal) Intersection(s1 Signal) Signal {
	res := make(Signal)
	for e := range s {
		if _, ok := s1[e]; ok {
			res[e] = struct{}{}
		}
	}
	return res
}

func (s *Signal) Merge(s1 Signal) {
	if s1.Empty() {
		return
	}
	if *s == nil {
		*s = make(Signal, len(s1))
	}
	for e := range s1 {
		(*s)[e] = struct{}{}
	}
}

type Context struct {
	Signal  Signal
	Context any
}

// Minimize returns contexts of a subset of corpus that covers the same signal.
// Inputs are visited from the largest signal to the smallest (ties keep corpus order)
// and kept if they add anything new.
func Minimize(corpus []Context) []any {
	order := make([]int, len(corpus))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return corpus[order[i]].Signal.Len() > corpus[order[j]].Signal.Len()
	})
	var covered Signal
	var result []any
	for _, idx := range order {
		inp := corpus[idx]
		if covered.Diff(inp.Signal).Empty() {
			continue
		}
		covered.Merge(inp.Signal)
		result = append(result, inp.Context)
	}
	return result
}
