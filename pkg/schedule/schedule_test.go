// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package schedule

import (
	"math/rand"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/pkg/testutil"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libOps(t *testing.T) (*prog.Target, []*prog.Op) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	var ops []*prog.Op
	for _, op := range target.Ops {
		if !op.Common {
			ops = append(ops, op)
		}
	}
	return target, ops
}

func TestChooseDistinct(t *testing.T) {
	_, ops := libOps(t)
	for _, power := range []bool{true, false} {
		s := New(ops, nil, 5, power, rand.New(testutil.RandSource(t)))
		for i := 0; i < 100; i++ {
			comb := s.ChooseCombination(5)
			require.Len(t, comb, 5)
			seen := make(map[string]bool)
			for _, op := range comb {
				assert.False(t, seen[op.Name], "duplicate %v", op.Name)
				seen[op.Name] = true
			}
		}
		assert.Len(t, s.ChooseCombination(len(ops)+10), len(ops))
	}
}

func TestEnergyBias(t *testing.T) {
	_, ops := libOps(t)
	s := New(ops, nil, 5, true, rand.New(rand.NewSource(2)))
	var triples []prog.Triple
	for i := 0; i < 50; i++ {
		triples = append(triples, prog.Triple{"deflate", "deflate", "unknownOp"})
	}
	s.UpdateEnergies(triples)
	assert.Equal(t, 101.0, s.Energy("deflate"))
	assert.Equal(t, 0.0, s.Energy("unknownOp"))
	hits := 0
	for i := 0; i < 1000; i++ {
		if s.ChooseCombination(1)[0].Name == "deflate" {
			hits++
		}
	}
	assert.Greater(t, hits, 500)
}

func TestPromptCountDecay(t *testing.T) {
	_, ops := libOps(t)
	counter, err := prompt.LoadCounter("")
	require.NoError(t, err)
	var names []string
	for _, op := range ops {
		if op.Name != "crc32" {
			names = append(names, op.Name)
		}
	}
	for i := 0; i < 100; i++ {
		counter.Inc(names)
	}
	s := New(ops, counter, 5, true, rand.New(rand.NewSource(3)))
	hits := 0
	for i := 0; i < 1000; i++ {
		if s.ChooseCombination(1)[0].Name == "crc32" {
			hits++
		}
	}
	assert.Greater(t, hits, 500)
}

func TestCoverageUpdate(t *testing.T) {
	_, ops := libOps(t)
	s := New(ops, nil, 5, true, rand.New(rand.NewSource(4)))
	s.UpdateCoverage(map[string]int{"deflate": 9})
	assert.InDelta(t, 1.1, s.Energy("deflate"), 1e-9)
	assert.InDelta(t, 2.0, s.Energy("inflate"), 1e-9)
	s.ResetEnergies()
	assert.Equal(t, 1.0, s.Energy("inflate"))
}

func TestCombLen(t *testing.T) {
	_, ops := libOps(t)
	fixed := New(ops, nil, 5, false, rand.New(rand.NewSource(5)))
	power := New(ops, nil, 5, true, rand.New(rand.NewSource(5)))
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		assert.Equal(t, 5, fixed.CombLen())
		n := power.CombLen()
		assert.True(t, n >= 2 && n <= 5, n)
		seen[n] = true
	}
	assert.Len(t, seen, 4)
}

func TestShouldShuffle(t *testing.T) {
	s := &Schedule{}
	assert.False(t, s.ShouldShuffle(0, 9))
	assert.True(t, s.ShouldShuffle(0, 10))
	assert.False(t, s.ShouldShuffle(1, 30))
}

func TestUpdatePrompt(t *testing.T) {
	target, ops := libOps(t)
	s := New(ops, nil, 3, false, rand.New(rand.NewSource(6)))
	p := prompt.New(&prompt.Settings{Target: target}, ops[:1])
	s.UpdatePrompt(p)
	assert.Len(t, p.Combination, 3)
	assert.Equal(t, 1, s.Loops())
	assert.NotEmpty(t, s.String())
}
