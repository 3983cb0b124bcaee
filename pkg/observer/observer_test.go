// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package observer

import (
	"sync"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/signal"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriples(t *testing.T) {
	o := New(nil)
	a := prog.Triple{"deflateInit", "deflate", "deflateEnd"}
	b := prog.Triple{"inflateInit", "inflate", "inflateEnd"}
	assert.Equal(t, []prog.Triple{a}, o.AddTriples([]prog.Triple{a}))
	assert.Equal(t, []prog.Triple{b}, o.AddTriples([]prog.Triple{a, b, b}))
	assert.Nil(t, o.AddTriples([]prog.Triple{b}))
	assert.True(t, o.HasTriple(a))
	assert.Equal(t, []prog.Triple{a, b}, o.Triples())
}

func TestConcurrentTriples(t *testing.T) {
	o := New(nil)
	var wg sync.WaitGroup
	fresh := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh[i] = len(o.AddTriples([]prog.Triple{{"a", "b", "c"}, {"b", "c", "d"}}))
		}()
	}
	wg.Wait()
	total := 0
	for _, n := range fresh {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, o.NumTriples())
}

func TestSignal(t *testing.T) {
	o := New(nil)
	s1 := signal.FromRaw([]uint32{1, 2, 3})
	assert.Equal(t, 3, o.NewSignal(s1).Len())
	o.MergeSignal(s1)
	assert.True(t, o.NewSignal(s1).Empty())
	assert.Equal(t, []uint32{4}, o.NewSignal(signal.FromRaw([]uint32{2, 4})).Serialize())
	assert.Equal(t, 3, o.SignalLen())
	o.ResetSignal()
	assert.Equal(t, 0, o.SignalLen())
}

func TestCoverage(t *testing.T) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	o := New([]*prog.Op{target.OpMap["compress"], target.OpMap["uncompress"], target.OpMap["crc32"]})
	p, err := target.Deserialize([]byte("r0 = compress('abc', 100)\nr1 = compress('abc', 100)\nexpect_eq(r0, r1)\n"), prog.Strict)
	require.NoError(t, err)
	o.AddProgram(p)
	o.AddProgram(p)
	assert.Equal(t, map[string]int{"compress": 2}, o.Uses())
	used, total := o.Coverage()
	assert.Equal(t, 1, used)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"crc32", "uncompress"}, o.Unused())
	assert.Equal(t, "programs: 2, triples: 0, signal: 0, api coverage: 1/3", o.DumpStates())
}
