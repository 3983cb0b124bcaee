// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package minimize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/seqfuzz/seqfuzz/pkg/signal"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(inputs []*Input) []int {
	var res []int
	for _, inp := range inputs {
		res = append(res, inp.ID)
	}
	return res
}

func TestByTriples(t *testing.T) {
	a := prog.Triple{"a", "b", "c"}
	b := prog.Triple{"b", "c", "d"}
	c := prog.Triple{"x", "y", "z"}
	inputs := []*Input{
		{ID: 1, Triples: []prog.Triple{a}},
		{ID: 2, Triples: []prog.Triple{a, b}},
		{ID: 3, Triples: []prog.Triple{c}},
		{ID: 4},
	}
	assert.ElementsMatch(t, []int{2, 3}, ids(ByTriples(inputs)))
}

func TestBySignal(t *testing.T) {
	inputs := []*Input{
		{ID: 1, Signal: signal.FromRaw([]uint32{1})},
		{ID: 2, Signal: signal.FromRaw([]uint32{1, 2, 3})},
		{ID: 3, Signal: signal.FromRaw([]uint32{3, 4})},
	}
	assert.ElementsMatch(t, []int{2, 3}, ids(BySignal(inputs)))
}

func TestCorpus(t *testing.T) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	store, err := seeds.Open(filepath.Join(t.TempDir(), "zlib"), target)
	require.NoError(t, err)
	texts := []string{
		"r0 = crc32(0, 'a', 1)\n",
		"r0 = crc32(0, 'a', 1)\nr1 = adler32(1, 'b', 1)\nr2 = crc32(r0, 'c', 1)\n",
		"r0 = adler32(1, 'b', 1)\n",
	}
	for i, text := range texts {
		p, err := target.Deserialize([]byte(text), prog.Strict)
		require.NoError(t, err)
		_, err = store.SaveSucc(i, p)
		require.NoError(t, err)
		require.NoError(t, store.SavePairs(i, p.Triples()))
	}
	opts := &runner.ExecOpts{TempDir: t.TempDir()}
	kept, err := Corpus(context.Background(), store, true, opts, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(kept))
	files, err := os.ReadDir(store.SubDir(seeds.MinDir))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "id_000001", files[0].Name())

	kept, err = Corpus(context.Background(), store, false, opts, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(kept))
}

func TestProg(t *testing.T) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	p, err := target.Deserialize([]byte(`
r0 = crc32(0, 'abc', 3)
r1 = adler32(1, 'x', 1)
r2 = uncompress('garbage', 100) (guard: 5)
r3 = crc32(r0, 'def', 3)
`), prog.Strict)
	require.NoError(t, err)
	minimized, res, err := Prog(context.Background(), p, &runner.ExecOpts{TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Code)
	require.Len(t, minimized.Calls, 1)
	assert.Equal(t, "uncompress", minimized.Calls[0].Op.Name)
}
