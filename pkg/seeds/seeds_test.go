// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package seeds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/db"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, target *prog.Target, text string) *prog.Prog {
	p, err := target.Deserialize([]byte(text), prog.Strict)
	require.NoError(t, err)
	return p
}

func TestStoreLifecycle(t *testing.T) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "zlib")
	s, err := Open(dir, target)
	require.NoError(t, err)
	for _, sub := range []string{SuccDir, ErrDir, PairsDir, MinDir, MiscDir} {
		assert.DirExists(t, filepath.Join(dir, sub))
	}
	assert.Equal(t, 0, s.NextID())
	assert.Equal(t, 1, s.NextID())

	p := parse(t, target, "r0 = crc32(0, 'abc', 3)\nr1 = crc32(r0, 'def', 3)\nr2 = adler32(1, 'abc', 3)\n")
	path, err := s.SaveSucc(1, p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "succ", "id_000001"), path)
	require.NoError(t, s.SavePairs(1, p.Triples()))
	require.NoError(t, s.SaveErr(0, []byte("r0 = crc33()"), "unknown op crc33"))
	reason, err := os.ReadFile(filepath.Join(dir, "err", "id_000000.err"))
	require.NoError(t, err)
	assert.Equal(t, "unknown op crc33", string(reason))
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, s.CorpusLen())

	// A new session continues numbering and keeps the metadata.
	s2, err := Open(dir, target)
	require.NoError(t, err)
	assert.NotEqual(t, s.RunID, s2.RunID)
	assert.Equal(t, 2, s2.NextID())
	metas := s2.Metas()
	require.Len(t, metas, 1)
	assert.Equal(t, 1, metas[0].ID)
	assert.Equal(t, s.RunID, metas[0].RunID)

	pairs, err := s2.LoadPairs()
	require.NoError(t, err)
	assert.Equal(t, map[int][]prog.Triple{1: {{"crc32", "crc32", "adler32"}}}, pairs)
	seeds, err := s2.LoadSucc()
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, string(p.Serialize()), string(seeds[0].Prog.Serialize()))

	corpus, err := db.ReadCorpus(filepath.Join(dir, CorpusDB), target)
	require.NoError(t, err)
	assert.Len(t, corpus, 1)

	require.NoError(t, s2.Reject(seeds[0], "recheck failed"))
	assert.NoFileExists(t, path)
	text, why, err := s2.Read(ErrDir, 1)
	require.NoError(t, err)
	assert.Equal(t, string(p.Serialize()), string(text))
	assert.Equal(t, "recheck failed", why)
	require.NoError(t, s2.Flush())
	assert.Equal(t, 0, s2.CorpusLen())
	seeds, err = s2.LoadSucc()
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestParseID(t *testing.T) {
	id, ok := parseID("id_000042")
	assert.True(t, ok)
	assert.Equal(t, 42, id)
	for _, name := range []string{"id_000042.err", "seed_1", "id_x"} {
		_, ok := parseID(name)
		assert.False(t, ok, name)
	}
	assert.Equal(t, "id_1234567", FileName(1234567))
}
