// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, WriteFile(filepath.Join(dir, name), nil))
	}
	names, err := ListDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	_, err = ListDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, WriteFileAtomic(file, []byte("one")))
	require.NoError(t, WriteFileAtomic(file, []byte("two")))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.False(t, IsExist(file+".tmp"))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, "", Abs(""))
	assert.Equal(t, "/x/y", Abs("/x/y"))
	assert.True(t, filepath.IsAbs(Abs("rel")))
}
