// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package osutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workdir")
	unlock, err := LockDir(dir)
	require.NoError(t, err)
	_, err = LockDir(dir)
	assert.ErrorIs(t, err, ErrLocked)
	unlock()
	unlock, err = LockDir(dir)
	require.NoError(t, err)
	unlock()
}
