// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	sig := Hash([]byte("adler32"), []byte("("))
	assert.Equal(t, Hash([]byte("adler32(")), sig)
	assert.Len(t, sig.String(), 40)
	assert.Equal(t, sig.String(), String([]byte("adler32(")))
	assert.NotEqual(t, sig, Hash([]byte("crc32(")))
}

func TestSignal(t *testing.T) {
	assert.Equal(t, Signal("inflate", "-3", "neg2"), Signal("inflate", "-3", "neg2"))
	assert.NotEqual(t, Signal("ab", "c"), Signal("a", "bc"))
	assert.NotEqual(t, Signal("inflate", "0"), Signal("inflate", "-3"))
}
