// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetOps(t *testing.T) {
	base := FromRaw([]uint32{1, 2, 3})
	assert.Equal(t, 3, base.Len())
	assert.Equal(t, []uint32{4}, base.Diff(FromRaw([]uint32{2, 4})).Serialize())
	assert.True(t, base.Diff(FromRaw([]uint32{1, 3})).Empty())
	assert.Equal(t, []uint32{2}, base.Intersection(FromSet(map[uint32]bool{2: true, 9: true})).Serialize())

	var merged Signal
	merged.Merge(nil)
	assert.Nil(t, merged)
	merged.Merge(base)
	merged.Merge(FromRaw([]uint32{7}))
	assert.Equal(t, []uint32{1, 2, 3, 7}, merged.Serialize())
	assert.Equal(t, 3, base.Len(), "merge must not alias its argument")
	assert.True(t, FromRaw(nil).Empty())
}

func TestMinimize(t *testing.T) {
	corpus := []Context{
		{FromRaw([]uint32{1, 2}), "small"},
		{FromRaw([]uint32{1, 2, 3, 4}), "big"},
		{FromRaw([]uint32{4, 5}), "tail"},
		{FromRaw([]uint32{5}), "redundant"},
		{nil, "empty"},
	}
	assert.Equal(t, []any{"big", "tail"}, Minimize(corpus))
	assert.Empty(t, Minimize(nil))
}
