// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package check

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
)

func TestExpectations(t *testing.T) {
	c := New("suite/case")
	var nilPtr *int
	assert.True(t, c.ExpectTrue(true))
	assert.True(t, c.ExpectFalse(false))
	assert.True(t, c.ExpectEq(int64(5), 5))
	assert.True(t, c.ExpectEq(uint32(0xffffffff), int64(0xffffffff)))
	assert.True(t, c.ExpectEq("abc", "abc"))
	assert.True(t, c.ExpectEq([]byte("abc"), "abc"))
	assert.True(t, c.ExpectEq([]string{"a"}, []string{"a"}))
	assert.True(t, c.ExpectNe(1, 2))
	assert.True(t, c.ExpectBytesEq(nil, []byte{}))
	assert.True(t, c.ExpectNil(nil))
	assert.True(t, c.ExpectNil(nilPtr))
	assert.True(t, c.ExpectNotNil(&c))
	assert.True(t, c.ExpectNoErr(nil))
	assert.True(t, c.ExpectErrno(nil, 0))
	assert.True(t, c.ExpectErrno(fmt.Errorf("wrapped: %w", prog.Errnof(-3, "bad data")), -3))
	assert.False(t, c.Failed())
	assert.Empty(t, c.Failures())
}

func TestFailuresDoNotStop(t *testing.T) {
	c := New("suite/case")
	assert.False(t, c.ExpectTrue(false, "first"))
	assert.False(t, c.ExpectEq(1, 2, "value of %v", "x"))
	assert.False(t, c.ExpectNe("a", "a"))
	assert.False(t, c.ExpectNil(1))
	assert.False(t, c.ExpectNotNil(nil))
	assert.False(t, c.ExpectNoErr(errors.New("boom")))
	assert.False(t, c.ExpectErrno(nil, -3))
	assert.False(t, c.ExpectErrno(prog.Errnof(-5, "buf"), -3))
	c.Errorf("custom %v", 42)
	failures := c.Failures()
	assert.True(t, c.Failed())
	assert.Len(t, failures, 9)
	for _, f := range failures {
		assert.True(t, strings.HasPrefix(f, "check_test.go:"), f)
	}
	assert.Contains(t, failures[0], "first: expected true")
	assert.Contains(t, failures[1], "value of x: got 1, want 2")
	assert.Contains(t, failures[2], `got "a", expected a different value`)
	assert.Contains(t, failures[6], "got no error, want errno -3")
	assert.Contains(t, failures[7], "got error buf (errno -5), want errno -3")
	assert.Contains(t, failures[8], "custom 42")
}

func TestMismatchDiff(t *testing.T) {
	c := New("diff")
	c.ExpectBytesEq([]byte(`{"name":"test","value":43}`), []byte(`{"name":"test","value":42}`))
	failures := c.Failures()
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0], `mismatch (-want +got): {"name":"test","value":4[-2-]{+3+}}`)
	assert.Equal(t, "ab[-c-]{+d+}", Diff("abc", "abd"))
	assert.Equal(t, "same", Diff("same", "same"))
}
