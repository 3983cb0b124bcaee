// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimize(t *testing.T) {
	target := initTargetTest(t)
	tests := []struct {
		orig   string
		pred   func(*Prog) bool
		result string
	}{
		// Predicate wants the write, everything unrelated goes away,
		// the handle and its release stay since the write uses the handle.
		{
			"r0 = buf_fill(1, 4)\n" +
				"r1 = topen(T_RDWR)\n" +
				"twrite(r1, 'abcdefgh')\n" +
				"tsync(r1)\n" +
				"tclose(r1)\n" +
				"expect_eq(r0, \"01010101\")\n",
			func(p *Prog) bool {
				return strings.Contains(p.String(), "twrite")
			},
			"r0 = topen(T_RDWR)\n" +
				"twrite(r0, '')\n",
		},
		// Predicate wants the release too.
		{
			"r0 = topen(0)\n" +
				"twrite(r0, 'abcdefgh')\n" +
				"tclose(r0)\n",
			func(p *Prog) bool {
				return strings.Contains(p.String(), "twrite-tclose")
			},
			"r0 = topen(0)\n" +
				"twrite(r0, '')\n" +
				"tclose(r0)\n",
		},
		// Data is shrunk while the predicate holds.
		{
			"r0 = buf_len('abcdefgh')\n" +
				"expect_ne(r0, 0)\n",
			func(p *Prog) bool {
				if len(p.Calls) == 0 {
					return false
				}
				arg, ok := p.Calls[0].Args[0].(*DataArg)
				return ok && len(arg.Data) >= 2
			},
			"buf_len('ab')\n",
		},
		// Nothing can be removed.
		{
			"r0 = topen(0)\n" +
				"tclose(r0)\n",
			func(p *Prog) bool {
				return len(p.Calls) == 2
			},
			"r0 = topen(0)\n" +
				"tclose(r0)\n",
		},
	}
	for i, test := range tests {
		p, err := target.Deserialize([]byte(test.orig), Strict)
		require.NoError(t, err, "test #%v", i)
		res := Minimize(p, test.pred)
		assert.Equal(t, test.result, string(res.Serialize()), "test #%v", i)
		// The original is not modified.
		assert.Equal(t, test.orig, string(p.Serialize()), "test #%v", i)
	}
}

func TestRemoveCallWithUsers(t *testing.T) {
	target := initTargetTest(t)
	p, err := target.Deserialize([]byte("r0 = topen(0)\n"+
		"r1 = tread(r0)\n"+
		"r2 = topen(0)\n"+
		"expect_len(r1, 0)\n"+
		"tclose(r2)\n"+
		"tclose(r0)\n"), Strict)
	require.NoError(t, err)
	p.removeCallWithUsers(0)
	assert.Equal(t, "r0 = topen(0)\ntclose(r0)\n", string(p.Serialize()))
	assert.NoError(t, p.Validate())
}
