// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetRegistry(t *testing.T) {
	target := initTargetTest(t)
	assert.Same(t, target, testTarget)
	_, err := GetTarget("no-such-target")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test")
	found := false
	for _, target := range AllTargets() {
		found = found || target.Name == "test"
	}
	assert.True(t, found)
	assert.Panics(t, func() { RegisterTarget(&Target{Name: "test"}) })
}

func TestTargetCommonOps(t *testing.T) {
	target := initTargetTest(t)
	for _, op := range commonOps {
		assert.Same(t, op, target.OpMap[op.Name])
		assert.True(t, op.Common)
	}
	assert.False(t, target.OpMap["topen"].Common)
	assert.Equal(t, []*Op{target.OpMap["topen"]}, target.Acquirers(testHandle))
	assert.Equal(t, "tclose", target.ReleaseOp(testHandle).Name)
	v, ok := target.Const("T_ERR")
	assert.True(t, ok)
	assert.Equal(t, int64(-3), v)
}

func TestTargetBadDescriptions(t *testing.T) {
	res := &ResourceDesc{Name: "h", Release: "hfree"}
	nop := func(env Env, args []Value) (Value, error) { return nil, nil }
	tests := map[string]*Target{
		"no release op": {
			Name:      "bad1",
			Resources: []*ResourceDesc{res},
			Ops:       []*Op{{Name: "hnew", Ret: Handle(res), Fn: nop}},
		},
		"release of int": {
			Name: "bad2",
			Ops:  []*Op{{Name: "hfree", Args: []Field{{"v", Int}}, Release: true, Fn: nop}},
		},
		"no implementation": {
			Name: "bad3",
			Ops:  []*Op{{Name: "hnop"}},
		},
		"duplicate op": {
			Name: "bad4",
			Ops:  []*Op{{Name: "expect_eq", Fn: nop}},
		},
	}
	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Panics(t, target.lazyInit)
		})
	}
}

func TestTriples(t *testing.T) {
	target := initTargetTest(t)
	p, err := target.Deserialize([]byte("r0 = topen(0)\n"+
		"twrite(r0, 'a')\n"+
		"r1 = tread(r0)\n"+
		"expect_eq(r1, 'a')\n"+
		"twrite(r0, 'b')\n"+
		"r2 = tread(r0)\n"+
		"twrite(r0, 'c')\n"+
		"r3 = tread(r0)\n"+
		"tclose(r0)\n"), Strict)
	require.NoError(t, err)
	got := p.Triples()
	want := []Triple{
		{"topen", "twrite", "tread"},
		{"twrite", "tread", "twrite"},
		{"tread", "twrite", "tread"},
		{"twrite", "tread", "tclose"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
	assert.Equal(t, "topen twrite tread", got[0].String())
	tr, ok := ParseTriple("topen twrite tread")
	assert.True(t, ok)
	assert.Equal(t, got[0], tr)
	_, ok = ParseTriple("topen twrite")
	assert.False(t, ok)
	assert.Len(t, TriplesOf([]string{"a", "b"}), 0)
	assert.Equal(t, map[string]bool{"topen": true, "twrite": true, "tread": true, "tclose": true}, p.UsedOps())
}

func TestDescribe(t *testing.T) {
	target := initTargetTest(t)
	assert.Equal(t, "r = twrite(f tfile, data buffer) int", Prototype(target.OpMap["twrite"]))
	assert.Equal(t, "tsync(f tfile)", Prototype(target.OpMap["tsync"]))
	desc := target.Describe([]string{"topen", "tclose", "unknown"})
	assert.Equal(t, "r = topen(mode int) tfile\n"+
		"r = tclose(f tfile) int\n"+
		"\nresources: tfile (released by tclose)\n", desc)
	assert.Equal(t, "T_ERR = -3\nT_RDONLY = 0\nT_RDWR = 2\n", target.DescribeConsts())
}

func TestClone(t *testing.T) {
	target := initTargetTest(t)
	p, err := target.Deserialize([]byte("r0 = topen(T_RDWR) (guard: 3)\n"+
		"twrite(r0, 'x') (errno: -3)\n"+
		"tclose(r0)\n"), Strict)
	require.NoError(t, err)
	p1 := p.Clone()
	assert.Equal(t, string(p.Serialize()), string(p1.Serialize()))
	*p1.Calls[1].Props.Errno = 5
	p1.Calls[1].Args[1].(*DataArg).Data[0] = 'y'
	assert.Equal(t, -3, *p.Calls[1].Props.Errno)
	assert.Equal(t, "x", string(p.Calls[1].Args[1].(*DataArg).Data))
	assert.Same(t, p1.Calls[0], p1.Calls[2].Args[0].(*ResultArg).Res)
}

func TestTargetUsedDirectly(t *testing.T) {
	ret := &Op{
		Name: "tret",
		Args: []Field{{"v", Int}},
		Ret:  Int,
		Fn:   func(env Env, args []Value) (Value, error) { return IntArg(args, 0), nil },
	}
	target := &Target{Name: "direct", Ops: []*Op{ret}}
	p, err := target.Deserialize([]byte("r0 = tret(1)\nexpect_eq(r0, 1)\n"), Strict)
	require.NoError(t, err)
	require.Len(t, p.Calls, 2)
	assert.Equal(t, []string{"tret"}, p.OpNames())
	assert.True(t, p.Calls[1].Op.Common)
	assert.Same(t, ret, target.MakeCall("tret", MakeConst(2)).Op)
}
