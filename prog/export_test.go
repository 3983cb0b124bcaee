// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"testing"
)

// A small target resembling a file API, used only by tests of this package.

type testFile struct {
	data     []byte
	children []*testFile
}

var testHandle = &ResourceDesc{Name: "tfile", Release: "tclose"}

func testOp(name string, args []Field, ret *Type, fn OpFunc) *Op {
	if fn == nil {
		fn = func(env Env, args []Value) (Value, error) { return nil, nil }
	}
	return &Op{Name: name, Args: args, Ret: ret, Fn: fn}
}

var testTarget = &Target{
	Name:      "test",
	Resources: []*ResourceDesc{testHandle},
	Consts: map[string]int64{
		"T_RDONLY": 0,
		"T_RDWR":   2,
		"T_ERR":    -3,
	},
	Ops: []*Op{
		testOp("topen", []Field{{"mode", Int}}, Handle(testHandle), func(env Env, args []Value) (Value, error) {
			return &testFile{}, nil
		}),
		{
			Name:    "tclose",
			Args:    []Field{{"f", Handle(testHandle)}},
			Ret:     Int,
			Release: true,
			Fn:      func(env Env, args []Value) (Value, error) { return int64(0), nil },
		},
		testOp("twrite", []Field{{"f", Handle(testHandle)}, {"data", Buffer}}, Int,
			func(env Env, args []Value) (Value, error) {
				f, _ := ResArg[*testFile](args, 0)
				f.data = append(f.data, BufArg(args, 1)...)
				return int64(len(BufArg(args, 1))), nil
			}),
		testOp("tread", []Field{{"f", Handle(testHandle)}}, Buffer,
			func(env Env, args []Value) (Value, error) {
				f, _ := ResArg[*testFile](args, 0)
				return f.data, nil
			}),
		testOp("tsync", []Field{{"f", Handle(testHandle)}}, nil, nil),
		{
			Name:   "tchild",
			Args:   []Field{{"f", Handle(testHandle)}, {"idx", Int}},
			Ret:    Handle(testHandle),
			Borrow: true,
			Fn:     func(env Env, args []Value) (Value, error) { return nil, nil },
		},
		{
			Name:    "tadopt",
			Args:    []Field{{"parent", Handle(testHandle)}, {"child", Handle(testHandle)}},
			Consume: []int{1},
			Fn:      func(env Env, args []Value) (Value, error) { return nil, nil },
		},
	},
}

func init() {
	RegisterTarget(testTarget)
}

func initTargetTest(t *testing.T) *Target {
	t.Helper()
	target, err := GetTarget("test")
	if err != nil {
		t.Fatal(err)
	}
	return target
}
