// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"fmt"
	"os"
)

// Builtin ops available in every target: checks and buffer plumbing.
var commonOps = []*Op{
	{
		Name: "expect_eq",
		Doc:  "fails the program when a != b (ints by value, buffers bytewise)",
		Args: []Field{{"a", Any}, {"b", Any}},
		Fn: func(env Env, args []Value) (Value, error) {
			if eq, err := valuesEqual(args[0], args[1]); err != nil || !eq {
				return nil, checkFailure("expect_eq", args[0], args[1], err)
			}
			return nil, nil
		},
	},
	{
		Name: "expect_ne",
		Doc:  "fails the program when a == b",
		Args: []Field{{"a", Any}, {"b", Any}},
		Fn: func(env Env, args []Value) (Value, error) {
			if eq, err := valuesEqual(args[0], args[1]); err != nil || eq {
				return nil, checkFailure("expect_ne", args[0], args[1], err)
			}
			return nil, nil
		},
	},
	{
		Name: "expect_len",
		Doc:  "fails the program when len(buf) != n",
		Args: []Field{{"buf", Buffer}, {"n", Int}},
		Fn: func(env Env, args []Value) (Value, error) {
			buf, n := BufArg(args, 0), IntArg(args, 1)
			if int64(len(buf)) != n {
				return nil, &CheckError{fmt.Sprintf("expect_len: got %v, want %v", len(buf), n)}
			}
			return nil, nil
		},
	},
	{
		Name: "expect_near",
		Doc:  "fails the program when a and b differ by more than tol (bytewise for buffers)",
		Args: []Field{{"a", Any}, {"b", Any}, {"tol", Int}},
		Fn: func(env Env, args []Value) (Value, error) {
			ok, err := valuesNear(args[0], args[1], IntArg(args, 2))
			if err != nil || !ok {
				return nil, checkFailure("expect_near", args[0], args[1], err)
			}
			return nil, nil
		},
	},
	{
		Name: "buf_len",
		Doc:  "returns the length of buf",
		Args: []Field{{"buf", Buffer}},
		Ret:  Int,
		Fn: func(env Env, args []Value) (Value, error) {
			return int64(len(BufArg(args, 0))), nil
		},
	},
	{
		Name: "buf_fill",
		Doc:  "returns n bytes of value b",
		Args: []Field{{"b", Int}, {"n", Int}},
		Ret:  Buffer,
		Fn: func(env Env, args []Value) (Value, error) {
			n := IntArg(args, 1)
			if n < 0 || n > maxBuffer {
				return nil, Errnof(-1, "bad buffer size %v", n)
			}
			return bytes.Repeat([]byte{byte(IntArg(args, 0))}, int(n)), nil
		},
	},
	{
		Name: "buf_concat",
		Doc:  "returns a followed by b",
		Args: []Field{{"a", Buffer}, {"b", Buffer}},
		Ret:  Buffer,
		Fn: func(env Env, args []Value) (Value, error) {
			return append(append([]byte{}, BufArg(args, 0)...), BufArg(args, 1)...), nil
		},
	},
	{
		Name: "buf_slice",
		Doc:  "returns n bytes of buf starting at off, n = -1 takes the rest of buf",
		Args: []Field{{"buf", Buffer}, {"off", Int}, {"n", Int}},
		Ret:  Buffer,
		Fn: func(env Env, args []Value) (Value, error) {
			buf, off, n := BufArg(args, 0), IntArg(args, 1), IntArg(args, 2)
			if n == -1 && off >= 0 && off <= int64(len(buf)) {
				n = int64(len(buf)) - off
			}
			if off < 0 || n < 0 || off+n > int64(len(buf)) {
				return nil, Errnof(-1, "slice [%v:%v] out of range of %v bytes", off, off+n, len(buf))
			}
			return append([]byte{}, buf[off:off+n]...), nil
		},
	},
	{
		Name: "remove",
		Doc:  "removes a temporary file, returns 0 on success",
		Args: []Field{{"path", Buffer}},
		Ret:  Int,
		Fn: func(env Env, args []Value) (Value, error) {
			path, err := env.Path(string(BufArg(args, 0)))
			if err != nil {
				return int64(-1), Errnof(-1, "%v", err)
			}
			if err := os.Remove(path); err != nil {
				return int64(-1), Errnof(-1, "%v", err)
			}
			return int64(0), nil
		},
	},
}

const maxBuffer = 64 << 20

func init() {
	for _, op := range commonOps {
		op.Common = true
	}
}

func valuesEqual(a, b Value) (bool, error) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return false, fmt.Errorf("comparing int with %T", b)
		}
		return x == y, nil
	case []byte:
		y, ok := b.([]byte)
		if !ok && b != nil {
			return false, fmt.Errorf("comparing buffer with %T", b)
		}
		return bytes.Equal(x, y), nil
	case nil:
		if y, ok := b.([]byte); ok {
			return len(y) == 0, nil
		}
		return b == nil, nil
	default:
		return a == b, nil
	}
}

func valuesNear(a, b Value, tol int64) (bool, error) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return false, fmt.Errorf("comparing int with %T", b)
		}
		return abs(x-y) <= tol, nil
	case []byte:
		y, ok := b.([]byte)
		if !ok {
			return false, fmt.Errorf("comparing buffer with %T", b)
		}
		if len(x) != len(y) {
			return false, nil
		}
		for i := range x {
			if abs(int64(x[i])-int64(y[i])) > tol {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("can't compare %T values", a)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func checkFailure(name string, a, b Value, err error) error {
	if err != nil {
		return &CheckError{fmt.Sprintf("%v: %v", name, err)}
	}
	return &CheckError{fmt.Sprintf("%v: %v vs %v", name, FormatValue(a), FormatValue(b))}
}

// FormatValue renders a runtime value for logs and check failures.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case int64:
		return fmt.Sprint(x)
	case []byte:
		const maxLen = 64
		if isText(x) {
			if len(x) > maxLen {
				return quoteText(x[:maxLen]) + "..."
			}
			return quoteText(x)
		}
		if len(x) > maxLen {
			return fmt.Sprintf("\"%x\"...", x[:maxLen])
		}
		return fmt.Sprintf("\"%x\"", x)
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
