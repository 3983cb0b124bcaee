// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"context"
	"fmt"
)

type TypeKind int

const (
	IntKind TypeKind = iota
	BufferKind
	ResourceKind
	// AnyKind accepts values of any kind (used by the common expect_* ops).
	AnyKind
)

// Type describes an op argument or return value.
// Buffers and resources accept nil (the NULL pointer of the underlying C API).
type Type struct {
	Kind TypeKind
	Res  *ResourceDesc // for ResourceKind
}

var (
	Int    = &Type{Kind: IntKind}
	Buffer = &Type{Kind: BufferKind}
	Any    = &Type{Kind: AnyKind}
)

// Handle returns a resource type for desc.
func Handle(desc *ResourceDesc) *Type {
	return &Type{Kind: ResourceKind, Res: desc}
}

func (t *Type) String() string {
	switch t.Kind {
	case IntKind:
		return "int"
	case BufferKind:
		return "buffer"
	case ResourceKind:
		return t.Res.Name
	case AnyKind:
		return "any"
	}
	panic(fmt.Sprintf("unknown type kind %v", t.Kind))
}

func (t *Type) compatible(other *Type) bool {
	if t.Kind == AnyKind {
		return true
	}
	if t.Kind != other.Kind {
		return false
	}
	return t.Kind != ResourceKind || t.Res.Name == other.Res.Name
}

type Field struct {
	Name string
	Type *Type
}

// ResourceDesc describes an opaque library handle (z_stream, sqlite3*, cJSON*, ...).
type ResourceDesc struct {
	Name    string
	Release string // name of the op that releases the handle
}

// Value is a runtime value passed to and returned from ops:
// int64 for Int, []byte (nil for NULL) for Buffer, and an arbitrary object (nil for NULL) for resources.
type Value any

// OpFunc implements an op. Arguments are already unwrapped to Go values matching op.Args.
type OpFunc func(env Env, args []Value) (Value, error)

// Op describes one library API function callable from harness programs.
type Op struct {
	ID   int
	Name string
	Doc  string
	Args []Field
	Ret  *Type // nil for void ops
	Fn   OpFunc

	// Release marks ops that release their first (resource) argument.
	Release bool
	// Borrow marks ops that return a non-owning view of a resource owned by another handle.
	Borrow bool
	// Consume lists argument indices whose ownership moves into the op (e.g. an item added to a
	// JSON object is freed together with the object).
	Consume []int
	// Common marks the builtin ops available in every target.
	Common bool
}

// Env gives ops access to the execution environment.
type Env interface {
	Context() context.Context
	// Path resolves a file name used by the program into the private scratch directory.
	Path(name string) (string, error)
}

// Errno is an error carrying a library return code (Z_DATA_ERROR, SQLITE_ERROR, ...).
type Errno struct {
	Code int
	Msg  string
}

func (e *Errno) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("errno %v", e.Code)
	}
	return fmt.Sprintf("%v (errno %v)", e.Msg, e.Code)
}

func Errnof(code int, msg string, args ...any) *Errno {
	return &Errno{Code: code, Msg: fmt.Sprintf(msg, args...)}
}

// CheckError is returned by expect_* ops when a validation does not hold.
type CheckError struct {
	Msg string
}

func (e *CheckError) Error() string {
	return e.Msg
}

// Helpers for op implementations.

func IntArg(args []Value, i int) int64 {
	return args[i].(int64)
}

func BufArg(args []Value, i int) []byte {
	if args[i] == nil {
		return nil
	}
	return args[i].([]byte)
}

// ResArg returns the i-th argument as a T, ok is false for NULL handles.
func ResArg[T any](args []Value, i int) (T, bool) {
	v, ok := args[i].(T)
	return v, ok
}

// BoolInt converts a C boolean result.
func BoolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
