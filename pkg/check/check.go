// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package check provides non-terminating expectations for focal-function tests:
// a failed expectation is reported and counted, and the test goes on.
package check

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type T struct {
	Name string

	mu       sync.Mutex
	failures []string
}

func New(name string) *T {
	return &T{Name: name}
}

// Errorf records a failure at the location of the caller.
func (t *T) Errorf(msg string, args ...any) {
	t.report(2, fmt.Sprintf(msg, args...))
}

func (t *T) report(skip int, msg string) {
	loc := "???"
	if _, file, line, ok := runtime.Caller(skip); ok {
		loc = fmt.Sprintf("%v:%v", filepath.Base(file), line)
	}
	text := fmt.Sprintf("%v: %v", loc, msg)
	log.Logf(1, "%v: %v", t.Name, text)
	t.mu.Lock()
	t.failures = append(t.failures, text)
	t.mu.Unlock()
}

func (t *T) Failures() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.failures...)
}

func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures) != 0
}

func (t *T) fail(msg string, extra []any) bool {
	if len(extra) != 0 {
		if f, ok := extra[0].(string); ok {
			msg = fmt.Sprintf(f, extra[1:]...) + ": " + msg
		} else {
			msg = fmt.Sprint(extra...) + ": " + msg
		}
	}
	t.report(3, msg)
	return false
}

func (t *T) ExpectTrue(cond bool, msg ...any) bool {
	if !cond {
		return t.fail("expected true", msg)
	}
	return true
}

func (t *T) ExpectFalse(cond bool, msg ...any) bool {
	if cond {
		return t.fail("expected false", msg)
	}
	return true
}

// ExpectEq compares values deeply, integers of different types are compared by value.
func (t *T) ExpectEq(got, want any, msg ...any) bool {
	if equal(got, want) {
		return true
	}
	return t.fail(describeMismatch(got, want), msg)
}

func (t *T) ExpectNe(got, other any, msg ...any) bool {
	if !equal(got, other) {
		return true
	}
	return t.fail(fmt.Sprintf("got %v, expected a different value", format(got)), msg)
}

func (t *T) ExpectBytesEq(got, want []byte, msg ...any) bool {
	if bytes.Equal(got, want) {
		return true
	}
	return t.fail(describeMismatch(got, want), msg)
}

func (t *T) ExpectNil(v any, msg ...any) bool {
	if isNil(v) {
		return true
	}
	return t.fail(fmt.Sprintf("expected nil, got %v", format(v)), msg)
}

func (t *T) ExpectNotNil(v any, msg ...any) bool {
	if !isNil(v) {
		return true
	}
	return t.fail("expected non-nil", msg)
}

func (t *T) ExpectNoErr(err error, msg ...any) bool {
	if err == nil {
		return true
	}
	return t.fail(fmt.Sprintf("unexpected error: %v", err), msg)
}

// ExpectErrno checks that err carries the library error code.
func (t *T) ExpectErrno(err error, code int, msg ...any) bool {
	var errno *prog.Errno
	switch {
	case code == 0 && err == nil:
		return true
	case errors.As(err, &errno) && errno.Code == code:
		return true
	case err == nil:
		return t.fail(fmt.Sprintf("got no error, want errno %v", code), msg)
	}
	return t.fail(fmt.Sprintf("got error %v, want errno %v", err, code), msg)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := toInt(a); ok {
		if y, ok := toInt(b); ok {
			return x == y
		}
	}
	if x, ok := rawBytes(a); ok {
		if y, ok := rawBytes(b); ok {
			return bytes.Equal(x, y)
		}
	}
	return reflect.DeepEqual(a, b)
}

// rawBytes lets buffers be compared with string literals.
func rawBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func format(v any) string {
	switch x := v.(type) {
	case []byte:
		return prog.FormatValue(x)
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprintf("%v", v)
}

func describeMismatch(got, want any) string {
	g, gok := textOf(got)
	w, wok := textOf(want)
	if !gok || !wok || len(g)+len(w) < 16 {
		return fmt.Sprintf("got %v, want %v", format(got), format(want))
	}
	return fmt.Sprintf("mismatch (-want +got): %v", Diff(w, g))
}

func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		if utf8.Valid(x) && !bytes.ContainsRune(x, 0) {
			return string(x), true
		}
		return hex.EncodeToString(x), true
	}
	return "", false
}

// Diff renders a character diff of want and got: "[-removed-]" and "{+added+}".
func Diff(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(want, got, false))
	buf := new(strings.Builder)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			buf.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(buf, "[-%v-]", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(buf, "{+%v+}", d.Text)
		}
	}
	return buf.String()
}
