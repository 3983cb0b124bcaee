// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeds(t *testing.T) {
	ctx := &runtest.Context{
		Target:  target,
		Procs:   4,
		LogFunc: func(text string) { t.Log(text) },
	}
	if err := ctx.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFocal(t *testing.T) {
	buf := new(bytes.Buffer)
	if failures := focal.Run(focal.Filter(focal.Suites(), []string{"sqlite"}), buf); failures != 0 {
		t.Fatalf("%v failures:\n%s", failures, buf.Bytes())
	}
}

func TestParamNames(t *testing.T) {
	tests := []struct {
		sql   string
		names []string
	}{
		{"SELECT 1", nil},
		{"SELECT ?, ?", []string{"", ""}},
		{"SELECT ?3, ?1", []string{"", "", ""}},
		{"SELECT :a, @b, $c, :a", []string{"a", "b", "c"}},
		{"SELECT '?', \":x\" -- ?\n, ?", []string{""}},
		{"SELECT ?2, :name", []string{"", "", "name"}},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.names, paramNames(test.sql)); diff != "" {
			t.Errorf("%q: (-want +got):\n%v", test.sql, diff)
		}
	}
}

func TestComplete(t *testing.T) {
	tests := map[string]bool{
		"":                        false,
		"SELECT 1":                false,
		"SELECT 1;":               true,
		"SELECT 1;  \n":           true,
		"SELECT ';'":              false,
		"SELECT 1; /* open":       false,
		"SELECT 1; /* closed */":  true,
		"SELECT [a;b] FROM t;":    true,
		"SELECT 1 -- comment;\n":  false,
		"CREATE TABLE t(x); DROP": false,
	}
	for sql, want := range tests {
		assert.Equal(t, want, complete([]byte(sql)), "%q", sql)
	}
	assert.Equal(t, "SELECT 1;", firstStatement("SELECT 1; SELECT 2;"))
	assert.Equal(t, "SELECT ';';", firstStatement("SELECT ';'; x"))
	assert.Equal(t, "SELECT 1", firstStatement("SELECT 1"))
}

func TestColumnConversions(t *testing.T) {
	assert.Equal(t, int64(42), columnInt("42abc"))
	assert.Equal(t, int64(-7), columnInt(" -7"))
	assert.Equal(t, int64(150), columnInt("1.5e2"))
	assert.Equal(t, int64(0), columnInt("abc"))
	assert.Equal(t, int64(3), columnInt(3.9))
	assert.Equal(t, int64(0), columnInt(nil))
	assert.Equal(t, "2.0", string(columnText(2.0)))
	assert.Equal(t, "0.1", string(columnText(0.1)))
	assert.Equal(t, "-12", string(columnText(int64(-12))))
	assert.Nil(t, columnText(nil))
	assert.Equal(t, int64(sqliteNull), columnType(nil))
	assert.Equal(t, int64(sqliteBlob), columnType([]byte{}))
	assert.Equal(t, int64(1003002), versionNumber("1.3.2"))
}

func TestCloseWithOpenStatement(t *testing.T) {
	target, err := prog.GetTarget("sqlite")
	require.NoError(t, err)
	call := func(name string, args ...prog.Value) (prog.Value, error) {
		return target.OpMap[name].Fn(testEnv{}, args)
	}
	db, err := call("sqlite3_open", []byte(":memory:"))
	require.NoError(t, err)
	st, err := call("sqlite3_prepare_v2", db, []byte("SELECT 1"))
	require.NoError(t, err)
	ret, err := call("sqlite3_close", db)
	require.NoError(t, err)
	assert.Equal(t, int64(sqliteOK), ret)
	// The statement outlived its database and is unusable, finalizing it is still allowed.
	_, err = call("sqlite3_step", st)
	var errno *prog.Errno
	require.ErrorAs(t, err, &errno)
	assert.Equal(t, sqliteMisuse, errno.Code)
	_, err = call("sqlite3_finalize", st)
	assert.NoError(t, err)
	_, err = call("sqlite3_finalize", st)
	assert.Error(t, err)
	_, err = call("sqlite3_close", db)
	assert.Error(t, err)
}

type testEnv struct{}

func (testEnv) Context() context.Context {
	return context.Background()
}

func (testEnv) Path(name string) (string, error) {
	return "", fmt.Errorf("no files in this test")
}
