// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sqlite

import (
	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/prog"
)

// openTable opens an in-memory database with a two-row table t(a INTEGER, b TEXT).
func openTable(t *check.T, c *focal.Ctx) prog.Value {
	db, err := c.CallOp("sqlite3_open", ":memory:")
	if !t.ExpectNoErr(err) {
		return nil
	}
	_, err = c.CallOp("sqlite3_exec", db, "CREATE TABLE t(a INTEGER, b TEXT); "+
		"INSERT INTO t VALUES(1, 'one'); INSERT INTO t VALUES(2, 'two');")
	t.ExpectNoErr(err)
	return db
}

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "sqlite_step",
		Target: "sqlite",
		Focal:  "sqlite3_step",
		Cases: []focal.Case{
			{Name: "rows_then_done", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				st, err := c.CallOp("sqlite3_prepare_v2", db, "SELECT a, b FROM t ORDER BY a")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("sqlite3_finalize", st)
				for _, want := range []string{"one", "two"} {
					t.ExpectEq(c.Int("sqlite3_step", st), sqliteRow)
					t.ExpectEq(c.Buf("sqlite3_column_text", st, 1), want)
				}
				t.ExpectEq(c.Int("sqlite3_step", st), sqliteDone)
				// A finished statement restarts on the next step.
				t.ExpectEq(c.Int("sqlite3_step", st), sqliteRow)
				t.ExpectEq(c.Int("sqlite3_column_int", st, 0), 1)
			}},
			{Name: "insert_is_done", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				st, err := c.CallOp("sqlite3_prepare_v2", db, "INSERT INTO t VALUES(?, ?)")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("sqlite3_finalize", st)
				t.ExpectEq(c.Int("sqlite3_bind_int", st, 1, 7), sqliteOK)
				t.ExpectEq(c.Int("sqlite3_bind_text", st, 2, "seven"), sqliteOK)
				t.ExpectEq(c.Int("sqlite3_step", st), sqliteDone)
				t.ExpectEq(c.Int("sqlite3_changes", db), 1)
				t.ExpectEq(c.Int("sqlite3_last_insert_rowid", db), 3)
			}},
			{Name: "constraint_violation", Run: func(t *check.T, c *focal.Ctx) {
				db, _ := c.CallOp("sqlite3_open", ":memory:")
				defer c.CallOp("sqlite3_close", db)
				c.CallOp("sqlite3_exec", db, "CREATE TABLE u(k INTEGER PRIMARY KEY, v TEXT NOT NULL)")
				st, err := c.CallOp("sqlite3_prepare_v2", db, "INSERT INTO u(v) VALUES(?)")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("sqlite3_finalize", st)
				_, err = c.Call(st)
				t.ExpectErrno(err, sqliteConstraint, "NULL into NOT NULL column")
				t.ExpectEq(c.Int("sqlite3_errcode", db), sqliteConstraint)
			}},
			{Name: "null_statement", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(nil)
				t.ExpectErrno(err, sqliteMisuse)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "sqlite_prepare",
		Target: "sqlite",
		Focal:  "sqlite3_prepare_v2",
		Cases: []focal.Case{
			{Name: "syntax_error", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				_, err := c.Call(db, "SELEKT * FROM t")
				t.ExpectErrno(err, sqliteError)
				t.ExpectEq(c.Int("sqlite3_errcode", db), sqliteError)
				t.ExpectNe(string(c.Buf("sqlite3_errmsg", db)), "not an error")
			}},
			{Name: "missing_table", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				_, err := c.Call(db, "SELECT * FROM nope")
				t.ExpectErrno(err, sqliteError)
			}},
			{Name: "empty_input", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				st, err := c.Call(db, "  ")
				t.ExpectNoErr(err)
				t.ExpectNil(st)
			}},
			{Name: "parameter_count", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				st, err := c.Call(db, "SELECT ?, ?5, :x, :x, '?' FROM t")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("sqlite3_finalize", st)
				t.ExpectEq(c.Int("sqlite3_bind_parameter_count", st), 6)
				_, err = c.CallOp("sqlite3_bind_int", st, 0, 1)
				t.ExpectErrno(err, sqliteRange)
				_, err = c.CallOp("sqlite3_bind_int", st, 7, 1)
				t.ExpectErrno(err, sqliteRange)
			}},
			{Name: "only_first_statement", Run: func(t *check.T, c *focal.Ctx) {
				db := openTable(t, c)
				defer c.CallOp("sqlite3_close", db)
				st, err := c.Call(db, "DELETE FROM t; DROP TABLE t;")
				if !t.ExpectNoErr(err) {
					return
				}
				t.ExpectEq(c.Int("sqlite3_step", st), sqliteDone)
				c.CallOp("sqlite3_finalize", st)
				t.ExpectEq(c.Buf("sqlite3_get_table", db, "SELECT count(*) FROM t"), "0\n")
			}},
		},
	})
}
