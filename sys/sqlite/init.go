// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sqlite describes the sqlite3 C API on top of the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// Result codes.
const (
	sqliteOK         = 0
	sqliteError      = 1
	sqliteBusy       = 5
	sqliteNoMem      = 7
	sqliteCantOpen   = 14
	sqliteConstraint = 19
	sqliteMisuse     = 21
	sqliteRange      = 25
	sqliteRow        = 100
	sqliteDone       = 101
)

// Fundamental datatypes.
const (
	sqliteInteger = 1
	sqliteFloat   = 2
	sqliteText    = 3
	sqliteBlob    = 4
	sqliteNull    = 5
)

var (
	dbRes   = &prog.ResourceDesc{Name: "sqlite3", Release: "sqlite3_close"}
	stmtRes = &prog.ResourceDesc{Name: "sqlite3_stmt", Release: "sqlite3_finalize"}
)

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name:      "sqlite",
	Desc:      "SQLite: open databases, execute SQL, prepare/bind/step statements and read columns",
	Resources: []*prog.ResourceDesc{dbRes, stmtRes},
	Consts: map[string]int64{
		"SQLITE_OK":         sqliteOK,
		"SQLITE_ERROR":      sqliteError,
		"SQLITE_INTERNAL":   2,
		"SQLITE_PERM":       3,
		"SQLITE_ABORT":      4,
		"SQLITE_BUSY":       sqliteBusy,
		"SQLITE_LOCKED":     6,
		"SQLITE_NOMEM":      sqliteNoMem,
		"SQLITE_READONLY":   8,
		"SQLITE_INTERRUPT":  9,
		"SQLITE_IOERR":      10,
		"SQLITE_CORRUPT":    11,
		"SQLITE_NOTFOUND":   12,
		"SQLITE_FULL":       13,
		"SQLITE_CANTOPEN":   sqliteCantOpen,
		"SQLITE_PROTOCOL":   15,
		"SQLITE_EMPTY":      16,
		"SQLITE_SCHEMA":     17,
		"SQLITE_TOOBIG":     18,
		"SQLITE_CONSTRAINT": sqliteConstraint,
		"SQLITE_MISMATCH":   20,
		"SQLITE_MISUSE":     sqliteMisuse,
		"SQLITE_NOLFS":      22,
		"SQLITE_AUTH":       23,
		"SQLITE_FORMAT":     24,
		"SQLITE_RANGE":      sqliteRange,
		"SQLITE_NOTADB":     26,
		"SQLITE_ROW":        sqliteRow,
		"SQLITE_DONE":       sqliteDone,
		"SQLITE_INTEGER":    sqliteInteger,
		"SQLITE_FLOAT":      sqliteFloat,
		"SQLITE_TEXT":       sqliteText,
		"SQLITE_BLOB":       sqliteBlob,
		"SQLITE_NULL":       sqliteNull,
	},
	Rules: []string{
		"Every statement from sqlite3_prepare_v2 must be finalized before the database is closed.",
		"sqlite3_step returns SQLITE_ROW while rows are available and SQLITE_DONE at the end; " +
			"column values are read with sqlite3_column_* after SQLITE_ROW.",
		"Bind parameter indices start at 1, column indices start at 0.",
		"Use ':memory:' or a plain file name like 'test.db' (remove it when done).",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(dbOps, stmtOps...)
	prog.RegisterTarget(target)
	registerFocal()
}
