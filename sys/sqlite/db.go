// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/seqfuzz/seqfuzz/prog"
	sqlite3 "modernc.org/sqlite"
)

var (
	driverOnce sync.Once
	sqlDriver  driver.Driver
)

// sqliteDriver returns the driver registered by modernc.org/sqlite.
func sqliteDriver() driver.Driver {
	driverOnce.Do(func() {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			panic(err)
		}
		sqlDriver = db.Driver()
		db.Close()
	})
	return sqlDriver
}

// database is a sqlite3* handle: one driver connection plus the state the C API reports
// through sqlite3_errcode, sqlite3_changes and sqlite3_last_insert_rowid.
type database struct {
	conn    driver.Conn
	stmts   map[*statement]bool
	errcode int
	errmsg  string
	changes int64
	lastID  int64
	closed  bool
}

func openDatabase(name string) (*database, error) {
	conn, err := sqliteDriver().Open(name)
	if err != nil {
		return nil, errnoOf(err, sqliteCantOpen)
	}
	return &database{conn: conn, stmts: make(map[*statement]bool)}, nil
}

// errnoOf converts a driver error to a prog.Errno carrying the primary result code.
func errnoOf(err error, fallback int) *prog.Errno {
	var errno *prog.Errno
	if errors.As(err, &errno) {
		return errno
	}
	code := fallback
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		code = serr.Code() & 0xff
	}
	return prog.Errnof(code, "%v", err)
}

// fail records err as the last error of the connection.
func (db *database) fail(err error, fallback int) error {
	errno := errnoOf(err, fallback)
	db.errcode, db.errmsg = errno.Code, errno.Msg
	return errno
}

func (db *database) ok() {
	db.errcode, db.errmsg = sqliteOK, ""
}

func (db *database) exec(ctx context.Context, query string) error {
	execer, ok := db.conn.(driver.ExecerContext)
	if !ok {
		return db.fail(fmt.Errorf("connection does not support exec"), sqliteError)
	}
	res, err := execer.ExecContext(ctx, query, nil)
	if err != nil {
		return db.fail(err, sqliteError)
	}
	db.ok()
	db.changes, _ = res.RowsAffected()
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		db.lastID = id
	}
	return nil
}

// refreshCounters reads changes() and last_insert_rowid() after a statement ran to completion.
func (db *database) refreshCounters(ctx context.Context) {
	rows, err := db.query(ctx, "SELECT changes(), last_insert_rowid()")
	if err != nil {
		return
	}
	defer rows.Close()
	vals := make([]driver.Value, 2)
	if rows.Next(vals) == nil {
		db.changes, _ = vals[0].(int64)
		db.lastID, _ = vals[1].(int64)
	}
}

func (db *database) query(ctx context.Context, query string, args ...driver.NamedValue) (driver.Rows, error) {
	queryer, ok := db.conn.(driver.QueryerContext)
	if !ok {
		return nil, fmt.Errorf("connection does not support query")
	}
	return queryer.QueryContext(ctx, query, args)
}

func (db *database) explain(ctx context.Context, query string, args []driver.NamedValue) error {
	rows, err := db.query(ctx, "EXPLAIN "+query, args...)
	if err != nil {
		return err
	}
	return rows.Close()
}

// table runs query and renders the result rows as "a|b\n" lines.
func (db *database) table(ctx context.Context, query string) ([]byte, error) {
	rows, err := db.query(ctx, query)
	if err != nil {
		return nil, db.fail(err, sqliteError)
	}
	defer rows.Close()
	vals := make([]driver.Value, len(rows.Columns()))
	buf := new(strings.Builder)
	for {
		err := rows.Next(vals)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, db.fail(err, sqliteError)
		}
		for i, v := range vals {
			if i != 0 {
				buf.WriteByte('|')
			}
			buf.Write(columnText(v))
		}
		buf.WriteByte('\n')
	}
	db.ok()
	return []byte(buf.String()), nil
}

func (db *database) close() error {
	if db.closed {
		return prog.Errnof(sqliteMisuse, "database is closed")
	}
	// Like sqlite3_close_v2: statements still open become unusable.
	for st := range db.stmts {
		st.finalize()
	}
	db.closed = true
	if err := db.conn.Close(); err != nil {
		return errnoOf(err, sqliteError)
	}
	return nil
}

func dbArg(args []prog.Value, i int) (*database, error) {
	db, ok := prog.ResArg[*database](args, i)
	if !ok {
		return nil, prog.Errnof(sqliteMisuse, "NULL database")
	}
	if db.closed {
		return nil, prog.Errnof(sqliteMisuse, "database is closed")
	}
	return db, nil
}

var (
	versionOnce sync.Once
	version     string
)

// libVersion asks the linked library for its version ("3.50.4").
func libVersion() string {
	versionOnce.Do(func() {
		db, err := openDatabase(":memory:")
		if err != nil {
			return
		}
		defer db.close()
		out, err := db.table(context.Background(), "SELECT sqlite_version()")
		if err == nil {
			version = strings.TrimSpace(string(out))
		}
	})
	return version
}

func versionNumber(v string) int64 {
	var major, minor, patch int64
	fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch)
	return major*1000000 + minor*1000 + patch
}

var dbOps = []*prog.Op{
	{
		Name: "sqlite3_open",
		Doc:  "opens a database file (':memory:' for an in-memory database)",
		Args: []prog.Field{{Name: "filename", Type: prog.Buffer}},
		Ret:  prog.Handle(dbRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			name := string(prog.BufArg(args, 0))
			if args[0] == nil {
				return nil, prog.Errnof(sqliteMisuse, "NULL file name")
			}
			if name != ":memory:" && name != "" {
				path, err := env.Path(name)
				if err != nil {
					return nil, prog.Errnof(sqliteCantOpen, "%v", err)
				}
				name = path
			}
			db, err := openDatabase(name)
			if err != nil {
				return nil, err
			}
			return db, nil
		},
	},
	{
		Name:    "sqlite3_close",
		Doc:     "closes the database, open statements are finalized",
		Args:    []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, ok := prog.ResArg[*database](args, 0)
			if !ok {
				// Closing NULL is a harmless no-op.
				return int64(sqliteOK), nil
			}
			if err := db.close(); err != nil {
				return nil, err
			}
			return int64(sqliteOK), nil
		},
	},
	{
		Name: "sqlite3_exec",
		Doc:  "runs one or more SQL statements, results are discarded",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}, {Name: "sql", Type: prog.Buffer}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, err := dbArg(args, 0)
			if err != nil {
				return nil, err
			}
			if err := db.exec(env.Context(), string(prog.BufArg(args, 1))); err != nil {
				return nil, err
			}
			return int64(sqliteOK), nil
		},
	},
	{
		Name: "sqlite3_get_table",
		Doc:  "runs a query and returns the result rows as text, one row per line, columns separated by '|'",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}, {Name: "sql", Type: prog.Buffer}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, err := dbArg(args, 0)
			if err != nil {
				return nil, err
			}
			return db.table(env.Context(), string(prog.BufArg(args, 1)))
		},
	},
	{
		Name: "sqlite3_changes",
		Doc:  "returns the number of rows changed by the last completed statement",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, err := dbArg(args, 0)
			if err != nil {
				return nil, err
			}
			return db.changes, nil
		},
	},
	{
		Name: "sqlite3_last_insert_rowid",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, err := dbArg(args, 0)
			if err != nil {
				return nil, err
			}
			return db.lastID, nil
		},
	},
	{
		Name: "sqlite3_errcode",
		Doc:  "returns the result code of the last failed call on the database (SQLITE_OK after a success)",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, ok := prog.ResArg[*database](args, 0)
			if !ok {
				return int64(sqliteNoMem), nil
			}
			return int64(db.errcode), nil
		},
	},
	{
		Name: "sqlite3_errmsg",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, ok := prog.ResArg[*database](args, 0)
			if !ok {
				return []byte("out of memory"), nil
			}
			if db.errcode == sqliteOK {
				return []byte("not an error"), nil
			}
			return []byte(db.errmsg), nil
		},
	},
	{
		Name: "sqlite3_libversion",
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return []byte(libVersion()), nil
		},
	},
	{
		Name: "sqlite3_libversion_number",
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return versionNumber(libVersion()), nil
		},
	},
	{
		Name: "sqlite3_complete",
		Doc:  "returns 1 if sql ends with a complete statement (a semicolon outside of strings and comments)",
		Args: []prog.Field{{Name: "sql", Type: prog.Buffer}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return prog.BoolInt(complete(prog.BufArg(args, 0))), nil
		},
	},
}

// complete is a simplified sqlite3_complete: it tracks quotes and comments, not triggers.
func complete(sql []byte) bool {
	done := false
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case ';':
			done = true
		case ' ', '\t', '\n', '\r', '\f':
		case '\'', '"', '`':
			end := strings.IndexByte(string(sql[i+1:]), c)
			if end == -1 {
				return false
			}
			i += end + 1
			done = false
		case '[':
			end := strings.IndexByte(string(sql[i+1:]), ']')
			if end == -1 {
				return false
			}
			i += end + 1
			done = false
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				end := strings.IndexByte(string(sql[i:]), '\n')
				if end == -1 {
					return done
				}
				i += end
				continue
			}
			done = false
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				end := strings.Index(string(sql[i+2:]), "*/")
				if end == -1 {
					return false
				}
				i += end + 3
				continue
			}
			done = false
		default:
			done = false
		}
	}
	return done
}
