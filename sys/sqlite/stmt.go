// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sqlite

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/seqfuzz/seqfuzz/prog"
)

type stmtState int

const (
	stmtReady stmtState = iota
	stmtRunning
	stmtDone
	stmtFailed
)

// statement is a sqlite3_stmt*. The driver executes the statement lazily on the first
// sqlite3_step, later steps pull rows one at a time.
type statement struct {
	db     *database
	sql    string
	stmt   driver.Stmt
	params []string
	binds  map[int]driver.Value
	rows   driver.Rows
	cols   []string
	row    []driver.Value
	state  stmtState
	zombie bool
	freed  bool
}

func (db *database) prepare(ctx context.Context, sql string) (*statement, error) {
	sql = firstStatement(sql)
	if strings.TrimSpace(sql) == "" {
		// Empty input compiles to a NULL statement.
		db.ok()
		return nil, nil
	}
	stmt, err := db.conn.Prepare(sql)
	if err != nil {
		return nil, db.fail(err, sqliteError)
	}
	st := &statement{
		db:     db,
		sql:    sql,
		stmt:   stmt,
		params: paramNames(sql),
		binds:  make(map[int]driver.Value),
	}
	// The driver compiles lazily. Compile once without running the statement so that
	// syntax errors and missing tables are reported here.
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN") {
		if err := db.explain(ctx, sql, st.args()); err != nil {
			stmt.Close()
			return nil, db.fail(err, sqliteError)
		}
	}
	db.stmts[st] = true
	db.ok()
	return st, nil
}

func (st *statement) bind(idx int64, v driver.Value) error {
	if err := st.usable(); err != nil {
		return err
	}
	if st.state == stmtRunning {
		return st.db.fail(prog.Errnof(sqliteMisuse, "bind on a running statement"), sqliteMisuse)
	}
	if idx < 1 || idx > int64(len(st.params)) {
		return st.db.fail(prog.Errnof(sqliteRange, "column index out of range"), sqliteRange)
	}
	st.binds[int(idx)] = v
	st.db.ok()
	return nil
}

func (st *statement) usable() error {
	if st.zombie || st.freed {
		return prog.Errnof(sqliteMisuse, "statement is finalized")
	}
	return nil
}

func (st *statement) args() []driver.NamedValue {
	args := make([]driver.NamedValue, len(st.params))
	for i, name := range st.params {
		args[i] = driver.NamedValue{Name: name, Ordinal: i + 1, Value: st.binds[i+1]}
	}
	return args
}

func (st *statement) step(ctx context.Context) (int, error) {
	if err := st.usable(); err != nil {
		return 0, err
	}
	switch st.state {
	case stmtDone, stmtFailed:
		// Stepping a finished statement resets it automatically.
		st.reset()
	}
	if st.state == stmtReady {
		queryer, ok := st.stmt.(driver.StmtQueryContext)
		if !ok {
			return 0, st.db.fail(fmt.Errorf("statement does not support query"), sqliteError)
		}
		rows, err := queryer.QueryContext(ctx, st.args())
		if err != nil {
			st.state = stmtFailed
			return 0, st.db.fail(err, sqliteError)
		}
		st.rows = rows
		st.cols = rows.Columns()
		st.row = make([]driver.Value, len(st.cols))
		st.state = stmtRunning
	}
	err := st.rows.Next(st.row)
	if err == io.EOF {
		st.closeRows()
		st.state = stmtDone
		st.db.refreshCounters(ctx)
		st.db.ok()
		return sqliteDone, nil
	}
	if err != nil {
		st.closeRows()
		st.state = stmtFailed
		return 0, st.db.fail(err, sqliteError)
	}
	st.db.ok()
	return sqliteRow, nil
}

func (st *statement) closeRows() {
	if st.rows != nil {
		st.rows.Close()
		st.rows = nil
	}
	st.row = nil
}

func (st *statement) reset() {
	st.closeRows()
	st.state = stmtReady
}

func (st *statement) finalize() {
	st.closeRows()
	st.stmt.Close()
	delete(st.db.stmts, st)
	st.zombie = true
}

// column returns the value of column i of the current row, nil if there is none.
func (st *statement) column(i int64) driver.Value {
	if st.row == nil || i < 0 || i >= int64(len(st.row)) {
		return nil
	}
	return st.row[i]
}

func columnType(v driver.Value) int64 {
	switch v.(type) {
	case int64, bool:
		return sqliteInteger
	case float64:
		return sqliteFloat
	case string, time.Time:
		return sqliteText
	case []byte:
		return sqliteBlob
	}
	return sqliteNull
}

func columnText(v driver.Value) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return []byte(strconv.FormatInt(x, 10))
	case bool:
		return []byte(strconv.FormatInt(prog.BoolInt(x), 10))
	case float64:
		return []byte(formatReal(x))
	case string:
		return []byte(x)
	case []byte:
		return x
	case time.Time:
		return []byte(x.Format("2006-01-02 15:04:05"))
	}
	return []byte(fmt.Sprint(v))
}

// formatReal renders a REAL the way sqlite prints it: integral values keep a ".0".
func formatReal(v float64) string {
	if math.IsInf(v, 0) {
		if v > 0 {
			return "Inf"
		}
		return "-Inf"
	}
	s := strconv.FormatFloat(v, 'g', 15, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func columnInt(v driver.Value) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case bool:
		return prog.BoolInt(x)
	case float64:
		if x >= math.MaxInt64 {
			return math.MaxInt64
		}
		if x <= math.MinInt64 {
			return math.MinInt64
		}
		return int64(x)
	case string:
		return textToInt(x)
	case []byte:
		return textToInt(string(x))
	}
	return 0
}

// textToInt converts the longest numeric prefix of s, 0 if there is none.
func textToInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+') ||
		s[end] == '.' || s[end] == 'e' || s[end] == 'E') {
		end++
	}
	for ; end > 0; end-- {
		if v, err := strconv.ParseInt(s[:end], 10, 64); err == nil {
			return v
		}
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return columnInt(f)
		}
	}
	return 0
}

// firstStatement cuts sql after the first complete statement, the tail is ignored.
func firstStatement(sql string) string {
	for i := 1; i <= len(sql); i++ {
		if sql[i-1] == ';' && complete([]byte(sql[:i])) {
			return sql[:i]
		}
	}
	return sql
}

// paramNames returns the host parameter slots of sql in order: "" for anonymous '?' and
// numbered '?NNN' parameters, the name without its prefix for ':x', '@x' and '$x'.
func paramNames(sql string) []string {
	var names []string
	slot := make(map[string]int)
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			if end := strings.IndexByte(sql[i+1:], c); end != -1 {
				i += end + 1
			} else {
				i = len(sql)
			}
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				if end := strings.IndexByte(sql[i:], '\n'); end != -1 {
					i += end
				} else {
					i = len(sql)
				}
			}
		case '?':
			j := i + 1
			for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
				j++
			}
			if j == i+1 {
				names = append(names, "")
			} else if n, err := strconv.Atoi(sql[i+1 : j]); err == nil {
				for len(names) < n {
					names = append(names, "")
				}
			}
			i = j - 1
		case ':', '@', '$':
			j := i + 1
			for j < len(sql) && (sql[j] == '_' || sql[j] >= '0' && sql[j] <= '9' ||
				sql[j] >= 'a' && sql[j] <= 'z' || sql[j] >= 'A' && sql[j] <= 'Z') {
				j++
			}
			if name := sql[i+1 : j]; name != "" {
				if _, ok := slot[name]; !ok {
					names = append(names, name)
					slot[name] = len(names)
				}
			}
			i = j - 1
		}
	}
	return names
}

func stmtArg(args []prog.Value, i int) (*statement, error) {
	st, ok := prog.ResArg[*statement](args, i)
	if !ok {
		return nil, prog.Errnof(sqliteMisuse, "NULL statement")
	}
	if err := st.usable(); err != nil {
		return nil, err
	}
	return st, nil
}

func bindOp(name, doc string, val *prog.Type, conv func(prog.Value) driver.Value) *prog.Op {
	op := &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}, {Name: "idx", Type: prog.Int}},
		Ret:  prog.Int,
	}
	if val != nil {
		op.Args = append(op.Args, prog.Field{Name: "value", Type: val})
	}
	op.Fn = func(env prog.Env, args []prog.Value) (prog.Value, error) {
		st, err := stmtArg(args, 0)
		if err != nil {
			return nil, err
		}
		var v driver.Value
		if val != nil {
			v = conv(args[2])
		}
		if err := st.bind(prog.IntArg(args, 1), v); err != nil {
			return nil, err
		}
		return int64(sqliteOK), nil
	}
	return op
}

func columnOp(name, doc string, ret *prog.Type, fn func(st *statement, col int64) prog.Value) *prog.Op {
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}, {Name: "col", Type: prog.Int}},
		Ret:  ret,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(st, prog.IntArg(args, 1)), nil
		},
	}
}

var stmtOps = []*prog.Op{
	{
		Name: "sqlite3_prepare_v2",
		Doc:  "compiles the first statement of sql, returns NULL for empty input",
		Args: []prog.Field{{Name: "db", Type: prog.Handle(dbRes)}, {Name: "sql", Type: prog.Buffer}},
		Ret:  prog.Handle(stmtRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			db, err := dbArg(args, 0)
			if err != nil {
				return nil, err
			}
			if args[1] == nil {
				return nil, db.fail(prog.Errnof(sqliteMisuse, "NULL sql"), sqliteMisuse)
			}
			st, err := db.prepare(env.Context(), string(prog.BufArg(args, 1)))
			if err != nil || st == nil {
				return nil, err
			}
			return st, nil
		},
	},
	bindOp("sqlite3_bind_int", "binds an integer to parameter idx (1-based)", prog.Int,
		func(v prog.Value) driver.Value { return v.(int64) }),
	bindOp("sqlite3_bind_text", "binds text to parameter idx, NULL binds SQL NULL", prog.Buffer,
		func(v prog.Value) driver.Value {
			if v == nil {
				return nil
			}
			return string(v.([]byte))
		}),
	bindOp("sqlite3_bind_blob", "binds a blob to parameter idx, NULL binds SQL NULL", prog.Buffer,
		func(v prog.Value) driver.Value {
			if v == nil {
				return nil
			}
			return append([]byte{}, v.([]byte)...)
		}),
	bindOp("sqlite3_bind_null", "binds SQL NULL to parameter idx", nil, nil),
	{
		Name: "sqlite3_bind_parameter_count",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(len(st.params)), nil
		},
	},
	{
		Name: "sqlite3_step",
		Doc:  "runs the statement until the next row (SQLITE_ROW) or the end (SQLITE_DONE)",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			code, err := st.step(env.Context())
			if err != nil {
				return nil, err
			}
			return int64(code), nil
		},
	},
	{
		Name: "sqlite3_column_count",
		Doc:  "returns the number of result columns (known after the first step)",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(len(st.cols)), nil
		},
	},
	columnOp("sqlite3_column_int", "returns column col of the current row converted to an integer", prog.Int,
		func(st *statement, col int64) prog.Value { return columnInt(st.column(col)) }),
	columnOp("sqlite3_column_text", "returns column col of the current row as text (NULL for SQL NULL)", prog.Buffer,
		func(st *statement, col int64) prog.Value { return columnText(st.column(col)) }),
	columnOp("sqlite3_column_blob", "returns column col of the current row as bytes", prog.Buffer,
		func(st *statement, col int64) prog.Value { return columnText(st.column(col)) }),
	columnOp("sqlite3_column_bytes", "returns the size of column col in bytes", prog.Int,
		func(st *statement, col int64) prog.Value { return int64(len(columnText(st.column(col)))) }),
	columnOp("sqlite3_column_type", "returns the datatype code of column col (SQLITE_INTEGER ... SQLITE_NULL)", prog.Int,
		func(st *statement, col int64) prog.Value { return columnType(st.column(col)) }),
	columnOp("sqlite3_column_name", "returns the name of result column col", prog.Buffer,
		func(st *statement, col int64) prog.Value {
			if col < 0 || col >= int64(len(st.cols)) {
				return nil
			}
			return []byte(st.cols[col])
		}),
	{
		Name: "sqlite3_reset",
		Doc:  "rewinds the statement, bindings are kept",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			st.reset()
			return int64(sqliteOK), nil
		},
	},
	{
		Name: "sqlite3_clear_bindings",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			clear(st.binds)
			return int64(sqliteOK), nil
		},
	},
	{
		Name:    "sqlite3_finalize",
		Doc:     "destroys the statement, NULL is a no-op",
		Args:    []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, ok := prog.ResArg[*statement](args, 0)
			if !ok {
				return int64(sqliteOK), nil
			}
			if st.freed {
				return nil, prog.Errnof(sqliteMisuse, "statement finalized twice")
			}
			st.freed = true
			if !st.zombie {
				st.finalize()
			}
			return int64(sqliteOK), nil
		},
	},
	{
		Name: "sqlite3_sql",
		Doc:  "returns the text of the prepared statement",
		Args: []prog.Field{{Name: "stmt", Type: prog.Handle(stmtRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			st, err := stmtArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(st.sql), nil
		},
	},
}
