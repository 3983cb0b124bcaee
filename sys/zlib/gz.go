// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/seqfuzz/seqfuzz/prog"
)

// gzFile is a file opened with gzopen. Files that are not gzip-compressed are read transparently.
type gzFile struct {
	file  *os.File
	w     *gzip.Writer
	br    *bufio.Reader
	r     io.Reader
	write bool
	eof   bool
}

func gzOpen(path, mode string) (*gzFile, error) {
	level := gzip.DefaultCompression
	flags := -1
	for _, c := range mode {
		switch {
		case c == 'r':
			flags = os.O_RDONLY
		case c == 'w':
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		case c == 'a':
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		case c >= '0' && c <= '9':
			level = int(c - '0')
		}
	}
	if flags == -1 {
		return nil, errStream("bad mode %q", mode)
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, prog.Errnof(zErrno, "%v", err)
	}
	f := &gzFile{file: file, write: flags != os.O_RDONLY}
	if f.write {
		if f.w, err = gzip.NewWriterLevel(file, level); err != nil {
			file.Close()
			return nil, errStream("%v", err)
		}
	} else {
		f.br = bufio.NewReader(file)
	}
	return f, nil
}

func (f *gzFile) reader() (io.Reader, error) {
	if f.r != nil {
		return f.r, nil
	}
	magic, _ := f.br.Peek(2)
	if !bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		f.r = f.br
		return f.r, nil
	}
	gr, err := gzip.NewReader(f.br)
	if err != nil {
		return nil, prog.Errnof(zDataError, "%v", err)
	}
	f.r = gr
	return f.r, nil
}

func (f *gzFile) read(n int64) ([]byte, error) {
	if f.write {
		return nil, errStream("file is open for writing")
	}
	if n < 0 || n > maxBufferBytes {
		return nil, errStream("bad length %v", n)
	}
	r, err := f.reader()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		f.eof = true
	default:
		return nil, prog.Errnof(zDataError, "%v", err)
	}
	return buf[:got], nil
}

func (f *gzFile) writeData(data []byte) (int64, error) {
	if !f.write {
		return 0, errStream("file is open for reading")
	}
	n, err := f.w.Write(data)
	if err != nil {
		return 0, prog.Errnof(zErrno, "%v", err)
	}
	return int64(n), nil
}

func (f *gzFile) close() error {
	var err error
	if f.w != nil {
		err = f.w.Close()
	}
	if gr, ok := f.r.(*gzip.Reader); ok {
		gr.Close()
	}
	if err1 := f.file.Close(); err == nil {
		err = err1
	}
	if err != nil {
		return prog.Errnof(zErrno, "%v", err)
	}
	return nil
}

func gzArg(args []prog.Value) (*gzFile, error) {
	f, ok := prog.ResArg[*gzFile](args, 0)
	if !ok {
		return nil, errStream("NULL file")
	}
	return f, nil
}

var gzOps = []*prog.Op{
	{
		Name: "gzopen",
		Doc:  "opens a gzip file; mode is 'rb', 'wb', 'ab' optionally with a level digit ('wb9')",
		Args: []prog.Field{{Name: "path", Type: prog.Buffer}, {Name: "mode", Type: prog.Buffer}},
		Ret:  prog.Handle(gzFileRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			path, err := env.Path(cString(prog.BufArg(args, 0)))
			if err != nil {
				return nil, prog.Errnof(zErrno, "%v", err)
			}
			f, err := gzOpen(path, cString(prog.BufArg(args, 1)))
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	},
	{
		Name: "gzwrite",
		Doc:  "compresses and writes the first len bytes of buf, returns the number of bytes written or 0 on error",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(gzFileRes)}, {Name: "buf", Type: prog.Buffer}, {Name: "len", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := gzArg(args)
			if err != nil {
				return int64(0), err
			}
			return f.writeData(prefix(prog.BufArg(args, 1), prog.IntArg(args, 2)))
		},
	},
	{
		Name: "gzputs",
		Doc:  "writes the string s (up to the first NUL), returns the number of characters written or -1",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(gzFileRes)}, {Name: "s", Type: prog.Buffer}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := gzArg(args)
			if err != nil {
				return int64(-1), err
			}
			n, err := f.writeData([]byte(cString(prog.BufArg(args, 1))))
			if err != nil {
				return int64(-1), err
			}
			return n, nil
		},
	},
	{
		Name: "gzread",
		Doc:  "reads and decompresses up to len bytes",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(gzFileRes)}, {Name: "len", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := gzArg(args)
			if err != nil {
				return nil, err
			}
			return f.read(prog.IntArg(args, 1))
		},
	},
	{
		Name: "gzeof",
		Doc:  "returns 1 once a read went past the end of the file",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(gzFileRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := gzArg(args)
			if err != nil {
				return int64(0), nil
			}
			return prog.BoolInt(f.eof), nil
		},
	},
	{
		Name:    "gzclose",
		Doc:     "flushes and closes the file",
		Args:    []prog.Field{{Name: "file", Type: prog.Handle(gzFileRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := gzArg(args)
			if err != nil {
				return nil, err
			}
			if err := f.close(); err != nil {
				return nil, err
			}
			return int64(zOK), nil
		},
	},
}

// cString returns data up to the first NUL byte.
func cString(data []byte) string {
	s := string(data)
	if i := strings.IndexByte(s, 0); i != -1 {
		s = s[:i]
	}
	return s
}
