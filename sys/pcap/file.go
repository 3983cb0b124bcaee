// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package pcap

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/seqfuzz/seqfuzz/prog"
)

// cFile is a stdio FILE* used to craft savefiles byte by byte.
type cFile struct {
	f      *os.File
	closed bool
}

func openFlags(mode string) (int, bool) {
	mode = strings.ReplaceAll(mode, "b", "")
	switch mode {
	case "r":
		return os.O_RDONLY, true
	case "r+":
		return os.O_RDWR, true
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, true
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, true
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true
	}
	return 0, false
}

func fileArg(args []prog.Value, i int) (*cFile, error) {
	f, ok := prog.ResArg[*cFile](args, i)
	if !ok {
		return nil, prog.Errnof(pcapError, "NULL FILE")
	}
	if f.closed {
		return nil, prog.Errnof(pcapError, "FILE is closed")
	}
	return f, nil
}

var fileOps = []*prog.Op{
	{
		Name: "fopen",
		Doc:  "opens a file with a stdio mode (r, w, a, optionally with b and +)",
		Args: []prog.Field{{Name: "path", Type: prog.Buffer}, {Name: "mode", Type: prog.Buffer}},
		Ret:  prog.Handle(fileRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			flags, ok := openFlags(string(prog.BufArg(args, 1)))
			if !ok {
				return nil, prog.Errnof(pcapError, "bad mode %q", prog.BufArg(args, 1))
			}
			path, err := env.Path(string(prog.BufArg(args, 0)))
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			f, err := os.OpenFile(path, flags, 0644)
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return &cFile{f: f}, nil
		},
	},
	{
		Name: "fwrite",
		Doc:  "writes buf and returns the number of bytes written",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(fileRes)}, {Name: "buf", Type: prog.Buffer}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := fileArg(args, 0)
			if err != nil {
				return nil, err
			}
			n, err := f.f.Write(prog.BufArg(args, 1))
			if err != nil {
				return int64(n), prog.Errnof(pcapError, "%v", err)
			}
			return int64(n), nil
		},
	},
	{
		Name: "fread",
		Doc:  "reads up to n bytes, an empty buffer at the end of the file",
		Args: []prog.Field{{Name: "file", Type: prog.Handle(fileRes)}, {Name: "n", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := fileArg(args, 0)
			if err != nil {
				return nil, err
			}
			n := prog.IntArg(args, 1)
			if n < 0 || n > 64<<20 {
				return nil, prog.Errnof(pcapError, "bad size %v", n)
			}
			buf := make([]byte, n)
			got, err := io.ReadFull(f.f, buf)
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return buf[:got], nil
		},
	},
	{
		Name:    "fclose",
		Args:    []prog.Field{{Name: "file", Type: prog.Handle(fileRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := fileArg(args, 0)
			if err != nil {
				return nil, err
			}
			f.closed = true
			if err := f.f.Close(); err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return int64(0), nil
		},
	},
}
