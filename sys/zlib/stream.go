// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/seqfuzz/seqfuzz/prog"
)

type format int

const (
	formatZlib format = iota
	formatRaw
	formatGzip
	formatAuto
)

// parseWindowBits maps a windowBits argument to the stream format.
func parseWindowBits(bits int64, inflate bool) (format, error) {
	switch {
	case bits == 0 && inflate:
		return formatZlib, nil
	case bits >= 8 && bits <= maxWindowBits:
		return formatZlib, nil
	case bits >= -maxWindowBits && bits <= -8:
		return formatRaw, nil
	case bits >= 16+8 && bits <= 16+maxWindowBits:
		return formatGzip, nil
	case inflate && bits >= 32+8 && bits <= 32+maxWindowBits:
		return formatAuto, nil
	}
	return 0, errStream("invalid windowBits %v", bits)
}

// flateLevel checks a compression level and strategy and returns the flate level.
func flateLevel(level, strategy int64) (int, error) {
	if level < -1 || level > 9 {
		return 0, errStream("invalid level %v", level)
	}
	if strategy < 0 || strategy > zFixed {
		return 0, errStream("invalid strategy %v", strategy)
	}
	if strategy == zHuffmanOnly {
		return flate.HuffmanOnly, nil
	}
	return int(level), nil
}

// deflateStream is a z_stream set up with deflateInit. Compressed bytes accumulate in out
// until the program fetches them with zstream_out.
type deflateStream struct {
	format   format
	level    int
	w        io.WriteCloser
	out      bytes.Buffer
	totalIn  int64
	totalOut int64
	finished bool
}

func newDeflateStream(f format, level int) (*deflateStream, error) {
	s := &deflateStream{format: f, level: level}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *deflateStream) reset() error {
	var err error
	s.out.Reset()
	s.totalIn, s.totalOut, s.finished = 0, 0, false
	sink := writerFunc(func(p []byte) (int, error) {
		s.totalOut += int64(len(p))
		return s.out.Write(p)
	})
	switch s.format {
	case formatZlib:
		s.w, err = zlib.NewWriterLevel(sink, s.level)
	case formatRaw:
		s.w, err = flate.NewWriter(sink, s.level)
	case formatGzip:
		s.w, err = gzip.NewWriterLevel(sink, s.level)
	}
	if err != nil {
		return errStream("%v", err)
	}
	return nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

type flusher interface {
	Flush() error
}

func (s *deflateStream) deflate(input []byte, flush int64) (int64, error) {
	if flush < zNoFlush || flush > zBlock {
		return 0, errStream("invalid flush %v", flush)
	}
	if s.finished {
		return 0, errStream("deflate after Z_FINISH")
	}
	if _, err := s.w.Write(input); err != nil {
		return 0, errStream("%v", err)
	}
	s.totalIn += int64(len(input))
	switch flush {
	case zNoFlush:
		return zOK, nil
	case zFinish:
		if err := s.w.Close(); err != nil {
			return 0, errStream("%v", err)
		}
		s.finished = true
		return zStreamEnd, nil
	default:
		if err := s.w.(flusher).Flush(); err != nil {
			return 0, errStream("%v", err)
		}
		return zOK, nil
	}
}

// inflateStream is a z_stream set up with inflateInit. Input accumulates across inflate calls;
// every call decodes the whole input again and delivers only output not produced before.
type inflateStream struct {
	format   format
	in       []byte
	produced int
	out      bytes.Buffer
	totalIn  int64
	totalOut int64
	finished bool
	broken   error
}

func (s *inflateStream) reset() {
	*s = inflateStream{format: s.format}
}

func (s *inflateStream) inflate(input []byte, flush int64) (int64, error) {
	if flush < zNoFlush || flush > zBlock {
		return 0, errStream("invalid flush %v", flush)
	}
	if s.broken != nil {
		return 0, s.broken
	}
	if s.finished {
		return zStreamEnd, nil
	}
	s.in = append(s.in, input...)
	data, used, err := decode(s.format, s.in)
	fresh := 0
	if len(data) > s.produced {
		fresh = len(data) - s.produced
		s.out.Write(data[s.produced:])
		s.produced = len(data)
		s.totalOut += int64(fresh)
	}
	switch {
	case err == nil:
		s.finished = true
		s.totalIn = int64(used)
		return zStreamEnd, nil
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		s.totalIn = int64(len(s.in))
		if flush == zFinish || len(input) == 0 && fresh == 0 {
			return zBufError, prog.Errnof(zBufError, "need more input")
		}
		return zOK, nil
	default:
		s.broken = prog.Errnof(zDataError, "%v", err)
		return 0, s.broken
	}
}

// decode decompresses data and returns the output, the number of consumed input bytes
// and the decoding error (io.ErrUnexpectedEOF for truncated input).
func decode(f format, data []byte) ([]byte, int, error) {
	if f == formatAuto {
		f = formatZlib
		if len(data) > 0 && data[0] == 0x1f {
			f = formatGzip
		}
	}
	br := bytes.NewReader(data)
	var r io.Reader
	switch f {
	case formatZlib:
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, 0, err
		}
		r = zr
	case formatRaw:
		r = flate.NewReader(br)
	case formatGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, 0, err
		}
		gr.Multistream(false)
		r = gr
	}
	out, err := io.ReadAll(io.LimitReader(r, maxBufferBytes+1))
	if err == nil && len(out) > maxBufferBytes {
		err = fmt.Errorf("output exceeds %v bytes", maxBufferBytes)
	}
	return out, len(data) - br.Len(), err
}

// compressBound is an upper bound of the compress output size for n input bytes
// (stored block headers, the final empty block and the zlib wrapper).
func compressBound(n int64) int64 {
	return n + n>>11 + n>>14 + 24
}

func deflateBound(f format, n int64) int64 {
	switch f {
	case formatRaw:
		return compressBound(n) - 6
	case formatGzip:
		return compressBound(n) + 12
	}
	return compressBound(n)
}

func compress(src []byte, level int) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := zlib.NewWriterLevel(buf, level)
	if err != nil {
		return nil, errStream("%v", err)
	}
	w.Write(src)
	if err := w.Close(); err != nil {
		return nil, errStream("%v", err)
	}
	return buf.Bytes(), nil
}

func destSize(n int64) (int64, error) {
	if n < 0 || n > maxBufferBytes {
		return 0, prog.Errnof(zBufError, "bad destination size %v", n)
	}
	return n, nil
}

var streamOps = []*prog.Op{
	{
		Name: "compressBound",
		Doc:  "returns the maximum compress output size for sourceLen bytes",
		Args: []prog.Field{{Name: "sourceLen", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			n := prog.IntArg(args, 0)
			if n < 0 {
				return nil, errStream("negative length %v", n)
			}
			return compressBound(n), nil
		},
	},
	{
		Name: "compress",
		Doc:  "compresses src into at most destLen bytes of zlib data",
		Args: []prog.Field{{Name: "src", Type: prog.Buffer}, {Name: "destLen", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return compressOp(prog.BufArg(args, 0), prog.IntArg(args, 1), -1)
		},
	},
	{
		Name: "compress2",
		Doc:  "like compress with an explicit level",
		Args: []prog.Field{{Name: "src", Type: prog.Buffer}, {Name: "destLen", Type: prog.Int}, {Name: "level", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return compressOp(prog.BufArg(args, 0), prog.IntArg(args, 1), prog.IntArg(args, 2))
		},
	},
	{
		Name: "uncompress",
		Doc:  "decompresses zlib data src into at most destLen bytes",
		Args: []prog.Field{{Name: "src", Type: prog.Buffer}, {Name: "destLen", Type: prog.Int}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			limit, err := destSize(prog.IntArg(args, 1))
			if err != nil {
				return nil, err
			}
			out, _, err := decode(formatZlib, prog.BufArg(args, 0))
			if err != nil {
				return nil, prog.Errnof(zDataError, "%v", err)
			}
			if int64(len(out)) > limit {
				return nil, prog.Errnof(zBufError, "output %v bytes does not fit %v", len(out), limit)
			}
			return out, nil
		},
	},
	{
		Name: "deflateInit",
		Doc:  "creates a zlib-format compression stream",
		Args: []prog.Field{{Name: "level", Type: prog.Int}},
		Ret:  prog.Handle(deflateStreamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			level, err := flateLevel(prog.IntArg(args, 0), 0)
			if err != nil {
				return nil, err
			}
			return newDeflateStream(formatZlib, level)
		},
	},
	{
		Name: "deflateInit2",
		Doc:  "creates a compression stream with explicit method, windowBits, memLevel and strategy",
		Args: []prog.Field{
			{Name: "level", Type: prog.Int},
			{Name: "method", Type: prog.Int},
			{Name: "windowBits", Type: prog.Int},
			{Name: "memLevel", Type: prog.Int},
			{Name: "strategy", Type: prog.Int},
		},
		Ret: prog.Handle(deflateStreamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if method := prog.IntArg(args, 1); method != zDeflated {
				return nil, errStream("invalid method %v", method)
			}
			if mem := prog.IntArg(args, 3); mem < 1 || mem > maxMemLevel {
				return nil, errStream("invalid memLevel %v", mem)
			}
			f, err := parseWindowBits(prog.IntArg(args, 2), false)
			if err != nil {
				return nil, err
			}
			level, err := flateLevel(prog.IntArg(args, 0), prog.IntArg(args, 4))
			if err != nil {
				return nil, err
			}
			return newDeflateStream(f, level)
		},
	},
	{
		Name: "deflate",
		Doc:  "compresses input, flush is Z_NO_FLUSH, Z_SYNC_FLUSH, Z_FULL_FLUSH or Z_FINISH; returns Z_STREAM_END after Z_FINISH",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(deflateStreamRes)}, {Name: "input", Type: prog.Buffer}, {Name: "flush", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*deflateStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			return s.deflate(prog.BufArg(args, 1), prog.IntArg(args, 2))
		},
	},
	{
		Name: "deflateBound",
		Doc:  "returns the maximum output size of the stream for sourceLen input bytes",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(deflateStreamRes)}, {Name: "sourceLen", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f := formatZlib
			if s, ok := prog.ResArg[*deflateStream](args, 0); ok {
				f = s.format
			}
			n := prog.IntArg(args, 1)
			if n < 0 {
				return nil, errStream("negative length %v", n)
			}
			return deflateBound(f, n), nil
		},
	},
	{
		Name: "deflateReset",
		Doc:  "restarts the stream keeping its parameters",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(deflateStreamRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*deflateStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			if err := s.reset(); err != nil {
				return nil, err
			}
			return int64(zOK), nil
		},
	},
	{
		Name:    "deflateEnd",
		Doc:     "frees the stream",
		Args:    []prog.Field{{Name: "strm", Type: prog.Handle(deflateStreamRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*deflateStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			if !s.finished && s.totalIn != 0 {
				// The stream is freed anyway, like zlib does for a prematurely ended stream.
				return nil, prog.Errnof(zDataError, "stream freed before Z_FINISH")
			}
			return int64(zOK), nil
		},
	},
	{
		Name: "inflateInit",
		Doc:  "creates a zlib-format decompression stream",
		Ret:  prog.Handle(inflateStreamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return &inflateStream{format: formatZlib}, nil
		},
	},
	{
		Name: "inflateInit2",
		Doc:  "creates a decompression stream for the windowBits format",
		Args: []prog.Field{{Name: "windowBits", Type: prog.Int}},
		Ret:  prog.Handle(inflateStreamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			f, err := parseWindowBits(prog.IntArg(args, 0), true)
			if err != nil {
				return nil, err
			}
			return &inflateStream{format: f}, nil
		},
	},
	{
		Name: "inflate",
		Doc:  "decompresses input; returns Z_OK while more input is needed, Z_STREAM_END at the end of data",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(inflateStreamRes)}, {Name: "input", Type: prog.Buffer}, {Name: "flush", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*inflateStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			ret, err := s.inflate(prog.BufArg(args, 1), prog.IntArg(args, 2))
			if err != nil {
				return nil, err
			}
			return ret, nil
		},
	},
	{
		Name: "inflateReset",
		Doc:  "restarts the stream keeping its format",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(inflateStreamRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*inflateStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			s.reset()
			return int64(zOK), nil
		},
	},
	{
		Name:    "inflateEnd",
		Doc:     "frees the stream",
		Args:    []prog.Field{{Name: "strm", Type: prog.Handle(inflateStreamRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if _, ok := prog.ResArg[*inflateStream](args, 0); !ok {
				return nil, errStream("NULL stream")
			}
			return int64(zOK), nil
		},
	},
	{
		Name: "inflateBackInit",
		Doc:  "creates a raw deflate decompression stream driven by input/output callbacks",
		Args: []prog.Field{{Name: "windowBits", Type: prog.Int}},
		Ret:  prog.Handle(inflateBackRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if bits := prog.IntArg(args, 0); bits < 8 || bits > maxWindowBits {
				return nil, errStream("invalid windowBits %v", bits)
			}
			return new(backStream), nil
		},
	},
	{
		Name: "inflateBack",
		Doc: "decompresses raw deflate input; the input callback supplies chunk bytes per call " +
			"and the output callback receives at most chunk bytes per call",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(inflateBackRes)}, {Name: "input", Type: prog.Buffer}, {Name: "chunk", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*backStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			ret, err := s.inflateBack(prog.BufArg(args, 1), prog.IntArg(args, 2))
			if err != nil {
				return nil, err
			}
			return ret, nil
		},
	},
	{
		Name: "inflateBack_calls",
		Doc:  "returns how many times the input (which=0) or output (which=1) callback was invoked",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(inflateBackRes)}, {Name: "which", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*backStream](args, 0)
			if !ok {
				return nil, errStream("NULL stream")
			}
			if prog.IntArg(args, 1) == 0 {
				return s.inCalls, nil
			}
			return s.outCalls, nil
		},
	},
	{
		Name:    "inflateBackEnd",
		Doc:     "frees the stream",
		Args:    []prog.Field{{Name: "strm", Type: prog.Handle(inflateBackRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if _, ok := prog.ResArg[*backStream](args, 0); !ok {
				return nil, errStream("NULL stream")
			}
			return int64(zOK), nil
		},
	},
	{
		Name: "zstream_out",
		Doc:  "returns and drains the output produced by the stream so far",
		Args: []prog.Field{{Name: "strm", Type: prog.Any}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			var out *bytes.Buffer
			switch s := args[0].(type) {
			case *deflateStream:
				out = &s.out
			case *inflateStream:
				out = &s.out
			case *backStream:
				out = &s.out
			default:
				return nil, errStream("not a stream: %T", args[0])
			}
			data := append([]byte{}, out.Bytes()...)
			out.Reset()
			return data, nil
		},
	},
	{
		Name: "zstream_total_in",
		Doc:  "returns total_in of the stream",
		Args: []prog.Field{{Name: "strm", Type: prog.Any}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			in, _, err := totals(args[0])
			return in, err
		},
	},
	{
		Name: "zstream_total_out",
		Doc:  "returns total_out of the stream",
		Args: []prog.Field{{Name: "strm", Type: prog.Any}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			_, out, err := totals(args[0])
			return out, err
		},
	},
}

func compressOp(src []byte, destLen, level int64) (prog.Value, error) {
	limit, err := destSize(destLen)
	if err != nil {
		return nil, err
	}
	lvl, err := flateLevel(level, 0)
	if err != nil {
		return nil, err
	}
	out, err := compress(src, lvl)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, prog.Errnof(zBufError, "output %v bytes does not fit %v", len(out), limit)
	}
	return out, nil
}

func totals(v prog.Value) (int64, int64, error) {
	switch s := v.(type) {
	case *deflateStream:
		return s.totalIn, s.totalOut, nil
	case *inflateStream:
		return s.totalIn, s.totalOut, nil
	case *backStream:
		return s.totalIn, s.totalOut, nil
	}
	return 0, 0, errStream("not a stream: %T", v)
}
