// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package xz

import (
	"bytes"
	"hash/crc32"
	"hash/crc64"
	"io"

	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/ulikunitz/xz"
)

const maxOutput = 64 << 20

var (
	magic       = []byte("\xfd7zXZ\x00")
	footerMagic = []byte("YZ")
	// Dictionary sizes of presets 0-9.
	presetDict = [10]int{256 << 10, 1 << 20, 2 << 20, 4 << 20, 4 << 20, 8 << 20, 8 << 20, 16 << 20, 32 << 20, 64 << 20}
	ecma       = crc64.MakeTable(crc64.ECMA)
)

func writerConfig(preset, check int64) (xz.WriterConfig, error) {
	level := preset &^ presetExtreme
	if level < 0 || level > 9 {
		return xz.WriterConfig{}, prog.Errnof(lzmaOptionsError, "bad preset %v", preset)
	}
	cfg := xz.WriterConfig{DictCap: presetDict[level]}
	switch check {
	case checkNone:
		cfg.NoCheckSum = true
	case checkCRC32:
		cfg.CheckSum = xz.CRC32
	case checkCRC64:
		cfg.CheckSum = xz.CRC64
	case checkSHA256:
		cfg.CheckSum = xz.SHA256
	default:
		if check < 0 || check > checkIDMax {
			return xz.WriterConfig{}, prog.Errnof(lzmaProgError, "bad check id %v", check)
		}
		return xz.WriterConfig{}, prog.Errnof(lzmaUnsupportedCheck, "unsupported check %v", check)
	}
	return cfg, nil
}

func encode(data []byte, preset, check int64) ([]byte, error) {
	cfg, err := writerConfig(preset, check)
	if err != nil {
		return nil, err
	}
	out := new(bytes.Buffer)
	w, err := cfg.NewWriter(out)
	if err != nil {
		return nil, prog.Errnof(lzmaOptionsError, "%v", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, prog.Errnof(lzmaProgError, "%v", err)
	}
	if err := w.Close(); err != nil {
		return nil, prog.Errnof(lzmaProgError, "%v", err)
	}
	return out.Bytes(), nil
}

// decode decodes concatenated .xz streams. Input that does not start with the .xz magic is
// LZMA_FORMAT_ERROR, corrupt or truncated input is LZMA_DATA_ERROR.
func decode(data []byte) ([]byte, error) {
	if len(data) >= len(magic) && !bytes.HasPrefix(data, magic) ||
		len(data) < len(magic) && !bytes.HasPrefix(magic, data) {
		return nil, prog.Errnof(lzmaFormatError, "not an .xz stream")
	}
	if !hasFooter(data) {
		return nil, prog.Errnof(lzmaDataError, "truncated .xz stream")
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, prog.Errnof(lzmaDataError, "%v", err)
	}
	out, err := io.ReadAll(io.LimitReader(r, maxOutput+1))
	if err != nil {
		return nil, prog.Errnof(lzmaDataError, "%v", err)
	}
	if len(out) > maxOutput {
		return nil, prog.Errnof(lzmaBufError, "output exceeds %v bytes", maxOutput)
	}
	return out, nil
}

// hasFooter reports whether data ends with a stream footer once stream padding is dropped.
func hasFooter(data []byte) bool {
	const headerSize = 12
	for len(data) >= 4 && bytes.Equal(data[len(data)-4:], []byte{0, 0, 0, 0}) {
		data = data[:len(data)-4]
	}
	return len(data) >= 2*headerSize && bytes.HasSuffix(data, footerMagic)
}

// bufferBound is lzma_stream_buffer_bound: LZMA2 chunk headers, block header and check,
// stream header, footer and index.
func bufferBound(size int64) int64 {
	const chunk = 64 << 10
	lzma2 := size + (size+chunk-1)/chunk*3 + 1
	block := 1024 + (lzma2+3)&^3 + 64
	return block + 24 + 2*12
}

// stream is an lzma_stream with an encoder or a decoder attached.
type stream struct {
	encoder  bool
	cfg      xz.WriterConfig
	w        *xz.Writer
	out      bytes.Buffer
	in       bytes.Buffer
	totalIn  int64
	totalOut int64
	finished bool
	ended    bool
}

func newEncoder(preset, check int64) (*stream, error) {
	cfg, err := writerConfig(preset, check)
	if err != nil {
		return nil, err
	}
	s := &stream{encoder: true, cfg: cfg}
	if s.w, err = cfg.NewWriter(&s.out); err != nil {
		return nil, prog.Errnof(lzmaOptionsError, "%v", err)
	}
	return s, nil
}

// code runs the coder on input. The encoder emits output as ulikunitz/xz produces it,
// the decoder collects input and decodes it at LZMA_FINISH.
func (s *stream) code(input []byte, action int64) ([]byte, error) {
	if s.finished {
		return nil, prog.Errnof(lzmaProgError, "lzma_code after LZMA_FINISH")
	}
	if action != lzmaRun && action != lzmaFinish {
		return nil, prog.Errnof(lzmaProgError, "unsupported action %v", action)
	}
	s.totalIn += int64(len(input))
	var out []byte
	if s.encoder {
		if _, err := s.w.Write(input); err != nil {
			return nil, prog.Errnof(lzmaProgError, "%v", err)
		}
		if action == lzmaFinish {
			if err := s.w.Close(); err != nil {
				return nil, prog.Errnof(lzmaProgError, "%v", err)
			}
		}
		out = append([]byte{}, s.out.Bytes()...)
		s.out.Reset()
	} else {
		s.in.Write(input)
		if action == lzmaFinish {
			var err error
			if out, err = decode(s.in.Bytes()); err != nil {
				s.finished = true
				return nil, err
			}
		}
	}
	if action == lzmaFinish {
		s.finished = true
	}
	s.totalOut += int64(len(out))
	return out, nil
}

func streamArg(args []prog.Value, i int) (*stream, error) {
	s, ok := prog.ResArg[*stream](args, i)
	if !ok {
		return nil, prog.Errnof(lzmaProgError, "NULL lzma_stream")
	}
	if s.ended {
		return nil, prog.Errnof(lzmaProgError, "lzma_stream is ended")
	}
	return s, nil
}

func checkSupported(check int64) bool {
	switch check {
	case checkNone, checkCRC32, checkCRC64, checkSHA256:
		return true
	}
	return false
}

var bufferOps = []*prog.Op{
	{
		Name: "lzma_easy_encode",
		Doc:  "encodes data into a single .xz stream with a preset level and integrity check",
		Args: []prog.Field{
			{Name: "data", Type: prog.Buffer},
			{Name: "preset", Type: prog.Int},
			{Name: "check", Type: prog.Int},
		},
		Ret: prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			out, err := encode(prog.BufArg(args, 0), prog.IntArg(args, 1), prog.IntArg(args, 2))
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	},
	{
		Name: "lzma_stream_decode",
		Doc:  "decodes one or more concatenated .xz streams",
		Args: []prog.Field{{Name: "data", Type: prog.Buffer}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if args[0] == nil {
				return nil, prog.Errnof(lzmaProgError, "NULL input")
			}
			out, err := decode(prog.BufArg(args, 0))
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	},
	{
		Name: "lzma_stream_buffer_bound",
		Doc:  "returns the worst-case encoded size of size bytes",
		Args: []prog.Field{{Name: "size", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			size := prog.IntArg(args, 0)
			if size < 0 {
				return int64(0), nil
			}
			return bufferBound(size), nil
		},
	},
	{
		Name: "lzma_check_is_supported",
		Args: []prog.Field{{Name: "check", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return prog.BoolInt(checkSupported(prog.IntArg(args, 0))), nil
		},
	},
	{
		Name: "lzma_crc32",
		Doc:  "updates a CRC32 with buf",
		Args: []prog.Field{{Name: "buf", Type: prog.Buffer}, {Name: "crc", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(crc32.Update(uint32(prog.IntArg(args, 1)), crc32.IEEETable, prog.BufArg(args, 0))), nil
		},
	},
	{
		Name: "lzma_crc64",
		Doc:  "updates a CRC64 (ECMA-182) with buf, the result is returned as a signed 64-bit value",
		Args: []prog.Field{{Name: "buf", Type: prog.Buffer}, {Name: "crc", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(crc64.Update(uint64(prog.IntArg(args, 1)), ecma, prog.BufArg(args, 0))), nil
		},
	},
	{
		Name: "lzma_version_number",
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(versionNumber), nil
		},
	},
	{
		Name: "lzma_version_string",
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return []byte(versionString), nil
		},
	},
}

var streamOps = []*prog.Op{
	{
		Name: "lzma_easy_encoder",
		Doc:  "creates a .xz stream encoder",
		Args: []prog.Field{{Name: "preset", Type: prog.Int}, {Name: "check", Type: prog.Int}},
		Ret:  prog.Handle(streamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, err := newEncoder(prog.IntArg(args, 0), prog.IntArg(args, 1))
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	},
	{
		Name: "lzma_stream_decoder",
		Doc:  "creates a .xz stream decoder",
		Ret:  prog.Handle(streamRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return &stream{}, nil
		},
	},
	{
		Name: "lzma_code",
		Doc:  "feeds input to the stream and returns the output produced, action is LZMA_RUN or LZMA_FINISH",
		Args: []prog.Field{
			{Name: "strm", Type: prog.Handle(streamRes)},
			{Name: "input", Type: prog.Buffer},
			{Name: "action", Type: prog.Int},
		},
		Ret: prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, err := streamArg(args, 0)
			if err != nil {
				return nil, err
			}
			out, err := s.code(prog.BufArg(args, 1), prog.IntArg(args, 2))
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	},
	{
		Name: "lzma_total_in",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(streamRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, err := streamArg(args, 0)
			if err != nil {
				return nil, err
			}
			return s.totalIn, nil
		},
	},
	{
		Name: "lzma_total_out",
		Args: []prog.Field{{Name: "strm", Type: prog.Handle(streamRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, err := streamArg(args, 0)
			if err != nil {
				return nil, err
			}
			return s.totalOut, nil
		},
	},
	{
		Name:    "lzma_end",
		Doc:     "frees the coder, NULL is a no-op",
		Args:    []prog.Field{{Name: "strm", Type: prog.Handle(streamRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			s, ok := prog.ResArg[*stream](args, 0)
			if !ok {
				return nil, nil
			}
			if s.ended {
				return nil, prog.Errnof(lzmaProgError, "lzma_end called twice")
			}
			s.ended = true
			return nil, nil
		},
	},
}

