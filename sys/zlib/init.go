// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package zlib describes the zlib API on top of compress/flate, compress/zlib and compress/gzip.
package zlib

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// Return codes.
const (
	zOK           = 0
	zStreamEnd    = 1
	zNeedDict     = 2
	zErrno        = -1
	zStreamError  = -2
	zDataError    = -3
	zMemError     = -4
	zBufError     = -5
	zVersionError = -6
)

// Flush values.
const (
	zNoFlush      = 0
	zPartialFlush = 1
	zSyncFlush    = 2
	zFullFlush    = 3
	zFinish       = 4
	zBlock        = 5
)

const (
	zDeflated      = 8
	zHuffmanOnly   = 2
	zFixed         = 4
	maxWindowBits  = 15
	maxMemLevel    = 9
	defaultMemLvl  = 8
	zlibVersion    = "1.3.1"
	maxBufferBytes = 64 << 20
)

var (
	deflateStreamRes = &prog.ResourceDesc{Name: "z_stream_deflate", Release: "deflateEnd"}
	inflateStreamRes = &prog.ResourceDesc{Name: "z_stream_inflate", Release: "inflateEnd"}
	inflateBackRes   = &prog.ResourceDesc{Name: "z_stream_back", Release: "inflateBackEnd"}
	gzFileRes        = &prog.ResourceDesc{Name: "gzFile", Release: "gzclose"}
)

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name: "zlib",
	Desc: "zlib compression library: checksums, one-shot compress/uncompress, " +
		"deflate/inflate streams, inflateBack callbacks and gzip files",
	Resources: []*prog.ResourceDesc{deflateStreamRes, inflateStreamRes, inflateBackRes, gzFileRes},
	Consts: map[string]int64{
		"Z_OK":                  zOK,
		"Z_STREAM_END":          zStreamEnd,
		"Z_NEED_DICT":           zNeedDict,
		"Z_ERRNO":               zErrno,
		"Z_STREAM_ERROR":        zStreamError,
		"Z_DATA_ERROR":          zDataError,
		"Z_MEM_ERROR":           zMemError,
		"Z_BUF_ERROR":           zBufError,
		"Z_VERSION_ERROR":       zVersionError,
		"Z_NO_FLUSH":            zNoFlush,
		"Z_PARTIAL_FLUSH":       zPartialFlush,
		"Z_SYNC_FLUSH":          zSyncFlush,
		"Z_FULL_FLUSH":          zFullFlush,
		"Z_FINISH":              zFinish,
		"Z_BLOCK":               zBlock,
		"Z_NO_COMPRESSION":      0,
		"Z_BEST_SPEED":          1,
		"Z_BEST_COMPRESSION":    9,
		"Z_DEFAULT_COMPRESSION": -1,
		"Z_DEFAULT_STRATEGY":    0,
		"Z_FILTERED":            1,
		"Z_HUFFMAN_ONLY":        zHuffmanOnly,
		"Z_RLE":                 3,
		"Z_FIXED":               zFixed,
		"Z_DEFLATED":            zDeflated,
		"MAX_WBITS":             maxWindowBits,
		"MAX_MEM_LEVEL":         maxMemLevel,
	},
	Rules: []string{
		"Every stream created by deflateInit/deflateInit2 must be released with deflateEnd, " +
			"every stream created by inflateInit/inflateInit2 with inflateEnd.",
		"deflate and inflate append produced bytes to the stream, fetch them with zstream_out.",
		"windowBits: 8..15 zlib format, -8..-15 raw deflate, +16 gzip format, +32 (inflate only) detects zlib or gzip.",
		"gzopen paths are plain file names like 'test.gz'; remove the file when done.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(target.Ops, checksumOps...)
	target.Ops = append(target.Ops, streamOps...)
	target.Ops = append(target.Ops, gzOps...)
	target.Ops = append(target.Ops, &prog.Op{
		Name: "zlibVersion",
		Doc:  "returns the library version string",
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return []byte(zlibVersion), nil
		},
	}, &prog.Op{
		Name: "zlibCompileFlags",
		Doc:  "returns the compile-time option flags",
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			// uInt, uLong, voidpf and z_off_t sizes: 32, 64, 64, 64 bits.
			return int64(0x1 | 0x2<<2 | 0x2<<4 | 0x2<<6), nil
		},
	})
	prog.RegisterTarget(target)
	registerFocal()
}

func errStream(msg string, args ...any) error {
	return prog.Errnof(zStreamError, msg, args...)
}
