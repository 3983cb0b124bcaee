// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package xz describes the liblzma .xz buffer and stream API on top of ulikunitz/xz.
package xz

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// lzma_ret codes.
const (
	lzmaOK               = 0
	lzmaStreamEnd        = 1
	lzmaUnsupportedCheck = 3
	lzmaMemError         = 5
	lzmaFormatError      = 7
	lzmaOptionsError     = 8
	lzmaDataError        = 9
	lzmaBufError         = 10
	lzmaProgError        = 11
)

// Integrity checks.
const (
	checkNone   = 0
	checkCRC32  = 1
	checkCRC64  = 4
	checkSHA256 = 10
	checkIDMax  = 15
)

const (
	lzmaRun    = 0
	lzmaFinish = 3

	presetExtreme = 0x80000000
	// 5.4.5 stable.
	versionNumber = 50040052
	versionString = "5.4.5"
)

var streamRes = &prog.ResourceDesc{Name: "lzma_stream", Release: "lzma_end"}

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name:      "xz",
	Desc:      "liblzma: .xz single-call buffer coding and lzma_stream encoders and decoders",
	Resources: []*prog.ResourceDesc{streamRes},
	Consts: map[string]int64{
		"LZMA_OK":                lzmaOK,
		"LZMA_STREAM_END":        lzmaStreamEnd,
		"LZMA_UNSUPPORTED_CHECK": lzmaUnsupportedCheck,
		"LZMA_MEM_ERROR":         lzmaMemError,
		"LZMA_FORMAT_ERROR":      lzmaFormatError,
		"LZMA_OPTIONS_ERROR":     lzmaOptionsError,
		"LZMA_DATA_ERROR":        lzmaDataError,
		"LZMA_BUF_ERROR":         lzmaBufError,
		"LZMA_PROG_ERROR":        lzmaProgError,
		"LZMA_CHECK_NONE":        checkNone,
		"LZMA_CHECK_CRC32":       checkCRC32,
		"LZMA_CHECK_CRC64":       checkCRC64,
		"LZMA_CHECK_SHA256":      checkSHA256,
		"LZMA_RUN":               lzmaRun,
		"LZMA_FINISH":            lzmaFinish,
		"LZMA_PRESET_DEFAULT":    6,
		"LZMA_PRESET_EXTREME":    presetExtreme,
		"LZMA_VERSION":           versionNumber,
	},
	Rules: []string{
		"lzma_easy_encode(data, preset, check) returns a complete .xz stream; presets are 0-9, optionally " +
			"or-ed with LZMA_PRESET_EXTREME.",
		"lzma_stream_decode(data) returns the decoded bytes of one or more concatenated .xz streams.",
		"Every lzma_easy_encoder/lzma_stream_decoder needs lzma_end; lzma_code(strm, input, LZMA_RUN) may be " +
			"called repeatedly and LZMA_FINISH flushes the rest, after which the stream only accepts lzma_end.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(bufferOps, streamOps...)
	prog.RegisterTarget(target)
	registerFocal()
}
