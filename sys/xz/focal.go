// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package xz

import (
	"bytes"

	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
)

var sample = bytes.Repeat([]byte("hello, hello, xz stream! "), 40)

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "xz_easy_encode",
		Target: "xz",
		Focal:  "lzma_easy_encode",
		Cases: []focal.Case{
			{Name: "presets_and_checks", Run: func(t *check.T, c *focal.Ctx) {
				for _, preset := range []int64{0, 1, 6, 6 | presetExtreme} {
					for _, chk := range []int{checkNone, checkCRC32, checkCRC64, checkSHA256} {
						enc, err := c.Call(sample, preset, chk)
						if !t.ExpectNoErr(err, "preset %x check %v", preset, chk) {
							continue
						}
						data := enc.([]byte)
						t.ExpectTrue(bytes.HasPrefix(data, magic), "magic")
						t.ExpectTrue(int64(len(data)) <= bufferBound(int64(len(sample))), "bound")
						t.ExpectTrue(len(data) < len(sample), "repetitive input shrinks")
						t.ExpectBytesEq(c.Buf("lzma_stream_decode", data), sample)
					}
				}
			}},
			{Name: "empty_input", Run: func(t *check.T, c *focal.Ctx) {
				enc, err := c.Call(nil, 6, checkCRC64)
				if t.ExpectNoErr(err) {
					dec, err := c.CallOp("lzma_stream_decode", enc)
					t.ExpectNoErr(err)
					t.ExpectEq(len(dec.([]byte)), 0)
				}
			}},
			{Name: "bad_options", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(sample, 10, checkCRC64)
				t.ExpectErrno(err, lzmaOptionsError)
				_, err = c.Call(sample, -1, checkCRC64)
				t.ExpectErrno(err, lzmaOptionsError)
				_, err = c.Call(sample, 6, 2)
				t.ExpectErrno(err, lzmaUnsupportedCheck)
				_, err = c.Call(sample, 6, 16)
				t.ExpectErrno(err, lzmaProgError)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "xz_stream_decode",
		Target: "xz",
		Focal:  "lzma_stream_decode",
		Cases: []focal.Case{
			{Name: "not_xz", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call("\x1f\x8b\x08\x00 gzip, not xz")
				t.ExpectErrno(err, lzmaFormatError)
			}},
			{Name: "truncated", Run: func(t *check.T, c *focal.Ctx) {
				enc := c.Buf("lzma_easy_encode", sample, 6, checkCRC32)
				for _, n := range []int{0, 3, 12, len(enc) / 2, len(enc) - 1} {
					_, err := c.Call(enc[:n])
					t.ExpectErrno(err, lzmaDataError, "%v of %v bytes", n, len(enc))
				}
			}},
			{Name: "corrupt_check", Run: func(t *check.T, c *focal.Ctx) {
				enc := c.Buf("lzma_easy_encode", []byte("check me"), 0, checkSHA256)
				if !t.ExpectTrue(len(enc) > 64) {
					return
				}
				// The SHA-256 of the block sits right before the index.
				bad := append([]byte{}, enc...)
				bad[len(bad)-40] ^= 0xff
				_, err := c.Call(bad)
				t.ExpectErrno(err, lzmaDataError)
			}},
			{Name: "concatenated_streams", Run: func(t *check.T, c *focal.Ctx) {
				a := c.Buf("lzma_easy_encode", "first ", 1, checkCRC32)
				b := c.Buf("lzma_easy_encode", "second", 1, checkNone)
				t.ExpectEq(c.Buf("lzma_stream_decode", append(append([]byte{}, a...), b...)), "first second")
			}},
			{Name: "stream_coder", Run: func(t *check.T, c *focal.Ctx) {
				enc, err := c.CallOp("lzma_easy_encoder", 6, checkCRC64)
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("lzma_end", enc)
				var xz []byte
				for i := 0; i < 4; i++ {
					xz = append(xz, c.Buf("lzma_code", enc, sample, lzmaRun)...)
				}
				xz = append(xz, c.Buf("lzma_code", enc, nil, lzmaFinish)...)
				t.ExpectEq(c.Int("lzma_total_in", enc), 4*len(sample))
				t.ExpectEq(c.Int("lzma_total_out", enc), len(xz))
				_, err = c.CallOp("lzma_code", enc, nil, lzmaRun)
				t.ExpectErrno(err, lzmaProgError, "code after finish")

				dec, err := c.CallOp("lzma_stream_decoder")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("lzma_end", dec)
				t.ExpectEq(len(c.Buf("lzma_code", dec, xz[:10], lzmaRun)), 0)
				out, err := c.CallOp("lzma_code", dec, xz[10:], lzmaFinish)
				t.ExpectNoErr(err)
				t.ExpectBytesEq(out.([]byte), bytes.Repeat(sample, 4))
			}},
		},
	})
}
