// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"math/rand"

	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
)

const quickFox = "The quick brown fox jumps over the lazy dog"

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "zlib_adler32",
		Target: "zlib",
		Focal:  "adler32",
		Cases: []focal.Case{
			{Name: "null_buffer_keeps_checksum", Run: func(t *check.T, c *focal.Ctx) {
				for _, v := range []int64{0, 1, 0x11e60398, 0xffffffff} {
					t.ExpectEq(c.Int("adler32", v, nil, 0), v, "adler32(%#x, NULL, 0)", v)
				}
				sum := c.Int("adler32", c.Int("adler32", 0, nil, 0), repeat('X', 64), 64)
				t.ExpectEq(c.Int("adler32", sum, nil, 0), sum)
			}},
			{Name: "known_vector", Run: func(t *check.T, c *focal.Ctx) {
				t.ExpectEq(c.Int("adler32", 1, "Wikipedia", 9), 0x11e60398)
				t.ExpectEq(c.Int("adler32", 1, "Wikipedia!!!", 9), 0x11e60398, "len limits the input")
			}},
			{Name: "combine", Run: func(t *check.T, c *focal.Ctx) {
				a := c.Int("adler32", 1, "hello ", 6)
				b := c.Int("adler32", 1, "world", 5)
				t.ExpectEq(c.Int("adler32_combine", a, b, 5), c.Int("adler32", 1, "hello world", 11))
				t.ExpectEq(c.Int("adler32_combine", a, b, -1), 0xffffffff)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "zlib_crc32",
		Target: "zlib",
		Focal:  "crc32",
		Cases: []focal.Case{
			{Name: "null_buffer_keeps_checksum", Run: func(t *check.T, c *focal.Ctx) {
				for _, v := range []int64{0, 0x414fa339} {
					t.ExpectEq(c.Int("crc32", v, nil, 0), v, "crc32(%#x, NULL, 0)", v)
				}
			}},
			{Name: "known_vector", Run: func(t *check.T, c *focal.Ctx) {
				t.ExpectEq(c.Int("crc32", 0, quickFox, len(quickFox)), 0x414fa339)
				t.ExpectEq(c.Int("crc32", 0, "123456789", 9), 0xcbf43926)
			}},
			{Name: "incremental", Run: func(t *check.T, c *focal.Ctx) {
				crc := c.Int("crc32", 0, "12345", 5)
				t.ExpectEq(c.Int("crc32", crc, "6789", 4), 0xcbf43926)
			}},
			{Name: "combine", Run: func(t *check.T, c *focal.Ctx) {
				a := c.Int("crc32", 0, "1234", 4)
				b := c.Int("crc32", 0, "56789", 5)
				t.ExpectEq(c.Int("crc32_combine", a, b, 5), 0xcbf43926)
				t.ExpectEq(c.Int("crc32_combine", a, b, 0), a^b)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "zlib_compressBound",
		Target: "zlib",
		Focal:  "compressBound",
		Cases: []focal.Case{
			{Name: "bound_holds", Run: func(t *check.T, c *focal.Ctx) {
				rnd := rand.New(rand.NewSource(0))
				for _, n := range []int{0, 1, 100, 2047, 16384, 16385, 100000} {
					data := make([]byte, n)
					rnd.Read(data)
					bound := c.Int("compressBound", n)
					for _, level := range []int{0, 1, 6, 9} {
						out, err := c.CallOp("compress2", data, bound, level)
						if t.ExpectNoErr(err, "n=%v level=%v", n, level) {
							t.ExpectTrue(int64(len(out.([]byte))) <= bound, "n=%v level=%v", n, level)
						}
					}
				}
			}},
			{Name: "monotonic", Run: func(t *check.T, c *focal.Ctx) {
				t.ExpectTrue(c.Int("compressBound", 0) > 0)
				t.ExpectTrue(c.Int("compressBound", 1000) < c.Int("compressBound", 1001))
			}},
			{Name: "negative", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(-1)
				t.ExpectErrno(err, zStreamError)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "zlib_uncompress",
		Target: "zlib",
		Focal:  "uncompress",
		Cases: []focal.Case{
			{Name: "round_trip", Run: func(t *check.T, c *focal.Ctx) {
				comp := c.Buf("compress", quickFox, 100)
				t.ExpectBytesEq(c.Buf("uncompress", comp, 100), []byte(quickFox))
			}},
			{Name: "small_destination", Run: func(t *check.T, c *focal.Ctx) {
				comp := c.Buf("compress", quickFox, 100)
				_, err := c.Call(comp, 10)
				t.ExpectErrno(err, zBufError)
			}},
			{Name: "corrupt_input", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call("not zlib data", 100)
				t.ExpectErrno(err, zDataError)
				_, err = c.Call(nil, 100)
				t.ExpectErrno(err, zDataError)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "zlib_inflate",
		Target: "zlib",
		Focal:  "inflate",
		Cases: []focal.Case{
			{Name: "byte_by_byte", Run: func(t *check.T, c *focal.Ctx) {
				comp := c.Buf("compress", quickFox, 100)
				strm, _ := c.CallOp("inflateInit")
				var out []byte
				for i := range comp {
					ret, err := c.Call(strm, comp[i:i+1], zNoFlush)
					want := int64(zOK)
					if i == len(comp)-1 {
						want = zStreamEnd
					}
					t.ExpectNoErr(err, "byte %v", i)
					t.ExpectEq(ret, want, "byte %v", i)
					out = append(out, c.Buf("zstream_out", strm)...)
				}
				t.ExpectBytesEq(out, []byte(quickFox))
				t.ExpectEq(c.Int("zstream_total_in", strm), len(comp))
				t.ExpectEq(c.Int("zstream_total_out", strm), len(quickFox))
				t.ExpectEq(c.Int("inflateEnd", strm), zOK)
			}},
			{Name: "truncated_finish", Run: func(t *check.T, c *focal.Ctx) {
				comp := c.Buf("compress", quickFox, 100)
				strm, _ := c.CallOp("inflateInit")
				_, err := c.Call(strm, comp[:len(comp)-3], zFinish)
				t.ExpectErrno(err, zBufError)
				ret, err := c.Call(strm, comp[len(comp)-3:], zFinish)
				t.ExpectNoErr(err)
				t.ExpectEq(ret, zStreamEnd)
			}},
			{Name: "corrupt_checksum", Run: func(t *check.T, c *focal.Ctx) {
				comp := c.Buf("compress", quickFox, 100)
				comp[len(comp)-1] ^= 0xff
				strm, _ := c.CallOp("inflateInit")
				_, err := c.Call(strm, comp, zFinish)
				t.ExpectErrno(err, zDataError)
				_, err = c.Call(strm, nil, zFinish)
				t.ExpectErrno(err, zDataError, "errors are sticky")
			}},
			{Name: "null_stream", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(nil, quickFox, zFinish)
				t.ExpectErrno(err, zStreamError)
			}},
		},
	})
}

func repeat(b byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = b
	}
	return data
}
