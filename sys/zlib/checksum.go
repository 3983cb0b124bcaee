// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"encoding"
	"encoding/binary"
	"hash/adler32"
	"hash/crc32"

	"github.com/seqfuzz/seqfuzz/prog"
)

var checksumOps = []*prog.Op{
	{
		Name: "adler32",
		Doc:  "updates a running Adler-32 checksum with the first len bytes of buf, NULL buf returns adler unchanged",
		Args: []prog.Field{{Name: "adler", Type: prog.Int}, {Name: "buf", Type: prog.Buffer}, {Name: "len", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			sum := uint32(prog.IntArg(args, 0))
			buf := prefix(prog.BufArg(args, 1), prog.IntArg(args, 2))
			return int64(adler32Update(sum, buf)), nil
		},
	},
	{
		Name: "crc32",
		Doc:  "updates a running CRC-32 with the first len bytes of buf, NULL buf returns crc unchanged",
		Args: []prog.Field{{Name: "crc", Type: prog.Int}, {Name: "buf", Type: prog.Buffer}, {Name: "len", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			crc := uint32(prog.IntArg(args, 0))
			buf := prefix(prog.BufArg(args, 1), prog.IntArg(args, 2))
			return int64(crc32.Update(crc, crc32.IEEETable, buf)), nil
		},
	},
	{
		Name: "adler32_combine",
		Doc:  "returns the Adler-32 of seq1+seq2 given adler32(seq1), adler32(seq2) and len(seq2)",
		Args: []prog.Field{{Name: "adler1", Type: prog.Int}, {Name: "adler2", Type: prog.Int}, {Name: "len2", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(adler32Combine(uint32(prog.IntArg(args, 0)), uint32(prog.IntArg(args, 1)),
				prog.IntArg(args, 2))), nil
		},
	},
	{
		Name: "crc32_combine",
		Doc:  "returns the CRC-32 of seq1+seq2 given crc32(seq1), crc32(seq2) and len(seq2)",
		Args: []prog.Field{{Name: "crc1", Type: prog.Int}, {Name: "crc2", Type: prog.Int}, {Name: "len2", Type: prog.Int}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(crc32Combine(uint32(prog.IntArg(args, 0)), uint32(prog.IntArg(args, 1)),
				prog.IntArg(args, 2))), nil
		},
	},
}

// prefix returns at most n first bytes of buf (the C functions read exactly len bytes).
func prefix(buf []byte, n int64) []byte {
	if n < 0 {
		return nil
	}
	if n < int64(len(buf)) {
		return buf[:n]
	}
	return buf
}

// adler32Update continues an Adler-32 checksum from an arbitrary value.
// The digest state is restored through its binary marshaling format: "adl\x01" + big-endian sum.
func adler32Update(sum uint32, buf []byte) uint32 {
	if len(buf) == 0 {
		return sum
	}
	state := binary.BigEndian.AppendUint32([]byte("adl\x01"), sum)
	h := adler32.New()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic(err)
	}
	h.Write(buf)
	return h.Sum32()
}

const adlerBase = 65521

func adler32Combine(adler1, adler2 uint32, len2 int64) uint32 {
	if len2 < 0 {
		return 0xffffffff
	}
	rem := uint64(len2 % adlerBase)
	sum1 := uint64(adler1 & 0xffff)
	sum2 := rem * sum1 % adlerBase
	sum1 += uint64(adler2&0xffff) + adlerBase - 1
	sum2 += uint64(adler1>>16) + uint64(adler2>>16) + adlerBase - rem
	if sum1 >= adlerBase {
		sum1 -= adlerBase
	}
	if sum1 >= adlerBase {
		sum1 -= adlerBase
	}
	if sum2 >= adlerBase<<1 {
		sum2 -= adlerBase << 1
	}
	if sum2 >= adlerBase {
		sum2 -= adlerBase
	}
	return uint32(sum1 | sum2<<16)
}

// crc32Combine appends len2 zero bits to crc1 with GF(2) matrix squaring.
func crc32Combine(crc1, crc2 uint32, len2 int64) uint32 {
	if len2 < 0 {
		return crc1
	}
	if len2 == 0 {
		return crc1 ^ crc2
	}
	var even, odd [32]uint32
	odd[0] = crc32.IEEE
	row := uint32(1)
	for n := 1; n < 32; n++ {
		odd[n] = row
		row <<= 1
	}
	gf2Square(&even, &odd)
	gf2Square(&odd, &even)
	for {
		gf2Square(&even, &odd)
		if len2&1 != 0 {
			crc1 = gf2Times(&even, crc1)
		}
		len2 >>= 1
		if len2 == 0 {
			break
		}
		gf2Square(&odd, &even)
		if len2&1 != 0 {
			crc1 = gf2Times(&odd, crc1)
		}
		len2 >>= 1
		if len2 == 0 {
			break
		}
	}
	return crc1 ^ crc2
}

func gf2Times(mat *[32]uint32, vec uint32) uint32 {
	var sum uint32
	for i := 0; vec != 0; i, vec = i+1, vec>>1 {
		if vec&1 != 0 {
			sum ^= mat[i]
		}
	}
	return sum
}

func gf2Square(square, mat *[32]uint32) {
	for n := range mat {
		square[n] = gf2Times(mat, mat[n])
	}
}
