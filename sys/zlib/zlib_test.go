// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"bytes"
	"context"
	"hash/adler32"
	"hash/crc32"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeds(t *testing.T) {
	ctx := &runtest.Context{
		Target:  target,
		Procs:   4,
		LogFunc: func(text string) { t.Log(text) },
	}
	if err := ctx.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFocal(t *testing.T) {
	buf := new(bytes.Buffer)
	if failures := focal.Run(focal.Filter(focal.Suites(), []string{"zlib"}), buf); failures != 0 {
		t.Fatalf("%v failures:\n%s", failures, buf.Bytes())
	}
}

func TestChecksums(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a := make([]byte, rnd.Intn(10000))
		b := make([]byte, rnd.Intn(10000))
		rnd.Read(a)
		rnd.Read(b)
		ab := append(append([]byte{}, a...), b...)
		assert.Equal(t, adler32.Checksum(ab), adler32Update(adler32Update(1, a), b))
		assert.Equal(t, adler32.Checksum(ab),
			adler32Combine(adler32.Checksum(a), adler32.Checksum(b), int64(len(b))))
		assert.Equal(t, crc32.ChecksumIEEE(ab),
			crc32Combine(crc32.ChecksumIEEE(a), crc32.ChecksumIEEE(b), int64(len(b))))
	}
	assert.Equal(t, uint32(12345), adler32Update(12345, nil))
}

func TestCombineEmptySecond(t *testing.T) {
	crc := crc32.ChecksumIEEE([]byte("abc"))
	assert.Equal(t, crc, crc32Combine(crc, 0, 0))
	assert.Equal(t, crc^0x1234, crc32Combine(crc, 0x1234, 0))
	assert.Equal(t, crc, crc32Combine(crc, 0x1234, -1))
	adler := adler32.Checksum([]byte("abc"))
	assert.Equal(t, adler, adler32Combine(adler, 1, 0))
}

func TestStreamFormats(t *testing.T) {
	data := bytes.Repeat([]byte("streaming data "), 1000)
	tests := []struct {
		deflateBits int64
		inflateBits int64
	}{
		{15, 15},
		{15, 0},
		{-15, -15},
		{31, 31},
		{31, 47},
		{15, 47},
	}
	for _, test := range tests {
		f, err := parseWindowBits(test.deflateBits, false)
		require.NoError(t, err)
		d, err := newDeflateStream(f, 6)
		require.NoError(t, err)
		for off := 0; off < len(data); off += 1000 {
			ret, err := d.deflate(data[off:off+1000], zNoFlush)
			require.NoError(t, err)
			require.Equal(t, int64(zOK), ret)
		}
		ret, err := d.deflate(nil, zFinish)
		require.NoError(t, err)
		require.Equal(t, int64(zStreamEnd), ret)
		comp := d.out.Bytes()
		assert.LessOrEqual(t, int64(len(comp)), deflateBound(f, int64(len(data))))

		f, err = parseWindowBits(test.inflateBits, true)
		require.NoError(t, err)
		s := &inflateStream{format: f}
		var ret1 int64
		for off := 0; off < len(comp); off += 7 {
			ret1, err = s.inflate(comp[off:min(off+7, len(comp))], zNoFlush)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(zStreamEnd), ret1, "deflate %v inflate %v", test.deflateBits, test.inflateBits)
		assert.Equal(t, data, s.out.Bytes())
		assert.Equal(t, int64(len(comp)), s.totalIn)
	}
}

func TestGzipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not compressed"), 0644))
	f, err := gzOpen(path, "rb")
	require.NoError(t, err)
	data, err := f.read(5)
	require.NoError(t, err)
	assert.Equal(t, "not c", string(data))
	assert.False(t, f.eof)
	data, err = f.read(100)
	require.NoError(t, err)
	assert.Equal(t, "ompressed", string(data))
	assert.True(t, f.eof)
	_, err = f.writeData([]byte("x"))
	assert.Error(t, err)
	require.NoError(t, f.close())

	// Appending adds a second gzip member, reading returns both.
	path = filepath.Join(t.TempDir(), "multi.gz")
	for _, part := range []string{"one ", "two"} {
		f, err := gzOpen(path, "ab")
		require.NoError(t, err)
		_, err = f.writeData([]byte(part))
		require.NoError(t, err)
		require.NoError(t, f.close())
	}
	f, err = gzOpen(path, "r")
	require.NoError(t, err)
	data, err = f.read(100)
	require.NoError(t, err)
	assert.Equal(t, "one two", string(data))
	require.NoError(t, f.close())
}

func TestDescriptions(t *testing.T) {
	target, err := prog.GetTarget("zlib")
	require.NoError(t, err)
	for _, res := range target.Resources {
		assert.NotEmpty(t, target.Acquirers(res), res.Name)
	}
	assert.Equal(t, "r = deflate(strm z_stream_deflate, input buffer, flush int) int",
		prog.Prototype(target.OpMap["deflate"]))
}

func FuzzInflate(f *testing.F) {
	comp, err := compress([]byte(quickFox), 6)
	require.NoError(f, err)
	f.Add(comp, int64(15))
	f.Add(comp[:10], int64(47))
	f.Add([]byte{0x1f, 0x8b, 8, 0, 0, 0, 0, 0, 0, 0xff}, int64(47))
	f.Fuzz(func(t *testing.T, data []byte, bits int64) {
		form, err := parseWindowBits(bits, true)
		if err != nil {
			return
		}
		s := &inflateStream{format: form}
		ret, err := s.inflate(data, zFinish)
		if err == nil && ret == zStreamEnd {
			ret, err = s.inflate(nil, zFinish)
			assert.NoError(t, err)
			assert.Equal(t, int64(zStreamEnd), ret)
		}
	})
}
