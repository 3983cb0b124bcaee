// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package xz

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
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
	if failures := focal.Run(focal.Filter(focal.Suites(), []string{"xz"}), buf); failures != 0 {
		t.Fatalf("%v failures:\n%s", failures, buf.Bytes())
	}
}

func TestEncodeReadableByPlainReader(t *testing.T) {
	enc, err := encode(sample, 3, checkSHA256)
	require.NoError(t, err)
	r, err := xz.NewReader(bytes.NewReader(enc))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sample, out)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		data []byte
		code int
	}{
		{[]byte("hello world"), lzmaFormatError},
		{[]byte("\xfd7z"), lzmaDataError},
		{[]byte("\xfd7zXZ\x00\x00\x01garbage"), lzmaDataError},
	}
	for _, test := range tests {
		_, err := decode(test.data)
		var errno *prog.Errno
		if assert.True(t, errors.As(err, &errno), "%q", test.data) {
			assert.Equal(t, test.code, errno.Code, "%q", test.data)
		}
	}
}

func TestTruncatedStream(t *testing.T) {
	enc, err := encode(sample, 6, checkCRC32)
	require.NoError(t, err)
	for _, n := range []int{0, 3, 12, 23, len(enc) / 2, len(enc) - 2, len(enc) - 1} {
		_, err := decode(enc[:n])
		var errno *prog.Errno
		if assert.True(t, errors.As(err, &errno), "%v of %v bytes", n, len(enc)) {
			assert.Equal(t, lzmaDataError, errno.Code, "%v of %v bytes", n, len(enc))
		}
	}
	padded := append(append([]byte{}, enc...), 0, 0, 0, 0)
	out, err := decode(padded)
	require.NoError(t, err)
	assert.Equal(t, sample, out)
}

func TestBufferBound(t *testing.T) {
	for _, size := range []int{0, 1, 1000, 4096} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i*7919 + i>>3)
		}
		enc, err := encode(data, 0, checkSHA256)
		require.NoError(t, err)
		assert.LessOrEqual(t, int64(len(enc)), bufferBound(int64(size)), "size %v", size)
	}
}

func FuzzDecode(f *testing.F) {
	enc, err := encode([]byte("seed"), 0, checkCRC32)
	require.NoError(f, err)
	f.Add(enc)
	f.Add([]byte("\xfd7zXZ\x00"))
	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := decode(data)
		if err != nil {
			var errno *prog.Errno
			require.True(t, errors.As(err, &errno))
			return
		}
		assert.LessOrEqual(t, len(out), maxOutput)
	})
}
