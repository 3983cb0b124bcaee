// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package zlib

import (
	"bytes"
	"compress/flate"
	"errors"
	"io"

	"github.com/seqfuzz/seqfuzz/prog"
)

// backStream is a stream set up with inflateBackInit. inflateBack runs the decompression
// to completion within one call, pulling input and pushing output through callbacks.
type backStream struct {
	out      bytes.Buffer
	totalIn  int64
	totalOut int64
	inCalls  int64
	outCalls int64
}

// chunkReader is the input callback: every call hands out at most chunk bytes.
type chunkReader struct {
	s     *backStream
	data  []byte
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.s.inCalls++
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(len(p), r.chunk, len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	r.s.totalIn += int64(n)
	return n, nil
}

func (s *backStream) inflateBack(input []byte, chunk int64) (int64, error) {
	if chunk <= 0 || chunk > maxBufferBytes {
		return 0, errStream("invalid chunk size %v", chunk)
	}
	r := flate.NewReader(&chunkReader{s: s, data: input, chunk: int(chunk)})
	defer r.Close()
	buf := make([]byte, chunk)
	for {
		n, err := r.Read(buf)
		if n != 0 {
			// Output callback.
			s.outCalls++
			s.totalOut += int64(n)
			if s.out.Len()+n > maxBufferBytes {
				return 0, prog.Errnof(zBufError, "output exceeds %v bytes", maxBufferBytes)
			}
			s.out.Write(buf[:n])
		}
		switch {
		case err == io.EOF:
			return zStreamEnd, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return 0, prog.Errnof(zBufError, "input callback returned no data")
		case err != nil:
			return 0, prog.Errnof(zDataError, "%v", err)
		}
	}
}
