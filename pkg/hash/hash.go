// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash computes content signatures of programs and corpus records,
// and the 32-bit feedback signals derived from call outcomes and API triples.
package hash

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
)

type Sig [sha1.Size]byte

// Hash hashes the concatenation of pieces.
func Hash(pieces ...[]byte) Sig {
	h := sha1.New()
	for _, data := range pieces {
		h.Write(data)
	}
	var sig Sig
	copy(sig[:], h.Sum(nil))
	return sig
}

// String returns the hex signature of data, used as corpus db key.
func String(pieces ...[]byte) string {
	sig := Hash(pieces...)
	return sig.String()
}

func (sig *Sig) String() string {
	return hex.EncodeToString((*sig)[:])
}

// Truncate32 returns first 32 bits of the hash.
func (sig *Sig) Truncate32() uint32 {
	return binary.LittleEndian.Uint32(sig[:4])
}

// Signal returns a feedback signal for a tuple of names.
// Parts are separated, so ("ab", "c") and ("a", "bc") differ.
func Signal(parts ...string) uint32 {
	h := sha1.New()
	for i, part := range parts {
		if i != 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	var sig Sig
	copy(sig[:], h.Sum(nil))
	return sig.Truncate32()
}
