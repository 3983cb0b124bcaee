// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package pcap

import (
	"os"

	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
)

// Savefile header: magic 0xa1b2c3d4 little-endian, version 2.4, snaplen 65535, DLT_EN10MB.
const testHeader = "\xd4\xc3\xb2\xa1\x02\x00\x04\x00\x00\x00\x00\x00\x00\x00\x00\x00" +
	"\xff\xff\x00\x00\x01\x00\x00\x00"

const zeroRecord = "\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"

// writeFile writes a savefile into the scratch directory and returns its name.
func writeFile(t *check.T, c *focal.Ctx, data string) string {
	path, err := c.Path("focal.pcap")
	if t.ExpectNoErr(err) {
		t.ExpectNoErr(os.WriteFile(path, []byte(data), 0644))
	}
	return "focal.pcap"
}

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "pcap_open_offline",
		Target: "pcap",
		Focal:  "pcap_open_offline",
		Cases: []focal.Case{
			{Name: "hand_built_header", Run: func(t *check.T, c *focal.Ctx) {
				p, err := c.Call(writeFile(t, c, testHeader+zeroRecord))
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("pcap_close", p)
				t.ExpectEq(c.Int("pcap_datalink", p), 1)
				t.ExpectEq(c.Int("pcap_snapshot", p), 65535)
				t.ExpectEq(c.Int("pcap_major_version", p), 2)
				t.ExpectEq(c.Int("pcap_minor_version", p), 4)
				t.ExpectEq(c.Int("pcap_is_swapped", p), 0)
				t.ExpectEq(c.Int("pcap_next_ex", p), nextPacket)
				t.ExpectEq(c.Int("pcap_last_caplen", p), 0)
				t.ExpectEq(c.Int("pcap_next_ex", p), nextEOF)
			}},
			{Name: "big_endian", Run: func(t *check.T, c *focal.Ctx) {
				hdr := "\xa1\xb2\xc3\xd4\x00\x02\x00\x04\x00\x00\x00\x00\x00\x00\x00\x00" +
					"\x00\x00\x00\x00\x00\x00\x00\x65"
				p, err := c.Call(writeFile(t, c, hdr))
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("pcap_close", p)
				t.ExpectEq(c.Int("pcap_is_swapped", p), 1)
				t.ExpectEq(c.Int("pcap_datalink", p), 101)
				t.ExpectEq(c.Int("pcap_snapshot", p), maxSnaplen, "zero snaplen means the maximum")
				t.ExpectEq(c.Int("pcap_next_ex", p), nextEOF)
			}},
			{Name: "bad_magic", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(writeFile(t, c, "\x00\x00\x00\x00"+testHeader[4:]))
				t.ExpectErrno(err, pcapError)
			}},
			{Name: "short_header", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(writeFile(t, c, testHeader[:10]))
				t.ExpectErrno(err, pcapError)
			}},
			{Name: "archaic_version", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(writeFile(t, c, testHeader[:4]+"\x01\x00"+testHeader[6:]))
				t.ExpectErrno(err, pcapError)
			}},
			{Name: "missing_file", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call("missing.pcap")
				t.ExpectErrno(err, pcapError)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "pcap_next_ex",
		Target: "pcap",
		Focal:  "pcap_next_ex",
		Cases: []focal.Case{
			{Name: "truncated_record_header", Run: func(t *check.T, c *focal.Ctx) {
				p, err := c.CallOp("pcap_open_offline", writeFile(t, c, testHeader+zeroRecord[:7]))
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("pcap_close", p)
				t.ExpectEq(c.Int("pcap_next_ex", p), nextError)
				t.ExpectNe(string(c.Buf("pcap_geterr", p)), "")
			}},
			{Name: "truncated_packet_data", Run: func(t *check.T, c *focal.Ctx) {
				rec := "\x01\x00\x00\x00\x02\x00\x00\x00\x04\x00\x00\x00\x04\x00\x00\x00ab"
				p, err := c.CallOp("pcap_open_offline", writeFile(t, c, testHeader+rec))
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("pcap_close", p)
				t.ExpectEq(c.Int("pcap_next_ex", p), nextError)
				t.ExpectEq(c.Int("pcap_last_caplen", p), -1)
			}},
			{Name: "timestamps", Run: func(t *check.T, c *focal.Ctx) {
				rec := "\x10\x00\x00\x00\x20\x00\x00\x00\x02\x00\x00\x00\x08\x00\x00\x00ab"
				p, err := c.CallOp("pcap_open_offline", writeFile(t, c, testHeader+rec))
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("pcap_close", p)
				t.ExpectEq(c.Int("pcap_next_ex", p), nextPacket)
				t.ExpectEq(c.Int("pcap_last_ts_sec", p), 16)
				t.ExpectEq(c.Int("pcap_last_ts_usec", p), 32)
				t.ExpectEq(c.Int("pcap_last_len", p), 8)
				t.ExpectEq(c.Buf("pcap_last_data", p), "ab")
			}},
			{Name: "null_handle", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(nil)
				t.ExpectErrno(err, pcapError)
			}},
		},
	})
}
