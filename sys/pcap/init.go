// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package pcap describes the libpcap savefile API (offline capture files and dumpers) on top of
// gopacket's pcapgo reader and writer. Packets are decoded with gopacket layers.
package pcap

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// pcap_next_ex results.
const (
	nextPacket = 1
	nextError  = -1
	nextEOF    = -2
)

const (
	pcapError     = -1
	maxSnaplen    = 262144
	versionMajor  = 2
	versionMinor  = 4
	libVersion    = "libpcap version 1.10.4 (gopacket pcapgo)"
	fileHeaderLen = 24
)

var (
	fileRes   = &prog.ResourceDesc{Name: "FILE", Release: "fclose"}
	pcapRes   = &prog.ResourceDesc{Name: "pcap_t", Release: "pcap_close"}
	dumperRes = &prog.ResourceDesc{Name: "pcap_dumper_t", Release: "pcap_dump_close"}
)

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name:      "pcap",
	Desc:      "libpcap savefiles: write capture files by hand or with a dumper, open them offline and read packets",
	Resources: []*prog.ResourceDesc{fileRes, pcapRes, dumperRes},
	Consts: map[string]int64{
		"PCAP_ERROR":                  pcapError,
		"PCAP_NEXT_PACKET":            nextPacket,
		"PCAP_NEXT_ERROR":             nextError,
		"PCAP_NEXT_EOF":               nextEOF,
		"PCAP_VERSION_MAJOR":          versionMajor,
		"PCAP_VERSION_MINOR":          versionMinor,
		"TCPDUMP_MAGIC":               0xa1b2c3d4,
		"NSEC_TCPDUMP_MAGIC":          0xa1b23c4d,
		"DLT_NULL":                    0,
		"DLT_EN10MB":                  1,
		"DLT_RAW":                     101,
		"DLT_LINUX_SLL":               113,
		"DLT_IEEE802_11_RADIO":        127,
		"LINKTYPE_ETHERNET":           1,
		"LINKTYPE_RAW":                101,
		"MAXIMUM_SNAPLEN":             maxSnaplen,
		"PCAP_TSTAMP_PRECISION_MICRO": 0,
		"PCAP_TSTAMP_PRECISION_NANO":  1,
	},
	Rules: []string{
		"Savefiles start with a 24-byte header (magic, version 2.4, thiszone, sigfigs, snaplen, linktype) " +
			"followed by records with a 16-byte header (ts_sec, ts_usec, caplen, len); write them with fopen/fwrite/fclose.",
		"pcap_next_ex returns 1 for a packet, -2 at the end of the savefile and -1 on a truncated or corrupt record.",
		"Every pcap_open_offline/pcap_open_dead needs pcap_close, every pcap_dump_open needs pcap_dump_close.",
		"Use plain file names like 'test.pcap' and remove them when done.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(fileOps, pcapOps...)
	prog.RegisterTarget(target)
	registerFocal()
}
