// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package pcap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/seqfuzz/seqfuzz/prog"
)

const (
	magicMicros = 0xa1b2c3d4
	magicNanos  = 0xa1b23c4d
)

// fileHeader is the decoded savefile header.
type fileHeader struct {
	order    binary.ByteOrder
	nanos    bool
	major    uint16
	minor    uint16
	snaplen  uint32
	linkType uint32
}

// parseHeader checks the savefile header the way pcap_open_offline does.
func parseHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < fileHeaderLen {
		return nil, fmt.Errorf("truncated dump file; tried to read %v file header bytes, only got %v",
			fileHeaderLen, len(buf))
	}
	hdr := new(fileHeader)
	switch magic := binary.LittleEndian.Uint32(buf); {
	case magic == magicMicros:
		hdr.order = binary.LittleEndian
	case magic == magicNanos:
		hdr.order, hdr.nanos = binary.LittleEndian, true
	case binary.BigEndian.Uint32(buf) == magicMicros:
		hdr.order = binary.BigEndian
	case binary.BigEndian.Uint32(buf) == magicNanos:
		hdr.order, hdr.nanos = binary.BigEndian, true
	default:
		return nil, fmt.Errorf("unknown file format")
	}
	hdr.major = hdr.order.Uint16(buf[4:])
	hdr.minor = hdr.order.Uint16(buf[6:])
	if hdr.major < versionMajor {
		return nil, fmt.Errorf("archaic pcap savefile format")
	}
	hdr.snaplen = hdr.order.Uint32(buf[16:])
	hdr.linkType = hdr.order.Uint32(buf[20:])
	return hdr, nil
}

// normalized returns the header as the reader expects it: version 2.4 and a usable snaplen.
func (hdr *fileHeader) normalized(orig []byte) []byte {
	buf := append([]byte{}, orig[:fileHeaderLen]...)
	hdr.order.PutUint16(buf[4:], versionMajor)
	hdr.order.PutUint16(buf[6:], versionMinor)
	hdr.order.PutUint32(buf[16:], hdr.snapshot())
	return buf
}

// snapshot mirrors libpcap: a zero or oversized snaplen means the maximum.
func (hdr *fileHeader) snapshot() uint32 {
	if hdr.snaplen == 0 || hdr.snaplen > maxSnaplen {
		return maxSnaplen
	}
	return hdr.snaplen
}

// handle is a pcap_t: an offline savefile or a dead handle used for dumping.
type handle struct {
	file     *os.File
	r        *pcapgo.Reader
	hdr      *fileHeader
	linkType layers.LinkType
	snaplen  int
	nanos    bool
	err      string
	closed   bool

	last    []byte
	lastCI  gopacket.CaptureInfo
	hasLast bool
}

func openOffline(path string) (*handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	h := &handle{file: f}
	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		// Compressed savefiles are handled by the reader itself.
		h.r, err = pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		h.linkType, h.snaplen = h.r.LinkType(), int(h.r.Snaplen())
		h.nanos = h.r.Resolution() == gopacket.TimestampResolutionNanosecond
		return h, nil
	}
	buf := make([]byte, fileHeaderLen)
	n, _ := io.ReadFull(br, buf)
	hdr, err := parseHeader(buf[:n])
	if err != nil {
		f.Close()
		return nil, err
	}
	h.r, err = pcapgo.NewReader(io.MultiReader(bytes.NewReader(hdr.normalized(buf)), br))
	if err != nil {
		f.Close()
		return nil, err
	}
	h.hdr = hdr
	h.linkType = layers.LinkType(hdr.linkType)
	h.snaplen = int(hdr.snapshot())
	h.nanos = hdr.nanos
	return h, nil
}

// next reads the next record: 1 for a packet, -2 at the end of the file, -1 on errors.
func (h *handle) next() int {
	h.hasLast = false
	if h.r == nil {
		h.err = "not a savefile"
		return nextError
	}
	data, ci, err := h.r.ReadPacketData()
	switch {
	case err == io.EOF:
		return nextEOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		h.err = "truncated dump file"
		return nextError
	case err != nil:
		h.err = err.Error()
		return nextError
	}
	h.last, h.lastCI, h.hasLast = data, ci, true
	return nextPacket
}

// layerNames decodes the last packet and returns its layer types, e.g. "Ethernet,IPv4,UDP,Payload".
func (h *handle) layerNames() []byte {
	if !h.hasLast {
		return nil
	}
	pkt := gopacket.NewPacket(h.last, h.linkType, gopacket.Default)
	var names []string
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	return []byte(strings.Join(names, ","))
}

func (h *handle) close() error {
	h.closed = true
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}

// dumper is a pcap_dumper_t writing a savefile with the link type and snaplen of its pcap_t.
type dumper struct {
	f      *os.File
	bw     *bufio.Writer
	w      *pcapgo.Writer
	closed bool
}

func handleArg(args []prog.Value, i int) (*handle, error) {
	h, ok := prog.ResArg[*handle](args, i)
	if !ok {
		return nil, prog.Errnof(pcapError, "NULL pcap_t")
	}
	if h.closed {
		return nil, prog.Errnof(pcapError, "pcap_t is closed")
	}
	return h, nil
}

func dumperArg(args []prog.Value, i int) (*dumper, error) {
	d, ok := prog.ResArg[*dumper](args, i)
	if !ok {
		return nil, prog.Errnof(pcapError, "NULL pcap_dumper_t")
	}
	if d.closed {
		return nil, prog.Errnof(pcapError, "dumper is closed")
	}
	return d, nil
}

func handleInt(name, doc string, fn func(h *handle) int64) *prog.Op {
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(h), nil
		},
	}
}

var pcapOps = []*prog.Op{
	{
		Name: "pcap_open_offline",
		Doc:  "opens a savefile for reading",
		Args: []prog.Field{{Name: "path", Type: prog.Buffer}},
		Ret:  prog.Handle(pcapRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			if args[0] == nil {
				return nil, prog.Errnof(pcapError, "NULL file name")
			}
			path, err := env.Path(string(prog.BufArg(args, 0)))
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			h, err := openOffline(path)
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return h, nil
		},
	},
	{
		Name: "pcap_open_dead",
		Doc:  "creates a handle with a link type and snaplen for writing savefiles",
		Args: []prog.Field{{Name: "linktype", Type: prog.Int}, {Name: "snaplen", Type: prog.Int}},
		Ret:  prog.Handle(pcapRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			snaplen := prog.IntArg(args, 1)
			if snaplen <= 0 || snaplen > maxSnaplen {
				snaplen = maxSnaplen
			}
			return &handle{linkType: layers.LinkType(prog.IntArg(args, 0)), snaplen: int(snaplen)}, nil
		},
	},
	{
		Name: "pcap_next_ex",
		Doc:  "reads the next packet: 1 on success, -2 at the end of the savefile, -1 on error",
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			return int64(h.next()), nil
		},
	},
	{
		Name: "pcap_last_data",
		Doc:  "returns the captured bytes of the packet read by the last pcap_next_ex",
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			if !h.hasLast {
				return nil, nil
			}
			return append([]byte{}, h.last...), nil
		},
	},
	handleInt("pcap_last_caplen", "returns caplen of the last packet, -1 if there is none", func(h *handle) int64 {
		if !h.hasLast {
			return -1
		}
		return int64(h.lastCI.CaptureLength)
	}),
	handleInt("pcap_last_len", "returns the original length of the last packet, -1 if there is none",
		func(h *handle) int64 {
			if !h.hasLast {
				return -1
			}
			return int64(h.lastCI.Length)
		}),
	handleInt("pcap_last_ts_sec", "", func(h *handle) int64 {
		return h.lastCI.Timestamp.Unix()
	}),
	handleInt("pcap_last_ts_usec", "returns the sub-second part of the last timestamp in microseconds",
		func(h *handle) int64 {
			return int64(h.lastCI.Timestamp.Nanosecond() / 1000)
		}),
	{
		Name: "pcap_last_layers",
		Doc:  "decodes the last packet and returns its comma-separated layer names (e.g. Ethernet,IPv4,UDP,Payload)",
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			return h.layerNames(), nil
		},
	},
	handleInt("pcap_datalink", "returns the link-layer header type (DLT_*)", func(h *handle) int64 {
		return int64(h.linkType)
	}),
	handleInt("pcap_snapshot", "returns the snapshot length", func(h *handle) int64 {
		return int64(h.snaplen)
	}),
	handleInt("pcap_major_version", "returns the major version of the savefile", func(h *handle) int64 {
		if h.hdr == nil {
			return versionMajor
		}
		return int64(h.hdr.major)
	}),
	handleInt("pcap_minor_version", "", func(h *handle) int64 {
		if h.hdr == nil {
			return versionMinor
		}
		return int64(h.hdr.minor)
	}),
	handleInt("pcap_is_swapped", "returns 1 if the savefile is big-endian", func(h *handle) int64 {
		return prog.BoolInt(h.hdr != nil && h.hdr.order == binary.BigEndian)
	}),
	handleInt("pcap_get_tstamp_precision", "returns PCAP_TSTAMP_PRECISION_MICRO or _NANO", func(h *handle) int64 {
		return prog.BoolInt(h.nanos)
	}),
	{
		Name: "pcap_geterr",
		Doc:  "returns the message of the last error on p",
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(h.err), nil
		},
	},
	{
		Name:    "pcap_close",
		Args:    []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			if err := h.close(); err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return nil, nil
		},
	},
	{
		Name: "pcap_dump_open",
		Doc:  "creates a savefile with the link type and snaplen of p",
		Args: []prog.Field{{Name: "p", Type: prog.Handle(pcapRes)}, {Name: "path", Type: prog.Buffer}},
		Ret:  prog.Handle(dumperRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			h, err := handleArg(args, 0)
			if err != nil {
				return nil, err
			}
			path, err := env.Path(string(prog.BufArg(args, 1)))
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			f, err := os.Create(path)
			if err != nil {
				h.err = err.Error()
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			d := &dumper{f: f, bw: bufio.NewWriter(f)}
			d.w = pcapgo.NewWriter(d.bw)
			if err := d.w.WriteFileHeader(uint32(h.snaplen), h.linkType); err != nil {
				f.Close()
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return d, nil
		},
	},
	{
		Name: "pcap_dump",
		Doc:  "appends a packet with timestamp sec.usec and original length len (at least len(data))",
		Args: []prog.Field{
			{Name: "d", Type: prog.Handle(dumperRes)},
			{Name: "sec", Type: prog.Int},
			{Name: "usec", Type: prog.Int},
			{Name: "len", Type: prog.Int},
			{Name: "data", Type: prog.Buffer},
		},
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			d, err := dumperArg(args, 0)
			if err != nil {
				return nil, err
			}
			data := prog.BufArg(args, 4)
			ci := gopacket.CaptureInfo{
				Timestamp:     time.Unix(prog.IntArg(args, 1), prog.IntArg(args, 2)*1000),
				CaptureLength: len(data),
				Length:        int(prog.IntArg(args, 3)),
			}
			if err := d.w.WritePacket(ci, data); err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return nil, nil
		},
	},
	{
		Name: "pcap_dump_flush",
		Args: []prog.Field{{Name: "d", Type: prog.Handle(dumperRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			d, err := dumperArg(args, 0)
			if err != nil {
				return nil, err
			}
			if err := d.bw.Flush(); err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return int64(0), nil
		},
	},
	{
		Name:    "pcap_dump_close",
		Args:    []prog.Field{{Name: "d", Type: prog.Handle(dumperRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			d, err := dumperArg(args, 0)
			if err != nil {
				return nil, err
			}
			d.closed = true
			err = d.bw.Flush()
			if cerr := d.f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return nil, prog.Errnof(pcapError, "%v", err)
			}
			return nil, nil
		},
	},
	{
		Name: "pcap_lib_version",
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return []byte(libVersion), nil
		},
	},
}
