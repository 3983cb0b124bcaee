// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lcms

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// pixelFormat is a decoded TYPE_* descriptor.
type pixelFormat struct {
	raw    int64
	space  uint32
	size   int // bytes per channel
	float  bool
	doswap bool
}

func parseFormat(f int64) (pixelFormat, error) {
	if f < 0 || f > math.MaxUint32 {
		return pixelFormat{}, fmt.Errorf("bad format 0x%x", f)
	}
	v := uint32(f)
	pf := pixelFormat{
		raw:    f,
		space:  v >> 16 & 0x1f,
		size:   int(v & 7),
		float:  v>>22&1 != 0,
		doswap: v>>10&1 != 0,
	}
	switch {
	case v>>3&0xf != 3:
		return pixelFormat{}, fmt.Errorf("format 0x%x: only 3 channels are supported", f)
	case v>>7&7 != 0 || v>>12&1 != 0:
		return pixelFormat{}, fmt.Errorf("format 0x%x: extra channels and planar layouts are not supported", f)
	case pf.float && (pf.size == 0 || pf.size == 8):
		pf.size = 8
	case pf.float || pf.size != 1 && pf.size != 2:
		return pixelFormat{}, fmt.Errorf("format 0x%x: unsupported sample size", f)
	case pf.space == ptXYZ && pf.size == 1:
		return pixelFormat{}, fmt.Errorf("format 0x%x: 8-bit XYZ is not supported", f)
	}
	if pf.space != ptRGB && pf.space != ptLab && pf.space != ptXYZ {
		return pixelFormat{}, fmt.Errorf("format 0x%x: unsupported colour space %v", f, pf.space)
	}
	return pf, nil
}

func (pf pixelFormat) pixelSize() int {
	return 3 * pf.size
}

// decode returns the channels of one pixel as RGB in [0, 1], Lab with L in [0, 100] or XYZ
// with Y = 1 for white.
func (pf pixelFormat) decode(buf []byte) [3]float64 {
	var v [3]float64
	for i := range v {
		b := buf[i*pf.size:]
		switch {
		case pf.float:
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
			continue
		case pf.size == 1:
			v[i] = float64(b[0])
		default:
			v[i] = float64(binary.LittleEndian.Uint16(b))
		}
		v[i] = pf.fromInt(i, v[i])
	}
	if pf.doswap {
		v[0], v[2] = v[2], v[0]
	}
	return v
}

func (pf pixelFormat) fromInt(ch int, x float64) float64 {
	switch {
	case pf.space == ptRGB && pf.size == 1:
		return x / 255
	case pf.space == ptRGB:
		return x / 65535
	case pf.space == ptXYZ:
		return x / 32768
	case ch == 0 && pf.size == 1:
		return x * 100 / 255
	case ch == 0:
		return x * 100 / 65535
	case pf.size == 1:
		return x - 128
	default:
		return x/257 - 128
	}
}

func (pf pixelFormat) encode(buf []byte, v [3]float64) {
	if pf.doswap {
		v[0], v[2] = v[2], v[0]
	}
	for i := range v {
		b := buf[i*pf.size:]
		switch {
		case pf.float:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v[i]))
		case pf.size == 1:
			b[0] = byte(clampRound(pf.toInt(i, v[i]), 255))
		default:
			binary.LittleEndian.PutUint16(b, uint16(clampRound(pf.toInt(i, v[i]), 65535)))
		}
	}
}

func (pf pixelFormat) toInt(ch int, x float64) float64 {
	switch {
	case pf.space == ptRGB && pf.size == 1:
		return x * 255
	case pf.space == ptRGB:
		return x * 65535
	case pf.space == ptXYZ:
		return x * 32768
	case ch == 0 && pf.size == 1:
		return x * 255 / 100
	case ch == 0:
		return x * 65535 / 100
	case pf.size == 1:
		return x + 128
	default:
		return (x + 128) * 257
	}
}

func clampRound(x, limit float64) int {
	return int(math.Round(math.Max(0, math.Min(limit, x))))
}

// Bradford cone response matrix and its inverse.
var (
	bradford = [3][3]float64{
		{0.8951, 0.2664, -0.1614},
		{-0.7502, 1.7135, 0.0367},
		{0.0389, -0.0685, 1.0296},
	}
	bradfordInv = [3][3]float64{
		{0.9869929, -0.1470543, 0.1599627},
		{0.4323053, 0.5183603, 0.0492912},
		{-0.0085287, 0.0400428, 0.9684867},
	}
	d65ToD50 = adaptation(rgbWhite, d50)
	d50ToD65 = adaptation(d50, rgbWhite)
)

var (
	// d50 is the ICC PCS white point, it differs from colorful.D50 in the fourth digit of Z.
	d50 = [3]float64{0.9642, 1.0, 0.8249}
	// rgbWhite is sRGB white as colorful converts it, slightly off colorful.D65.
	rgbWhite = func() [3]float64 {
		x, y, z := colorful.LinearRgbToXyz(1, 1, 1)
		return [3]float64{x, y, z}
	}()
)

func mul(m [3][3]float64, v [3]float64) [3]float64 {
	var r [3]float64
	for i := range r {
		r[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return r
}

// adaptation returns the Bradford chromatic adaptation matrix from white point src to dst.
func adaptation(src, dst [3]float64) [3][3]float64 {
	s, d := mul(bradford, src), mul(bradford, dst)
	var scaled [3][3]float64
	for i := range scaled {
		for j := range scaled[i] {
			scaled[i][j] = bradford[i][j] * d[i] / s[i]
		}
	}
	var m [3][3]float64
	for i := range m {
		for j := range m[i] {
			for k := 0; k < 3; k++ {
				m[i][j] += bradfordInv[i][k] * scaled[k][j]
			}
		}
	}
	return m
}

// toPCS converts a decoded pixel of the given colour space into D50 XYZ.
func toPCS(space uint32, v [3]float64) [3]float64 {
	switch space {
	case ptRGB:
		x, y, z := colorful.Color{R: v[0], G: v[1], B: v[2]}.Xyz()
		return mul(d65ToD50, [3]float64{x, y, z})
	case ptLab:
		x, y, z := colorful.LabToXyzWhiteRef(v[0]/100, v[1]/100, v[2]/100, d50)
		return [3]float64{x, y, z}
	}
	return v
}

// fromPCS converts D50 XYZ into the given colour space, RGB is clipped to the sRGB gamut.
func fromPCS(space uint32, xyz [3]float64) [3]float64 {
	switch space {
	case ptRGB:
		d65 := mul(d50ToD65, xyz)
		c := colorful.Xyz(d65[0], d65[1], d65[2]).Clamped()
		return [3]float64{c.R, c.G, c.B}
	case ptLab:
		l, a, b := colorful.XyzToLabWhiteRef(xyz[0], xyz[1], xyz[2], d50)
		return [3]float64{l * 100, a * 100, b * 100}
	}
	return xyz
}
