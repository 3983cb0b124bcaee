// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lcms

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
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
	if failures := focal.Run(focal.Filter(focal.Suites(), []string{"lcms"}), buf); failures != 0 {
		t.Fatalf("%v failures:\n%s", failures, buf.Bytes())
	}
}

func TestFormatConstants(t *testing.T) {
	// Values from lcms2.h.
	assert.Equal(t, int64(0x40019), target.Consts["TYPE_RGB_8"])
	assert.Equal(t, int64(0x40419), target.Consts["TYPE_BGR_8"])
	assert.Equal(t, int64(0xa0019), target.Consts["TYPE_Lab_8"])
	assert.Equal(t, int64(0x9001a), target.Consts["TYPE_XYZ_16"])
	assert.Equal(t, int64(0x4a0018), target.Consts["TYPE_Lab_DBL"])

	pf, err := parseFormat(typeLab16)
	require.NoError(t, err)
	assert.Equal(t, 6, pf.pixelSize())
	pf, err = parseFormat(target.Consts["TYPE_RGB_DBL"])
	require.NoError(t, err)
	assert.Equal(t, 24, pf.pixelSize())

	for _, bad := range []int64{
		-1,
		formatOf(0, ptRGB, 0, 4, 1),         // 4 channels
		formatOf(0, ptXYZ, 0, 3, 1),         // 8-bit XYZ
		formatOf(0, 3, 0, 3, 1),             // gray
		formatOf(1, ptRGB, 0, 3, 4),         // float32
		formatOf(0, ptRGB, 0, 3, 1) | 1<<12, // planar
	} {
		_, err := parseFormat(bad)
		assert.Error(t, err, "0x%x", bad)
	}
}

func TestAdaptationMapsWhitePoints(t *testing.T) {
	got := mul(d65ToD50, rgbWhite)
	assert.InDeltaSlice(t, d50[:], got[:], 1e-6)
	back := mul(d50ToD65, got)
	assert.InDeltaSlice(t, rgbWhite[:], back[:], 1e-6)
	assert.InDeltaSlice(t, colorful.D65[:], rgbWhite[:], 1e-3)
}

func TestPCSRoundTrip(t *testing.T) {
	for _, rgb := range [][3]float64{{0, 0, 0}, {1, 1, 1}, {0.2, 0.4, 0.6}, {1, 0, 0.5}} {
		lab := fromPCS(ptLab, toPCS(ptRGB, rgb))
		back := fromPCS(ptRGB, toPCS(ptLab, lab))
		assert.InDeltaSlice(t, rgb[:], back[:], 1e-6, "%v via Lab %v", rgb, lab)
	}
	white := fromPCS(ptLab, toPCS(ptRGB, [3]float64{1, 1, 1}))
	assert.InDelta(t, 100, white[0], 1e-3)
	assert.InDelta(t, 0, white[1], 1e-3)
	assert.InDelta(t, 0, white[2], 1e-3)
}

func TestRGBWhiteIsPCSWhite(t *testing.T) {
	xyz := toPCS(ptRGB, [3]float64{1, 1, 1})
	assert.InDeltaSlice(t, []float64{0.9642, 1.0, 0.8249}, xyz[:], 1e-5)
	out, err := parseFormat(typeXYZ16)
	require.NoError(t, err)
	buf := make([]byte, out.pixelSize())
	out.encode(buf, xyz)
	assert.Equal(t, []byte{0x6b, 0x7b, 0x00, 0x80, 0x96, 0x69}, buf)
}

func TestDoubleFormats(t *testing.T) {
	in, err := parseFormat(target.Consts["TYPE_Lab_DBL"])
	require.NoError(t, err)
	buf := make([]byte, in.pixelSize())
	in.encode(buf, [3]float64{50, -20.5, 10.25})
	assert.Equal(t, [3]float64{50, -20.5, 10.25}, in.decode(buf))

	out, err := parseFormat(typeLab8)
	require.NoError(t, err)
	small := make([]byte, out.pixelSize())
	out.encode(small, [3]float64{150, -200, 300})
	assert.Equal(t, []byte{255, 0, 255}, small, "out of range values are clamped")
	assert.False(t, math.IsNaN(out.decode(small)[0]))
}
