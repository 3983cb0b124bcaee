// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lcms

import (
	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/prog"
)

var (
	typeRGB8  = formatOf(0, ptRGB, 0, 3, 1)
	typeBGR8  = formatOf(0, ptRGB, 1, 3, 1)
	typeLab8  = formatOf(0, ptLab, 0, 3, 1)
	typeLab16 = formatOf(0, ptLab, 0, 3, 2)
	typeXYZ16 = formatOf(0, ptXYZ, 0, 3, 2)
)

// expectNear checks buffers bytewise within tol.
func expectNear(t *check.T, got, want []byte, tol int, msg string) {
	if len(got) != len(want) {
		t.Errorf("%v: got %v bytes, want %v", msg, len(got), len(want))
		return
	}
	for i := range got {
		if d := int(got[i]) - int(want[i]); d > tol || d < -tol {
			t.Errorf("%v: got % x, want % x", msg, got, want)
			return
		}
	}
}

// newTransformCtx creates the two profiles and a transform, profiles are closed right away.
func newTransformCtx(t *check.T, c *focal.Ctx, in string, inFmt int64, out string, outFmt int64) prog.Value {
	pin, err1 := c.CallOp(in)
	pout, err2 := c.CallOp(out)
	if !t.ExpectNoErr(err1) || !t.ExpectNoErr(err2) {
		return nil
	}
	defer c.CallOp("cmsCloseProfile", pin)
	defer c.CallOp("cmsCloseProfile", pout)
	xf, err := c.CallOp("cmsCreateTransform", pin, inFmt, pout, outFmt, intentRelativeColorimetric, 0)
	if !t.ExpectNoErr(err) {
		return nil
	}
	return xf
}

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "lcms_color_space",
		Target: "lcms",
		Focal:  "cmsGetColorSpace",
		Cases: []focal.Case{
			{Name: "builtin_profiles", Run: func(t *check.T, c *focal.Ctx) {
				tests := []struct {
					create  string
					space   int64
					pcs     int64
					class   int64
					version int64
				}{
					{"cmsCreate_sRGBProfile", sigRGBData, sigXYZData, sigDisplay, 0x04300000},
					{"cmsCreateLab4Profile", sigLabData, sigLabData, sigAbstract, 0x04300000},
					{"cmsCreateLab2Profile", sigLabData, sigLabData, sigAbstract, 0x02100000},
					{"cmsCreateXYZProfile", sigXYZData, sigXYZData, sigAbstract, 0x04300000},
				}
				for _, test := range tests {
					p, err := c.CallOp(test.create)
					if !t.ExpectNoErr(err, test.create) {
						continue
					}
					got, err := c.Call(p)
					t.ExpectNoErr(err, test.create)
					t.ExpectEq(got, test.space, test.create)
					t.ExpectEq(c.Int("cmsGetPCS", p), test.pcs, test.create)
					t.ExpectEq(c.Int("cmsGetDeviceClass", p), test.class, test.create)
					t.ExpectEq(c.Int("cmsGetEncodedICCversion", p), test.version, test.create)
					t.ExpectEq(c.Int("cmsCloseProfile", p), 1, test.create)
				}
			}},
			{Name: "null_profile", Run: func(t *check.T, c *focal.Ctx) {
				_, err := c.Call(nil)
				t.ExpectErrno(err, errTransform)
			}},
			{Name: "closed_profile", Run: func(t *check.T, c *focal.Ctx) {
				p, err := c.CallOp("cmsCreateXYZProfile")
				if !t.ExpectNoErr(err) {
					return
				}
				c.CallOp("cmsCloseProfile", p)
				_, err = c.Call(p)
				t.ExpectErrno(err, errTransform)
			}},
			{Name: "formatter_matches_space", Run: func(t *check.T, c *focal.Ctx) {
				p, err := c.CallOp("cmsCreateLab4Profile")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("cmsCloseProfile", p)
				t.ExpectEq(c.Int("cmsFormatterForColorspaceOfProfile", p, 1, 0), typeLab8)
				t.ExpectEq(c.Int("cmsFormatterForColorspaceOfProfile", p, 2, 0), typeLab16)
				t.ExpectEq(c.Int("cmsFormatterForColorspaceOfProfile", p, 3, 0), 0)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "lcms_do_transform",
		Target: "lcms",
		Focal:  "cmsDoTransform",
		Cases: []focal.Case{
			{Name: "white_and_black_to_lab", Run: func(t *check.T, c *focal.Ctx) {
				xf := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeRGB8, "cmsCreateLab4Profile", typeLab8)
				if xf == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", xf)
				out, err := c.Call(xf, "\xff\xff\xff\x00\x00\x00", 2)
				if t.ExpectNoErr(err) {
					expectNear(t, out.([]byte), []byte{255, 128, 128, 0, 128, 128}, 1, "white, black")
				}
			}},
			{Name: "primaries_to_lab", Run: func(t *check.T, c *focal.Ctx) {
				xf := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeRGB8, "cmsCreateLab4Profile", typeLab8)
				if xf == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", xf)
				// D50 Lab of sRGB red (54.3, 80.8, 69.9) and green (87.8, -79.3, 80.9).
				out, err := c.Call(xf, "\xff\x00\x00\x00\xff\x00", 2)
				if t.ExpectNoErr(err) {
					expectNear(t, out.([]byte), []byte{138, 209, 198, 224, 49, 209}, 2, "red, green")
				}
			}},
			{Name: "round_trip_through_lab", Run: func(t *check.T, c *focal.Ctx) {
				to := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeRGB8, "cmsCreateLab4Profile", typeLab16)
				from := newTransformCtx(t, c, "cmsCreateLab4Profile", typeLab16, "cmsCreate_sRGBProfile", typeRGB8)
				if to == nil || from == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", to)
				defer c.CallOp("cmsDeleteTransform", from)
				in := []byte{10, 20, 30, 128, 128, 128, 200, 100, 50, 255, 0, 255}
				lab := c.Buf("cmsDoTransform", to, in, 4)
				expectNear(t, c.Buf("cmsDoTransform", from, lab, 4), in, 1, "round trip")
			}},
			{Name: "white_to_xyz", Run: func(t *check.T, c *focal.Ctx) {
				xf := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeRGB8, "cmsCreateXYZProfile", typeXYZ16)
				if xf == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", xf)
				// D50 white point 0.9642, 1.0, 0.8249 in 1.15 fixed point.
				expectNear(t, c.Buf("cmsDoTransform", xf, "\xff\xff\xff", 1),
					[]byte{0x6b, 0x7b, 0x00, 0x80, 0x96, 0x69}, 2, "white")
			}},
			{Name: "bgr_order", Run: func(t *check.T, c *focal.Ctx) {
				xf := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeBGR8, "cmsCreate_sRGBProfile", typeRGB8)
				if xf == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", xf)
				t.ExpectEq(c.Buf("cmsDoTransform", xf, "\x01\x02\x03", 1), "\x03\x02\x01")
			}},
			{Name: "format_mismatch", Run: func(t *check.T, c *focal.Ctx) {
				p, err := c.CallOp("cmsCreate_sRGBProfile")
				if !t.ExpectNoErr(err) {
					return
				}
				defer c.CallOp("cmsCloseProfile", p)
				_, err = c.CallOp("cmsCreateTransform", p, typeLab8, p, typeRGB8, intentPerceptual, 0)
				t.ExpectErrno(err, errTransform)
				_, err = c.CallOp("cmsCreateTransform", p, typeRGB8, p, typeRGB8, 7, 0)
				t.ExpectErrno(err, errTransform, "bad intent")
			}},
			{Name: "short_input", Run: func(t *check.T, c *focal.Ctx) {
				xf := newTransformCtx(t, c, "cmsCreate_sRGBProfile", typeRGB8, "cmsCreateLab4Profile", typeLab8)
				if xf == nil {
					return
				}
				defer c.CallOp("cmsDeleteTransform", xf)
				_, err := c.Call(xf, "\xff\xff", 1)
				t.ExpectErrno(err, errTransform)
				out, err := c.Call(xf, nil, 0)
				t.ExpectNoErr(err)
				t.ExpectEq(len(out.([]byte)), 0)
			}},
		},
	})
}
