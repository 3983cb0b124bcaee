// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package lcms describes the Little CMS 2 profile and transform API for the built-in sRGB, Lab
// and XYZ profiles. Colour conversions are computed with go-colorful.
package lcms

import (
	"embed"

	"github.com/seqfuzz/seqfuzz/prog"
)

// ICC signatures.
const (
	sigRGBData    = 0x52474220 // 'RGB '
	sigLabData    = 0x4C616220 // 'Lab '
	sigXYZData    = 0x58595A20 // 'XYZ '
	sigDisplay    = 0x6D6E7472 // 'mntr'
	sigAbstract   = 0x61627374 // 'abst'
	sigColorSpace = 0x73706163 // 'spac'
)

// Pixel types of the format descriptors.
const (
	ptRGB = 4
	ptXYZ = 9
	ptLab = 10
)

// Rendering intents.
const (
	intentPerceptual = iota
	intentRelativeColorimetric
	intentSaturation
	intentAbsoluteColorimetric
)

const (
	cmsVersion   = 2160
	errTransform = -1
)

// formatOf builds a TYPE_* pixel format descriptor.
func formatOf(float, space, doswap, channels, bytes uint32) int64 {
	return int64(float<<22 | space<<16 | doswap<<10 | channels<<3 | bytes)
}

var (
	profileRes   = &prog.ResourceDesc{Name: "cmsHPROFILE", Release: "cmsCloseProfile"}
	transformRes = &prog.ResourceDesc{Name: "cmsHTRANSFORM", Release: "cmsDeleteTransform"}
)

//go:embed test
var testFS embed.FS

var target = &prog.Target{
	Name:      "lcms",
	Desc:      "Little CMS 2: built-in sRGB, Lab and XYZ profiles, profile queries and colour transforms",
	Resources: []*prog.ResourceDesc{profileRes, transformRes},
	Consts: map[string]int64{
		"cmsSigRgbData":                   sigRGBData,
		"cmsSigLabData":                   sigLabData,
		"cmsSigXYZData":                   sigXYZData,
		"cmsSigDisplayClass":              sigDisplay,
		"cmsSigAbstractClass":             sigAbstract,
		"cmsSigColorSpaceClass":           sigColorSpace,
		"TYPE_RGB_8":                      formatOf(0, ptRGB, 0, 3, 1),
		"TYPE_BGR_8":                      formatOf(0, ptRGB, 1, 3, 1),
		"TYPE_RGB_16":                     formatOf(0, ptRGB, 0, 3, 2),
		"TYPE_RGB_DBL":                    formatOf(1, ptRGB, 0, 3, 0),
		"TYPE_Lab_8":                      formatOf(0, ptLab, 0, 3, 1),
		"TYPE_Lab_16":                     formatOf(0, ptLab, 0, 3, 2),
		"TYPE_Lab_DBL":                    formatOf(1, ptLab, 0, 3, 0),
		"TYPE_XYZ_16":                     formatOf(0, ptXYZ, 0, 3, 2),
		"TYPE_XYZ_DBL":                    formatOf(1, ptXYZ, 0, 3, 0),
		"INTENT_PERCEPTUAL":               intentPerceptual,
		"INTENT_RELATIVE_COLORIMETRIC":    intentRelativeColorimetric,
		"INTENT_SATURATION":               intentSaturation,
		"INTENT_ABSOLUTE_COLORIMETRIC":    intentAbsoluteColorimetric,
		"cmsFLAGS_NOCACHE":                0x0040,
		"cmsFLAGS_NOOPTIMIZE":             0x0100,
		"cmsFLAGS_BLACKPOINTCOMPENSATION": 0x2000,
	},
	Rules: []string{
		"Every cmsCreate*Profile needs cmsCloseProfile and every cmsCreateTransform needs cmsDeleteTransform; " +
			"profiles may be closed as soon as the transform exists.",
		"The input and output formats of cmsCreateTransform must match the colour spaces of the profiles " +
			"(TYPE_RGB_* for sRGB, TYPE_Lab_* for Lab, TYPE_XYZ_* for XYZ).",
		"cmsDoTransform takes a buffer of npixels input pixels and returns npixels output pixels; " +
			"8-bit Lab stores L*255/100 and a, b offset by 128; DBL formats are little-endian float64 triples.",
	},
	Seeds: prog.SeedDir(testFS, "test"),
}

func init() {
	target.Ops = append(profileOps, transformOps...)
	prog.RegisterTarget(target)
	registerFocal()
}
