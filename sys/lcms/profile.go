// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lcms

import (
	"fmt"

	"github.com/seqfuzz/seqfuzz/prog"
)

// profile is a built-in virtual profile.
type profile struct {
	space   uint32 // pixel type of the data colour space
	class   uint32
	pcs     uint32
	version uint32
	desc    string
	closed  bool
}

var spaceSigs = map[uint32]uint32{
	ptRGB: sigRGBData,
	ptLab: sigLabData,
	ptXYZ: sigXYZData,
}

func newSRGB() *profile {
	return &profile{space: ptRGB, class: sigDisplay, pcs: sigXYZData, version: 0x04300000, desc: "sRGB built-in"}
}

func newLab(version uint32) *profile {
	return &profile{space: ptLab, class: sigAbstract, pcs: sigLabData, version: version, desc: "Lab identity built-in"}
}

func newXYZ() *profile {
	return &profile{space: ptXYZ, class: sigAbstract, pcs: sigXYZData, version: 0x04300000, desc: "XYZ identity built-in"}
}

func profileArg(args []prog.Value, i int) (*profile, error) {
	p, ok := prog.ResArg[*profile](args, i)
	if !ok {
		return nil, prog.Errnof(errTransform, "NULL profile")
	}
	if p.closed {
		return nil, prog.Errnof(errTransform, "profile is closed")
	}
	return p, nil
}

// transform converts pixels between two profiles. It keeps copies of the profile colour spaces,
// so the profiles may be closed while the transform is in use.
type transform struct {
	in, out     pixelFormat
	inSp, outSp uint32
	intent      int64
	deleted     bool
}

func newTransform(in *profile, inFormat int64, out *profile, outFormat int64, intent int64) (*transform, error) {
	inPF, err := parseFormat(inFormat)
	if err != nil {
		return nil, err
	}
	outPF, err := parseFormat(outFormat)
	if err != nil {
		return nil, err
	}
	if inPF.space != in.space {
		return nil, fmt.Errorf("wrong input color space on transform")
	}
	if outPF.space != out.space {
		return nil, fmt.Errorf("wrong output color space on transform")
	}
	if intent < intentPerceptual || intent > intentAbsoluteColorimetric {
		return nil, fmt.Errorf("unsupported intent %v", intent)
	}
	return &transform{in: inPF, out: outPF, inSp: in.space, outSp: out.space, intent: intent}, nil
}

func (t *transform) apply(input []byte, npixels int64) ([]byte, error) {
	if npixels < 0 || npixels*int64(t.in.pixelSize()) > int64(len(input)) {
		return nil, fmt.Errorf("input holds %v bytes, %v pixels of %v bytes requested",
			len(input), npixels, t.in.pixelSize())
	}
	out := make([]byte, int(npixels)*t.out.pixelSize())
	for i := 0; i < int(npixels); i++ {
		v := t.in.decode(input[i*t.in.pixelSize():])
		if t.inSp != t.outSp {
			v = fromPCS(t.outSp, toPCS(t.inSp, v))
		}
		t.out.encode(out[i*t.out.pixelSize():], v)
	}
	return out, nil
}

func transformArg(args []prog.Value, i int) (*transform, error) {
	t, ok := prog.ResArg[*transform](args, i)
	if !ok {
		return nil, prog.Errnof(errTransform, "NULL transform")
	}
	if t.deleted {
		return nil, prog.Errnof(errTransform, "transform is deleted")
	}
	return t, nil
}

func creator(name, doc string, fn func() *profile) *prog.Op {
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Ret:  prog.Handle(profileRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return fn(), nil
		},
	}
}

func profileInt(name, doc string, fn func(p *profile) int64) *prog.Op {
	return &prog.Op{
		Name: name,
		Doc:  doc,
		Args: []prog.Field{{Name: "profile", Type: prog.Handle(profileRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			p, err := profileArg(args, 0)
			if err != nil {
				return nil, err
			}
			return fn(p), nil
		},
	}
}

var profileOps = []*prog.Op{
	creator("cmsCreate_sRGBProfile", "creates the built-in sRGB display profile (v4.3)", newSRGB),
	creator("cmsCreateLab4Profile", "creates a v4.3 Lab identity profile with a D50 white point",
		func() *profile { return newLab(0x04300000) }),
	creator("cmsCreateLab2Profile", "creates a v2.1 Lab identity profile with a D50 white point",
		func() *profile { return newLab(0x02100000) }),
	creator("cmsCreateXYZProfile", "creates an XYZ identity profile", newXYZ),
	{
		Name:    "cmsCloseProfile",
		Doc:     "closes a profile, returns 1 on success",
		Args:    []prog.Field{{Name: "profile", Type: prog.Handle(profileRes)}},
		Ret:     prog.Int,
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			p, err := profileArg(args, 0)
			if err != nil {
				return int64(0), err
			}
			p.closed = true
			return int64(1), nil
		},
	},
	profileInt("cmsGetColorSpace", "returns the data colour space signature",
		func(p *profile) int64 { return int64(spaceSigs[p.space]) }),
	profileInt("cmsGetPCS", "returns the profile connection space signature",
		func(p *profile) int64 { return int64(p.pcs) }),
	profileInt("cmsGetDeviceClass", "returns the device class signature",
		func(p *profile) int64 { return int64(p.class) }),
	profileInt("cmsGetEncodedICCversion", "returns the ICC version in header encoding, e.g. 0x04300000",
		func(p *profile) int64 { return int64(p.version) }),
	profileInt("cmsIsMatrixShaper", "returns 1 for matrix-shaper profiles",
		func(p *profile) int64 { return prog.BoolInt(p.space == ptRGB) }),
	{
		Name: "cmsSetEncodedICCversion",
		Doc:  "sets the ICC version in header encoding",
		Args: []prog.Field{{Name: "profile", Type: prog.Handle(profileRes)}, {Name: "version", Type: prog.Int}},
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			p, err := profileArg(args, 0)
			if err != nil {
				return nil, err
			}
			p.version = uint32(prog.IntArg(args, 1))
			return nil, nil
		},
	},
	{
		Name: "cmsGetProfileInfoASCII",
		Doc:  "returns the profile description",
		Args: []prog.Field{{Name: "profile", Type: prog.Handle(profileRes)}},
		Ret:  prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			p, err := profileArg(args, 0)
			if err != nil {
				return nil, err
			}
			return []byte(p.desc), nil
		},
	},
	{
		Name: "cmsFormatterForColorspaceOfProfile",
		Doc:  "returns a 3-channel pixel format for the colour space of the profile, 0 if there is none",
		Args: []prog.Field{
			{Name: "profile", Type: prog.Handle(profileRes)},
			{Name: "nbytes", Type: prog.Int},
			{Name: "is_float", Type: prog.Int},
		},
		Ret: prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			p, err := profileArg(args, 0)
			if err != nil {
				return nil, err
			}
			nbytes, isFloat := prog.IntArg(args, 1), prog.IntArg(args, 2) != 0
			var f int64
			if isFloat {
				f = formatOf(1, p.space, 0, 3, uint32(nbytes&7))
			} else {
				f = formatOf(0, p.space, 0, 3, uint32(nbytes&7))
			}
			if _, err := parseFormat(f); err != nil {
				return int64(0), nil
			}
			return f, nil
		},
	},
	{
		Name: "cmsGetEncodedCMMversion",
		Doc:  "returns the library version, e.g. 2160",
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			return int64(cmsVersion), nil
		},
	},
}

var transformOps = []*prog.Op{
	{
		Name: "cmsCreateTransform",
		Doc:  "creates a transform between two profiles, NULL when formats do not match the profiles",
		Args: []prog.Field{
			{Name: "input", Type: prog.Handle(profileRes)},
			{Name: "in_format", Type: prog.Int},
			{Name: "output", Type: prog.Handle(profileRes)},
			{Name: "out_format", Type: prog.Int},
			{Name: "intent", Type: prog.Int},
			{Name: "flags", Type: prog.Int},
		},
		Ret: prog.Handle(transformRes),
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			in, err := profileArg(args, 0)
			if err != nil {
				return nil, err
			}
			out, err := profileArg(args, 2)
			if err != nil {
				return nil, err
			}
			t, err := newTransform(in, prog.IntArg(args, 1), out, prog.IntArg(args, 3), prog.IntArg(args, 4))
			if err != nil {
				return nil, prog.Errnof(errTransform, "%v", err)
			}
			return t, nil
		},
	},
	{
		Name: "cmsDoTransform",
		Doc:  "transforms npixels pixels of input and returns the output pixels",
		Args: []prog.Field{
			{Name: "transform", Type: prog.Handle(transformRes)},
			{Name: "input", Type: prog.Buffer},
			{Name: "npixels", Type: prog.Int},
		},
		Ret: prog.Buffer,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			t, err := transformArg(args, 0)
			if err != nil {
				return nil, err
			}
			out, err := t.apply(prog.BufArg(args, 1), prog.IntArg(args, 2))
			if err != nil {
				return nil, prog.Errnof(errTransform, "%v", err)
			}
			return out, nil
		},
	},
	{
		Name: "cmsGetTransformInputFormat",
		Args: []prog.Field{{Name: "transform", Type: prog.Handle(transformRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			t, err := transformArg(args, 0)
			if err != nil {
				return int64(0), nil
			}
			return t.in.raw, nil
		},
	},
	{
		Name: "cmsGetTransformOutputFormat",
		Args: []prog.Field{{Name: "transform", Type: prog.Handle(transformRes)}},
		Ret:  prog.Int,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			t, err := transformArg(args, 0)
			if err != nil {
				return int64(0), nil
			}
			return t.out.raw, nil
		},
	},
	{
		Name:    "cmsDeleteTransform",
		Args:    []prog.Field{{Name: "transform", Type: prog.Handle(transformRes)}},
		Release: true,
		Fn: func(env prog.Env, args []prog.Value) (prog.Value, error) {
			t, ok := prog.ResArg[*transform](args, 0)
			if !ok {
				return nil, nil
			}
			if t.deleted {
				return nil, prog.Errnof(errTransform, "transform deleted twice")
			}
			t.deleted = true
			return nil, nil
		},
	},
}
