// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Prototype renders the signature of op: "r = deflate(strm z_stream, flush int) int".
func Prototype(op *Op) string {
	var args []string
	for _, arg := range op.Args {
		args = append(args, fmt.Sprintf("%v %v", arg.Name, arg.Type))
	}
	res := fmt.Sprintf("%v(%v)", op.Name, strings.Join(args, ", "))
	if op.Ret != nil {
		res = "r = " + res + " " + op.Ret.String()
	}
	return res
}

// Describe renders the API description of the named ops (all ops if names is empty)
// together with the resources and constants they use.
func (target *Target) Describe(names []string) string {
	target.initOnce()
	ops := target.Ops
	if len(names) != 0 {
		ops = nil
		for _, name := range names {
			if op := target.OpMap[name]; op != nil {
				ops = append(ops, op)
			}
		}
	}
	buf := new(bytes.Buffer)
	resources := make(map[*ResourceDesc]bool)
	for _, op := range ops {
		fmt.Fprintf(buf, "%v", Prototype(op))
		if op.Doc != "" {
			fmt.Fprintf(buf, "  # %v", op.Doc)
		}
		fmt.Fprintf(buf, "\n")
		for _, typ := range opTypes(op) {
			if typ.Kind == ResourceKind {
				resources[typ.Res] = true
			}
		}
	}
	if len(resources) != 0 {
		var res []string
		for desc := range resources {
			res = append(res, fmt.Sprintf("%v (released by %v)", desc.Name, desc.Release))
		}
		sort.Strings(res)
		fmt.Fprintf(buf, "\nresources: %v\n", strings.Join(res, ", "))
	}
	return buf.String()
}

// DescribeConsts lists named constants of the target sorted by name.
func (target *Target) DescribeConsts() string {
	var names []string
	for name := range target.Consts {
		names = append(names, name)
	}
	sort.Strings(names)
	buf := new(bytes.Buffer)
	for _, name := range names {
		fmt.Fprintf(buf, "%v = %v\n", name, target.Consts[name])
	}
	return buf.String()
}

func opTypes(op *Op) []*Type {
	var res []*Type
	for _, arg := range op.Args {
		res = append(res, arg.Type)
	}
	if op.Ret != nil {
		res = append(res, op.Ret)
	}
	return res
}
