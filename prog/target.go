// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// Target describes one library whose API harness programs exercise.
type Target struct {
	Name      string
	Desc      string
	Ops       []*Op
	Resources []*ResourceDesc
	Consts    map[string]int64
	// Rules are library-specific instructions appended to generation prompts.
	Rules []string
	// Seeds holds the seed programs (test/*) of the library.
	Seeds fs.FS

	// Filled by prog package:
	OpMap       map[string]*Op
	resourceMap map[string]*ResourceDesc
	constNames  map[int64][]string

	init sync.Once
}

var (
	targetsMu sync.Mutex
	targets   = make(map[string]*Target)
)

func RegisterTarget(target *Target) {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	if targets[target.Name] != nil {
		panic(fmt.Sprintf("duplicate target %v", target.Name))
	}
	targets[target.Name] = target
}

func GetTarget(name string) (*Target, error) {
	targetsMu.Lock()
	target := targets[name]
	targetsMu.Unlock()
	if target == nil {
		var supported []string
		for _, t := range AllTargets() {
			supported = append(supported, t.Name)
		}
		return nil, fmt.Errorf("unknown target: %v (supported: %v)", name, strings.Join(supported, ", "))
	}
	target.initOnce()
	return target, nil
}

func AllTargets() []*Target {
	targetsMu.Lock()
	var res []*Target
	for _, target := range targets {
		res = append(res, target)
	}
	targetsMu.Unlock()
	for _, target := range res {
		target.initOnce()
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}

// initOnce fills the lookup tables; targets may be used directly without GetTarget.
func (target *Target) initOnce() {
	target.init.Do(target.lazyInit)
}

func (target *Target) lazyInit() {
	target.OpMap = make(map[string]*Op)
	target.resourceMap = make(map[string]*ResourceDesc)
	target.constNames = make(map[int64][]string)
	for _, res := range target.Resources {
		target.resourceMap[res.Name] = res
	}
	all := append(append([]*Op{}, commonOps...), target.Ops...)
	for _, op := range all {
		if target.OpMap[op.Name] != nil {
			panic(fmt.Sprintf("%v: duplicate op %v", target.Name, op.Name))
		}
		target.OpMap[op.Name] = op
	}
	for i, op := range target.Ops {
		op.ID = i
		target.checkOp(op)
	}
	for _, res := range target.Resources {
		rel := target.OpMap[res.Release]
		if rel == nil || !rel.Release || len(rel.Args) == 0 || rel.Args[0].Type.Res != res {
			panic(fmt.Sprintf("%v: resource %v has bad release op %q", target.Name, res.Name, res.Release))
		}
	}
	for name, val := range target.Consts {
		target.constNames[val] = append(target.constNames[val], name)
	}
	for _, names := range target.constNames {
		sort.Strings(names)
	}
}

func (target *Target) checkOp(op *Op) {
	if op.Fn == nil {
		panic(fmt.Sprintf("%v: op %v has no implementation", target.Name, op.Name))
	}
	if op.Release && (len(op.Args) == 0 || op.Args[0].Type.Kind != ResourceKind) {
		panic(fmt.Sprintf("%v: release op %v does not take a resource", target.Name, op.Name))
	}
	if op.Borrow && (op.Ret == nil || op.Ret.Kind != ResourceKind) {
		panic(fmt.Sprintf("%v: borrow op %v does not return a resource", target.Name, op.Name))
	}
	for _, idx := range op.Consume {
		if idx >= len(op.Args) || op.Args[idx].Type.Kind != ResourceKind {
			panic(fmt.Sprintf("%v: op %v consumes non-resource arg %v", target.Name, op.Name, idx))
		}
	}
	check := func(typ *Type) {
		if typ != nil && typ.Kind == ResourceKind && target.resourceMap[typ.Res.Name] != typ.Res {
			panic(fmt.Sprintf("%v: op %v uses unregistered resource %v", target.Name, op.Name, typ.Res.Name))
		}
	}
	check(op.Ret)
	for _, arg := range op.Args {
		check(arg.Type)
	}
}

// Const returns the value of a named constant.
func (target *Target) Const(name string) (int64, bool) {
	v, ok := target.Consts[name]
	return v, ok
}

// ReleaseOp returns the op that releases resources of desc.
func (target *Target) ReleaseOp(desc *ResourceDesc) *Op {
	target.initOnce()
	return target.OpMap[desc.Release]
}

// Acquirers returns ops that return owned handles of desc.
func (target *Target) Acquirers(desc *ResourceDesc) []*Op {
	var res []*Op
	for _, op := range target.Ops {
		if op.Ret != nil && op.Ret.Kind == ResourceKind && op.Ret.Res == desc && !op.Borrow {
			res = append(res, op)
		}
	}
	return res
}

func (target *Target) String() string {
	return target.Name
}

// SeedDir returns the dir subtree of an embedded file system for Target.Seeds.
func SeedDir(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
