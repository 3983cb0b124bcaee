// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package prog models harness programs: straight-line sequences of calls into one target library.
package prog

// SentinelOK is returned by a harness that ran to completion.
const SentinelOK = 66

type Prog struct {
	Target *Target
	Calls  []*Call
}

type Call struct {
	Op    *Op
	Args  []Arg
	Props CallProps
}

// CallProps are optional per-call annotations: "(guard: 1, errno: -3)".
type CallProps struct {
	// Guard is the early-exit code returned by the harness when the call fails (0 means unguarded).
	Guard int
	// Errno is the error code a deliberate edge-case call is expected to produce.
	Errno *int
}

type Arg interface {
	isArg()
}

// ConstArg is an integer literal, Name keeps the symbolic constant if one was used.
type ConstArg struct {
	Val  int64
	Name string
}

// DataArg is a buffer literal; Nil denotes the NULL pointer (also valid for resource arguments).
type DataArg struct {
	Data []byte
	Nil  bool
}

// ResultArg refers to the return value of an earlier call.
type ResultArg struct {
	Res *Call
}

func (*ConstArg) isArg()  {}
func (*DataArg) isArg()   {}
func (*ResultArg) isArg() {}

func MakeConst(v int64) *ConstArg {
	return &ConstArg{Val: v}
}

func MakeData(data []byte) *DataArg {
	return &DataArg{Data: append([]byte{}, data...)}
}

func MakeNil() *DataArg {
	return &DataArg{Nil: true}
}

func MakeResult(c *Call) *ResultArg {
	return &ResultArg{Res: c}
}

// MakeCall creates a call of op named name, it panics on unknown ops (for tests and builders).
func (target *Target) MakeCall(name string, args ...Arg) *Call {
	target.initOnce()
	op := target.OpMap[name]
	if op == nil {
		panic("unknown op " + name)
	}
	return &Call{Op: op, Args: args}
}

// Clone returns a deep copy of p.
func (p *Prog) Clone() *Prog {
	p1 := &Prog{Target: p.Target}
	newCalls := make(map[*Call]*Call)
	for _, c := range p.Calls {
		c1 := &Call{Op: c.Op, Props: c.Props}
		if c.Props.Errno != nil {
			errno := *c.Props.Errno
			c1.Props.Errno = &errno
		}
		for _, arg := range c.Args {
			c1.Args = append(c1.Args, cloneArg(arg, newCalls))
		}
		newCalls[c] = c1
		p1.Calls = append(p1.Calls, c1)
	}
	return p1
}

func cloneArg(arg Arg, newCalls map[*Call]*Call) Arg {
	switch a := arg.(type) {
	case *ConstArg:
		return &ConstArg{Val: a.Val, Name: a.Name}
	case *DataArg:
		if a.Nil {
			return MakeNil()
		}
		return MakeData(a.Data)
	case *ResultArg:
		res := newCalls[a.Res]
		if res == nil {
			panic("result refers to a later or foreign call")
		}
		return MakeResult(res)
	}
	panic("unknown arg kind")
}

// Uses returns the calls whose results are referenced by other calls.
func (p *Prog) Uses() map[*Call]bool {
	uses := make(map[*Call]bool)
	for _, c := range p.Calls {
		for _, arg := range c.Args {
			if res, ok := arg.(*ResultArg); ok {
				uses[res.Res] = true
			}
		}
	}
	return uses
}

// RemoveCall removes the call at index idx. The call's result must not be used.
func (p *Prog) RemoveCall(idx int) {
	c := p.Calls[idx]
	if p.Uses()[c] {
		panic("removing a call whose result is used")
	}
	copy(p.Calls[idx:], p.Calls[idx+1:])
	p.Calls[len(p.Calls)-1] = nil
	p.Calls = p.Calls[:len(p.Calls)-1]
}
