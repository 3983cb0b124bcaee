// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"fmt"
)

// Validate checks that p is well-typed and uses its resources correctly.
func (p *Prog) Validate() error {
	return p.validate()
}

type validCtx struct {
	p        *Prog
	index    map[*Call]int
	released map[*Call]bool
	consumed map[*Call]bool
}

func (p *Prog) validate() error {
	ctx := &validCtx{
		p:        p,
		index:    make(map[*Call]int),
		released: make(map[*Call]bool),
		consumed: make(map[*Call]bool),
	}
	for i, c := range p.Calls {
		if err := ctx.validateCall(c); err != nil {
			return &TypeError{Call: i, Msg: err.Error()}
		}
		ctx.index[c] = i
	}
	return nil
}

func (ctx *validCtx) validateCall(c *Call) error {
	if c.Op == nil {
		return fmt.Errorf("call without op")
	}
	if ctx.p.Target != nil && ctx.p.Target.OpMap[c.Op.Name] != c.Op {
		return fmt.Errorf("op %v does not belong to target %v", c.Op.Name, ctx.p.Target.Name)
	}
	if len(c.Args) != len(c.Op.Args) {
		return fmt.Errorf("wrong number of arguments for %v: %v, want %v (%v)",
			c.Op.Name, len(c.Args), len(c.Op.Args), Prototype(c.Op))
	}
	if c.Props.Guard == SentinelOK {
		return fmt.Errorf("guard code %v collides with the success sentinel", SentinelOK)
	}
	for i, arg := range c.Args {
		if err := ctx.validateArg(c, c.Op.Args[i], arg); err != nil {
			return fmt.Errorf("%v: argument %v (%v): %w", c.Op.Name, i, c.Op.Args[i].Name, err)
		}
	}
	if c.Op.Release {
		if res, ok := c.Args[0].(*ResultArg); ok {
			switch {
			case res.Res.Op.Borrow:
				return fmt.Errorf("%v releases a borrowed handle returned by %v", c.Op.Name, res.Res.Op.Name)
			case ctx.consumed[res.Res]:
				return fmt.Errorf("%v releases a handle owned by another object", c.Op.Name)
			}
			ctx.released[res.Res] = true
		}
	}
	for _, idx := range c.Op.Consume {
		if res, ok := c.Args[idx].(*ResultArg); ok {
			if res.Res.Op.Borrow {
				return fmt.Errorf("%v takes ownership of a borrowed handle", c.Op.Name)
			}
			if ctx.consumed[res.Res] {
				return fmt.Errorf("%v takes ownership of a handle that is already owned", c.Op.Name)
			}
			ctx.consumed[res.Res] = true
		}
	}
	return nil
}

func (ctx *validCtx) validateArg(c *Call, field Field, arg Arg) error {
	switch a := arg.(type) {
	case nil:
		return fmt.Errorf("missing argument")
	case *ConstArg:
		if field.Type.Kind != IntKind && field.Type.Kind != AnyKind {
			return fmt.Errorf("want %v, got integer %v", field.Type, a.Val)
		}
	case *DataArg:
		if field.Type.Kind == IntKind {
			return fmt.Errorf("want int, got data")
		}
		if field.Type.Kind == ResourceKind && !a.Nil {
			return fmt.Errorf("want %v, got data", field.Type)
		}
	case *ResultArg:
		idx, ok := ctx.index[a.Res]
		if !ok {
			return fmt.Errorf("reference to a later or foreign call")
		}
		if a.Res.Op.Ret == nil {
			return fmt.Errorf("%v returns nothing", a.Res.Op.Name)
		}
		if !field.Type.compatible(a.Res.Op.Ret) {
			return fmt.Errorf("want %v, got %v returned by %v", field.Type, a.Res.Op.Ret, a.Res.Op.Name)
		}
		if ctx.released[a.Res] {
			return fmt.Errorf("use of %v returned by call #%v after release", field.Type, idx)
		}
	default:
		return fmt.Errorf("unknown arg %#v", arg)
	}
	return nil
}
