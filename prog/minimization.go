// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// Minimize minimizes program p0 into an equivalent program using the equivalence
// predicate pred. It iteratively generates simpler programs and asks pred
// whether it is equal to the original program or not. If it is equivalent then
// the simplification attempt is committed and the process continues.
// Candidates that fail validation are never passed to pred.
func Minimize(p0 *Prog, pred0 func(*Prog) bool) *Prog {
	pred := func(p *Prog) bool {
		if p.validate() != nil {
			return false
		}
		return pred0(p)
	}
	p0 = removeCalls(p0, pred)
	for i := 0; i < len(p0.Calls); i++ {
		for j := range p0.Calls[i].Args {
			p0 = shrinkData(p0, i, j, pred)
		}
	}
	return p0
}

// removeCalls tries to remove calls one-by-one starting from the end.
// Calls that use the removed call's result are removed together with it.
func removeCalls(p0 *Prog, pred func(*Prog) bool) *Prog {
	for i := len(p0.Calls) - 1; i >= 0; i-- {
		if i >= len(p0.Calls) {
			continue
		}
		p := p0.Clone()
		p.removeCallWithUsers(i)
		if !pred(p) {
			continue
		}
		p0 = p
	}
	return p0
}

func (p *Prog) removeCallWithUsers(idx int) {
	dead := map[*Call]bool{p.Calls[idx]: true}
	var calls []*Call
	for _, c := range p.Calls {
		if dead[c] {
			continue
		}
		uses := false
		for _, arg := range c.Args {
			if res, ok := arg.(*ResultArg); ok && dead[res.Res] {
				uses = true
			}
		}
		if uses {
			dead[c] = true
			continue
		}
		calls = append(calls, c)
	}
	p.Calls = calls
}

// shrinkData tries to halve a data argument while pred holds.
func shrinkData(p0 *Prog, callIdx, argIdx int, pred func(*Prog) bool) *Prog {
	for {
		arg, ok := p0.Calls[callIdx].Args[argIdx].(*DataArg)
		if !ok || arg.Nil || len(arg.Data) == 0 {
			return p0
		}
		p := p0.Clone()
		p.Calls[callIdx].Args[argIdx] = MakeData(arg.Data[:len(arg.Data)/2])
		if !pred(p) {
			return p0
		}
		p0 = p
	}
}
