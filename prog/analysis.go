// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"strings"
)

// Triple is a 3-gram of consecutive library calls ("deflateInit deflate deflateEnd").
type Triple [3]string

func (t Triple) String() string {
	return strings.Join(t[:], " ")
}

// ParseTriple is the inverse of Triple.String.
func ParseTriple(s string) (Triple, bool) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Triple{}, false
	}
	return Triple{parts[0], parts[1], parts[2]}, true
}

// OpNames returns names of the library calls of p in order, common ops are skipped.
func (p *Prog) OpNames() []string {
	var names []string
	for _, c := range p.Calls {
		if !c.Op.Common {
			names = append(names, c.Op.Name)
		}
	}
	return names
}

// Triples returns the distinct 3-grams of consecutive library calls of p in order of appearance.
func (p *Prog) Triples() []Triple {
	return TriplesOf(p.OpNames())
}

func TriplesOf(names []string) []Triple {
	var res []Triple
	dedup := make(map[Triple]bool)
	for i := 0; i+3 <= len(names); i++ {
		t := Triple{names[i], names[i+1], names[i+2]}
		if dedup[t] {
			continue
		}
		dedup[t] = true
		res = append(res, t)
	}
	return res
}

// UsedOps returns the set of distinct library ops called by p.
func (p *Prog) UsedOps() map[string]bool {
	res := make(map[string]bool)
	for _, name := range p.OpNames() {
		res[name] = true
	}
	return res
}
