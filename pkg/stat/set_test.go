// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	a := assert.New(t)
	set := newSet()

	a.Empty(set.Collect(All))

	v0 := set.New("v0", "desc0")
	a.Equal(0, v0.Val())
	v0.Add(1)
	a.Equal(1, v0.Val())
	v0.Add(2)
	a.Equal(3, v0.Val())

	vv1 := 0
	v1 := set.New("v1", "desc1", Simple, func() int { return vv1 })
	a.Equal(0, v1.Val())
	vv1 = 11
	a.Equal(11, v1.Val())
	a.Panics(func() { v1.Add(1) })

	v2 := set.New("v2", "desc2", Console, func(v int, period time.Duration) string {
		return "custom"
	})
	v2.Add(1)

	a.Equal([]UI{
		{Name: "v2", Desc: "desc2", Level: Console, Value: "custom", V: 1},
		{Name: "v1", Desc: "desc1", Level: Simple, Value: "11", V: 11},
		{Name: "v0", Desc: "desc0", Level: All, Value: "3", V: 3},
	}, set.Collect(All))

	a.Equal([]UI{
		{Name: "v2", Desc: "desc2", Level: Console, Value: "custom", V: 1},
	}, set.Collect(Console))
}

func TestDistribution(t *testing.T) {
	set := newSet()
	v := set.New("calls per program", "", Distribution{})
	assert.Equal(t, 0, v.Val())
	for _, x := range []int{2, 4, 6} {
		v.Add(x)
	}
	assert.Equal(t, 4, v.Val())
	assert.InDelta(t, 4, v.Quantile(0.5), 2)
	assert.Panics(t, func() { set.New("plain", "").Quantile(0.5) })
}

func TestLenOf(t *testing.T) {
	var mu sync.RWMutex
	var progs []string
	set := newSet()
	v := set.New("corpus", "", LenOf(&progs, &mu))
	assert.Equal(t, 0, v.Val())
	mu.Lock()
	progs = append(progs, "a", "b")
	mu.Unlock()
	assert.Equal(t, 2, v.Val())
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "100 (10/sec)", formatRate(100, 10*time.Second))
	assert.Equal(t, "10 (60/min)", formatRate(10, 10*time.Second))
	assert.Equal(t, "1 (360/hour)", formatRate(1, 10*time.Second))
}
