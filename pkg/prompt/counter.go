// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/prog"
)

const (
	counterFile = "prompt_counter.json"
	promptFile  = "prompt.json"
)

// Counter counts how many times every op was offered to the model.
type Counter struct {
	mu     sync.RWMutex
	counts map[string]int
	file   string
}

// LoadCounter restores the counter from dir/prompt_counter.json (if present),
// dir == "" gives an in-memory counter.
func LoadCounter(dir string) (*Counter, error) {
	c := &Counter{counts: make(map[string]int)}
	if dir == "" {
		return c, nil
	}
	c.file = filepath.Join(dir, counterFile)
	data, err := os.ReadFile(c.file)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &c.counts); err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", c.file, err)
	}
	return c, nil
}

func (c *Counter) Inc(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.counts[name]++
	}
}

func (c *Counter) Get(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[name]
}

func (c *Counter) Snapshot() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		res[k] = v
	}
	return res
}

func (c *Counter) Save() error {
	if c.file == "" {
		return nil
	}
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(c.file, data)
}

func SaveCombination(dir string, names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return osutil.WriteFileAtomic(filepath.Join(dir, promptFile), data)
}

// LoadCombination returns the combination saved by the previous session (nil if none).
func LoadCombination(dir string, target *prog.Target) ([]*prog.Op, error) {
	data, err := os.ReadFile(filepath.Join(dir, promptFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", promptFile, err)
	}
	var ops []*prog.Op
	for _, name := range names {
		op := target.OpMap[name]
		if op == nil {
			return nil, fmt.Errorf("saved combination refers to unknown op %v", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
