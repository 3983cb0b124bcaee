// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// ParseFlags parses args into set and expands list flags.
func ParseFlags(set *flag.FlagSet, args []string) error {
	if err := set.Parse(args); err != nil {
		return err
	}
	var errs []error
	set.Visit(func(f *flag.Flag) {
		if v, ok := f.Value.(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				errs = append(errs, fmt.Errorf("flag -%v: %w", f.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

// ListFlag allows passing a comma-separated list of values to the same flag
// (e.g. -suite=zlib.adler32,cjson.parse).
type ListFlag []string

func (l *ListFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *ListFlag) Set(value string) error {
	if len(*l) > 0 {
		return errors.New("list flag was already set")
	}
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		*l = append(*l, v)
	}
	return nil
}

func (l *ListFlag) validate() error {
	seen := make(map[string]bool)
	for _, v := range *l {
		if seen[v] {
			return fmt.Errorf("duplicate value %q", v)
		}
		seen[v] = true
	}
	return nil
}

// Contains reports whether the list is empty (matches everything) or has v.
func (l ListFlag) Contains(v string) bool {
	if len(l) == 0 {
		return true
	}
	for _, x := range l {
		if x == v {
			return true
		}
	}
	return false
}
