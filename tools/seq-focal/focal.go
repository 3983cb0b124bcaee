// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// seq-focal runs focal-function suites of the target libraries.
// The exit status is the number of failed expectations (saturated at 255).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
	_ "github.com/seqfuzz/seqfuzz/sys"
)

func main() {
	var suites tool.ListFlag
	flag.Var(&suites, "suite", "comma-separated suites, focal ops or targets to run (all by default)")
	flagList := flag.Bool("list", false, "list suites and exit")
	tool.Init()
	list := focal.Filter(focal.Suites(), suites)
	if len(list) == 0 {
		tool.Failf("no suites match %v", suites.String())
	}
	if *flagList {
		for _, s := range list {
			fmt.Printf("%-24v %-8v %-28v %v cases\n", s.Name, s.Target, s.Focal, len(s.Cases))
		}
		return
	}
	failures := focal.Run(list, os.Stdout)
	os.Exit(min(failures, 255))
}
