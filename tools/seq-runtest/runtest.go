// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Runtest runs the seed programs in sys/*/test/* and checks their annotated results. Start as:
// $ seq-runtest -target=zlib,cjson
// Also see pkg/runtest docs.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys"
)

func main() {
	var targets tool.ListFlag
	flag.Var(&targets, "target", "comma-separated targets to test (all by default)")
	flagTests := flag.String("tests", "", "prefix to match test file names")
	flagProcs := flag.Int("procs", runtime.NumCPU(), "number of programs to run in parallel")
	flagTimeout := flag.Duration("timeout", runner.DefaultTimeout, "per-program timeout")
	tool.Init()
	ctx := osutil.ShutdownCtx()
	failed := false
	for _, target := range prog.AllTargets() {
		if !targets.Contains(target.Name) {
			continue
		}
		rt := &runtest.Context{
			Target:  target,
			Procs:   *flagProcs,
			Timeout: *flagTimeout,
			Filter:  *flagTests,
			LogFunc: func(text string) { fmt.Println(text) },
		}
		if err := rt.Run(ctx); err != nil {
			fmt.Printf("%v: %v\n", target.Name, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
