// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// seq-audit inspects C/C++ API-sequence harnesses: the nominal return value,
// resources that are never released and early returns that leak them.
// The exit status is 1 if any harness has a problem.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/seqfuzz/seqfuzz/pkg/audit"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
)

var (
	flagJSON   = flag.Bool("json", false, "print the reports as JSON")
	flagAll    = flag.Bool("all", false, "audit all functions, not only harness entry points")
	flagCalls  = flag.Bool("calls", false, "print call sequences")
	flagProcs  = flag.Int("procs", runtime.NumCPU(), "number of files to parse in parallel")
	flagStrict = flag.Bool("strict", true, "exit with status 1 if any problems are found")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: seq-audit [flags] file-or-dir+\n")
		flag.PrintDefaults()
	}
	args := tool.Init()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	paths, err := audit.Collect(args)
	if err != nil {
		tool.Fail(err)
	}
	files, err := audit.Files(osutil.ShutdownCtx(), paths, *flagProcs, audit.Options{AllFuncs: *flagAll})
	if err != nil {
		tool.Fail(err)
	}
	summary := audit.Summarize(files)
	if *flagJSON {
		data, err := json.MarshalIndent(struct {
			Files   []*audit.File `json:"files"`
			Summary audit.Summary `json:"summary"`
		}{files, summary}, "", "\t")
		if err != nil {
			tool.Fail(err)
		}
		os.Stdout.Write(append(data, '\n'))
	} else {
		printText(files, summary)
	}
	if *flagStrict && summary.BadSentinel+summary.Unbalanced+summary.EarlyLeaks != 0 {
		os.Exit(1)
	}
}

func printText(files []*audit.File, summary audit.Summary) {
	for _, file := range files {
		if file.Partial {
			fmt.Printf("%v: warning: syntax errors, the report may be incomplete\n", file.Path)
		}
		for _, fn := range file.Funcs {
			problems := fn.Problems()
			status := "OK"
			if len(problems) != 0 {
				status = "FAIL"
			}
			fmt.Printf("%v:%v: %v: %v (%v calls, %v triples)\n", file.Path, fn.Line, fn.Name, status,
				len(fn.Calls), len(fn.Triples))
			for _, problem := range problems {
				fmt.Printf("\t%v\n", problem)
			}
			if *flagCalls {
				for _, call := range fn.Calls {
					fmt.Printf("\t> %v\n", call)
				}
			}
		}
	}
	fmt.Printf("%v files, %v functions: %v bad return, %v unbalanced, %v leaky early returns, %v distinct triples\n",
		summary.Files, summary.Funcs, summary.BadSentinel, summary.Unbalanced, summary.EarlyLeaks, summary.Triples)
}
