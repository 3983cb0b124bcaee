// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// seq-run executes harness programs (text files or corpus databases) and reports the results.
// The exit status is 1 if any program failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/db"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/minimize"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys"
)

var (
	flagTarget   = flag.String("target", "", "target library (zlib, cjson, sqlite, cre2, pcap, lcms, xz)")
	flagStrict   = flag.Bool("strict", false, "treat unexpected call errors and leaked handles as failures")
	flagTimeout  = flag.Duration("timeout", runner.DefaultTimeout, "per-program timeout")
	flagOutput   = flag.Bool("output", false, "print results of individual calls")
	flagMinimize = flag.Bool("minimize", false, "print a minimized version of every failing program")
	flagDescribe = flag.Bool("describe", false, "print the target API and exit")
)

type program struct {
	name string
	p    *prog.Prog
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: seq-run -target=zlib [flags] program-or-corpus.db+\n")
		flag.PrintDefaults()
	}
	args := tool.Init()
	target, err := prog.GetTarget(*flagTarget)
	if err != nil {
		tool.Fail(err)
	}
	if *flagDescribe {
		fmt.Printf("%v\n\n%v", target.Describe(nil), target.DescribeConsts())
		return
	}
	progs := loadPrograms(target, args)
	if len(progs) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	opts := &runner.ExecOpts{
		Timeout: *flagTimeout,
	}
	if *flagStrict {
		opts.Mode = runner.ModeStrict
	}
	ctx := osutil.ShutdownCtx()
	failed := 0
	for _, p := range progs {
		if ctx.Err() != nil {
			break
		}
		if !run(ctx, p, opts) {
			failed++
		}
	}
	fmt.Printf("%v programs, %v failed\n", len(progs), failed)
	if failed != 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, p *program, opts *runner.ExecOpts) bool {
	start := time.Now()
	res, err := runner.Exec(ctx, p.p, opts)
	if err != nil {
		tool.Failf("%v: %v", p.name, err)
	}
	log.Logf(1, "%v: executed in %v", p.name, time.Since(start))
	if *flagOutput {
		for i, info := range res.Calls {
			if info.Flags&runner.CallExecuted == 0 {
				continue
			}
			fmt.Printf("%v: #%v %v = %v", p.name, i, info.Op, info.Ret)
			if info.Errno != 0 {
				fmt.Printf(" (errno %v: %v)", info.Errno, info.Err)
			}
			fmt.Printf("\n")
		}
	}
	if !res.Failed() {
		fmt.Printf("%v: OK\n", p.name)
		return true
	}
	fmt.Printf("%v: FAIL %v\n", p.name, strings.ReplaceAll(res.String(), "\n", "\n\t"))
	if *flagMinimize {
		minimized, minRes, err := minimize.Prog(ctx, p.p, opts)
		if err != nil {
			log.Errorf("%v: %v", p.name, err)
		} else {
			fmt.Printf("%v: minimized to %v calls (code %v):\n%s\n", p.name, len(minimized.Calls), minRes.Code,
				minimized.Serialize())
		}
	}
	return false
}

func loadPrograms(target *prog.Target, files []string) []*program {
	var progs []*program
	for _, fn := range files {
		if filepath.Ext(fn) == ".db" {
			corpus, err := db.ReadCorpus(fn, target)
			if err != nil {
				tool.Failf("failed to read corpus %v: %v", fn, err)
			}
			for i, p := range corpus {
				progs = append(progs, &program{fmt.Sprintf("%v#%v", fn, i), p})
			}
			continue
		}
		data, err := os.ReadFile(fn)
		if err != nil {
			tool.Failf("failed to read %v: %v", fn, err)
		}
		p, err := target.Deserialize(data, prog.NonStrict)
		if err != nil {
			tool.Failf("failed to parse %v: %v", fn, err)
		}
		progs = append(progs, &program{fn, p})
	}
	log.Logf(0, "parsed %v programs", len(progs))
	return progs
}
