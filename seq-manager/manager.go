// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// seq-manager generates harness programs for a library target with an LLM,
// validates them and keeps the corpus in the workdir.
package main

import (
	"context"
	"flag"
	"io"
	"math/rand"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/fuzzer"
	"github.com/seqfuzz/seqfuzz/pkg/llm"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/manager"
	"github.com/seqfuzz/seqfuzz/pkg/mgrconfig"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
)

var (
	flagConfig = flag.String("config", "", "configuration file")
	flagBench  = flag.String("bench", "", "write execution statistics into this file periodically")
)

func main() {
	tool.Init()
	if *flagConfig == "" {
		tool.Failf("-config is required")
	}
	log.EnableLogCaching(1000, 1<<20)
	cfg, err := mgrconfig.LoadFile(*flagConfig)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := RunManager(osutil.ShutdownCtx(), cfg); err != nil {
		log.Fatal(err)
	}
}

func RunManager(ctx context.Context, cfg *mgrconfig.Config) error {
	unlock, err := osutil.LockDir(cfg.Workdir)
	if err != nil {
		return err
	}
	defer unlock()
	handler, err := llm.New(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := handler.(io.Closer); ok {
		defer closer.Close()
	}
	log.Logf(0, "target %v: %v ops, %v mode, %v/%v", cfg.Target, len(cfg.Ops()), cfg.GenMode,
		cfg.Handler, cfg.Model)
	f, err := fuzzer.New(cfg, handler, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return err
	}
	serv := &manager.HTTPServer{
		Cfg:       cfg,
		StartTime: time.Now(),
	}
	serv.Fuzzer.Store(f)
	if cfg.HTTP != "" {
		go func() {
			if err := serv.Serve(ctx); err != nil {
				log.Errorf("http server failed: %v", err)
			}
		}()
	}
	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	go heartbeat(loopCtx, f, *flagBench)
	if err := f.Loop(ctx); err != nil {
		return err
	}
	log.Logf(0, "%v", f.Observer.DumpStates())
	log.Logf(0, "corpus: %v", f.Store.SubDir(seeds.MinDir))
	return nil
}
