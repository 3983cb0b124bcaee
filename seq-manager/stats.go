// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/fuzzer"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/stat"
)

// heartbeat periodically prints console stats and appends all stats to the bench file.
func heartbeat(ctx context.Context, f *fuzzer.Fuzzer, bench string) {
	var benchFile *os.File
	if bench != "" {
		var err error
		benchFile, err = os.OpenFile(bench, os.O_WRONLY|os.O_CREATE|os.O_APPEND, osutil.DefaultFilePerm)
		if err != nil {
			log.Errorf("failed to open bench file: %v", err)
		} else {
			defer benchFile.Close()
		}
	}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	benchTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		buf := new(strings.Builder)
		for _, s := range stat.Collect(stat.Console) {
			fmt.Fprintf(buf, "%v=%v ", s.Name, s.Value)
		}
		log.Logf(0, "%vquiet=%v prompt=[%v]", buf, f.QuietRound(), f.Prompt())
		if benchFile == nil || time.Since(benchTime) < time.Minute {
			continue
		}
		benchTime = time.Now()
		vals := map[string]int{
			"uptime": int(f.Store.Elapsed() / time.Second),
		}
		for _, s := range stat.Collect(stat.All) {
			vals[s.Name] = s.V
		}
		data, err := json.MarshalIndent(vals, "", "  ")
		if err != nil {
			log.Fatalf("failed to serialize bench data: %v", err)
		}
		if _, err := benchFile.Write(append(data, '\n')); err != nil {
			log.Fatalf("failed to write bench data: %v", err)
		}
	}
}
