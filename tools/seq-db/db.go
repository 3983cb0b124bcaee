// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// seq-db packs, unpacks, prints and merges corpus databases.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/seqfuzz/seqfuzz/pkg/db"
	"github.com/seqfuzz/seqfuzz/pkg/hash"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/tool"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys"
)

func main() {
	var (
		flagVersion = flag.Uint64("version", 0, "database version")
		flagTarget  = flag.String("target", "", "target library, programs are validated and reformatted if set")
	)
	args := tool.Init()
	if len(args) < 2 {
		usage()
	}
	var target *prog.Target
	if *flagTarget != "" {
		var err error
		target, err = prog.GetTarget(*flagTarget)
		if err != nil {
			tool.Failf("failed to find target: %v", err)
		}
	}
	switch {
	case args[0] == "pack" && len(args) == 3:
		pack(args[1], args[2], target, *flagVersion)
	case args[0] == "unpack" && len(args) == 3:
		unpack(args[1], args[2])
	case args[0] == "print" && len(args) == 2:
		printDB(args[1])
	case args[0] == "merge" && len(args) >= 3:
		merge(args[1], args[2:], target)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  seq-db pack dir corpus.db\n")
	fmt.Fprintf(os.Stderr, "  seq-db unpack corpus.db dir\n")
	fmt.Fprintf(os.Stderr, "  seq-db print corpus.db\n")
	fmt.Fprintf(os.Stderr, "  seq-db merge dst-corpus.db add-corpus.db* add-prog*\n")
	os.Exit(1)
}

func pack(dir, file string, target *prog.Target, version uint64) {
	files, err := osutil.ListDir(dir)
	if err != nil {
		tool.Failf("failed to read dir: %v", err)
	}
	var records []db.Record
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			tool.Failf("failed to read file %v: %v", name, err)
		}
		var seq uint64
		key := name
		if parts := strings.Split(name, "-"); len(parts) == 2 {
			if seq, err = strconv.ParseUint(parts[1], 10, 64); err == nil {
				key = parts[0]
			}
		}
		if target != nil {
			data = reformat(target, name, data)
		}
		if sig := hash.String(data); key != sig {
			fmt.Fprintf(os.Stderr, "fixing hash %v -> %v\n", key, sig)
		}
		records = append(records, db.Record{
			Val: data,
			Seq: seq,
		})
	}
	if err := db.Create(file, version, records); err != nil {
		tool.Fail(err)
	}
}

func reformat(target *prog.Target, name string, data []byte) []byte {
	p, err := target.Deserialize(data, prog.NonStrict)
	if err != nil {
		tool.Failf("failed to deserialize %v: %v", name, err)
	}
	return p.Serialize()
}

func unpack(file, dir string) {
	corpus, err := db.Open(file)
	if err != nil {
		tool.Failf("failed to open database: %v", err)
	}
	if err := osutil.MkdirAll(dir); err != nil {
		tool.Fail(err)
	}
	for key, rec := range corpus.Records {
		fname := filepath.Join(dir, key)
		if rec.Seq != 0 {
			fname += fmt.Sprintf("-%v", rec.Seq)
		}
		if err := osutil.WriteFile(fname, rec.Val); err != nil {
			tool.Failf("failed to output file: %v", err)
		}
	}
}

func printDB(file string) {
	corpus, err := db.Open(file)
	if err != nil {
		tool.Failf("failed to open database: %v", err)
	}
	fmt.Printf("version %v, %v records\n", corpus.Version, len(corpus.Records))
	for _, key := range corpus.Keys() {
		rec := corpus.Records[key]
		fmt.Printf("\n# %v seq %v\n%s", key, rec.Seq, rec.Val)
	}
}

func merge(file string, adds []string, target *prog.Target) {
	dstDB, err := db.Open(file)
	if err != nil {
		tool.Failf("failed to open database: %v", err)
	}
	for _, add := range adds {
		if filepath.Ext(add) == ".db" {
			addDB, err := db.Open(add)
			if err != nil {
				tool.Failf("failed to open database %v: %v", add, err)
			}
			for key, rec := range addDB.Records {
				dstDB.Save(key, rec.Val, rec.Seq)
			}
			continue
		}
		data, err := os.ReadFile(add)
		if err != nil {
			tool.Fail(err)
		}
		if target != nil {
			data = reformat(target, add, data)
		}
		dstDB.Save(hash.String(data), data, 0)
	}
	if err := dstDB.Flush(); err != nil {
		tool.Failf("failed to save database: %v", err)
	}
}
