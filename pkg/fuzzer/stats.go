// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"github.com/seqfuzz/seqfuzz/pkg/stat"
)

type Stats struct {
	statReplies       *stat.Val
	statValid         *stat.Val
	statRejected      *stat.Val
	statRepaired      *stat.Val
	statRepairFailed  *stat.Val
	statExecs         *stat.Val
	statExecTime      *stat.Val
	statRounds        *stat.Val
	statShuffles      *stat.Val
	statRechecked     *stat.Val
	statRecheckFailed *stat.Val
}

func newStats() Stats {
	return Stats{
		statReplies: stat.New("replies", "Candidate programs returned by the model",
			stat.Simple, stat.Rate{}, stat.Prometheus("seqfuzz_replies")),
		statValid: stat.New("valid", "Candidate programs that passed validation",
			stat.Simple, stat.Prometheus("seqfuzz_valid")),
		statRejected: stat.New("rejected", "Candidate programs rejected by validation",
			stat.Prometheus("seqfuzz_rejected")),
		statRepaired: stat.New("repaired", "Rejected programs fixed by a repair prompt",
			stat.Simple, stat.Prometheus("seqfuzz_repaired")),
		statRepairFailed: stat.New("repair failed", "Repair prompts that did not produce a valid program",
			stat.Prometheus("seqfuzz_repair_failed")),
		statExecs: stat.New("execs", "Program executions", stat.Rate{},
			stat.Prometheus("seqfuzz_execs")),
		statExecTime: stat.New("exec time", "Execution time of programs (ms)", stat.Distribution{}),
		statRounds: stat.New("rounds", "Generation rounds", stat.Console,
			stat.Prometheus("seqfuzz_rounds")),
		statShuffles: stat.New("shuffles", "Combinations abandoned without successes"),
		statRechecked: stat.New("rechecked", "Corpus programs executed by the recheck"),
		statRecheckFailed: stat.New("recheck failed", "Corpus programs rejected by the recheck",
			stat.Prometheus("seqfuzz_recheck_failed")),
	}
}
