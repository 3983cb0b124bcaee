// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mgrconfig

import (
	"github.com/seqfuzz/seqfuzz/prog"
)

type Config struct {
	// Instance name (used for identification in logs and the web UI).
	Name string `json:"name"`
	// Target library, e.g. "zlib" or "sqlite".
	Target string `json:"target"`
	// Location of a working directory for the seq-manager process. Outputs here include:
	// - <workdir>/<target>/succ/*: programs that passed validation
	// - <workdir>/<target>/err/*: failed programs with the error next to them
	// - <workdir>/<target>/pairs/*: API triples of successful programs
	// - <workdir>/<target>/min/*: minimized corpus
	// - <workdir>/<target>/misc/*: prompt state and seed metadata
	// - <workdir>/<target>/corpus.db: successful programs with their signal
	Workdir string `json:"workdir"`
	// URL that will display information about the running seq-manager process (e.g. "localhost:50000").
	HTTP string `json:"http"`

	// "api-combination" (default): harness programs from API combinations, novelty is measured in
	// API triples. "fuzz-driver": novelty is measured in execution signal.
	GenMode string `json:"gen_mode"`
	// LLM backend: "openai" (any OpenAI-compatible chat completions endpoint) or "gemini".
	Handler string `json:"handler"`
	Model   string `json:"model"`
	// Base URL of the chat completions API (default https://api.openai.com/v1).
	APIBase string `json:"api_base,omitempty"`
	// Name of the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env"`
	// Sampling temperature.
	Temperature float64 `json:"temperature"`
	// Number of programs requested per prompt.
	NSample int `json:"n_sample"`
	// Successful programs needed to finish a round.
	FuzzRoundSucc int `json:"fuzz_round_succ"`
	// Rounds without new signal after which fuzz-driver mode converges.
	FuzzConvergeRound int `json:"fuzz_converge_round"`
	// Rounds without enough new triples after which api-combination mode stops.
	QuietRound int `json:"quiet_round"`
	// Minimum number of new triples that make a round interesting.
	NumNewPairs int `json:"num_new_pairs"`
	// Number of programs validated in parallel.
	Procs int `json:"procs"`
	// Stop seed generation after this many minutes (0 means no limit).
	SeedGenTimeout int `json:"seed_gen_timeout"`
	// Pick uniformly random combinations instead of energy-weighted ones.
	DisablePowerSchedule bool `json:"disable_power_schedule"`
	// Re-validate the corpus once halfway to convergence (fuzz-driver mode).
	Recheck bool `json:"recheck"`
	// Ask for a natural language plan first and then for the program.
	CoT bool `json:"cot"`
	// Validate programs in strict mode: unexpected errors and leaks are failures.
	Strict bool `json:"strict"`
	// Number of ops in a prompt combination.
	CombLen int `json:"comb_len"`
	// Per-program execution timeout in seconds.
	ExecTimeout int `json:"exec_timeout"`
	// Optional YAML file with extra prompt rules for the target.
	RulesFile string `json:"rules_file,omitempty"`

	// Implementation details beyond this point. Filled after parsing.
	Rules     *Rules       `json:"-"`
	SysTarget *prog.Target `json:"-"`
	TargetDir string       `json:"-"`
	APIKey    string       `json:"-"`
}

// Rules extend the generation prompt of a target.
type Rules struct {
	// Additional rules appended to the built-in rules of the target.
	Rules []string `yaml:"rules"`
	// Ops that must never be offered to the model.
	Ban []string `yaml:"ban"`
	// Replaces the target description.
	Desc string `yaml:"desc"`
}

const (
	GenModeAPICombination = "api-combination"
	GenModeFuzzDriver     = "fuzz-driver"

	HandlerOpenAI = "openai"
	HandlerGemini = "gemini"
)
