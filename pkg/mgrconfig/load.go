// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mgrconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/seqfuzz/seqfuzz/pkg/config"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/prog"
	_ "github.com/seqfuzz/seqfuzz/sys" // most mgrconfig users want targets too
)

func LoadData(data []byte) (*Config, error) {
	cfg, err := LoadPartialData(data)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	cfg, err := LoadPartialFile(filename)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	return loadPartial(cfg)
}

func LoadPartialFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	if cfg.RulesFile != "" && !filepath.IsAbs(cfg.RulesFile) {
		cfg.RulesFile = filepath.Join(filepath.Dir(filename), cfg.RulesFile)
	}
	return loadPartial(cfg)
}

func defaultValues() *Config {
	return &Config{
		GenMode:           GenModeAPICombination,
		Handler:           HandlerOpenAI,
		APIKeyEnv:         "OPENAI_API_KEY",
		Temperature:       1,
		NSample:           10,
		FuzzRoundSucc:     1,
		FuzzConvergeRound: 10,
		QuietRound:        3,
		NumNewPairs:       3,
		Procs:             1,
		CombLen:           5,
		ExecTimeout:       180,
	}
}

func loadPartial(cfg *Config) (*Config, error) {
	var err error
	if cfg.SysTarget, err = prog.GetTarget(cfg.Target); err != nil {
		return nil, err
	}
	cfg.Rules = &Rules{}
	if cfg.RulesFile != "" {
		if err := config.LoadYAMLFile(cfg.RulesFile, cfg.Rules); err != nil {
			return nil, fmt.Errorf("failed to load rules_file: %w", err)
		}
	}
	for _, name := range cfg.Rules.Ban {
		if cfg.SysTarget.OpMap[name] == nil {
			return nil, fmt.Errorf("rules_file bans unknown op %v", name)
		}
	}
	return cfg, nil
}

func Complete(cfg *Config) error {
	if cfg.SysTarget == nil {
		return fmt.Errorf("target parameters are not filled in")
	}
	if cfg.Workdir == "" {
		return fmt.Errorf("config param workdir is empty")
	}
	cfg.Workdir = osutil.Abs(cfg.Workdir)
	cfg.TargetDir = filepath.Join(cfg.Workdir, cfg.Target)
	switch cfg.GenMode {
	case GenModeAPICombination, GenModeFuzzDriver:
	default:
		return fmt.Errorf("config param gen_mode must be one of %v/%v", GenModeAPICombination, GenModeFuzzDriver)
	}
	switch cfg.Handler {
	case HandlerOpenAI, HandlerGemini:
	default:
		return fmt.Errorf("config param handler must be one of %v/%v", HandlerOpenAI, HandlerGemini)
	}
	if cfg.Model == "" {
		return fmt.Errorf("config param model is empty")
	}
	if cfg.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(cfg.APIKeyEnv)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("bad config param temperature: '%v', want [0, 2]", cfg.Temperature)
	}
	if cfg.NSample < 1 || cfg.NSample > 128 {
		return fmt.Errorf("bad config param n_sample: '%v', want [1, 128]", cfg.NSample)
	}
	if cfg.Procs < 1 || cfg.Procs > 32 {
		return fmt.Errorf("bad config param procs: '%v', want [1, 32]", cfg.Procs)
	}
	if cfg.CombLen < 1 || cfg.CombLen > 20 {
		return fmt.Errorf("bad config param comb_len: '%v', want [1, 20]", cfg.CombLen)
	}
	for name, val := range map[string]int{
		"fuzz_round_succ":     cfg.FuzzRoundSucc,
		"fuzz_converge_round": cfg.FuzzConvergeRound,
		"quiet_round":         cfg.QuietRound,
		"exec_timeout":        cfg.ExecTimeout,
	} {
		if val < 1 {
			return fmt.Errorf("bad config param %v: '%v', want >= 1", name, val)
		}
	}
	if cfg.NumNewPairs < 0 || cfg.SeedGenTimeout < 0 {
		return fmt.Errorf("num_new_pairs and seed_gen_timeout must not be negative")
	}
	return nil
}

// Ops returns ops of the target that may be offered to the model: common ops and banned ops
// are excluded.
func (cfg *Config) Ops() []*prog.Op {
	banned := make(map[string]bool)
	for _, name := range cfg.Rules.Ban {
		banned[name] = true
	}
	var res []*prog.Op
	for _, op := range cfg.SysTarget.Ops {
		if !op.Common && !banned[op.Name] {
			res = append(res, op)
		}
	}
	return res
}

// PromptRules returns the built-in rules of the target followed by the configured ones.
func (cfg *Config) PromptRules() []string {
	return append(append([]string{}, cfg.SysTarget.Rules...), cfg.Rules.Rules...)
}

// Description returns the target description used in prompts.
func (cfg *Config) Description() string {
	if cfg.Rules.Desc != "" {
		return cfg.Rules.Desc
	}
	return cfg.SysTarget.Desc
}
