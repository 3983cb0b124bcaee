// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mgrconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanned(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.cfg"))
	if err != nil || len(files) == 0 {
		t.Fatalf("failed to read input files: %v", err)
	}
	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			cfg, err := LoadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			assert.NotEmpty(t, cfg.Ops())
			assert.True(t, filepath.IsAbs(cfg.TargetDir))
		})
	}
}

func TestRulesFile(t *testing.T) {
	t.Setenv("SEQFUZZ_TEST_KEY", "secret")
	cfg, err := LoadFile(filepath.Join("testdata", "zlib.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 0.6, cfg.Temperature)
	assert.Equal(t, 5, cfg.CombLen, "default")
	assert.Equal(t, "/tmp/seqfuzz/zlib", cfg.TargetDir)
	assert.Equal(t, "zlib compression library (deflate, inflate, gzip files and checksums)", cfg.Description())
	rules := cfg.PromptRules()
	assert.Equal(t, "Use MAX_WBITS instead of Z_DEFAULT_WBITS.", rules[len(rules)-1])
	for _, op := range cfg.Ops() {
		assert.NotEqual(t, "gzopen", op.Name)
		assert.False(t, op.Common, op.Name)
	}
}

func TestBadConfigs(t *testing.T) {
	tests := []struct {
		cfg string
		err string
	}{
		{`{"target": "nope", "workdir": "w", "model": "m"}`, "unknown target"},
		{`{"target": "zlib", "model": "m"}`, "workdir is empty"},
		{`{"target": "zlib", "workdir": "w"}`, "model is empty"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "gen_mode": "x"}`, "gen_mode"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "handler": "x"}`, "handler"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "procs": 0}`, "procs"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "n_sample": 129}`, "n_sample"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "quiet_round": 0}`, "quiet_round"},
		{`{"target": "zlib", "workdir": "w", "model": "m", "bogus": 1}`, "unknown field"},
	}
	for _, test := range tests {
		_, err := LoadData([]byte(test.cfg))
		if assert.Error(t, err, test.cfg) {
			assert.Contains(t, err.Error(), test.err, test.cfg)
		}
	}
}
