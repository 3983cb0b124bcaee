// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCfg struct {
	Name  string   `json:"name" yaml:"name"`
	Procs int      `json:"procs" yaml:"procs"`
	Ban   []string `json:"ban,omitempty" yaml:"ban"`
}

func TestLoadData(t *testing.T) {
	tests := []struct {
		input  string
		result testCfg
		err    bool
	}{
		{`{"name": "zlib", "procs": 4}`, testCfg{Name: "zlib", Procs: 4}, false},
		{"# leading comment\n{\n\t# inner\n\t\"name\": \"x\"\n}", testCfg{Name: "x"}, false},
		{`{"name": "zlib", "foo": 1}`, testCfg{}, true},
		{`{"procs": "many"}`, testCfg{}, true},
	}
	for _, test := range tests {
		var cfg testCfg
		err := LoadData([]byte(test.input), &cfg)
		if test.err {
			assert.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		assert.Equal(t, test.result, cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cfg.json")
	want := testCfg{Name: "pcap", Procs: 2, Ban: []string{"pcap_close"}}
	require.NoError(t, SaveFile(file, want))
	var got testCfg
	require.NoError(t, LoadFile(file, &got))
	assert.Equal(t, want, got)
	assert.Error(t, LoadFile("", &got))
}

func TestLoadYAML(t *testing.T) {
	var cfg testCfg
	require.NoError(t, LoadYAMLData([]byte("name: sqlite\nban:\n  - sqlite3_close\n"), &cfg))
	assert.Equal(t, testCfg{Name: "sqlite", Ban: []string{"sqlite3_close"}}, cfg)
	assert.Error(t, LoadYAMLData([]byte("unknown: 1\n"), &cfg))
}
