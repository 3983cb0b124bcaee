// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditFile(t *testing.T, name string, opts Options) *File {
	src, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	file, err := Source(context.Background(), name, src, opts)
	require.NoError(t, err)
	return file
}

func TestBalancedHarness(t *testing.T) {
	file := auditFile(t, "zlib_balanced.cc", Options{})
	require.Len(t, file.Funcs, 1)
	fn := file.Funcs[0]
	assert.Equal(t, "test_zlib_api_sequence", fn.Name)
	assert.Equal(t, 5, fn.Line)
	want := []string{"memset", "deflateInit", "strlen", "deflate", "deflateEnd", "deflateEnd",
		"memset", "inflateInit", "inflate", "inflateEnd"}
	if diff := cmp.Diff(want, fn.Calls); diff != "" {
		t.Fatal(diff)
	}
	assert.Len(t, fn.Triples, 8)
	assert.Equal(t, "memset deflateInit strlen", fn.Triples[0])
	assert.Equal(t, "66", fn.Return)
	assert.True(t, fn.SentinelOK)
	assert.Empty(t, fn.Unbalanced)
	assert.Empty(t, fn.EarlyLeaks)
	assert.Empty(t, fn.Problems())
}

func TestLeakyHarness(t *testing.T) {
	file := auditFile(t, "cjson_leaky.c", Options{})
	require.Len(t, file.Funcs, 1)
	fn := file.Funcs[0]
	assert.Equal(t, "0", fn.Return)
	assert.False(t, fn.SentinelOK)
	assert.Equal(t, []string{"cJSON_PrintUnformatted"}, fn.Unbalanced)
	require.Len(t, fn.EarlyLeaks, 1)
	assert.Equal(t, &EarlyReturn{Line: 12, Value: "2", Live: []string{"cJSON_Parse"}}, fn.EarlyLeaks[0])
	problems := fn.Problems()
	require.Len(t, problems, 3)
	assert.Equal(t, "returns 0 on the nominal path, want 66", problems[0])
	assert.Equal(t, "never released: cJSON_PrintUnformatted", problems[1])
	assert.Equal(t, "line 12: return 2 leaks cJSON_Parse", problems[2])
}

func TestDriverMain(t *testing.T) {
	file := auditFile(t, "sqlite_main.c", Options{})
	require.Len(t, file.Funcs, 1)
	main := file.Funcs[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, []string{"sqlite3_open", "sqlite3_exec", "count_rows", "sqlite3_close", "sqlite3_close"},
		main.Calls)
	assert.True(t, main.SentinelOK)
	assert.Empty(t, main.Problems())

	file = auditFile(t, "sqlite_main.c", Options{AllFuncs: true})
	require.Len(t, file.Funcs, 2)
	helper := file.Funcs[0]
	assert.Equal(t, "count_rows", helper.Name)
	assert.Equal(t, "rows", helper.Return)
	assert.Empty(t, helper.Unbalanced)
	assert.Empty(t, helper.EarlyLeaks)
}

func TestFiles(t *testing.T) {
	paths, err := Collect([]string{"testdata"})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	files, err := Files(context.Background(), paths, 2, Options{})
	require.NoError(t, err)
	for i, file := range files {
		assert.Equal(t, paths[i], file.Path)
	}
	summary := Summarize(files)
	assert.Equal(t, Summary{
		Files:       3,
		Funcs:       3,
		BadSentinel: 1,
		Unbalanced:  1,
		EarlyLeaks:  1,
		Triples:     summary.Triples,
	}, summary)
	assert.Greater(t, summary.Triples, 10)
}

func TestPartialSource(t *testing.T) {
	src := []byte("int main(void) {\n  gzopen(\"a\", \"rb\")\n  return 0;\n}\n")
	file, err := Source(context.Background(), "broken.c", src, Options{})
	require.NoError(t, err)
	assert.True(t, file.Partial)
}

func TestIsHarness(t *testing.T) {
	assert.True(t, IsHarness("main"))
	assert.True(t, IsHarness("test_zlib_api_sequence"))
	assert.True(t, IsHarness("test_sqlite3_open_api_sequence"))
	assert.False(t, IsHarness("test_zlib"))
	assert.False(t, IsHarness("helper_api_sequence"))
}

func TestClassifyCall(t *testing.T) {
	tests := []struct {
		name   string
		family string
		eff    effect
	}{
		{"deflateInit2_", "z_stream (deflate)", acquires},
		{"inflateEnd", "z_stream (inflate)", releases},
		{"cJSON_CreateObject", "cJSON", acquires},
		{"cJSON_AddItemToObject", "cJSON", releases},
		{"cmsCreate_sRGBProfile", "cmsHPROFILE", acquires},
		{"cmsCreateTransform", "cmsHTRANSFORM", acquires},
		{"cmsCreateContext", "cmsContext", acquires},
		{"pcap_open_dead", "pcap_t", acquires},
		{"lzma_end", "lzma_stream", releases},
		{"cJSON_free", "heap", releases},
		{"printf", "", none},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fam, eff := classifyCall(test.name)
			assert.Equal(t, test.eff, eff)
			if test.family == "" {
				assert.Nil(t, fam)
				return
			}
			require.NotNil(t, fam)
			assert.Equal(t, test.family, fam.name)
		})
	}
}
