// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cjson

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/focal"
	"github.com/seqfuzz/seqfuzz/pkg/runtest"
	"github.com/seqfuzz/seqfuzz/prog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeds(t *testing.T) {
	ctx := &runtest.Context{
		Target:  target,
		Procs:   4,
		LogFunc: func(text string) { t.Log(text) },
	}
	if err := ctx.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFocal(t *testing.T) {
	buf := new(bytes.Buffer)
	if failures := focal.Run(focal.Filter(focal.Suites(), []string{"cjson"}), buf); failures != 0 {
		t.Fatalf("%v failures:\n%s", failures, buf.Bytes())
	}
}

func TestPrintParse(t *testing.T) {
	tests := []string{
		`{}`,
		`[]`,
		`{"z":1,"a":2,"m":[true,false,null]}`,
		`{"dup":1,"dup":2}`,
		`["\u0001\t","é"]`,
		`[-1.5,1e+100,0.30000000000000004]`,
	}
	for _, text := range tests {
		it, err := parse([]byte(text))
		require.NoError(t, err, text)
		assert.Equal(t, text, string(it.print(false)))
		// Formatted output is valid JSON with the same content.
		formatted := it.print(true)
		assert.True(t, json.Valid(formatted), "%s", formatted)
		it2, err := parse(formatted)
		require.NoError(t, err)
		assert.Equal(t, text, string(it2.print(false)))
	}
}

func TestCompareDuplicateKeys(t *testing.T) {
	// Members are looked up by name, so the second "dup" is matched against the first.
	a, err := parse([]byte(`{"dup":1,"dup":2}`))
	require.NoError(t, err)
	assert.False(t, compare(a, a, true))
	b, err := parse([]byte(`{"dup":1,"dup":1}`))
	require.NoError(t, err)
	assert.True(t, compare(b, b, true))
}

func TestOwnership(t *testing.T) {
	target, err := prog.GetTarget("cjson")
	require.NoError(t, err)
	tests := []string{
		// The item belongs to the object after it was added.
		"r0 = cJSON_CreateObject()\nr1 = cJSON_CreateNull()\ncJSON_AddItemToObject(r0, 'a', r1)\ncJSON_Delete(r1)\n",
		// Lookups return views that are not deleted by the program.
		"r0 = cJSON_Parse('{}')\nr1 = cJSON_GetObjectItem(r0, 'a')\ncJSON_Delete(r1)\n",
		// A view can't be given away.
		"r0 = cJSON_Parse('[[]]')\nr1 = cJSON_CreateArray()\nr2 = cJSON_GetArrayItem(r0, 0)\ncJSON_AddItemToArray(r1, r2)\n",
	}
	for _, test := range tests {
		_, err := target.Deserialize([]byte(test), prog.Strict)
		var typeErr *prog.TypeError
		assert.ErrorAs(t, err, &typeErr, test)
	}
}

func TestMinify(t *testing.T) {
	assert.Equal(t, `{"a":"\" x"}`, string(minify([]byte("{ \"a\" : \"\\\" x\" }"))))
	assert.Equal(t, `[1]`, string(minify([]byte("[1]/* unterminated"))))
	assert.Equal(t, `"open`, string(minify([]byte(`"open`))))
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(`{"name":"test","value":42}`))
	f.Add([]byte(`[1,[2,[3]],{"a":null}]`))
	f.Fuzz(func(t *testing.T, data []byte) {
		it, err := parse(data)
		if err != nil {
			return
		}
		out := it.print(false)
		it2, err := parse(out)
		if err != nil {
			t.Fatalf("failed to parse printed %q: %v", out, err)
		}
		if !bytes.Equal(out, it2.print(false)) {
			t.Fatalf("print is not stable: %q", out)
		}
	})
}
