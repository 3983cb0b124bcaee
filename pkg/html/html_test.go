// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package html

import (
	"bytes"
	"html/template"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d   time.Duration
		out string
	}{
		{0, ""},
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h03m"},
		{50 * time.Hour, "2d02h"},
		{300 * time.Hour, "12d"},
	}
	for _, test := range tests {
		assert.Equal(t, test.out, formatDuration(test.d))
	}
}

func TestHeat(t *testing.T) {
	assert.Equal(t, template.CSS("#f4cccc"), Heat(0))
	assert.Equal(t, template.CSS("#b6d7a8"), Heat(1))
	assert.Equal(t, Heat(1), Heat(7))
	assert.NotEqual(t, Heat(0), Heat(0.5))
}

func TestCreate(t *testing.T) {
	templ := Create(`<html><head>{{HEAD}}</head><body>{{link .URL .Text}} {{formatStat .N}}</body></html>`)
	buf := new(bytes.Buffer)
	err := templ.Execute(buf, struct {
		URL  string
		Text string
		N    int
	}{"/prog?id=1", "a<b", 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `<style type="text/css"`)
	assert.Contains(t, buf.String(), `<a href="/prog?id=1">a&lt;b</a> 3`)
}
