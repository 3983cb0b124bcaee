// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package html holds template helpers for the manager web interface.
package html

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Create parses a page, {{HEAD}} is replaced with the common style sheet.
func Create(page string) *template.Template {
	page = strings.Replace(page, "{{HEAD}}", head, 1)
	return template.Must(template.New("").Funcs(Funcs).Parse(page))
}

var Funcs = template.FuncMap{
	"link":           link,
	"optlink":        optlink,
	"formatTime":     FormatTime,
	"formatDuration": formatDuration,
	"formatStat":     formatStat,
	"formatList":     formatStringList,
	"heat":           Heat,
	"add":            add,
}

func link(url, text string) template.HTML {
	text = template.HTMLEscapeString(text)
	if url != "" {
		text = fmt.Sprintf(`<a href="%v">%v</a>`, url, text)
	}
	return template.HTML(text)
}

func optlink(url, text string) template.HTML {
	if url == "" {
		return template.HTML("")
	}
	return link(url, text)
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006/01/02 15:04")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	days := int(d / (24 * time.Hour))
	hours := int(d / time.Hour % 24)
	mins := int(d / time.Minute % 60)
	if days >= 10 {
		return fmt.Sprintf("%vd", days)
	} else if days != 0 {
		return fmt.Sprintf("%vd%02vh", days, hours)
	} else if hours != 0 {
		return fmt.Sprintf("%vh%02vm", hours, mins)
	}
	return fmt.Sprintf("%vm", mins)
}

func formatStat(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprint(v)
}

func formatStringList(list []string) string {
	return strings.Join(list, ", ")
}

var (
	coldColor, _ = colorful.Hex("#f4cccc")
	hotColor, _  = colorful.Hex("#b6d7a8")
)

// Heat returns a background color for a share in [0, 1]: from red for 0 to green for 1.
func Heat(share float64) template.CSS {
	share = min(max(share, 0), 1)
	return template.CSS(coldColor.BlendHcl(hotColor, share).Clamped().Hex())
}

func add(a, b int) int {
	return a + b
}

const head = `<style type="text/css" media="screen">
body { font-family: sans-serif; font-size: 13px; margin: 8px; }
table { border-collapse: collapse; margin-bottom: 12px; }
caption { text-align: left; font-weight: bold; padding: 4px 0; }
th, td { border: 1px solid #ccc; padding: 2px 6px; text-align: left; vertical-align: top; }
th { background: #eee; }
pre { font-family: monospace; white-space: pre-wrap; }
.navigation a { margin-right: 8px; }
.stat_value { text-align: right; }
</style>`
