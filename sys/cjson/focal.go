// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cjson

import (
	"github.com/seqfuzz/seqfuzz/pkg/check"
	"github.com/seqfuzz/seqfuzz/pkg/focal"
)

func registerFocal() {
	focal.Register(&focal.Suite{
		Name:   "cjson_parse",
		Target: "cjson",
		Focal:  "cJSON_Parse",
		Cases: []focal.Case{
			{Name: "object_members", Run: func(t *check.T, c *focal.Ctx) {
				root, err := c.Call(`{"name":"test","value":42,"list":[1,2.5,"x"]}`)
				if !t.ExpectNoErr(err) {
					return
				}
				value, err := c.CallOp("cJSON_GetObjectItemCaseSensitive", root, "value")
				t.ExpectNoErr(err)
				t.ExpectEq(c.Int("cJSON_IsNumber", value), 1)
				t.ExpectEq(c.Int("cJSON_GetNumberValue", value), 42)
				list, _ := c.CallOp("cJSON_GetObjectItem", root, "LIST")
				t.ExpectEq(c.Int("cJSON_GetArraySize", list), 3)
				_, err = c.CallOp("cJSON_GetObjectItemCaseSensitive", root, "LIST")
				t.ExpectErrno(err, -1)
				c.CallOp("cJSON_Delete", root)
			}},
			{Name: "syntax_errors", Run: func(t *check.T, c *focal.Ctx) {
				for _, text := range []string{"", "{", `{"a":}`, "[1,]", "nul", `{"a" 1}`} {
					_, err := c.Call(text)
					t.ExpectErrno(err, -1, "parsing %q", text)
				}
				_, err := c.Call(nil)
				t.ExpectErrno(err, -1)
			}},
			{Name: "trailing_data", Run: func(t *check.T, c *focal.Ctx) {
				root, err := c.Call("[1] garbage")
				t.ExpectNoErr(err)
				t.ExpectEq(c.Int("cJSON_GetArraySize", root), 1)
			}},
		},
	})
	focal.Register(&focal.Suite{
		Name:   "cjson_print",
		Target: "cjson",
		Focal:  "cJSON_Print",
		Cases: []focal.Case{
			{Name: "formatted", Run: func(t *check.T, c *focal.Ctx) {
				root, err := c.CallOp("cJSON_Parse", `{"a":[1,2],"b":{"c":null},"d":{}}`)
				if !t.ExpectNoErr(err) {
					return
				}
				t.ExpectBytesEq(c.Buf("cJSON_Print", root),
					[]byte("{\n\t\"a\":\t[1, 2],\n\t\"b\":\t{\n\t\t\"c\":\tnull\n\t},\n\t\"d\":\t{\n\t}\n}"))
				t.ExpectBytesEq(c.Buf("cJSON_PrintUnformatted", root), []byte(`{"a":[1,2],"b":{"c":null},"d":{}}`))
			}},
			{Name: "numbers", Run: func(t *check.T, c *focal.Ctx) {
				for text, want := range map[string]string{
					"[0.1]":         "[0.1]",
					"[-0]":          "[0]",
					"[1e300]":       "[1e+300]",
					"[3.0]":         "[3]",
					"[12345678901]": "[12345678901]",
				} {
					root, err := c.CallOp("cJSON_Parse", text)
					if t.ExpectNoErr(err) {
						t.ExpectEq(string(c.Buf("cJSON_PrintUnformatted", root)), want)
					}
				}
			}},
			{Name: "escapes", Run: func(t *check.T, c *focal.Ctx) {
				s, _ := c.CallOp("cJSON_CreateString", "q\"\\\n\x01")
				t.ExpectEq(string(c.Buf("cJSON_PrintUnformatted", s)), `"q\"\\\n\u0001"`)
			}},
		},
	})
}
