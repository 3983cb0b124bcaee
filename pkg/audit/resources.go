// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package audit

import (
	"strings"
)

// family groups the C functions that acquire one kind of resource with the ones releasing it.
type family struct {
	name     string
	acquire  []string
	prefixes []string // acquire functions given by a name prefix
	release  []string
	// consume lists functions that take ownership of an acquired resource.
	consume []string
}

var families = []*family{
	{name: "z_stream (deflate)", acquire: []string{"deflateInit", "deflateInit2", "deflateInit_", "deflateInit2_"},
		release: []string{"deflateEnd"}},
	{name: "z_stream (inflate)", acquire: []string{"inflateInit", "inflateInit2", "inflateInit_", "inflateInit2_"},
		release: []string{"inflateEnd"}},
	{name: "z_stream (inflateBack)", acquire: []string{"inflateBackInit", "inflateBackInit_"},
		release: []string{"inflateBackEnd"}},
	{name: "gzFile", acquire: []string{"gzopen", "gzdopen", "gzopen64"}, release: []string{"gzclose", "gzclose_r", "gzclose_w"}},
	{name: "sqlite3", acquire: []string{"sqlite3_open", "sqlite3_open_v2", "sqlite3_open16"},
		release: []string{"sqlite3_close", "sqlite3_close_v2"}},
	{name: "sqlite3_stmt", acquire: []string{"sqlite3_prepare", "sqlite3_prepare_v2", "sqlite3_prepare_v3"},
		release: []string{"sqlite3_finalize"}},
	{name: "cJSON", acquire: []string{"cJSON_Parse", "cJSON_ParseWithOpts", "cJSON_ParseWithLength", "cJSON_Duplicate"},
		prefixes: []string{"cJSON_Create"}, release: []string{"cJSON_Delete"},
		consume: []string{"cJSON_AddItemToObject", "cJSON_AddItemToArray", "cJSON_AddItemToObjectCS",
			"cJSON_InsertItemInArray", "cJSON_ReplaceItemInObject", "cJSON_ReplaceItemInArray",
			"cJSON_ReplaceItemInObjectCaseSensitive", "cJSON_ReplaceItemViaPointer"}},
	{name: "cre2_regexp_t", acquire: []string{"cre2_new"}, release: []string{"cre2_delete"}},
	{name: "cre2_options_t", acquire: []string{"cre2_opt_new"}, release: []string{"cre2_opt_delete"}},
	{name: "cre2_set", acquire: []string{"cre2_set_new"}, release: []string{"cre2_set_delete"}},
	{name: "pcap_t", acquire: []string{"pcap_open_offline", "pcap_open_dead", "pcap_create", "pcap_fopen_offline",
		"pcap_open_live", "pcap_open_offline_with_tstamp_precision", "pcap_open_dead_with_tstamp_precision"},
		release: []string{"pcap_close"}},
	{name: "pcap_dumper_t", acquire: []string{"pcap_dump_open", "pcap_dump_fopen"}, release: []string{"pcap_dump_close"}},
	{name: "cmsHPROFILE", acquire: []string{"cmsOpenProfileFromMem", "cmsOpenProfileFromFile"},
		prefixes: []string{"cmsCreate"}, release: []string{"cmsCloseProfile"}},
	{name: "cmsHTRANSFORM", acquire: []string{"cmsCreateTransform", "cmsCreateTransformTHR", "cmsCreateProofingTransform"},
		release: []string{"cmsDeleteTransform"}},
	{name: "cmsContext", acquire: []string{"cmsCreateContext"}, release: []string{"cmsDeleteContext"}},
	{name: "lzma_stream", acquire: []string{"lzma_easy_encoder", "lzma_stream_decoder", "lzma_auto_decoder",
		"lzma_alone_decoder", "lzma_raw_encoder", "lzma_raw_decoder"}, release: []string{"lzma_end"}},
	{name: "heap", acquire: []string{"malloc", "calloc", "realloc", "strdup", "cJSON_Print",
		"cJSON_PrintUnformatted", "cJSON_PrintBuffered"}, release: []string{"free", "cJSON_free"}},
	{name: "FILE", acquire: []string{"fopen", "fmemopen", "tmpfile", "fdopen"}, release: []string{"fclose"}},
}

type effect int

const (
	none effect = iota
	acquires
	releases
)

// classifyCall returns the resource family a call acquires or releases.
func classifyCall(name string) (*family, effect) {
	// Exact names win over prefixes: cmsCreateTransform is not a profile.
	for _, f := range families {
		for _, n := range f.acquire {
			if n == name {
				return f, acquires
			}
		}
		for _, n := range f.release {
			if n == name {
				return f, releases
			}
		}
		for _, n := range f.consume {
			if n == name {
				return f, releases
			}
		}
	}
	for _, f := range families {
		for _, prefix := range f.prefixes {
			if strings.HasPrefix(name, prefix) {
				return f, acquires
			}
		}
	}
	return nil, none
}
