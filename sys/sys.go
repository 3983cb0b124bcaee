// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sys registers all target libraries.
package sys

import (
	_ "github.com/seqfuzz/seqfuzz/sys/cjson"
	_ "github.com/seqfuzz/seqfuzz/sys/cre2"
	_ "github.com/seqfuzz/seqfuzz/sys/lcms"
	_ "github.com/seqfuzz/seqfuzz/sys/pcap"
	_ "github.com/seqfuzz/seqfuzz/sys/sqlite"
	_ "github.com/seqfuzz/seqfuzz/sys/xz"
	_ "github.com/seqfuzz/seqfuzz/sys/zlib"
)
