// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !freebsd && !netbsd && !openbsd && !linux && !darwin

package osutil

import "errors"

var ErrLocked = errors.New("directory is locked by another process")

// LockDir only creates dir, there is no advisory locking on this OS.
func LockDir(dir string) (func(), error) {
	if err := MkdirAll(dir); err != nil {
		return nil, err
	}
	return func() {}, nil
}
