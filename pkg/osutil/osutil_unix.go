// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build freebsd || netbsd || openbsd || linux || darwin

package osutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by LockDir when another process holds the lock.
var ErrLocked = errors.New("directory is locked by another process")

// LockDir takes an exclusive advisory lock on dir (created if missing).
// The lock is held until the returned function is called or the process exits.
func LockDir(dir string) (func(), error) {
	if err := MkdirAll(dir); err != nil {
		return nil, err
	}
	lockFile := filepath.Join(dir, ".lock")
	fd, err := unix.Open(lockFile, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", lockFile, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%v: %w", dir, ErrLocked)
		}
		return nil, err
	}
	unix.Ftruncate(fd, 0)
	unix.Write(fd, fmt.Appendf(nil, "%v\n", os.Getpid()))
	return func() {
		unix.Flock(fd, unix.LOCK_UN)
		unix.Close(fd)
	}, nil
}
