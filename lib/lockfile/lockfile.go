// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lockfile keeps two lull-service processes from serving the
// same state directory. Two coordinators replaying one journal would
// both arm timers and both invoke downstream for the same instance.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by Acquire when another process holds the
// lock.
var ErrLocked = errors.New("lockfile: held by another process")

// Lock is an exclusive flock(2) on a file. The kernel drops it when
// the process exits, so a crash never leaves a stale lock behind.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking, creating the file
// if needed, and writes the caller's PID into it. Returns an error
// wrapping ErrLocked when the lock is taken; the message names the
// holder's PID when it can be read.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if holder := readPID(path); holder > 0 {
				return nil, fmt.Errorf("%w (pid %d): %s", ErrLocked, holder, path)
			}
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path, file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks and closes the file. The file stays on disk; removing
// it would race with a process that just opened it. Safe to call more
// than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		file.Close()
		return fmt.Errorf("unlocking %s: %w", l.path, err)
	}
	return file.Close()
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
