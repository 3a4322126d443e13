// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exit is swapped out in tests.
var exit = os.Exit

// Fatal writes "error: err" to stderr and exits. The exit code is 1
// unless err carries its own through an ExitCode() int method. Use it
// in main() for errors from run() where the structured logger may not
// be initialized.
func Fatal(err error) {
	exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit code for it.
func report(w io.Writer, err error) int {
	code := 1
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		code = coded.ExitCode()
	}
	if err.Error() != "" {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return code
}
