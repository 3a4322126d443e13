// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"strconv"
	"strings"
)

// FormatBatch joins a buffer into the single downstream input: one
// line per message in arrival order, each prefixed with its 1-based
// position.
//
//	Message 1: check SF weather
//	Message 2: check NYC weather
func FormatBatch(messages []string) string {
	var builder strings.Builder
	for index, message := range messages {
		if index > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString("Message ")
		builder.WriteString(strconv.Itoa(index + 1))
		builder.WriteString(": ")
		builder.WriteString(message)
	}
	return builder.String()
}
