// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func setBuild(t *testing.T, commit, dirty string, settings []debug.BuildSetting) {
	t.Helper()
	savedCommit, savedDirty, savedRead := GitCommit, GitDirty, readBuildInfo
	t.Cleanup(func() { GitCommit, GitDirty, readBuildInfo = savedCommit, savedDirty, savedRead })
	GitCommit, GitDirty = commit, dirty
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name     string
		commit   string
		dirty    string
		settings []debug.BuildSetting
		want     string
	}{
		{
			name:   "ldflags",
			commit: "abc1234",
			dirty:  "false",
			want:   "(abc1234, ",
		},
		{
			name:   "ldflags dirty",
			commit: "abc1234",
			dirty:  "true",
			want:   "(abc1234-dirty, ",
		},
		{
			name:   "vcs stamp",
			commit: "unknown",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.modified", Value: "true"},
			},
			want: "(0123456789ab-dirty, ",
		},
		{
			name:   "no stamp",
			commit: "unknown",
			want:   "(unknown, ",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			setBuild(t, test.commit, test.dirty, test.settings)
			info := Info()
			if !strings.HasPrefix(info, Version+" ") || !strings.Contains(info, test.want) {
				t.Errorf("Info = %q, want it to contain %q", info, test.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, runtime.Version()) || !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full = %q", full)
	}
}

func TestShortAndCommit(t *testing.T) {
	setBuild(t, "feedbee", "false", nil)
	if Short() != Version {
		t.Errorf("Short = %q", Short())
	}
	if Commit() != "feedbee" {
		t.Errorf("Commit = %q", Commit())
	}
}
