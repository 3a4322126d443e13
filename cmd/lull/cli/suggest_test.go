// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1}, // substitution
		{"abc", "ab", 1},  // deletion
		{"ab", "abc", 1},  // insertion
		{"abc", "bac", 2}, // transposition (counted as 2 edits)
		{"kitten", "sitting", 3},
		{"status", "stauts", 2},
		{"cancel", "cancle", 2},
		{"result", "reslt", 1},
	}

	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if reverse := levenshtein(test.b, test.a); reverse != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, not symmetric", test.b, test.a, reverse)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "start"}, {Name: "send"}, {Name: "status"}, {Name: "result"},
		{Name: "cancel"}, {Name: "list"}, {Name: "watch"}, {Name: "demo"},
	}
	tests := []struct {
		input string
		want  string
	}{
		{"stat", "start"},
		{"resutl", "result"},
		{"lsit", "list"},
		{"wach", "watch"},
		{"kubernetes", ""},
	}
	for _, test := range tests {
		if got := suggestCommand(test.input, commands); got != test.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.String("socket", "", "")
	flagSet.Duration("quiet-period", 0, "")
	flagSet.BoolP("wait", "w", false, "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--sockt", "x"}, "--socket"},
		{[]string{"--socket", "x", "--quiet-perid=1s"}, "--quiet-period"},
		{[]string{"weather", "--wiat"}, "--wait"},
		{[]string{"--completely-different"}, ""},
		{[]string{"--", "--sockt"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
