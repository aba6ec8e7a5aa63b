package config

import (
	"regexp"
	"testing"
)

func TestDeriveTargetName(t *testing.T) {
	cases := []struct {
		name   string
		rule   DatabaseRule
		source string
		want   string
	}{
		{
			name:   "original is identity",
			rule:   DatabaseRule{NamingStrategy: NamingOriginal},
			source: "shard_07",
			want:   "shard_07",
		},
		{
			name:   "exact ignores source",
			rule:   DatabaseRule{NamingStrategy: NamingExact, TargetName: "warehouse"},
			source: "shard_07",
			want:   "warehouse",
		},
		{
			name: "replace substitutes the pattern",
			rule: DatabaseRule{
				NamingStrategy: NamingReplace,
				SourcePattern:  regexp.MustCompile(`^shard_`),
				TargetName:     "replica_",
			},
			source: "shard_07",
			want:   "replica_07",
		},
		{
			name:   "zero value behaves like original",
			rule:   DatabaseRule{},
			source: "shard_07",
			want:   "shard_07",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTargetName(&tc.rule, tc.source)
			if got != tc.want {
				t.Errorf("DeriveTargetName() = %q, want %q", got, tc.want)
			}
		})
	}
}
