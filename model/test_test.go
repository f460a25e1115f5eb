package model

import (
	"testing"
)

func TestNewTestFileKindResolution(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		wantKind Kind
		wantPhp5 bool
	}{
		{
			name:     "ok tag",
			tags:     []string{"ok"},
			wantKind: KindStandard,
		},
		{
			name:     "should fail tag",
			tags:     []string{"kphp_should_fail"},
			wantKind: KindExpectCompileFailure,
		},
		{
			name:     "should fail wins over ok",
			tags:     []string{"ok", "kphp_should_fail"},
			wantKind: KindExpectCompileFailure,
		},
		{
			name:     "should fail wins regardless of order",
			tags:     []string{"kphp_should_fail", "ok"},
			wantKind: KindExpectCompileFailure,
		},
		{
			name:     "php5 modifier",
			tags:     []string{"ok", "php5"},
			wantKind: KindStandard,
			wantPhp5: true,
		},
		{
			name:     "php5 alone is not executable",
			tags:     []string{"php5"},
			wantKind: KindSkip,
			wantPhp5: true,
		},
		{
			name:     "unrecognized tags skip",
			tags:     []string{"wip", "flaky"},
			wantKind: KindSkip,
		},
		{
			name:     "no tags skip",
			tags:     nil,
			wantKind: KindSkip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := NewTestFile("phpt/a.php", "tmp/a", tt.tags, nil)
			if test.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", test.Kind, tt.wantKind)
			}
			if test.Php5 != tt.wantPhp5 {
				t.Errorf("Php5 = %v, want %v", test.Php5, tt.wantPhp5)
			}
		})
	}
}

func TestTestFileMatches(t *testing.T) {
	test := NewTestFile("phpt/strings/concat.php", "tmp/concat", []string{"ok", "php5"}, nil)

	tests := []struct {
		name    string
		filters []string
		want    bool
	}{
		{name: "no filters select everything", filters: nil, want: true},
		{name: "tag match", filters: []string{"php5"}, want: true},
		{name: "path substring match", filters: []string{"strings"}, want: true},
		{name: "one of several filters", filters: []string{"nope", "concat"}, want: true},
		{name: "no match", filters: []string{"arrays"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := test.Matches(tt.filters); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.filters, got, tt.want)
			}
		})
	}
}
