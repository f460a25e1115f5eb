package model

import (
	"regexp"
	"strings"
)

// Kind selects the execution path for a test. It is resolved once when the
// TestFile is constructed; the runner never re-inspects the raw tag strings.
type Kind uint8

const (
	// KindSkip marks a test carrying none of the executable tags.
	KindSkip Kind = iota
	// KindStandard runs the full reference/compile/run/compare pipeline.
	KindStandard
	// KindExpectCompileFailure runs only the compile stage and expects it
	// to fail.
	KindExpectCompileFailure
)

// TestFile is an immutable descriptor of a single discovered test.
type TestFile struct {
	// Path to the test source file
	Path string
	// TmpDir is the per-test scratch root; all working dirs and artifacts
	// for this test live underneath it, never shared with another test
	TmpDir string
	// Tags as declared in the test header (or implied)
	Tags []string
	// Kind resolved from the tags
	Kind Kind
	// Php5 selects the php5 interpreter variant for the reference run
	Php5 bool
	// OutRegex is the expected-failure pattern from the test header,
	// only meaningful for KindExpectCompileFailure tests
	OutRegex *regexp.Regexp
}

// NewTestFile builds a TestFile, resolving the execution kind from the tag
// set. The kphp_should_fail tag takes precedence over ok.
func NewTestFile(path, tmpDir string, tags []string, outRegex *regexp.Regexp) *TestFile {
	kind := KindSkip
	php5 := false
	for _, tag := range tags {
		switch tag {
		case "kphp_should_fail":
			kind = KindExpectCompileFailure
		case "ok":
			if kind == KindSkip {
				kind = KindStandard
			}
		case "php5":
			php5 = true
		}
	}
	return &TestFile{
		Path:     path,
		TmpDir:   tmpDir,
		Tags:     tags,
		Kind:     kind,
		Php5:     php5,
		OutRegex: outRegex,
	}
}

// HasTag reports whether the test declares the given tag.
func (t *TestFile) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// Matches reports whether the test is selected by the given filter set:
// either a filter is a declared tag or a substring of the test path. An
// empty filter set selects everything.
func (t *TestFile) Matches(filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if t.HasTag(f) || strings.Contains(t.Path, f) {
			return true
		}
	}
	return false
}
