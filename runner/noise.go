package runner

// This file contains the noise filter: diagnostic streams whose every line
// matches a stage's allowlist are expected chatter and never surface as
// artifacts or failures.

import (
	"bytes"
	"regexp"
)

// Per-stage allowlists of known-benign diagnostics. These are configuration
// kept verbatim for compatibility with the kphp toolchain output.
var (
	buildNoisePatterns = compileAll(
		`^Starting php to cpp transpiling\.\.\.$`,
		`^Starting make\.\.\.$`,
		`^objs cnt = \d+$`,
		`^\s*\d+% \[total jobs \d+\] \[left jobs \d+\] \[running jobs \d+\] \[waiting jobs \d+\]$`,
	)

	runtimeNoisePatterns = compileAll(
		`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d+ PHP/php-runner\.cpp\s+\d+\].+$`,
	)

	asanNoisePatterns = compileAll(
		`^==\d+==WARNING: ASan doesn't fully support makecontext/swapcontext functions and may produce false positives in some cases!$`,
		`^==\d+==WARNING: ASan is ignoring requested __asan_handle_no_return: stack top.+$`,
		`^False positive error reports may follow$`,
		`^For details see .+$`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// ignorable reports whether every non-empty line of text fully matches at
// least one allowlist pattern. A single unmatched line makes the whole text
// significant; there is no partial suppression. Empty text is always
// ignorable.
func ignorable(patterns []*regexp.Regexp, text []byte) bool {
	if len(text) == 0 {
		return true
	}
	for _, line := range bytes.Split(text, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		lineOk := false
		for _, pattern := range patterns {
			if pattern.Match(line) {
				lineOk = true
				break
			}
		}
		if !lineOk {
			return false
		}
	}
	return true
}
