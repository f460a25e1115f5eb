package runner

// This file contains the differential comparator: byte-exact equality of the
// php and kphp stdout captures, with a unified diff persisted on mismatch.

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/ra2003/kphp/model"
)

// diffPriority is fixed: a stdout mismatch always indicates a real failure,
// independent of any process exit code.
const diffPriority = 1

// compareOutputs checks the two captured stdout streams byte for byte. On
// mismatch both raw streams and a unified diff are persisted to the
// artifacts directory and false is returned.
func (r *Runner) compareOutputs(phpStdout, kphpStdout []byte) bool {
	if bytes.Equal(phpStdout, kphpStdout) {
		return true
	}

	if err := r.ensureArtifactsDir(); err != nil {
		r.logger.Warn().Err(err).Str("test", r.test.Path).Msg("Failed to create artifacts dir")
		return false
	}

	phpStdoutFile := filepath.Join(r.artifactsDir, "php_stdout")
	if err := os.WriteFile(phpStdoutFile, phpStdout, 0o644); err != nil {
		r.logger.Warn().Err(err).Str("file", phpStdoutFile).Msg("Failed to write php stdout")
	}
	kphpStdoutFile := filepath.Join(r.artifactsDir, "kphp_server_stdout")
	if err := os.WriteFile(kphpStdoutFile, kphpStdout, 0o644); err != nil {
		r.logger.Warn().Err(err).Str("file", kphpStdoutFile).Msg("Failed to write kphp stdout")
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(phpStdout)),
		B:        difflib.SplitLines(string(kphpStdout)),
		FromFile: phpStdoutFile,
		ToFile:   kphpStdoutFile,
		Context:  3,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("test", r.test.Path).Msg("Failed to build stdout diff")
		diff = "failed to build diff: " + err.Error() + "\n"
	}
	r.recordArtifact(model.SlotStdoutDiff, diffPriority, []byte(diff))

	return false
}
