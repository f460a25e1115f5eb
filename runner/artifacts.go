package runner

// This file contains the artifact collector: writing diagnostic blobs into
// the per-test artifacts directory and adopting sanitizer logs left behind
// by the kphp toolchain.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ra2003/kphp/model"
)

func (r *Runner) ensureArtifactsDir() error {
	return os.MkdirAll(r.artifactsDir, 0o755)
}

// removeArtifactsDir deletes the whole artifacts directory so no stale data
// from a previous run survives a retry.
func (r *Runner) removeArtifactsDir() {
	_ = os.RemoveAll(r.artifactsDir)
}

// recordArtifact writes content into the slot's file and populates the slot.
func (r *Runner) recordArtifact(slot model.Slot, priority int, content []byte) {
	if err := r.ensureArtifactsDir(); err != nil {
		r.logger.Warn().Err(err).Str("test", r.test.Path).Msg("Failed to create artifacts dir")
		return
	}
	file := filepath.Join(r.artifactsDir, slot.FileName())
	if err := os.WriteFile(file, content, 0o644); err != nil {
		r.logger.Warn().Err(err).Str("file", file).Msg("Failed to write artifact")
		return
	}
	r.artifacts.Set(slot, file, priority)
}

// adoptArtifact moves an existing file (e.g. a sanitizer log) into the
// slot's path and populates the slot.
func (r *Runner) adoptArtifact(slot model.Slot, priority int, path string) {
	if err := r.ensureArtifactsDir(); err != nil {
		r.logger.Warn().Err(err).Str("test", r.test.Path).Msg("Failed to create artifacts dir")
		return
	}
	file := filepath.Join(r.artifactsDir, slot.FileName())
	if err := moveFile(path, file); err != nil {
		r.logger.Warn().Err(err).Str("file", path).Msg("Failed to move artifact")
		return
	}
	r.artifacts.Set(slot, file, priority)
}

// prepareAsanEnv removes sanitizer logs left over from a previous run and
// returns the environment overlay directing new logs under dir, plus the
// glob mask matching whatever the sanitizer produces there. Log files are
// disambiguated per stage by the slot file name, so concurrent tests and
// consecutive stages never collide.
func (r *Runner) prepareAsanEnv(dir string, slot model.Slot) ([]string, string) {
	logPath := filepath.Join(dir, slot.FileName())
	globMask := logPath + ".*"
	if stale, err := filepath.Glob(globMask); err == nil {
		for _, old := range stale {
			_ = os.Remove(old)
		}
	}
	env := []string{fmt.Sprintf("ASAN_OPTIONS=detect_leaks=0:log_path=%s", logPath)}
	return env, globMask
}

// sweepAsanLogs inspects every sanitizer log matching the mask: fully
// ignorable logs are deleted, the first significant one is adopted into the
// slot.
func (r *Runner) sweepAsanLogs(globMask string, priority int, slot model.Slot) {
	logs, err := filepath.Glob(globMask)
	if err != nil {
		return
	}
	for _, log := range logs {
		data, err := os.ReadFile(log)
		if err != nil {
			r.logger.Warn().Err(err).Str("file", log).Msg("Failed to read asan log")
			continue
		}
		if ignorable(asanNoisePatterns, data) {
			_ = os.Remove(log)
			continue
		}
		r.adoptArtifact(slot, priority, log)
		return
	}
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Remove(src)
}
