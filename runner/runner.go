package runner

// This file contains the per-test stage machine: reference run, kphp build,
// compiled run and stdout comparison, executed in strict sequence with
// short-circuit on the first failing stage.

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ra2003/kphp/model"
)

const (
	defaultRunTimeout   = 300 * time.Second
	defaultBuildTimeout = 600 * time.Second
)

// Config carries the external collaborators and tunables of a test run.
type Config struct {
	// KphpPath is the kphp compiler executable
	KphpPath string
	// TestsDir is the shared include root for all tests
	TestsDir string
	// PhpBin / Php5Bin override PATH resolution of the reference
	// interpreter; empty means look up php7.2 (or php5.6/php5) from PATH
	PhpBin  string
	Php5Bin string
	// RunTimeout bounds the reference and compiled runs, BuildTimeout the
	// kphp build; zero selects the defaults
	RunTimeout   time.Duration
	BuildTimeout time.Duration
}

func (c Config) runTimeout() time.Duration {
	if c.RunTimeout > 0 {
		return c.RunTimeout
	}
	return defaultRunTimeout
}

func (c Config) buildTimeout() time.Duration {
	if c.BuildTimeout > 0 {
		return c.BuildTimeout
	}
	return defaultBuildTimeout
}

// Stage is one discrete subprocess step within a test's execution.
type Stage uint8

const (
	StageReferenceRun Stage = iota
	StageCompile
	StageCompiledRun
	StageCompare
)

// FailureReason is the stage-identifying reason attached to a failed result.
func (s Stage) FailureReason() string {
	switch s {
	case StageReferenceRun:
		return "got php error"
	case StageCompile:
		return "got kphp build error"
	case StageCompiledRun:
		return "got kphp runtime error"
	case StageCompare:
		return "got php and kphp diff"
	}
	return "unknown stage"
}

// diagnosticSlot is the artifact slot receiving this stage's diagnostics.
func (s Stage) diagnosticSlot() model.Slot {
	switch s {
	case StageReferenceRun:
		return model.SlotPhpStderr
	case StageCompile:
		return model.SlotKphpBuildStderr
	case StageCompiledRun:
		return model.SlotKphpRuntimeStderr
	}
	return model.SlotStdoutDiff
}

// runContext carries the state threaded between stage transitions: the two
// stdout captures that the compare stage consumes.
type runContext struct {
	phpStdout  []byte
	kphpStdout []byte
}

// Runner executes the stage machine of a single test. All of its paths live
// under the test's own tmp dir, never shared with a concurrent test.
type Runner struct {
	logger    zerolog.Logger
	cfg       Config
	test      *model.TestFile
	artifacts *model.Artifacts

	testPath     string
	artifactsDir string
	workingDir   string
	phpDir       string
	buildDir     string
	runtimeDir   string
	runtimeBin   string
	includeDirs  [2]string
}

// NewRunner lays out the per-test directory tree rooted at the test's tmp
// dir: working_dir/{php,kphp_build,kphp_runtime} plus artifacts/.
func NewRunner(logger zerolog.Logger, cfg Config, test *model.TestFile) *Runner {
	testPath, _ := filepath.Abs(test.Path)
	testsDir, _ := filepath.Abs(cfg.TestsDir)
	workingDir, _ := filepath.Abs(filepath.Join(test.TmpDir, "working_dir"))

	r := &Runner{
		logger:       logger,
		cfg:          cfg,
		test:         test,
		artifacts:    &model.Artifacts{},
		testPath:     testPath,
		artifactsDir: filepath.Join(test.TmpDir, "artifacts"),
		workingDir:   workingDir,
		phpDir:       filepath.Join(workingDir, "php"),
		buildDir:     filepath.Join(workingDir, "kphp_build"),
		runtimeDir:   filepath.Join(workingDir, "kphp_runtime"),
		includeDirs:  [2]string{testsDir, filepath.Dir(testPath)},
	}
	r.runtimeBin = filepath.Join(r.buildDir, "server")
	return r
}

// Run executes the test selected path to completion and folds every stage
// outcome into a single immutable result. All subprocess and filesystem
// errors are converted into per-test failures here; nothing escapes to the
// scheduler.
func Run(logger zerolog.Logger, cfg Config, test *model.TestFile) model.Result {
	if _, err := os.Stat(test.Path); err != nil {
		return model.Failed(test, nil, "can't find test file")
	}

	r := NewRunner(logger, cfg, test)
	r.removeArtifactsDir()

	switch test.Kind {
	case model.KindExpectCompileFailure:
		return r.runExpectCompileFailure()
	case model.KindStandard:
		return r.runStandard()
	}
	return model.Skipped(test)
}

// runStandard drives the full pipeline in strict stage order.
func (r *Runner) runStandard() model.Result {
	ctx := &runContext{}
	stages := []struct {
		stage Stage
		run   func(*runContext) (bool, error)
	}{
		{StageReferenceRun, r.referenceRun},
		{StageCompile, r.compile},
		{StageCompiledRun, r.compiledRun},
		{StageCompare, r.compare},
	}

	for _, s := range stages {
		ok, err := s.run(ctx)
		if err != nil {
			r.logger.Debug().Err(err).Str("test", r.test.Path).Msg("Stage error")
			r.recordArtifact(s.stage.diagnosticSlot(), 1, []byte(err.Error()+"\n"))
			return model.Failed(r.test, r.artifacts, s.stage.FailureReason())
		}
		if !ok {
			return model.Failed(r.test, r.artifacts, s.stage.FailureReason())
		}
	}

	if r.artifacts.Empty() {
		// the binary is reproducible from source, keeping it wastes disk
		if err := os.Remove(r.runtimeBin); err != nil {
			r.logger.Debug().Err(err).Str("binary", r.runtimeBin).Msg("Failed to clean up kphp binary")
		}
	}
	return model.Passed(r.test, r.artifacts)
}

// runExpectCompileFailure runs only the build stage with inverted polarity:
// a successful compile is the failure condition.
func (r *Runner) runExpectCompileFailure() model.Result {
	ok, err := r.compile(&runContext{})
	if err != nil {
		r.logger.Debug().Err(err).Str("test", r.test.Path).Msg("Stage error")
		r.recordArtifact(model.SlotKphpBuildStderr, 1, []byte(err.Error()+"\n"))
		return model.Failed(r.test, r.artifacts, StageCompile.FailureReason())
	}
	if ok {
		return model.Failed(r.test, r.artifacts, "kphp build is ok, but it expected to fail")
	}

	if r.test.OutRegex != nil {
		buildStderr := r.artifacts.Get(model.SlotKphpBuildStderr)
		if buildStderr.File == "" {
			return model.Failed(r.test, r.artifacts, "kphp build failed without stderr")
		}
		data, err := os.ReadFile(buildStderr.File)
		if err != nil || !r.test.OutRegex.Match(data) {
			return model.Failed(r.test, r.artifacts, "unexpected kphp build fail")
		}
	}

	// a matching expected failure is not itself a defect
	r.artifacts.Clear(model.SlotKphpBuildStderr)
	return model.Passed(r.test, r.artifacts)
}

// referenceRun executes the test under the reference php interpreter and
// captures its stdout for the compare stage.
func (r *Runner) referenceRun(ctx *runContext) (bool, error) {
	if err := clearDir(r.phpDir); err != nil {
		return false, err
	}

	phpBin, err := r.resolvePhpBin()
	if err != nil {
		return false, err
	}

	options := [][2]string{
		{"display_errors", "0"},
		{"log_errors", "1"},
		{"error_log", "/proc/self/fd/2"},
		{"extension", "json.so"},
		{"extension", "bcmath.so"},
		{"extension", "iconv.so"},
		{"extension", "mbstring.so"},
		{"extension", "vkext.so"},
		{"memory_limit", "3072M"},
		{"xdebug.var_display_max_depth", "-1"},
		{"xdebug.var_display_max_children", "-1"},
		{"xdebug.var_display_max_data", "-1"},
		{"include_path", strings.Join(r.includeDirs[:], ":")},
	}

	argv := []string{phpBin, "-n"}
	for _, opt := range options {
		argv = append(argv, "-d", fmt.Sprintf("%s=%s", opt[0], opt[1]))
	}
	argv = append(argv, r.testPath)

	out, err := runProc(r.logger, procSpec{
		argv:    argv,
		dir:     r.phpDir,
		timeout: r.cfg.runTimeout(),
	})
	if err != nil {
		return false, err
	}

	ctx.phpStdout = out.Stdout
	if len(out.Stderr) > 0 {
		r.recordArtifact(model.SlotPhpStderr, out.Priority(), out.Stderr)
	}
	removeDirIfEmpty(r.phpDir)

	return out.Ok(), nil
}

func (r *Runner) resolvePhpBin() (string, error) {
	if r.test.Php5 {
		if r.cfg.Php5Bin != "" {
			return r.cfg.Php5Bin, nil
		}
		if bin, err := exec.LookPath("php5.6"); err == nil {
			return bin, nil
		}
		return exec.LookPath("php5")
	}
	if r.cfg.PhpBin != "" {
		return r.cfg.PhpBin, nil
	}
	return exec.LookPath("php7.2")
}

// compile runs the kphp build. kphp writes errors to stdout and progress to
// stderr, so the stage captures one combined stream.
func (r *Runner) compile(_ *runContext) (bool, error) {
	if err := os.MkdirAll(r.buildDir, 0o755); err != nil {
		return false, err
	}

	env, asanMask := r.prepareAsanEnv(r.buildDir, model.SlotKphpBuildAsanLog)
	env = append(env, "KPHP_JOBS_COUNT=2", "KPHP_THREADS_COUNT=3")

	argv := []string{
		r.cfg.KphpPath,
		"-I", r.includeDirs[0],
		"-I", r.includeDirs[1],
		"-d", r.buildDir,
		r.testPath,
	}

	out, err := runProc(r.logger, procSpec{
		argv:     argv,
		dir:      r.buildDir,
		env:      env,
		timeout:  r.cfg.buildTimeout(),
		combined: true,
	})
	if err != nil {
		return false, err
	}

	// synthesized kill/zombie text arrives on Stderr even in combined mode
	diagnostics := append(out.Stdout, out.Stderr...)

	r.sweepAsanLogs(asanMask, out.Priority(), model.SlotKphpBuildAsanLog)
	if !ignorable(buildNoisePatterns, diagnostics) {
		r.recordArtifact(model.SlotKphpBuildStderr, out.Priority(), diagnostics)
	}

	return out.Ok(), nil
}

// compiledRun executes the binary produced by the compile stage and captures
// its stdout for the compare stage.
func (r *Runner) compiledRun(ctx *runContext) (bool, error) {
	if err := clearDir(r.runtimeDir); err != nil {
		return false, err
	}

	env, asanMask := r.prepareAsanEnv(r.runtimeDir, model.SlotKphpRuntimeAsanLog)

	argv := []string{r.runtimeBin, "-o"}
	if os.Getuid() == 0 {
		argv = append(argv, "-u", "root", "-g", "root")
	}

	out, err := runProc(r.logger, procSpec{
		argv:    argv,
		dir:     r.runtimeDir,
		env:     env,
		timeout: r.cfg.runTimeout(),
	})
	if err != nil {
		return false, err
	}

	ctx.kphpStdout = out.Stdout
	r.sweepAsanLogs(asanMask, out.Priority(), model.SlotKphpRuntimeAsanLog)
	if !ignorable(runtimeNoisePatterns, out.Stderr) {
		r.recordArtifact(model.SlotKphpRuntimeStderr, out.Priority(), out.Stderr)
	}
	removeDirIfEmpty(r.runtimeDir)

	return out.Ok(), nil
}

func (r *Runner) compare(ctx *runContext) (bool, error) {
	return r.compareOutputs(ctx.phpStdout, ctx.kphpStdout), nil
}
