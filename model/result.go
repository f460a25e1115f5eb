package model

// Status is the terminal state of a test run.
type Status uint8

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

// Result is the immutable outcome of one dispatched test. Exactly one Result
// exists per TestFile handed to the scheduler.
type Result struct {
	Status Status
	// Path of the test source file
	Path string
	// Artifacts collected during the run; nil for skipped tests
	Artifacts *Artifacts
	// FailedStage names the stage that failed, empty unless Status is
	// StatusFailed
	FailedStage string
}

// Passed builds a passing result carrying the (possibly empty) artifact set.
func Passed(t *TestFile, artifacts *Artifacts) Result {
	return Result{Status: StatusPassed, Path: t.Path, Artifacts: artifacts}
}

// Failed builds a failing result with a stage-identifying reason.
func Failed(t *TestFile, artifacts *Artifacts, failedStage string) Result {
	return Result{Status: StatusFailed, Path: t.Path, Artifacts: artifacts, FailedStage: failedStage}
}

// Skipped builds a result for a test that ran no stage.
func Skipped(t *TestFile) Result {
	return Result{Status: StatusSkipped, Path: t.Path}
}

// IsFailed reports whether the test failed at some stage.
func (r Result) IsFailed() bool { return r.Status == StatusFailed }

// IsSkipped reports whether the test was skipped.
func (r Result) IsSkipped() bool { return r.Status == StatusSkipped }
