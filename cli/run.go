package cli

// This file contains the main action: environment validation, discovery,
// concurrent execution through the runner pool, live reporting, aggregation
// and the final exit code.

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ra2003/kphp/model"
	"github.com/ra2003/kphp/runner"
)

func (a *App) runTests(ctx *cli.Context) error {
	testsDir := filepath.Clean(ctx.String("tests-dir"))
	kphpPath := filepath.Clean(ctx.String("kphp"))
	listFile := ctx.String("from-list")
	filters := ctx.Args().Slice()

	// configuration errors are fatal and abort before any test runs
	if _, err := os.Stat(testsDir); err != nil {
		return cli.Exit(fmt.Sprintf("Can't find tests dir '%s'", testsDir), 1)
	}
	if _, err := os.Stat(kphpPath); err != nil {
		return cli.Exit(fmt.Sprintf("Can't find kphp '%s'", kphpPath), 1)
	}
	if listFile != "" {
		if _, err := os.Stat(listFile); err != nil {
			return cli.Exit(fmt.Sprintf("Can't find test list file '%s'", listFile), 1)
		}
	}

	tests, err := collectTests(testsDir, filters, listFile)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(tests) == 0 {
		noun := "tag"
		if len(filters) > 1 {
			noun = "tags"
		}
		return cli.Exit(fmt.Sprintf("Can't find any tests with [%s] %s", strings.Join(filters, ", "), noun), 1)
	}

	kphpAbs, err := filepath.Abs(kphpPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg := runner.Config{
		KphpPath: kphpAbs,
		TestsDir: testsDir,
	}

	token := &runner.Token{}
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		<-interrupts
		token.Cancel()
	}()

	jobs := ctx.Int("jobs")
	a.logger.Debug().
		Int("jobs", jobs).
		Int("tests", len(tests)).
		Str("kphp", kphpAbs).
		Msg("Starting test run")

	pool := runner.NewPool(a.logger, jobs)
	resultCh := pool.Run(tests, token, func(test *model.TestFile) model.Result {
		return runner.Run(a.logger, cfg, test)
	})

	var results []model.Result
	interrupted := false
	for res := range resultCh {
		if token.Cancelled() {
			interrupted = true
			fmt.Println(yellow("Testing process was interrupted"))
			break
		}
		results = append(results, res)
		printShortReport(res, len(tests), len(results))
	}

	fmt.Println("\nTesting results:")

	// tests never consumed due to early termination count as skipped
	skipped := len(tests) - len(results)
	failed := 0
	var passed []string
	for _, res := range results {
		switch {
		case res.IsSkipped():
			skipped++
		case res.IsFailed():
			failed++
		default:
			rel, err := filepath.Rel(testsDir, res.Path)
			if err != nil {
				rel = res.Path
			}
			passed = append(passed, rel)
		}
	}

	if len(passed) > 0 {
		fmt.Printf("  %s%d\n", green("passed:  "), len(passed))
		if passedList := ctx.String("save-passed"); passedList != "" {
			sort.Strings(passed)
			data := strings.Join(passed, "\n") + "\n"
			if err := os.WriteFile(passedList, []byte(data), 0o644); err != nil {
				a.logger.Warn().Err(err).Str("file", passedList).Msg("Failed to save passed list")
			}
		}
	}
	if skipped > 0 {
		fmt.Printf("  %s%d\n", yellow("skipped: "), skipped)
	}
	if failed > 0 {
		fmt.Printf("  %s%d\n\n", red("failed:  "), failed)
		if !ctx.Bool("no-report") {
			for _, res := range results {
				printFailReport(res)
			}
		}
	}

	return exitStatus(failed, interrupted || token.Cancelled())
}

// exitStatus maps the aggregated run outcome to the process exit code: 1 when
// any test failed, 2 when the run was interrupted before a failure was seen,
// 0 otherwise.
func exitStatus(failed int, interrupted bool) error {
	if failed > 0 {
		return cli.Exit("", 1)
	}
	if interrupted {
		return cli.Exit("", 2)
	}
	return nil
}
