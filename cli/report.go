package cli

// This file contains the live per-test report lines, the final failure
// report and the aggregate summary. Colors are plain ANSI escapes, enabled
// only when stdout is a terminal.

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ra2003/kphp/model"
)

var colorized = isatty.IsTerminal(os.Stdout.Fd())

func paint(code, text string) string {
	if !colorized {
		return text
	}
	return "\033[" + code + "m" + text + "\033[0m"
}

func red(text string) string    { return paint("31", text) }
func green(text string) string  { return paint("32", text) }
func yellow(text string) string { return paint("33", text) }
func blue(text string) string   { return paint("1;34", text) }

func statusLabel(res model.Result) string {
	switch res.Status {
	case model.StatusPassed:
		return green("passed ")
	case model.StatusFailed:
		return red("failed ")
	}
	return yellow("skipped")
}

// printShortReport emits the live one-liner for a completed test:
// [n/total] status path (reason or collected artifact names).
func printShortReport(res model.Result, total, completed int) {
	width := len(strconv.Itoa(total))

	info := ""
	if res.IsFailed() {
		info = red("(" + res.FailedStage + ")")
	} else if res.Artifacts != nil {
		var titles []string
		for _, named := range res.Artifacts.All() {
			titles = append(titles, named.Title)
		}
		if len(titles) > 0 {
			info = yellow("(got " + strings.Join(titles, ", ") + ")")
		}
	}

	fmt.Printf("[%*d/%d] %s %s %s\n", width, completed, total, statusLabel(res), res.Path, info)
	printArtifacts(res)
}

// printFailReport re-lists one failing test with its stage reason and
// artifact paths.
func printFailReport(res model.Result) {
	if !res.IsFailed() {
		return
	}
	fmt.Printf("%s %s\n", res.Path, red("("+res.FailedStage+")"))
	printArtifacts(res)
}

func printArtifacts(res model.Result) {
	if res.Artifacts == nil {
		return
	}
	for _, named := range res.Artifacts.All() {
		title := yellow(named.Title)
		if named.Artifact.Priority != 0 {
			title = red(named.Title)
		}
		fmt.Printf("  %s - %s\n", blue(named.Artifact.File), title)
	}
}
