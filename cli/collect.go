package cli

// This file contains test discovery: walking the tests dir (or reading an
// explicit list file), parsing the @tags header and the optional /.../
// expected-failure pattern, and applying tag/path filters.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ra2003/kphp/model"
)

// tmpRootName is the scratch root holding every test's private tmp dir.
const tmpRootName = "kphp_tester_tmp"

// collectTests discovers test files under testsDir, or the files named in
// listFile when given, keeping those selected by the filters.
func collectTests(testsDir string, filters []string, listFile string) ([]*model.TestFile, error) {
	var candidates []string
	if listFile != "" {
		data, err := os.ReadFile(listFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read test list: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				candidates = append(candidates, filepath.Join(testsDir, line))
			}
		}
	} else {
		err := filepath.WalkDir(testsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				candidates = append(candidates, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk tests dir: %w", err)
		}
	}

	var tests []*model.TestFile
	for _, path := range candidates {
		ext := filepath.Ext(path)
		if ext != ".php" && ext != ".phpt" {
			continue
		}
		rel, err := filepath.Rel(filepath.Dir(testsDir), path)
		if err != nil {
			rel = filepath.Base(path)
		}
		tmpDir := filepath.Join(tmpRootName, strings.TrimSuffix(rel, ext))

		test, err := makeTestFile(path, tmpDir, filters)
		if err != nil {
			return nil, err
		}
		if test != nil {
			tests = append(tests, test)
		}
	}
	return tests, nil
}

// makeTestFile parses one candidate file. Files without an @tags header are
// not tests, except .phpt files (and files that do not exist yet, which fail
// late inside the runner) which are implicitly tagged ok and filtered by
// path substring only.
func makeTestFile(path, tmpDir string, filters []string) (*model.TestFile, error) {
	if _, err := os.Stat(path); filepath.Ext(path) == ".phpt" || err != nil {
		if !matchesPath(path, filters) {
			return nil, nil
		}
		return model.NewTestFile(path, tmpDir, []string{"ok"}, nil), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test file: %w", err)
	}
	defer f.Close()

	// header lines are read unbounded; generated tests may carry very long
	// tag lists
	reader := bufio.NewReader(f)
	firstLine, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read test file %s: %w", path, err)
	}
	if !strings.HasPrefix(firstLine, "@") {
		return nil, nil
	}
	tags := strings.Fields(firstLine[1:])

	var outRegex *regexp.Regexp
	secondLine, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read test file %s: %w", path, err)
	}
	secondLine = strings.TrimSpace(secondLine)
	if len(secondLine) > 1 && strings.HasPrefix(secondLine, "/") && strings.HasSuffix(secondLine, "/") {
		outRegex, err = regexp.Compile(secondLine[1 : len(secondLine)-1])
		if err != nil {
			return nil, fmt.Errorf("bad expected-failure pattern in %s: %w", path, err)
		}
	}

	test := model.NewTestFile(path, tmpDir, tags, outRegex)
	if !test.Matches(filters) {
		return nil, nil
	}
	return test, nil
}

func matchesPath(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}
