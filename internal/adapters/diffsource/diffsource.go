// Package diffsource turns unified diffs into attributable line ranges.
package diffsource

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// Range is a run of consecutive added lines on the new side of a diff.
type Range struct {
	FileID    string
	LineStart int
	LineEnd   int
	Code      string
}

// Lines is the number of lines in the range.
func (r Range) Lines() int {
	return r.LineEnd - r.LineStart + 1
}

// Parse reads a multi-file unified diff and returns the added line runs in
// file and line order. Deleted files and pure deletions yield nothing.
func Parse(patch []byte) ([]Range, error) {
	files, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	var out []Range
	for _, fd := range files {
		if fd.NewName == devNull {
			continue
		}
		name := strings.TrimPrefix(fd.NewName, "b/")
		for _, h := range fd.Hunks {
			if h.NewLines == 0 {
				continue
			}
			out = append(out, addedRuns(name, h)...)
		}
	}
	return out, nil
}

// addedRuns walks a hunk body tracking new-side line numbers. Removed lines
// do not occupy new-side lines, so they do not break a run.
func addedRuns(file string, h *diff.Hunk) []Range {
	var (
		out  []Range
		cur  *Range
		code []string
		line = int(h.NewStartLine)
	)
	flush := func() {
		if cur != nil {
			cur.Code = strings.Join(code, "\n") + "\n"
			out = append(out, *cur)
			cur, code = nil, nil
		}
	}

	for _, raw := range strings.Split(strings.TrimSuffix(string(h.Body), "\n"), "\n") {
		if raw == "" {
			// An empty body line is an unprefixed blank context line.
			flush()
			line++
			continue
		}
		switch raw[0] {
		case '+':
			if cur == nil {
				cur = &Range{FileID: file, LineStart: line}
			}
			cur.LineEnd = line
			code = append(code, raw[1:])
			line++
		case '-', '\\':
		default:
			flush()
			line++
		}
	}
	flush()
	return out
}
