// Package source reads code fragments and header metadata from local files.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// MetadataScanLines bounds how far into a file ParseMetadata looks.
const MetadataScanLines = 20

var (
	// ErrInvalidRange is returned for a line range that is not 1-based and ordered.
	ErrInvalidRange = errors.New("invalid line range")
	// ErrEmptyRange is returned when the requested range lies past the end of the file.
	ErrEmptyRange = errors.New("line range outside file")
)

var metaLine = regexp.MustCompile(`^\s*(?://+|#+|\*+|/\*+|--)?\s*@([A-Za-z][\w-]*)\s*:\s*(.*?)\s*(?:\*/)?\s*$`)

// ReadFile returns the whole file and its line count.
func ReadFile(path string) (string, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	s := string(b)
	n := strings.Count(s, "\n")
	if len(s) > 0 && !strings.HasSuffix(s, "\n") {
		n++
	}
	return s, n, nil
}

// ReadRange returns lines start..end (1-based, inclusive) of the file at path.
// An end beyond the last line is clamped.
func ReadRange(path string, start, end int) (string, error) {
	if start < 1 || end < start {
		return "", fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return readRange(f, start, end)
}

func readRange(r io.Reader, start, end int) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var b strings.Builder
	line := 0
	for sc.Scan() {
		line++
		if line < start {
			continue
		}
		if line > end {
			break
		}
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}
	if line < start {
		return "", fmt.Errorf("%w: file has %d lines, start %d", ErrEmptyRange, line, start)
	}
	return b.String(), nil
}

// ParseMetadata collects "@key: value" annotations from the first
// MetadataScanLines lines. Keys are lowercased; the first occurrence wins.
func ParseMetadata(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for i := 0; i < MetadataScanLines && sc.Scan(); i++ {
		m := metaLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		if _, ok := out[key]; !ok {
			out[key] = m[2]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan metadata: %w", err)
	}
	return out, nil
}
