package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "frag.go")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadRange(t *testing.T) {
	Convey("Given a five line file", t, func() {
		path := writeTemp(t, "one\ntwo\nthree\nfour\nfive\n")

		Convey("A middle range is returned inclusively", func() {
			got, err := ReadRange(path, 2, 4)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "two\nthree\nfour\n")
		})

		Convey("An end past EOF is clamped", func() {
			got, err := ReadRange(path, 4, 99)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "four\nfive\n")
		})

		Convey("A start past EOF is rejected", func() {
			_, err := ReadRange(path, 6, 8)
			So(errors.Is(err, ErrEmptyRange), ShouldBeTrue)
		})

		Convey("Inverted and zero ranges are rejected", func() {
			_, err := ReadRange(path, 3, 2)
			So(errors.Is(err, ErrInvalidRange), ShouldBeTrue)
			_, err = ReadRange(path, 0, 2)
			So(errors.Is(err, ErrInvalidRange), ShouldBeTrue)
		})

		Convey("ReadFile counts lines", func() {
			body, n, err := ReadFile(path)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
			So(body, ShouldStartWith, "one\n")
		})
	})

	Convey("A missing file surfaces the open error", t, func() {
		_, err := ReadRange(filepath.Join(t.TempDir(), "nope"), 1, 1)
		So(err, ShouldNotBeNil)
		So(os.IsNotExist(err) || strings.Contains(err.Error(), "no such file"), ShouldBeTrue)
	})
}

func TestParseMetadata(t *testing.T) {
	Convey("Given a header with mixed comment styles", t, func() {
		src := strings.Join([]string{
			"// @author: alice",
			"# @License: MIT",
			" * @since: 2024-01-01 */",
			"// @author: bob",
			"package main",
		}, "\n")

		meta, err := ParseMetadata(strings.NewReader(src))
		So(err, ShouldBeNil)

		Convey("Keys are lowercased and the first value wins", func() {
			So(meta["author"], ShouldEqual, "alice")
			So(meta["license"], ShouldEqual, "MIT")
			So(meta["since"], ShouldEqual, "2024-01-01")
			So(meta, ShouldHaveLength, 3)
		})
	})

	Convey("Annotations after the scan window are ignored", t, func() {
		src := strings.Repeat("x\n", MetadataScanLines) + "// @late: yes\n"
		meta, err := ParseMetadata(strings.NewReader(src))
		So(err, ShouldBeNil)
		So(meta, ShouldBeEmpty)
	})
}
