package test

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/hql-lang/hqlc/internal/logger"
)

func AssertEqual(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		t.Fatalf("%s != %s", a, b)
	}
}

// AssertEqualWithDiff falls back to a line-by-line colored diff when the
// mismatch spans multiple lines (the common case for printer output),
// rather than dumping two long single-line strings for a human to
// eyeball side by side.
func AssertEqualWithDiff(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		stringA := fmt.Sprintf("%v", a)
		stringB := fmt.Sprintf("%v", b)
		if strings.Contains(stringA, "\n") {
			color := runtime.GOOS != "windows"
			t.Fatal(Diff(stringB, stringA, color))
		} else {
			t.Fatalf("%s != %s", a, b)
		}
	}
}

func SourceForTest(contents string) logger.Source {
	return logger.Source{
		KeyPath:    "<stdin>",
		PrettyPath: "<stdin>",
		Contents:   contents,
	}
}
