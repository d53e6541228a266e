package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/ccsl/pkg/logger"
)

// Constants for fragment generation.
const (
	minFragmentLines = 3
	maxFragmentLines = 24
	maxStartLine     = 400
	packagesPerRun   = 8
)

// fragment styles, picked at random per contribution.
const (
	styleDocumented = iota
	styleTerse
	styleNested
	styleNoisy
	styleCount
)

// getRandomInt returns a uniform integer in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateContributions creates cfg.Contributions non-overlapping
// contributions spread across cfg.Contributors names.
func generateContributions(ctx context.Context, cfg *Config, runID string, stats *Stats) []Contribution {
	logger.NamedOrNop("loadgen").Info(ctx, "generating contributions",
		logger.Int("contributions", cfg.Contributions),
		logger.Int("contributors", cfg.Contributors))

	names := make([]string, max(cfg.Contributors, 1))
	for i := range names {
		names[i] = "dev-" + uuid.NewString()[:8]
	}

	out := make([]Contribution, cfg.Contributions)
	for i := range out {
		lines := minFragmentLines + getRandomInt(maxFragmentLines-minFragmentLines+1)
		start := 1 + getRandomInt(maxStartLine)
		out[i] = Contribution{
			Contributor: names[i%len(names)],
			// One file per contribution keeps ranges disjoint.
			FileID:    fmt.Sprintf("loadgen/%s/pkg%d/file_%d.go", runID, i%packagesPerRun, i),
			LineStart: start,
			LineEnd:   start + lines - 1,
			Code:      generateFragment(i, lines),
		}
	}

	stats.Generated = len(out)
	return out
}

// generateFragment returns exactly lines lines of Go-like source.
func generateFragment(index, lines int) string {
	name := fmt.Sprintf("step%d", index)
	var body []string
	switch getRandomInt(styleCount) {
	case styleDocumented:
		body = []string{
			"// " + name + " folds xs into a running total.",
			"func " + name + "(xs []int) int {",
			"\ttotal := 0",
			"\tfor _, x := range xs {",
			"\t\ttotal += x",
			"\t}",
			"\treturn total",
			"}",
		}
	case styleTerse:
		body = []string{
			"func " + name + "(a, b int) int { return a + b }",
		}
	case styleNested:
		body = []string{
			"func " + name + "(m map[string][]int) (n int) {",
			"\tfor _, xs := range m {",
			"\t\tfor _, x := range xs {",
			"\t\t\tif x > 0 {",
			"\t\t\t\tif x%2 == 0 {",
			"\t\t\t\t\tn++",
			"\t\t\t\t}",
			"\t\t\t}",
			"\t\t}",
			"\t}",
			"\treturn n",
			"}",
		}
	default:
		body = []string{
			"// TODO: fix " + name,
			"var " + name + "Tmp, " + name + "Tmp2, " + name + "Tmp3 = 1, 2, 3 // quick hack",
		}
	}

	out := make([]string, 0, lines)
	for len(out) < lines {
		out = append(out, body[len(out)%len(body)])
	}
	return strings.Join(out, "\n") + "\n"
}
