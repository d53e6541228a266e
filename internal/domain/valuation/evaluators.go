package valuation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Evaluation is the result of a single metric evaluator.
type Evaluation struct {
	Kind      Kind    `json:"kind"`
	Value     float64 `json:"value"`
	Rationale string  `json:"rationale"`
}

// Evaluator is a pure function from source text to an Evaluation of one kind.
// Evaluators hold no state and never read each other's results.
type Evaluator struct {
	Kind        Kind
	Description string
	fn          func(code string) (float64, string)
}

// NewEvaluator builds an Evaluator from a scoring function. The function's
// value is clamped to [0, 1].
func NewEvaluator(kind Kind, description string, fn func(code string) (float64, string)) Evaluator {
	return Evaluator{Kind: kind, Description: description, fn: fn}
}

// Evaluate scores code.
func (e Evaluator) Evaluate(code string) Evaluation {
	value, rationale := e.fn(code)
	return Evaluation{Kind: e.Kind, Value: clamp01(value), Rationale: rationale}
}

// Evaluators returns the six built-in evaluators in Kind order.
func Evaluators() []Evaluator {
	return []Evaluator{
		NewEvaluator(Impact, "call sites and control structures", evaluateImpact),
		NewEvaluator(Simplicity, "line length, nesting depth and symbol density", evaluateSimplicity),
		NewEvaluator(Cleanness, "indentation, brace style and blank-line share", evaluateCleanness),
		NewEvaluator(Comment, "comment density and comment length", evaluateComment),
		NewEvaluator(Creditability, "test vocabulary, doc tags and references", evaluateCreditability),
		NewEvaluator(Novelty, "advanced constructs, design patterns and complexity notes", evaluateNovelty),
	}
}

// Impact.
const (
	impactCallSaturation    = 15
	impactControlSaturation = 5
	impactCallWeight        = 0.6
	impactControlWeight     = 0.4
)

// Simplicity.
const (
	simplicityTargetLineLength = 40.0
	simplicityMaxNesting       = 5.0
	simplicityTargetDensity    = 0.1
	simplicitySymbols          = "+-*/=<>!&|^~%?:;[](){}"
)

// Cleanness.
const (
	cleannessIndentWeight     = 0.5
	cleannessBraceWeight      = 0.3
	cleannessWhitespaceWeight = 0.2
	cleannessTargetBlankShare = 0.2
	cleannessMixedBraceScore  = 0.5
)

// Comment.
const (
	commentTargetDensity  = 0.3
	commentWordSaturation = 8
	commentDensityWeight  = 0.6
	commentLengthWeight   = 0.4
)

// Creditability.
const (
	creditTestSaturation = 5
	creditDocSaturation  = 10
	creditRefSaturation  = 2
	creditTestWeight     = 0.4
	creditDocWeight      = 0.4
	creditRefWeight      = 0.2
)

// Novelty.
const (
	noveltyAdvancedSaturation   = 3
	noveltyPatternSaturation    = 2
	noveltyComplexitySaturation = 1
	noveltyAdvancedWeight       = 0.4
	noveltyPatternWeight        = 0.4
	noveltyComplexityWeight     = 0.2
)

var (
	callRe        = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)
	controlRe     = regexp.MustCompile(`\b(if|for|while|switch)\s*\(`)
	sameLineBrace = regexp.MustCompile(`\)[ \t]*\{`)
	nextLineBrace = regexp.MustCompile(`\)[ \t]*\r?\n[ \t]*\{`)
	testWordRe    = regexp.MustCompile(`(?i)\b(test|assert|expect|should|mock|stub|spy)\b`)
	docTagRe      = regexp.MustCompile(`@(param|returns?|throws?|see|link|since|version|author|deprecated)\b`)
	referenceRe   = regexp.MustCompile(`https?://[^\s)>"']+|\b(RFC|IEEE|ISO)[- ]?[0-9]+`)
	advancedRe    = regexp.MustCompile(`\b(template|constexpr|decltype|concept|requires|noexcept|auto|lambda|yield|async|await|chan|select|defer)\b`)
	patternRe     = regexp.MustCompile(`\b(Factory|Builder|Singleton|Adapter|Decorator|Observer|Strategy|Visitor|Proxy|Facade|Command|Iterator|Mediator|Memento|Prototype|Composite|Bridge|Flyweight|State)\b`)
	complexityRe  = regexp.MustCompile(`\bO\([^)\n]*\)`)
)

var controlKeywords = map[string]bool{"if": true, "for": true, "while": true, "switch": true}

func evaluateImpact(code string) (float64, string) {
	calls := 0
	for _, m := range callRe.FindAllStringSubmatch(code, -1) {
		if !controlKeywords[m[1]] {
			calls++
		}
	}
	control := len(controlRe.FindAllStringIndex(code, -1))

	value := impactCallWeight*saturate(calls, impactCallSaturation) +
		impactControlWeight*saturate(control, impactControlSaturation)
	return value, fmt.Sprintf("%d call sites, %d control structures", calls, control)
}

func evaluateSimplicity(code string) (float64, string) {
	var lines, chars, symbols, depth, maxDepth int
	for _, line := range splitLines(code) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		chars += len(line)
		for _, r := range line {
			switch r {
			case '{':
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			case '}':
				if depth > 0 {
					depth--
				}
			}
			if strings.ContainsRune(simplicitySymbols, r) {
				symbols++
			}
		}
	}

	var avgLen, density float64
	if lines > 0 {
		avgLen = float64(chars) / float64(lines)
	}
	if chars > 0 {
		density = float64(symbols) / float64(chars)
	}

	lineScore := clamp01(1 - (avgLen-simplicityTargetLineLength)/simplicityTargetLineLength)
	nestingScore := clamp01(1 - float64(maxDepth)/simplicityMaxNesting)
	symbolScore := clamp01(1 - math.Abs(density-simplicityTargetDensity)/simplicityTargetDensity)

	value := (lineScore + nestingScore + symbolScore) / 3
	return value, fmt.Sprintf("avg line length %.1f, max nesting %d, symbol density %.3f", avgLen, maxDepth, density)
}

func evaluateCleanness(code string) (float64, string) {
	lines := splitLines(code)
	mixed := false
	blank := 0
	prevIndent := ""
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		tabs := strings.Contains(indent, "\t")
		spaces := strings.Contains(indent, " ")
		if tabs && spaces {
			mixed = true
		}
		if prevIndent != "" && indent != "" {
			prevTabs := strings.Contains(prevIndent, "\t")
			if tabs != prevTabs {
				mixed = true
			}
		}
		if indent != "" {
			prevIndent = indent
		}
	}

	indentScore := 1.0
	if mixed {
		indentScore = 0
	}

	same := len(sameLineBrace.FindAllStringIndex(code, -1))
	next := len(nextLineBrace.FindAllStringIndex(code, -1))
	braceScore := cleannessMixedBraceScore
	if (same > 0) != (next > 0) {
		braceScore = 1
	}

	var blankShare float64
	if len(lines) > 0 {
		blankShare = float64(blank) / float64(len(lines))
	}
	whitespaceScore := clamp01(1 - math.Abs(blankShare-cleannessTargetBlankShare)/cleannessTargetBlankShare)

	value := cleannessIndentWeight*indentScore + cleannessBraceWeight*braceScore + cleannessWhitespaceWeight*whitespaceScore
	return value, fmt.Sprintf("mixed indentation %t, %d same-line and %d next-line braces, blank share %.2f",
		mixed, same, next, blankShare)
}

func evaluateComment(code string) (float64, string) {
	lines := splitLines(code)
	commentLines, words := 0, 0
	inBlock := false
	for _, line := range lines {
		text, isComment := "", false
		switch {
		case inBlock:
			isComment = true
			text = line
			if i := strings.Index(line, "*/"); i >= 0 {
				text = line[:i]
				inBlock = false
			}
		case strings.Contains(line, "//"):
			isComment = true
			text = line[strings.Index(line, "//")+2:]
		case strings.Contains(line, "/*"):
			isComment = true
			text = line[strings.Index(line, "/*")+2:]
			if i := strings.Index(text, "*/"); i >= 0 {
				text = text[:i]
			} else {
				inBlock = true
			}
		}
		if !isComment {
			continue
		}
		commentLines++
		words += len(strings.Fields(strings.TrimLeft(strings.TrimSpace(text), "*")))
	}

	var density, avgWords float64
	if len(lines) > 0 {
		density = float64(commentLines) / float64(len(lines))
	}
	if commentLines > 0 {
		avgWords = float64(words) / float64(commentLines)
	}

	densityScore := clamp01(1 - math.Abs(density-commentTargetDensity)/commentTargetDensity)
	lengthScore := math.Min(1, avgWords/commentWordSaturation)

	value := commentDensityWeight*densityScore + commentLengthWeight*lengthScore
	return value, fmt.Sprintf("%d of %d lines commented, %.1f words per comment", commentLines, len(lines), avgWords)
}

func evaluateCreditability(code string) (float64, string) {
	tests := len(testWordRe.FindAllStringIndex(code, -1))
	docs := len(docTagRe.FindAllStringIndex(code, -1))
	refs := len(referenceRe.FindAllStringIndex(code, -1))

	value := creditTestWeight*saturate(tests, creditTestSaturation) +
		creditDocWeight*saturate(docs, creditDocSaturation) +
		creditRefWeight*saturate(refs, creditRefSaturation)
	return value, fmt.Sprintf("%d test words, %d doc tags, %d references", tests, docs, refs)
}

func evaluateNovelty(code string) (float64, string) {
	advanced := len(advancedRe.FindAllStringIndex(code, -1))
	patterns := len(patternRe.FindAllStringIndex(code, -1))
	complexity := len(complexityRe.FindAllStringIndex(code, -1))

	value := noveltyAdvancedWeight*saturate(advanced, noveltyAdvancedSaturation) +
		noveltyPatternWeight*saturate(patterns, noveltyPatternSaturation) +
		noveltyComplexityWeight*saturate(complexity, noveltyComplexitySaturation)
	return value, fmt.Sprintf("%d advanced constructs, %d design patterns, %d complexity notes", advanced, patterns, complexity)
}

// splitLines splits on newlines and drops a trailing empty line. Empty code has no lines.
func splitLines(code string) []string {
	if code == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func saturate(count, threshold int) float64 {
	if threshold <= 0 {
		return 0
	}
	return math.Min(1, float64(count)/float64(threshold))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
