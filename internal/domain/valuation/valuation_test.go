package valuation_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ccsl/internal/domain/valuation"
)

const tolerance = 1e-6

func evalOf(code string, kind valuation.Kind) valuation.Evaluation {
	for _, ev := range valuation.NewEngine().Evaluate(code) {
		if ev.Kind == kind {
			return ev
		}
	}
	return valuation.Evaluation{}
}

func TestEngineEvaluate(t *testing.T) {
	Convey("Given the default valuation engine", t, func() {
		engine := valuation.NewEngine()
		samples := []string{
			"",
			"x",
			"func main() {\n\tfmt.Println(\"hi\")\n}\n",
			strings.Repeat("if (a) { b(); }\n", 50),
			"// only a comment\n",
		}

		Convey("Every fragment yields six evaluations in kind order", func() {
			for _, code := range samples {
				evals := engine.Evaluate(code)
				So(evals, ShouldHaveLength, 6)
				for i, ev := range evals {
					So(ev.Kind, ShouldEqual, valuation.Kinds()[i])
					So(ev.Value, ShouldBeBetweenOrEqual, 0, 1)
					So(ev.Rationale, ShouldNotBeEmpty)
				}
				So(engine.Value(code), ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("Evaluation is deterministic", func() {
			for _, code := range samples {
				So(engine.Evaluate(code), ShouldResemble, engine.Evaluate(code))
				So(engine.Value(code), ShouldEqual, engine.Value(code))
			}
		})

		Convey("The empty fragment has a fixed composite", func() {
			// simplicity 2/3, cleanness 0.65, everything else 0
			So(engine.Value(""), ShouldAlmostEqual, (2.0/3+0.65)/6, tolerance)
		})

		Convey("The composite is the mean of the six values", func() {
			code := samples[2]
			evals := engine.Evaluate(code)
			var sum float64
			for _, ev := range evals {
				sum += ev.Value
			}
			So(engine.Value(code), ShouldAlmostEqual, sum/6, tolerance)
		})
	})
}

func TestImpactEvaluator(t *testing.T) {
	Convey("Impact counts calls and control structures", t, func() {
		ev := evalOf("foo(); bar(); if (x) { baz(); }", valuation.Impact)
		So(ev.Value, ShouldAlmostEqual, 0.6*3/15+0.4*1.0/5, tolerance)
		So(ev.Rationale, ShouldContainSubstring, "3 call sites")

		Convey("and saturates at one", func() {
			code := strings.Repeat("call(); ", 20) + strings.Repeat("while (x) {}\n", 10)
			So(evalOf(code, valuation.Impact).Value, ShouldEqual, 1)
		})
	})
}

func TestSimplicityEvaluator(t *testing.T) {
	Convey("Simplicity averages line, nesting and symbol scores", t, func() {
		So(evalOf("x", valuation.Simplicity).Value, ShouldAlmostEqual, 2.0/3, tolerance)
		So(evalOf("{{{{{\n}}}}}", valuation.Simplicity).Value, ShouldAlmostEqual, 1.0/3, tolerance)
	})
}

func TestCleannessEvaluator(t *testing.T) {
	Convey("Cleanness rewards consistent indentation and braces", t, func() {
		clean := "func a() {\n\tx()\n\n\ty()\n}\n"
		So(evalOf(clean, valuation.Cleanness).Value, ShouldAlmostEqual, 1, tolerance)

		mixed := "func a() {\n\tx()\n    y()\n}\n"
		So(evalOf(mixed, valuation.Cleanness).Value, ShouldAlmostEqual, 0.3, tolerance)

		Convey("Mixing brace styles halves the brace score", func() {
			code := "if (a) {\n\tb()\n}\nif (c)\n{\n\td()\n}\n"
			ev := evalOf(code, valuation.Cleanness)
			So(ev.Rationale, ShouldContainSubstring, "1 same-line and 1 next-line")
		})
	})
}

func TestCommentEvaluator(t *testing.T) {
	Convey("Comment scores density and length", t, func() {
		code := "// hello world one two three four five six\nx := 1\ny := 2\n"
		So(evalOf(code, valuation.Comment).Value, ShouldAlmostEqual, 0.6*(1-(1.0/3-0.3)/0.3)+0.4, tolerance)

		Convey("Block comments span lines", func() {
			code := "/* a b\n c d */\ncode()\n"
			ev := evalOf(code, valuation.Comment)
			So(ev.Value, ShouldAlmostEqual, 0.4*2.0/8, tolerance)
			So(ev.Rationale, ShouldStartWith, "2 of 3 lines")
		})

		Convey("Uncommented code scores zero", func() {
			So(evalOf("a := b\n", valuation.Comment).Value, ShouldEqual, 0)
		})
	})
}

func TestCreditabilityEvaluator(t *testing.T) {
	Convey("Creditability weighs tests, doc tags and references", t, func() {
		code := "test assert expect should mock // @param x @return y see https://example.com and RFC 7231"
		ev := evalOf(code, valuation.Creditability)
		So(ev.Value, ShouldAlmostEqual, 0.4+0.4*2.0/10+0.2, tolerance)
		So(ev.Rationale, ShouldEqual, "5 test words, 2 doc tags, 2 references")
	})
}

func TestNoveltyEvaluator(t *testing.T) {
	Convey("Novelty saturates on advanced constructs, patterns and complexity notes", t, func() {
		code := "template auto lambda Factory Builder runs in O(n log n)"
		So(evalOf(code, valuation.Novelty).Value, ShouldAlmostEqual, 1, tolerance)
		So(evalOf("plain text", valuation.Novelty).Value, ShouldEqual, 0)
	})
}

func TestCompositeEdgeCases(t *testing.T) {
	Convey("An engine without evaluators values everything at zero", t, func() {
		engine := valuation.NewEngine(valuation.WithEvaluators())
		So(engine.Evaluate("x := 1"), ShouldBeEmpty)
		So(engine.Value("x := 1"), ShouldEqual, 0)
		So(valuation.Composite(nil), ShouldEqual, 0)
	})

	Convey("Custom evaluators are clamped", t, func() {
		over := valuation.NewEvaluator(valuation.Impact, "always high", func(string) (float64, string) { return 3, "high" })
		under := valuation.NewEvaluator(valuation.Novelty, "always low", func(string) (float64, string) { return -1, "low" })
		engine := valuation.NewEngine(valuation.WithEvaluators(over, under))
		So(engine.Value("x"), ShouldEqual, 0.5)
	})
}

func TestEvaluateBatch(t *testing.T) {
	Convey("Given several fragments", t, func() {
		engine := valuation.NewEngine(valuation.WithParallelism(2))
		fragments := []valuation.Fragment{
			{ID: "a", Code: "foo()"},
			{ID: "b", Code: "// note\n"},
			{ID: "c", Code: ""},
			{ID: "d", Code: "template <typename T> auto f() {}"},
		}

		Convey("Results keep input order and match single valuation", func() {
			results, err := engine.EvaluateBatch(context.Background(), fragments)
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, len(fragments))
			for i, r := range results {
				So(r.ID, ShouldEqual, fragments[i].ID)
				So(r.Value, ShouldEqual, engine.Value(fragments[i].Code))
				So(r.Evaluations, ShouldHaveLength, 6)
			}
		})

		Convey("A cancelled context aborts the batch", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			results, err := engine.EvaluateBatch(ctx, fragments)
			So(results, ShouldBeNil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestKind(t *testing.T) {
	Convey("Kinds have stable names", t, func() {
		So(valuation.Impact.String(), ShouldEqual, "impact")
		So(valuation.Novelty.String(), ShouldEqual, "novelty")
		So(valuation.Kind(42).String(), ShouldEqual, "kind(42)")

		k, err := valuation.ParseKind(" Creditability ")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, valuation.Creditability)

		_, err = valuation.ParseKind("beauty")
		So(errors.Is(err, valuation.ErrUnknownKind), ShouldBeTrue)
	})

	Convey("Evaluations encode kinds as names", t, func() {
		raw, err := json.Marshal(valuation.Evaluation{Kind: valuation.Comment, Value: 0.5, Rationale: "r"})
		So(err, ShouldBeNil)
		So(string(raw), ShouldEqual, `{"kind":"comment","value":0.5,"rationale":"r"}`)

		var back valuation.Evaluation
		So(json.Unmarshal(raw, &back), ShouldBeNil)
		So(back.Kind, ShouldEqual, valuation.Comment)

		So(json.Unmarshal([]byte(`{"kind":"nope"}`), &back), ShouldNotBeNil)
	})
}
