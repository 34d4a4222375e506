package ignore

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"checkup/internal/diag"
)

func diags(messages ...string) []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(messages))
	for i, m := range messages {
		out[i] = diag.Diagnostic{Message: m, File: "src/a.php", Line: i + 1}
	}
	return out
}

func messages(ds []diag.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

func intp(n int) *int { return &n }

func TestFilterCountExhaustion(t *testing.T) {
	// Two matching diagnostics, quota of one: the first is suppressed, the
	// second survives.
	set := &Set{}
	set.Append(&Rule{Message: Substring("Undefined variable"), Count: intp(1)})

	in := diags("Undefined variable $foo", "Undefined variable $bar")
	got := set.Filter(in, "src/a.php")

	if len(got) != 1 || got[0].Message != "Undefined variable $bar" {
		t.Fatalf("got %v, want only the second diagnostic", messages(got))
	}
	if *set.Rules[0].Count != 0 {
		t.Errorf("count = %d, want 0", *set.Rules[0].Count)
	}
}

func TestFilterZeroCountIsInert(t *testing.T) {
	// A rule with count 0 never suppresses, but it also doesn't hide later
	// rules: it is skipped, not treated as a match.
	set := &Set{}
	set.Append(
		&Rule{Message: Substring("Undefined"), Count: intp(0)},
		&Rule{Message: Substring("Undefined variable")},
	)

	got := set.Filter(diags("Undefined variable $foo"), "src/a.php")
	if len(got) != 0 {
		t.Fatalf("second rule should have suppressed the diagnostic, got %v", messages(got))
	}
	if *set.Rules[0].Count != 0 {
		t.Errorf("inert rule's count changed to %d", *set.Rules[0].Count)
	}
}

func TestFilterFirstMatchWins(t *testing.T) {
	set := &Set{}
	set.Append(
		&Rule{Message: Substring("variable"), Count: intp(1)},
		&Rule{Message: Substring("Undefined"), Count: intp(1)},
	)

	got := set.Filter(diags("Undefined variable $foo"), "src/a.php")
	if len(got) != 0 {
		t.Fatalf("expected suppression, got %v", messages(got))
	}
	if *set.Rules[0].Count != 0 {
		t.Error("first rule should have consumed the match")
	}
	if *set.Rules[1].Count != 1 {
		t.Error("second rule should be untouched")
	}
}

func TestFilterPathScoping(t *testing.T) {
	set := &Set{}
	set.Append(&Rule{Message: Substring("Undefined"), Paths: []string{"legacy/"}})

	in := diags("Undefined variable $foo")
	if got := set.Filter(in, "src/new.php"); len(got) != 1 {
		t.Error("out-of-scope rule must not suppress")
	}
	if got := set.Filter(in, "src/legacy/old.php"); len(got) != 0 {
		t.Error("in-scope rule should suppress")
	}
}

func TestFilterUnlimitedCount(t *testing.T) {
	set := &Set{}
	set.Append(&Rule{Message: Substring("Undefined")})

	in := diags("Undefined $a", "Undefined $b", "Undefined $c")
	if got := set.Filter(in, "src/a.php"); len(got) != 0 {
		t.Errorf("unlimited rule should suppress all, got %v", messages(got))
	}
}

func TestFilterInvalidRulesNeverMatch(t *testing.T) {
	set := &Set{}
	set.Append(
		&Rule{Raw: "{broken: }"},
		&Rule{Message: Substring("other")},
	)

	got := set.Filter(diags("anything at all"), "src/a.php")
	if len(got) != 1 {
		t.Fatal("invalid rule must not suppress")
	}
}

func TestFilterQuotaSpansFiles(t *testing.T) {
	// The quota is per filter pass over one rule set, so two files checked
	// with the same set share the budget.
	set := &Set{}
	set.Append(&Rule{Message: Substring("Undefined"), Count: intp(1)})

	first := set.Filter(diags("Undefined $a"), "src/a.php")
	second := set.Filter(diags("Undefined $b"), "src/b.php")
	if len(first) != 0 {
		t.Error("first file's diagnostic should be suppressed")
	}
	if len(second) != 1 {
		t.Error("quota exhausted: second file's diagnostic should survive")
	}
}

func TestCloneIsolatesQuotas(t *testing.T) {
	orig := &Set{}
	orig.Append(&Rule{Message: Substring("Undefined"), Count: intp(2)})

	clone := orig.Clone()
	clone.Filter(diags("Undefined $a", "Undefined $b"), "src/a.php")

	if *clone.Rules[0].Count != 0 {
		t.Errorf("clone count = %d, want 0", *clone.Rules[0].Count)
	}
	if *orig.Rules[0].Count != 2 {
		t.Errorf("original count = %d, want 2 (decrement leaked)", *orig.Rules[0].Count)
	}
}

// Filter must return a subsequence of its input: never reorder, never add.
func TestFilterSubsequenceProperty(t *testing.T) {
	wordGen := rapid.SampledFrom([]string{"alpha", "beta", "gamma", "delta"})

	rapid.Check(t, func(t *rapid.T) {
		var in []diag.Diagnostic
		n := rapid.IntRange(0, 20).Draw(t, "ndiags")
		for i := 0; i < n; i++ {
			in = append(in, diag.Diagnostic{
				Message: wordGen.Draw(t, "msg") + " " + wordGen.Draw(t, "msg2"),
				Line:    i + 1,
			})
		}

		set := &Set{}
		nrules := rapid.IntRange(0, 5).Draw(t, "nrules")
		for i := 0; i < nrules; i++ {
			r := &Rule{Message: Substring(wordGen.Draw(t, "rule"))}
			if rapid.Bool().Draw(t, "hasCount") {
				r.Count = intp(rapid.IntRange(0, 3).Draw(t, "count"))
			}
			set.Append(r)
		}

		got := set.Filter(in, "src/a.php")

		// Subsequence check: every kept diagnostic appears in the input in
		// the same relative order (lines are unique and increasing).
		last := 0
		for _, d := range got {
			if d.Line <= last {
				t.Fatalf("output reordered or duplicated at line %d", d.Line)
			}
			last = d.Line
		}
		if len(got) > len(in) {
			t.Fatalf("output longer than input: %d > %d", len(got), len(in))
		}
	})
}

// With unlimited quotas and no path scoping, a diagnostic survives exactly
// when no rule matches its message.
func TestFilterUnlimitedExactness(t *testing.T) {
	wordGen := rapid.SampledFrom([]string{"alpha", "beta", "gamma", "delta"})

	rapid.Check(t, func(t *rapid.T) {
		var in []diag.Diagnostic
		n := rapid.IntRange(0, 15).Draw(t, "ndiags")
		for i := 0; i < n; i++ {
			in = append(in, diag.Diagnostic{Message: wordGen.Draw(t, "msg"), Line: i + 1})
		}

		set := &Set{}
		var subs []string
		nrules := rapid.IntRange(0, 4).Draw(t, "nrules")
		for i := 0; i < nrules; i++ {
			s := wordGen.Draw(t, "rule")
			subs = append(subs, s)
			set.Append(&Rule{Message: Substring(s)})
		}

		got := set.Filter(in, "src/a.php")

		want := 0
		for _, d := range in {
			matched := false
			for _, s := range subs {
				if strings.Contains(d.Message, s) {
					matched = true
					break
				}
			}
			if !matched {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("kept %d diagnostics, want %d", len(got), want)
		}
	})
}
