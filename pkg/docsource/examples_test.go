package docsource

import (
	"fmt"
	"strings"
	"testing"
)

func TestRankExamples_HeadingDerivedFirst(t *testing.T) {
	candidates := []UsageExample{
		{Code: "use serde::Serialize;\n\nfn main() { /* long main doc example */ }", Source: SourceMainDoc},
		{Code: "use serde_json;", Source: SourceExamplesSection},
		{Code: "let v = serde_json::to_string(&x).unwrap();", Source: SourceMethodDoc},
		{Code: "use serde::Deserialize;\nfn demo() {}", Source: SourceExamplesSection},
	}

	ranked := RankExamples(candidates)

	if len(ranked) != 4 {
		t.Fatalf("len = %d, want 4", len(ranked))
	}

	// All heading-derived entries precede all others.
	lastHeading := -1
	firstOther := len(ranked)
	for i, ex := range ranked {
		if ex.Source == SourceExamplesSection {
			lastHeading = i
		} else if i < firstOther {
			firstOther = i
		}
	}
	if lastHeading > firstOther {
		t.Errorf("heading-derived example at %d after non-heading at %d", lastHeading, firstOther)
	}

	// Within equal priority, longer first.
	if len(ranked[0].Code) < len(ranked[1].Code) {
		t.Error("heading-derived examples not sorted longest-first")
	}
}

func TestRankExamples_Cap(t *testing.T) {
	var candidates []UsageExample
	for i := range 20 {
		candidates = append(candidates, UsageExample{
			Code:   fmt.Sprintf("use crate_%d::Thing;\nfn main() {}", i),
			Source: SourceMainDoc,
		})
	}

	ranked := RankExamples(candidates)
	if len(ranked) != MaxExamples {
		t.Errorf("len = %d, want %d", len(ranked), MaxExamples)
	}
}

func TestRankExamples_DedupByLeadingLines(t *testing.T) {
	candidates := []UsageExample{
		{Code: "use tokio;\nfn main() {\n  run();\n}", Source: SourceMainDoc},
		{Code: "use tokio;\n\nfn main() {\n  run();\n}\n// trailing comment", Source: SourceMethodDoc},
		{Code: "use hyper;\nfn main() {}", Source: SourceMainDoc},
	}

	ranked := RankExamples(candidates)
	if len(ranked) != 2 {
		t.Fatalf("len = %d, want 2 (near-identical snippets should collapse)", len(ranked))
	}
}

func TestRankExamples_DropsBlank(t *testing.T) {
	ranked := RankExamples([]UsageExample{{Code: "  \n\n  "}, {Code: "use x;"}})
	if len(ranked) != 1 {
		t.Fatalf("len = %d, want 1", len(ranked))
	}
	if !strings.Contains(ranked[0].Code, "use x;") {
		t.Errorf("kept wrong snippet: %q", ranked[0].Code)
	}
}
