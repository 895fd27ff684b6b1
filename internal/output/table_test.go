package output

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/store"
)

func demoRules(t *testing.T) (*apriori.Result, []rules.Rule) {
	t.Helper()
	res, err := apriori.MineTransactions(context.Background(), dataset.Demo(), 0.1)
	if err != nil {
		t.Fatalf("MineTransactions() failed: %v", err)
	}
	rs, err := rules.Generate(res, rules.Options{MinConfidence: 0.1})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	return res, rs
}

func TestRenderItemsetTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	res, _ := demoRules(t)

	tests := []struct {
		name     string
		itemsets []apriori.Itemset
		limit    int
		contains []string
		excludes []string
	}{
		{
			name:     "empty",
			itemsets: nil,
			contains: []string{"No frequent itemsets found"},
		},
		{
			name:     "all",
			itemsets: res.Itemsets,
			contains: []string{"Itemset", "{手机壳}", "70.0%", "{手机壳, 数据线}", "50.0%"},
			excludes: []string{"more itemsets"},
		},
		{
			name:     "limited",
			itemsets: res.Itemsets,
			limit:    2,
			contains: []string{"{手机壳}", "10 more itemsets"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderItemsetTable(tt.itemsets, tt.limit)
			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("RenderItemsetTable() missing expected string %q\nGot:\n%s", expected, result)
				}
			}
			for _, unexpected := range tt.excludes {
				if strings.Contains(result, unexpected) {
					t.Errorf("RenderItemsetTable() should not contain %q\nGot:\n%s", unexpected, result)
				}
			}
		})
	}
}

func TestRenderRuleTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	_, rs := demoRules(t)

	if got := RenderRuleTable(nil, 0); !strings.Contains(got, "No association rules found") {
		t.Errorf("empty RenderRuleTable() = %q", got)
	}

	result := RenderRuleTable(rs, 3)
	for _, expected := range []string{"Antecedent", "Consequent", "Confidence", "Lift", "→", "21 more rules"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderRuleTable() missing expected string %q\nGot:\n%s", expected, result)
		}
	}
	if strings.Contains(result, "\033[") {
		t.Error("RenderRuleTable() should not emit ANSI codes when NO_COLOR is set")
	}
}

func TestRenderRuleTable_InfiniteConviction(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	rs := []rules.Rule{{
		Antecedent: []string{"y"},
		Consequent: []string{"x"},
		Support:    2.0 / 3.0,
		Confidence: 1,
		Lift:       1,
		Conviction: math.Inf(1),
	}}

	result := RenderRuleTable(rs, 0)
	for _, expected := range []string{"∞", "100.0%", "independent"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderRuleTable() missing %q\nGot:\n%s", expected, result)
		}
	}
}

func TestRenderRecommendationTable(t *testing.T) {
	if got := RenderRecommendationTable(nil); !strings.Contains(got, "No suggestions") {
		t.Errorf("empty table = %q", got)
	}

	recs := []analyzer.Recommendation{{
		Item:       "数据线",
		Confidence: 5.0 / 7.0,
		Lift:       50.0 / 49.0,
		Rule:       rules.Rule{Antecedent: []string{"手机壳"}, Consequent: []string{"数据线"}},
	}}
	got := RenderRecommendationTable(recs)
	for _, want := range []string{"Suggest", "数据线", "71.4%", "1.020", "{手机壳} -> {数据线}"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderAssociationSummary(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	rs := []rules.Rule{{Lift: 1.2}, {Lift: 1.5}, {Lift: 0.8}}

	got := RenderAssociationSummary(rs)
	want := "positive: 2 · independent: 0 · negative: 1"
	if got != want {
		t.Errorf("RenderAssociationSummary() = %q, want %q", got, want)
	}
}

func TestRenderInterpretation(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	r := rules.Rule{
		Antecedent: []string{"手机壳"},
		Consequent: []string{"数据线"},
		Support:    0.5,
		Confidence: 5.0 / 7.0,
		Lift:       50.0 / 49.0,
	}

	result := RenderInterpretation(r)
	for _, expected := range []string{"{手机壳} -> {数据线}", "[positive]", "support:", "confidence:", "lift:", "71.4%"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderInterpretation() missing %q\nGot:\n%s", expected, result)
		}
	}
}

func TestRenderLevelTable(t *testing.T) {
	res, _ := demoRules(t)

	if got := RenderLevelTable(nil); got != "" {
		t.Errorf("RenderLevelTable(nil) = %q, want empty", got)
	}

	result := RenderLevelTable(res.Levels)
	for _, expected := range []string{"Candidates", "Pruned", "Frequent"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderLevelTable() missing %q\nGot:\n%s", expected, result)
		}
	}
}

func TestRenderStats(t *testing.T) {
	ds := dataset.Demo()
	result := RenderStats(ds.Stats(), ds.ItemCounts())

	for _, expected := range []string{"Transactions:   10", "Distinct items: 4", "2.30 items (max 3)", "手机壳", "70.0%", "40.0%"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderStats() missing %q\nGot:\n%s", expected, result)
		}
	}

	// Ties on count are broken by label, so 手机壳 precedes 数据线.
	if strings.Index(result, "手机壳") > strings.Index(result, "数据线") {
		t.Errorf("RenderStats() item order wrong\nGot:\n%s", result)
	}
	if strings.Index(result, "数据线") > strings.Index(result, "耳机") {
		t.Errorf("RenderStats() should list most frequent first\nGot:\n%s", result)
	}
}

func TestRenderDatasetTable(t *testing.T) {
	if got := RenderDatasetTable(nil); !strings.Contains(got, "cartrules load") {
		t.Errorf("empty RenderDatasetTable() = %q", got)
	}

	infos := []*store.DatasetInfo{
		{Name: "demo", Transactions: 12345, Items: 4, LoadedAt: time.Now().Add(-48 * time.Hour), Source: "demo.csv"},
	}
	result := RenderDatasetTable(infos)
	for _, expected := range []string{"demo", "12,345", "2 days ago", "demo.csv"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderDatasetTable() missing %q\nGot:\n%s", expected, result)
		}
	}
}

func TestRenderRunTable(t *testing.T) {
	if got := RenderRunTable(nil); !strings.Contains(got, "mine --save") {
		t.Errorf("empty RenderRunTable() = %q", got)
	}

	list := []*store.Run{{
		ID:            "0f8fad5b-d9cb-469f-a165-70867728950e",
		Dataset:       "demo",
		CreatedAt:     time.Now().Add(-3 * time.Hour),
		MinSupport:    0.1,
		MinConfidence: 0.5,
		Transactions:  10,
		Itemsets:      12,
		Rules:         9,
	}}

	result := RenderRunTable(list)
	for _, expected := range []string{"0f8fad5b", "demo", "3 hours ago", "10.0%", "50.0%"} {
		if !strings.Contains(result, expected) {
			t.Errorf("RenderRunTable() missing %q\nGot:\n%s", expected, result)
		}
	}
	if strings.Contains(result, "d9cb") {
		t.Errorf("RenderRunTable() should shorten IDs\nGot:\n%s", result)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"seconds", time.Now().Add(-10 * time.Second), "just now"},
		{"hours", time.Now().Add(-2 * time.Hour), "2 hours ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatRelativeTime(tt.t); got != tt.want {
				t.Errorf("formatRelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"/very/long/path/to/baskets.csv", 12, "/very/lon..."},
		{"购物篮数据集", 4, "购..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
