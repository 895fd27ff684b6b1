package analyzer

import (
	"context"
	"testing"

	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/rules"
)

func TestRecommend(t *testing.T) {
	rs := []rules.Rule{
		{Antecedent: []string{"a"}, Consequent: []string{"b"}, Confidence: 0.9, Lift: 1.5},
		{Antecedent: []string{"a", "c"}, Consequent: []string{"d"}, Confidence: 0.8, Lift: 1.2},
		{Antecedent: []string{"a"}, Consequent: []string{"b", "e"}, Confidence: 0.7, Lift: 1.1},
		{Antecedent: []string{"x"}, Consequent: []string{"y"}, Confidence: 0.95, Lift: 2},
		{Antecedent: []string{"a"}, Consequent: []string{"c"}, Confidence: 0.6, Lift: 0.9},
	}

	tests := []struct {
		name   string
		basket []string
		limit  int
		want   []string
	}{
		{"single item", []string{"a"}, 0, []string{"b", "e", "c"}},
		{"antecedent needs both", []string{"a", "c"}, 0, []string{"b", "d", "e"}},
		{"limit", []string{"a"}, 2, []string{"b", "e"}},
		{"already in basket", []string{"a", "b"}, 0, []string{"e", "c"}},
		{"no match", []string{"z"}, 0, []string{}},
	}

	a := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Recommend(rs, tt.basket, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("Recommend() = %v, want items %v", got, tt.want)
			}
			for i, rec := range got {
				if rec.Item != tt.want[i] {
					t.Errorf("Recommend()[%d].Item = %s, want %s", i, rec.Item, tt.want[i])
				}
			}
		})
	}
}

func TestRecommend_CreditsBestRule(t *testing.T) {
	a := New(nil, nil)
	report, err := a.Analyze(context.Background(), dataset.Demo(), Params{MinSupport: 0.1, MinConfidence: 0.1})
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}

	recs := a.Recommend(report.Rules, []string{"手机壳"}, 0)
	if len(recs) != 3 {
		t.Fatalf("Recommend() = %d suggestions, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Confidence > recs[i-1].Confidence {
			t.Errorf("suggestions out of order: %v", recs)
		}
	}
	// 数据线 follows 手机壳 in 5 of 7 baskets, the strongest single-item rule.
	if recs[0].Item != "数据线" {
		t.Errorf("top suggestion = %s, want 数据线", recs[0].Item)
	}
}
