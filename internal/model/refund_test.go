package model

import "testing"

func standardPolicy() RefundPolicy {
	return RefundPolicy{
		ID:       1,
		Property: PropertyLodge,
		Rules: []RefundPolicyRule{
			{ID: 1, DaysBeforeCheckin: 21, RefundPercentage: 100},
			{ID: 2, DaysBeforeCheckin: 7, RefundPercentage: 50},
			{ID: 3, DaysBeforeCheckin: 0, RefundPercentage: 0},
		},
	}
}

func TestMatchRule(t *testing.T) {
	policy := standardPolicy()

	tests := []struct {
		name       string
		daysBefore int
		wantRuleID int64
		wantNone   bool
	}{
		{name: "well ahead gets full refund", daysBefore: 30, wantRuleID: 1},
		{name: "exact threshold matches", daysBefore: 21, wantRuleID: 1},
		{name: "between thresholds drops to lower", daysBefore: 10, wantRuleID: 2},
		{name: "day of checkin gets zero rule", daysBefore: 0, wantRuleID: 3},
		{name: "after checkin matches nothing", daysBefore: -1, wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := policy.MatchRule(tt.daysBefore)
			if tt.wantNone {
				if rule != nil {
					t.Fatalf("MatchRule(%d) = rule %d, want nil", tt.daysBefore, rule.ID)
				}
				return
			}
			if rule == nil {
				t.Fatalf("MatchRule(%d) = nil, want rule %d", tt.daysBefore, tt.wantRuleID)
			}
			if rule.ID != tt.wantRuleID {
				t.Errorf("MatchRule(%d) = rule %d, want rule %d", tt.daysBefore, rule.ID, tt.wantRuleID)
			}
		})
	}
}

func TestMatchRulePriorityTie(t *testing.T) {
	policy := RefundPolicy{
		Rules: []RefundPolicyRule{
			{ID: 1, DaysBeforeCheckin: 7, RefundPercentage: 40, Priority: 2},
			{ID: 2, DaysBeforeCheckin: 7, RefundPercentage: 50, Priority: 1},
		},
	}
	rule := policy.MatchRule(10)
	if rule == nil || rule.ID != 2 {
		t.Fatalf("MatchRule tie-break picked %+v, want rule 2 (lowest priority value)", rule)
	}
}

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		total   int64
		want    int64
	}{
		{name: "half of 20000", percent: 50, total: 20000, want: 10000},
		{name: "full refund", percent: 100, total: 18000, want: 18000},
		{name: "zero percent", percent: 0, total: 18000, want: 0},
		{name: "rounds half up", percent: 33, total: 150, want: 50},  // 49.5 -> 50
		{name: "rounds down below half", percent: 33, total: 100, want: 33}, // 33.0
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := RefundPolicyRule{RefundPercentage: tt.percent}
			if got := rule.RefundAmount(tt.total); got != tt.want {
				t.Errorf("RefundAmount(%d) at %d%% = %d, want %d", tt.total, tt.percent, got, tt.want)
			}
		})
	}
}
