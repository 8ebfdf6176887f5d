package gen

import (
	"context"
	"testing"

	"caseline/internal/domain"
	"caseline/internal/stage"
)

func baseCase() domain.BusinessCase {
	return domain.BusinessCase{
		ID:               "c1",
		Title:            "Analytics dashboard for the web portal",
		ProblemStatement: "Nobody can see usage data without asking an engineer.",
	}
}

func TestDraftPRDRequiresIntake(t *testing.T) {
	_, err := DraftPRD(context.Background(), Input{Case: domain.BusinessCase{}})
	if err == nil {
		t.Fatalf("expected error without title and problem")
	}
	res, err := DraftPRD(context.Background(), Input{Case: baseCase()})
	if err != nil {
		t.Fatalf("draft prd: %v", err)
	}
	prd, ok := res.Artifact.(*domain.PRDDraft)
	if !ok || prd.ContentMarkdown == "" {
		t.Fatalf("unexpected artifact %T", res.Artifact)
	}
}

func TestGeneratorsRequirePriorArtifact(t *testing.T) {
	ctx := context.Background()
	c := baseCase()
	if _, err := DraftSystemDesign(ctx, Input{Case: c}); err == nil {
		t.Fatalf("design without prd must fail")
	}
	if _, err := EstimateEffort(ctx, Input{Case: c}); err == nil {
		t.Fatalf("effort without design must fail")
	}
	if _, err := EstimateCost(ctx, Input{Case: c}); err == nil {
		t.Fatalf("cost without effort must fail")
	}
	if _, err := ProjectValue(ctx, Input{Case: c}); err == nil {
		t.Fatalf("value without cost must fail")
	}
	if _, err := SummarizeFinancials(ctx, Input{Case: c}); err == nil {
		t.Fatalf("summary without cost and value must fail")
	}
}

func TestCostUsesRateCard(t *testing.T) {
	c := baseCase()
	c.EffortEstimate = &domain.EffortEstimate{
		Roles: []domain.RoleEffort{
			{Role: "Developer", Hours: 10},
			{Role: "Unknown Specialist", Hours: 10},
		},
	}
	res, err := EstimateCost(context.Background(), Input{
		Case:     c,
		Currency: "EUR",
		RateCard: map[string]float64{"Developer": 90},
	})
	if err != nil {
		t.Fatalf("estimate cost: %v", err)
	}
	cost := res.Artifact.(*domain.CostEstimate)
	if cost.Currency != "EUR" {
		t.Fatalf("currency not applied")
	}
	// 10h * 90 known rate + 10h * 100 fallback.
	if cost.EstimatedCost != 1900 {
		t.Fatalf("expected 1900, got %v", cost.EstimatedCost)
	}
}

func TestFinancialSummaryMath(t *testing.T) {
	c := baseCase()
	c.CostEstimate = &domain.CostEstimate{EstimatedCost: 1000, Currency: "USD"}
	c.ValueProjection = &domain.ValueProjection{
		Currency: "USD",
		Scenarios: []domain.ValueScenario{
			{Case: "low", Value: 1500},
			{Case: "base", Value: 3000},
			{Case: "high", Value: 4500},
		},
	}
	res, err := SummarizeFinancials(context.Background(), Input{Case: c})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	fin := res.Artifact.(*domain.FinancialSummary)
	if fin.PrimaryNetValue != 2000 {
		t.Fatalf("net: got %v", fin.PrimaryNetValue)
	}
	if fin.PrimaryROIPercent != 200 {
		t.Fatalf("roi: got %v", fin.PrimaryROIPercent)
	}
	if fin.PaybackPeriodMonths != 4 {
		t.Fatalf("payback: got %v", fin.PaybackPeriodMonths)
	}
}

func TestApplyRejectsWrongType(t *testing.T) {
	c := baseCase()
	if err := Apply(&c, stage.PRD, &domain.CostEstimate{}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	if err := Apply(&c, stage.PRD, &domain.PRDDraft{ContentMarkdown: "x"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if c.PRDDraft == nil {
		t.Fatalf("artifact not applied")
	}
}

func TestDefaultsCoverAllGeneratedStages(t *testing.T) {
	reg := Defaults()
	for _, s := range []stage.Stage{stage.PRD, stage.SystemDesign, stage.EffortEstimate, stage.CostEstimate, stage.ValueProjection, stage.FinancialModel} {
		if _, ok := reg[s]; !ok {
			t.Fatalf("no generator for %s", s)
		}
	}
	if _, ok := reg[stage.Final]; ok {
		t.Fatalf("final approval has no generator")
	}
}
