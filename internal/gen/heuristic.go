package gen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
	"caseline/internal/stage"
)

// Defaults returns the built-in keyword-heuristic generators. They stand in
// for the AI backend in development and tests and honor the same contract.
func Defaults() Registry {
	return Registry{
		stage.PRD:             DraftPRD,
		stage.SystemDesign:    DraftSystemDesign,
		stage.EffortEstimate:  EstimateEffort,
		stage.CostEstimate:    EstimateCost,
		stage.ValueProjection: ProjectValue,
		stage.FinancialModel:  SummarizeFinancials,
	}
}

func DraftPRD(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.Title == "" || c.ProblemStatement == "" {
		return Result{}, errors.New("title and problem statement required")
	}
	sections := []string{"Overview", "Problem", "Goals", "User Stories", "Out of Scope"}
	var b strings.Builder
	fmt.Fprintf(&b, "# PRD: %s\n\n## Problem\n\n%s\n", c.Title, c.ProblemStatement)
	if len(c.RelevantLinks) > 0 {
		b.WriteString("\n## References\n\n")
		for _, l := range c.RelevantLinks {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return Result{
		Artifact: &domain.PRDDraft{ContentMarkdown: b.String(), Sections: sections, Version: "v1"},
		Message:  "drafted PRD from intake",
	}, nil
}

func DraftSystemDesign(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.PRDDraft == nil {
		return Result{}, errors.New("prd draft required before system design")
	}
	components := componentsForProblem(c.Title + " " + c.ProblemStatement)
	var b strings.Builder
	fmt.Fprintf(&b, "# System Design: %s\n\n## Components\n\n", c.Title)
	for _, comp := range components {
		fmt.Fprintf(&b, "- %s\n", comp)
	}
	return Result{
		Artifact: &domain.SystemDesign{ContentMarkdown: b.String(), Components: components, Version: "v1"},
		Message:  "proposed architecture from PRD",
	}, nil
}

func componentsForProblem(text string) []string {
	lower := strings.ToLower(text)
	components := []string{"API Service", "Relational Database"}
	if strings.Contains(lower, "portal") || strings.Contains(lower, "dashboard") || strings.Contains(lower, "web") {
		components = append(components, "Web Frontend")
	}
	if strings.Contains(lower, "mobile") || strings.Contains(lower, "app") {
		components = append(components, "Mobile Client")
	}
	if strings.Contains(lower, "report") || strings.Contains(lower, "analytics") {
		components = append(components, "Reporting Pipeline")
	}
	if strings.Contains(lower, "ai") || strings.Contains(lower, "ml") || strings.Contains(lower, "predict") {
		components = append(components, "Model Serving")
	}
	if strings.Contains(lower, "integrat") || strings.Contains(lower, "sync") {
		components = append(components, "Integration Adapter")
	}
	return components
}

func EstimateEffort(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.SystemDesign == nil {
		return Result{}, errors.New("system design required before effort estimation")
	}
	// Component count drives a coarse complexity band.
	n := len(c.SystemDesign.Components)
	scale := 1
	complexity := "low"
	switch {
	case n >= 5:
		scale = 3
		complexity = "high"
	case n >= 3:
		scale = 2
		complexity = "medium"
	}
	roles := []domain.RoleEffort{
		{Role: "Product Manager", Hours: 40 * scale},
		{Role: "Lead Developer", Hours: 60 * scale},
		{Role: "Developer", Hours: 120 * scale},
		{Role: "QA Engineer", Hours: 50 * scale},
	}
	total := 0
	for _, r := range roles {
		total += r.Hours
	}
	return Result{
		Artifact: &domain.EffortEstimate{
			Roles:           roles,
			TotalHours:      total,
			DurationWeeks:   4 * scale,
			ComplexityNotes: fmt.Sprintf("%s complexity, %d components", complexity, n),
		},
		Message: "estimated effort from system design",
	}, nil
}

const defaultHourlyRate = 100

func EstimateCost(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.EffortEstimate == nil {
		return Result{}, errors.New("effort estimate required before costing")
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	var (
		roles []domain.RoleCost
		total float64
	)
	for _, re := range c.EffortEstimate.Roles {
		rate := lookupRate(in.RateCard, re.Role)
		cost := float64(re.Hours) * rate
		roles = append(roles, domain.RoleCost{Role: re.Role, Hours: re.Hours, HourlyRate: rate, Total: cost})
		total += cost
	}
	return Result{
		Artifact: &domain.CostEstimate{
			Roles:         roles,
			EstimatedCost: total,
			Currency:      currency,
			RateCard:      "default",
		},
		Message: "costed effort estimate against rate card",
	}, nil
}

// lookupRate matches a role against the rate card, falling back to a
// case-insensitive substring match, then the default rate.
func lookupRate(rateCard map[string]float64, role string) float64 {
	if rate, ok := rateCard[role]; ok {
		return rate
	}
	lower := strings.ToLower(role)
	for name, rate := range rateCard {
		if strings.Contains(lower, strings.ToLower(name)) || strings.Contains(strings.ToLower(name), lower) {
			return rate
		}
	}
	return defaultHourlyRate
}

func ProjectValue(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.CostEstimate == nil {
		return Result{}, errors.New("cost estimate required before value projection")
	}
	base := c.CostEstimate.EstimatedCost * 2.5
	return Result{
		Artifact: &domain.ValueProjection{
			Scenarios: []domain.ValueScenario{
				{Case: "low", Value: base * 0.6},
				{Case: "base", Value: base},
				{Case: "high", Value: base * 1.5},
			},
			Currency:     c.CostEstimate.Currency,
			TemplateUsed: "default",
			Methodology:  "cost-multiple heuristic",
		},
		Message: "projected value scenarios from cost baseline",
	}, nil
}

func SummarizeFinancials(ctx context.Context, in Input) (Result, error) {
	c := in.Case
	if c.CostEstimate == nil || c.ValueProjection == nil {
		return Result{}, errors.New("cost estimate and value projection required before financial summary")
	}
	cost := c.CostEstimate.EstimatedCost
	scenarios := map[string]float64{}
	var base float64
	for _, s := range c.ValueProjection.Scenarios {
		scenarios[s.Case] = s.Value
		if s.Case == "base" {
			base = s.Value
		}
	}
	net := base - cost
	roi := 0.0
	if cost > 0 {
		roi = net / cost * 100
	}
	payback := 0.0
	if base > 0 {
		payback = cost / (base / 12)
	}
	return Result{
		Artifact: &domain.FinancialSummary{
			TotalEstimatedCost:  cost,
			ValueScenarios:      scenarios,
			PrimaryNetValue:     net,
			PrimaryROIPercent:   roi,
			PaybackPeriodMonths: payback,
			Currency:            c.CostEstimate.Currency,
		},
		Message: "summarized financials from approved cost and value",
	}, nil
}
