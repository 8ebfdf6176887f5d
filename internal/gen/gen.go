// Package gen defines the generation stage function contract consumed by the
// workflow engine, plus the built-in heuristic generators used when no AI
// backend is wired. A generation function never persists anything itself;
// applying the artifact is the engine's job.
package gen

import (
	"context"
	"fmt"
	"time"

	"caseline/internal/domain"
	"caseline/internal/stage"
)

// Input is the accumulated case data handed to a generation function. The
// prior stage's artifact is read from the case snapshot.
type Input struct {
	Case     domain.BusinessCase
	Currency string
	RateCard map[string]float64
}

// Result carries a successfully generated artifact. Errors travel on the
// ordinary error return; the engine converts them into a recorded,
// non-fatal outcome.
type Result struct {
	Artifact any
	Message  string
}

// Func produces the artifact for one stage.
type Func func(ctx context.Context, in Input) (Result, error)

// Registry maps artifact-producing stages to their generation functions.
type Registry map[stage.Stage]Func

// WithTimeout bounds a generation call. A timeout is reported as a plain
// generation failure; the engine treats both identically.
func WithTimeout(fn Func, d time.Duration) Func {
	return func(ctx context.Context, in Input) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		type resErr struct {
			res Result
			err error
		}
		done := make(chan resErr, 1)
		go func() {
			res, err := fn(ctx, in)
			done <- resErr{res, err}
		}()
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("generation timed out after %s", d)
		case re := <-done:
			return re.res, re.err
		}
	}
}

// Apply merges a generated artifact into the case snapshot.
func Apply(c *domain.BusinessCase, target stage.Stage, artifact any) error {
	switch target {
	case stage.PRD:
		v, ok := artifact.(*domain.PRDDraft)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.PRDDraft", target, artifact)
		}
		c.PRDDraft = v
	case stage.SystemDesign:
		v, ok := artifact.(*domain.SystemDesign)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.SystemDesign", target, artifact)
		}
		c.SystemDesign = v
	case stage.EffortEstimate:
		v, ok := artifact.(*domain.EffortEstimate)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.EffortEstimate", target, artifact)
		}
		c.EffortEstimate = v
	case stage.CostEstimate:
		v, ok := artifact.(*domain.CostEstimate)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.CostEstimate", target, artifact)
		}
		c.CostEstimate = v
	case stage.ValueProjection:
		v, ok := artifact.(*domain.ValueProjection)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.ValueProjection", target, artifact)
		}
		c.ValueProjection = v
	case stage.FinancialModel:
		v, ok := artifact.(*domain.FinancialSummary)
		if !ok {
			return fmt.Errorf("stage %s produced %T, want *domain.FinancialSummary", target, artifact)
		}
		c.FinancialSummary = v
	default:
		return fmt.Errorf("stage %s has no artifact field", target)
	}
	return nil
}
