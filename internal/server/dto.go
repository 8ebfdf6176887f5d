package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/stage"
)

type CreateCaseRequest struct {
	Title            string   `json:"title" minLength:"1" example:"Customer portal revamp"`
	ProblemStatement string   `json:"problem_statement" minLength:"1"`
	RelevantLinks    []string `json:"relevant_links,omitempty"`
}

type UpdateCaseRequest struct {
	Title            *string  `json:"title,omitempty"`
	ProblemStatement *string  `json:"problem_statement,omitempty"`
	RelevantLinks    []string `json:"relevant_links,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CaseOutcomeResponse pairs the created case with the transition outcome so
// callers see the drafting result without a second fetch.
type CaseOutcomeResponse struct {
	Case    domain.BusinessCase `json:"case"`
	Outcome engine.Outcome      `json:"outcome"`
}

type SettingRequest struct {
	Value string `json:"value" example:"FINAL_APPROVER"`
}

type SettingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RoleGrantRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

// CreateAPIKeyResponse returns the raw key exactly once; only the hash is
// stored.
type CreateAPIKeyResponse struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key"`
}

// decodeArtifact strictly unmarshals an artifact payload into the concrete
// type for its stage.
func decodeArtifact(s stage.Stage, raw json.RawMessage) (any, error) {
	var target any
	switch s {
	case stage.PRD:
		target = &domain.PRDDraft{}
	case stage.SystemDesign:
		target = &domain.SystemDesign{}
	case stage.EffortEstimate:
		target = &domain.EffortEstimate{}
	case stage.CostEstimate:
		target = &domain.CostEstimate{}
	case stage.ValueProjection:
		target = &domain.ValueProjection{}
	case stage.FinancialModel:
		target = &domain.FinancialSummary{}
	default:
		return nil, fmt.Errorf("stage %s has no artifact", s)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("invalid %s artifact: %w", s, err)
	}
	return target, nil
}
