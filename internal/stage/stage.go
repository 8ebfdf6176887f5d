package stage

import (
	"fmt"

	"caseline/internal/domain"
)

// Stage identifies one approval-gated phase of the business-case pipeline.
// All per-stage behavior (pre-states, post-states, generation cascade, gate
// roles, history types) is driven from the Table below; nothing dispatches on
// stage names anywhere else.
type Stage string

const (
	PRD             Stage = "prd"
	SystemDesign    Stage = "system_design"
	EffortEstimate  Stage = "effort_estimate"
	CostEstimate    Stage = "cost_estimate"
	ValueProjection Stage = "value_projection"
	FinancialModel  Stage = "financial_model"
	Final           Stage = "final"
)

// All lists the stages in pipeline order.
func All() []Stage {
	return []Stage{PRD, SystemDesign, EffortEstimate, CostEstimate, ValueProjection, FinancialModel, Final}
}

// Parse returns the stage for a wire identifier.
func Parse(s string) (Stage, error) {
	for _, st := range All() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Generation is one AI-generation phase triggered after an approval. The
// InProgress status is never persisted: the approval write commits first, the
// generation runs, then a single outcome write commits either Complete or the
// revert target. InProgress remains in the status enum for cases stored by
// earlier versions.
type Generation struct {
	Target     Stage // stage whose artifact this phase produces
	InProgress domain.Status
	Complete   domain.Status
	// RetryFrom are the statuses from which a failed phase may be re-run.
	RetryFrom []domain.Status
}

// Gate describes who may approve or reject a stage.
type Gate struct {
	Owner         bool     // case owner may act
	Roles         []string // any of these roles may act
	AdminOverride bool     // ADMIN may always act
	FinalApprover bool     // only the dynamically configured final-approver role
}

// Spec is the complete transition configuration for one stage.
type Spec struct {
	Stage Stage

	// SubmitFrom are the statuses from which the stage artifact may be
	// (re)submitted for review. Empty means the stage has no submit step.
	SubmitFrom []domain.Status
	Review     domain.Status // exact pre-state required for approve/reject
	Approved   domain.Status
	Rejected   domain.Status

	// Generate is the cascade run after approval, in order. For the cost/value
	// join members the cascade lives in JoinGenerate and only runs once both
	// branches are approved.
	Generate     []Generation
	JoinGenerate *Generation
	// AutoAdvance, when set, is a second status advance committed right after
	// the approval write (no generation involved).
	AutoAdvance domain.Status

	Gate Gate

	// History message types.
	ApprovalType   string
	RejectionType  string
	SubmissionType string
}

// Artifact history types, one per generation target.
const (
	TypeCaseCreated      = "CASE_CREATED"
	TypePRDDraft         = "PRD_DRAFT"
	TypeSystemDesign     = "SYSTEM_DESIGN_DRAFT"
	TypeEffortEstimate   = "EFFORT_ESTIMATE"
	TypeCostEstimate     = "COST_ESTIMATE"
	TypeValueProjection  = "VALUE_PROJECTION"
	TypeFinancialSummary = "FINANCIAL_SUMMARY"
	TypeStatusAdvanced   = "STATUS_ADVANCED"
)

// ArtifactType returns the history type recorded when a stage's artifact is
// generated.
func ArtifactType(s Stage) string {
	switch s {
	case PRD:
		return TypePRDDraft
	case SystemDesign:
		return TypeSystemDesign
	case EffortEstimate:
		return TypeEffortEstimate
	case CostEstimate:
		return TypeCostEstimate
	case ValueProjection:
		return TypeValueProjection
	case FinancialModel:
		return TypeFinancialSummary
	}
	return "ARTIFACT"
}

// FailureType returns the history type recorded when generating a stage's
// artifact fails.
func FailureType(s Stage) string {
	return ArtifactType(s) + "_GENERATION_FAILED"
}

var financialJoin = Generation{
	Target:     FinancialModel,
	InProgress: domain.StatusFinancialModelInProgress,
	Complete:   domain.StatusFinancialModelComplete,
	RetryFrom:  []domain.Status{domain.StatusCostingApproved, domain.StatusValueApproved},
}

var table = map[Stage]Spec{
	PRD: {
		Stage:      PRD,
		SubmitFrom: []domain.Status{domain.StatusPRDDrafting, domain.StatusPRDRejected},
		Review:     domain.StatusPRDReview,
		Approved:   domain.StatusPRDApproved,
		Rejected:   domain.StatusPRDRejected,
		Generate: []Generation{{
			Target:     SystemDesign,
			InProgress: domain.StatusSystemDesignDrafting,
			Complete:   domain.StatusSystemDesignDrafted,
			RetryFrom:  []domain.Status{domain.StatusPRDApproved},
		}},
		Gate:           Gate{Owner: true},
		ApprovalType:   "PRD_APPROVAL",
		RejectionType:  "PRD_REJECTION",
		SubmissionType: "PRD_SUBMITTED_FOR_REVIEW",
	},
	SystemDesign: {
		Stage:      SystemDesign,
		SubmitFrom: []domain.Status{domain.StatusSystemDesignDrafted, domain.StatusSystemDesignRejected},
		Review:     domain.StatusSystemDesignPendingReview,
		Approved:   domain.StatusSystemDesignApproved,
		Rejected:   domain.StatusSystemDesignRejected,
		Generate: []Generation{{
			Target:     EffortEstimate,
			InProgress: domain.StatusPlanningInProgress,
			Complete:   domain.StatusPlanningComplete,
			RetryFrom:  []domain.Status{domain.StatusSystemDesignApproved},
		}},
		Gate:           Gate{Owner: true, Roles: []string{domain.RoleDeveloper, domain.RoleTechnicalArchitect}, AdminOverride: true},
		ApprovalType:   "SYSTEM_DESIGN_APPROVAL",
		RejectionType:  "SYSTEM_DESIGN_REJECTION",
		SubmissionType: "SYSTEM_DESIGN_SUBMITTED_FOR_REVIEW",
	},
	EffortEstimate: {
		Stage:      EffortEstimate,
		SubmitFrom: []domain.Status{domain.StatusPlanningComplete, domain.StatusEffortRejected},
		Review:     domain.StatusEffortPendingReview,
		Approved:   domain.StatusEffortApproved,
		Rejected:   domain.StatusEffortRejected,
		Generate: []Generation{
			{
				Target:     CostEstimate,
				InProgress: domain.StatusCostingInProgress,
				Complete:   domain.StatusCostingComplete,
				RetryFrom:  []domain.Status{domain.StatusEffortApproved},
			},
			{
				Target:     ValueProjection,
				InProgress: domain.StatusValueAnalysisInProgress,
				Complete:   domain.StatusValueAnalysisComplete,
				// The cost branch may keep moving while a failed value analysis
				// awaits retry, so any cost-branch status is a legal retry origin.
				RetryFrom: []domain.Status{
					domain.StatusCostingComplete, domain.StatusCostingPendingReview,
					domain.StatusCostingApproved, domain.StatusCostingRejected,
				},
			},
		},
		Gate:           Gate{Owner: true, AdminOverride: true},
		ApprovalType:   "EFFORT_APPROVAL",
		RejectionType:  "EFFORT_REJECTION",
		SubmissionType: "EFFORT_SUBMITTED_FOR_REVIEW",
	},
	CostEstimate: {
		Stage: CostEstimate,
		// Cost and value share one status field; any post-generation status of
		// the other branch is a legal submit origin as long as this branch is
		// still unapproved.
		SubmitFrom: []domain.Status{
			domain.StatusCostingComplete, domain.StatusCostingRejected,
			domain.StatusValueAnalysisComplete, domain.StatusValueApproved, domain.StatusValueRejected,
		},
		Review:         domain.StatusCostingPendingReview,
		Approved:       domain.StatusCostingApproved,
		Rejected:       domain.StatusCostingRejected,
		JoinGenerate:   &financialJoin,
		Gate:           Gate{Owner: true, Roles: []string{domain.RoleFinanceApprover}, AdminOverride: true},
		ApprovalType:   "COST_ESTIMATE_APPROVAL",
		RejectionType:  "COST_ESTIMATE_REJECTION",
		SubmissionType: "COST_ESTIMATE_SUBMITTED_FOR_REVIEW",
	},
	ValueProjection: {
		Stage: ValueProjection,
		SubmitFrom: []domain.Status{
			domain.StatusValueAnalysisComplete, domain.StatusValueRejected,
			domain.StatusCostingApproved, domain.StatusCostingRejected,
		},
		Review:         domain.StatusValuePendingReview,
		Approved:       domain.StatusValueApproved,
		Rejected:       domain.StatusValueRejected,
		JoinGenerate:   &financialJoin,
		Gate:           Gate{Owner: true, Roles: []string{domain.RoleSalesManagerApprover}, AdminOverride: true},
		ApprovalType:   "VALUE_PROJECTION_APPROVAL",
		RejectionType:  "VALUE_PROJECTION_REJECTION",
		SubmissionType: "VALUE_PROJECTION_SUBMITTED_FOR_REVIEW",
	},
	FinancialModel: {
		Stage:          FinancialModel,
		SubmitFrom:     []domain.Status{domain.StatusFinancialModelComplete, domain.StatusFinancialModelRejected},
		Review:         domain.StatusFinancialModelPendingReview,
		Approved:       domain.StatusFinancialModelApproved,
		Rejected:       domain.StatusFinancialModelRejected,
		AutoAdvance:    domain.StatusPendingFinalApproval,
		Gate:           Gate{Owner: true, Roles: []string{domain.RoleFinanceApprover}, AdminOverride: true},
		ApprovalType:   "FINANCIAL_MODEL_APPROVAL",
		RejectionType:  "FINANCIAL_MODEL_REJECTION",
		SubmissionType: "FINANCIAL_MODEL_SUBMITTED_FOR_REVIEW",
	},
	Final: {
		Stage:         Final,
		Review:        domain.StatusPendingFinalApproval,
		Approved:      domain.StatusApproved,
		Rejected:      domain.StatusRejected,
		Gate:          Gate{FinalApprover: true},
		ApprovalType:  "FINAL_APPROVAL",
		RejectionType: "FINAL_REJECTION",
	},
}

// Lookup returns the transition spec for a stage.
func Lookup(s Stage) (Spec, error) {
	spec, ok := table[s]
	if !ok {
		return Spec{}, fmt.Errorf("unknown stage %q", s)
	}
	return spec, nil
}

// ForReviewStatus returns the stage whose approval pre-state is the given
// status, if any.
func ForReviewStatus(status domain.Status) (Stage, bool) {
	for _, s := range All() {
		if table[s].Review == status {
			return s, true
		}
	}
	return "", false
}

// JoinMember reports whether the stage is one side of the cost/value join.
func (sp Spec) JoinMember() bool { return sp.JoinGenerate != nil }

// CanSubmitFrom reports whether the stage may be submitted for review from
// the given status.
func (sp Spec) CanSubmitFrom(status domain.Status) bool {
	for _, s := range sp.SubmitFrom {
		if s == status {
			return true
		}
	}
	return false
}
