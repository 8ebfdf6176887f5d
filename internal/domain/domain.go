package domain

// Status is the lifecycle state of a business case. The string values are
// persisted and must stay stable across versions.
type Status string

const (
	StatusIntake Status = "INTAKE"

	StatusPRDDrafting Status = "PRD_DRAFTING"
	StatusPRDReview   Status = "PRD_REVIEW"
	StatusPRDApproved Status = "PRD_APPROVED"
	StatusPRDRejected Status = "PRD_REJECTED"

	StatusSystemDesignDrafting      Status = "SYSTEM_DESIGN_DRAFTING"
	StatusSystemDesignDrafted       Status = "SYSTEM_DESIGN_DRAFTED"
	StatusSystemDesignPendingReview Status = "SYSTEM_DESIGN_PENDING_REVIEW"
	StatusSystemDesignApproved      Status = "SYSTEM_DESIGN_APPROVED"
	StatusSystemDesignRejected      Status = "SYSTEM_DESIGN_REJECTED"

	StatusPlanningInProgress  Status = "PLANNING_IN_PROGRESS"
	StatusPlanningComplete    Status = "PLANNING_COMPLETE"
	StatusEffortPendingReview Status = "EFFORT_PENDING_REVIEW"
	StatusEffortApproved      Status = "EFFORT_APPROVED"
	StatusEffortRejected      Status = "EFFORT_REJECTED"

	StatusCostingInProgress    Status = "COSTING_IN_PROGRESS"
	StatusCostingComplete      Status = "COSTING_COMPLETE"
	StatusCostingPendingReview Status = "COSTING_PENDING_REVIEW"
	StatusCostingApproved      Status = "COSTING_APPROVED"
	StatusCostingRejected      Status = "COSTING_REJECTED"

	StatusValueAnalysisInProgress Status = "VALUE_ANALYSIS_IN_PROGRESS"
	StatusValueAnalysisComplete   Status = "VALUE_ANALYSIS_COMPLETE"
	StatusValuePendingReview      Status = "VALUE_PENDING_REVIEW"
	StatusValueApproved           Status = "VALUE_APPROVED"
	StatusValueRejected           Status = "VALUE_REJECTED"

	StatusFinancialModelInProgress    Status = "FINANCIAL_MODEL_IN_PROGRESS"
	StatusFinancialModelComplete      Status = "FINANCIAL_MODEL_COMPLETE"
	StatusFinancialModelPendingReview Status = "FINANCIAL_MODEL_PENDING_REVIEW"
	StatusFinancialModelApproved      Status = "FINANCIAL_MODEL_APPROVED"
	StatusFinancialModelRejected      Status = "FINANCIAL_MODEL_REJECTED"

	StatusPendingFinalApproval Status = "PENDING_FINAL_APPROVAL"
	StatusApproved             Status = "APPROVED"
	StatusRejected             Status = "REJECTED"
)

// Terminal reports whether no further progression exists from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// AllStatuses lists every legal status value, in pipeline order.
func AllStatuses() []Status {
	return []Status{
		StatusIntake,
		StatusPRDDrafting, StatusPRDReview, StatusPRDApproved, StatusPRDRejected,
		StatusSystemDesignDrafting, StatusSystemDesignDrafted, StatusSystemDesignPendingReview,
		StatusSystemDesignApproved, StatusSystemDesignRejected,
		StatusPlanningInProgress, StatusPlanningComplete, StatusEffortPendingReview,
		StatusEffortApproved, StatusEffortRejected,
		StatusCostingInProgress, StatusCostingComplete, StatusCostingPendingReview,
		StatusCostingApproved, StatusCostingRejected,
		StatusValueAnalysisInProgress, StatusValueAnalysisComplete, StatusValuePendingReview,
		StatusValueApproved, StatusValueRejected,
		StatusFinancialModelInProgress, StatusFinancialModelComplete, StatusFinancialModelPendingReview,
		StatusFinancialModelApproved, StatusFinancialModelRejected,
		StatusPendingFinalApproval, StatusApproved, StatusRejected,
	}
}

// History entry sources.
const (
	SourceUser  = "USER"
	SourceAgent = "AGENT"
)

// HistoryEntry is one record of the append-only case history.
type HistoryEntry struct {
	ID      int64  `json:"id"`
	CaseID  string `json:"case_id"`
	TS      string `json:"ts" format:"date-time"`
	Source  string `json:"source" enum:"USER,AGENT"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// BusinessCase is the aggregate progressed through the approval pipeline.
// Artifact fields stay populated after a rejection; status and the two branch
// approval flags decide what happens next.
type BusinessCase struct {
	ID               string   `json:"id"`
	UserID           string   `json:"user_id"`
	Title            string   `json:"title"`
	ProblemStatement string   `json:"problem_statement"`
	RelevantLinks    []string `json:"relevant_links,omitempty"`
	Status           Status   `json:"status"`

	PRDDraft         *PRDDraft         `json:"prd_draft,omitempty"`
	SystemDesign     *SystemDesign     `json:"system_design_v1_draft,omitempty"`
	EffortEstimate   *EffortEstimate   `json:"effort_estimate_v1,omitempty"`
	CostEstimate     *CostEstimate     `json:"cost_estimate_v1,omitempty"`
	ValueProjection  *ValueProjection  `json:"value_projection_v1,omitempty"`
	FinancialSummary *FinancialSummary `json:"financial_summary_v1,omitempty"`

	CostingApproved         bool `json:"costing_approved"`
	ValueProjectionApproved bool `json:"value_projection_approved"`

	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`

	History []HistoryEntry `json:"history,omitempty"`
}

// PRDDraft is the product requirements document artifact.
type PRDDraft struct {
	ContentMarkdown string   `json:"content_markdown"`
	Sections        []string `json:"sections,omitempty"`
	Version         string   `json:"version,omitempty"`
}

// SystemDesign is the architecture proposal artifact.
type SystemDesign struct {
	ContentMarkdown string   `json:"content_markdown"`
	Components      []string `json:"components,omitempty"`
	Version         string   `json:"version,omitempty"`
}

type RoleEffort struct {
	Role  string `json:"role"`
	Hours int    `json:"hours"`
}

// EffortEstimate is the planning artifact.
type EffortEstimate struct {
	Roles           []RoleEffort `json:"roles"`
	TotalHours      int          `json:"total_hours"`
	DurationWeeks   int          `json:"estimated_duration_weeks,omitempty"`
	ComplexityNotes string       `json:"complexity_assessment,omitempty"`
}

type RoleCost struct {
	Role       string  `json:"role"`
	Hours      int     `json:"hours"`
	HourlyRate float64 `json:"hourly_rate"`
	Total      float64 `json:"total_cost"`
}

// CostEstimate is the costing artifact.
type CostEstimate struct {
	Roles         []RoleCost `json:"roles"`
	EstimatedCost float64    `json:"estimated_cost"`
	Currency      string     `json:"currency"`
	RateCard      string     `json:"rate_card_used,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

type ValueScenario struct {
	Case  string  `json:"case" enum:"low,base,high"`
	Value float64 `json:"value"`
}

// ValueProjection is the value-analysis artifact.
type ValueProjection struct {
	Scenarios    []ValueScenario `json:"scenarios"`
	Currency     string          `json:"currency"`
	TemplateUsed string          `json:"template_used,omitempty"`
	Methodology  string          `json:"methodology,omitempty"`
	Assumptions  []string        `json:"assumptions,omitempty"`
}

// FinancialSummary is the financial-model artifact combining cost and value.
type FinancialSummary struct {
	TotalEstimatedCost  float64            `json:"total_estimated_cost"`
	ValueScenarios      map[string]float64 `json:"value_scenarios"`
	PrimaryNetValue     float64            `json:"primary_net_value"`
	PrimaryROIPercent   float64            `json:"primary_roi_percent"`
	PaybackPeriodMonths float64            `json:"payback_period_months,omitempty"`
	Currency            string             `json:"currency"`
	Notes               string             `json:"notes,omitempty"`
}

// Job statuses for the async case-generation wrapper.
const (
	JobPending    = "PENDING"
	JobInProgress = "IN_PROGRESS"
	JobCompleted  = "COMPLETED"
	JobFailed     = "FAILED"
	JobCancelled  = "CANCELLED"
)

// Job tracks one async invocation of the case-creation pipeline.
type Job struct {
	ID             string `json:"id"`
	JobType        string `json:"job_type"`
	Status         string `json:"status" enum:"PENDING,IN_PROGRESS,COMPLETED,FAILED,CANCELLED"`
	UserID         string `json:"user_uid"`
	Progress       int    `json:"progress"`
	BusinessCaseID string `json:"business_case_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

// Role identifiers used by the approval gate.
const (
	RoleAdmin                = "ADMIN"
	RoleDeveloper            = "DEVELOPER"
	RoleTechnicalArchitect   = "TECHNICAL_ARCHITECT"
	RoleFinanceApprover      = "FINANCE_APPROVER"
	RoleSalesManagerApprover = "SALES_MANAGER_APPROVER"
	RoleFinalApprover        = "FINAL_APPROVER"
)

// APIKey authenticates non-interactive callers.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// RoleGrant assigns a role to an actor server-side, in addition to JWT claims.
type RoleGrant struct {
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
