// Package engine implements the business-case lifecycle state machine: the
// legal transitions between statuses, the side effects of each transition and
// the approval gates guarding them. All per-stage behavior is driven from the
// stage table; the engine itself is stage-agnostic.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"caseline/internal/config"
	"caseline/internal/domain"
	"caseline/internal/engine/gate"
	"caseline/internal/gen"
	"caseline/internal/history"
	"caseline/internal/repo"
	"caseline/internal/stage"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Gate    *gate.Service
	Config  *config.Config
	Stages  gen.Registry
	Log     *log.Logger
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		History: history.Writer{DB: db},
		Gate:    gate.New(r, cfg),
		Config:  cfg,
		Stages:  gen.Defaults(),
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.Default()
}

// InvalidTransitionError means the case was not in the exact pre-state the
// requested action needs. Nothing was mutated.
type InvalidTransitionError struct {
	Stage    stage.Stage
	Expected []domain.Status
	Actual   domain.Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("stage %s requires status %v, case is %s", e.Stage, e.Expected, e.Actual)
}

// Outcome reports the result of a transition. A downstream generation failure
// is not a failure of the transition itself: GenerationError is set, the
// status reverted, and the approval stands.
type Outcome struct {
	CaseID              string        `json:"case_id"`
	NewStatus           domain.Status `json:"new_status"`
	Message             string        `json:"message"`
	GenerationTriggered bool          `json:"generation_triggered"`
	GenerationError     string        `json:"generation_error,omitempty"`
}

// prdGeneration is the intake-time drafting phase. Unlike the cascade phases
// its failure target is PRD_REJECTED rather than the pre-generation status:
// a case with no PRD goes straight back to the owner.
var prdGeneration = stage.Generation{
	Target:     stage.PRD,
	InProgress: domain.StatusPRDDrafting,
	Complete:   domain.StatusPRDDrafting,
	RetryFrom:  []domain.Status{domain.StatusPRDRejected},
}

// CreateCaseOptions are the intake inputs.
type CreateCaseOptions struct {
	UserID           string
	Title            string
	ProblemStatement string
	RelevantLinks    []string
}

// CreateCase persists a new case at INTAKE, records the creation, then runs
// the PRD drafting stage. Drafting success lands at PRD_DRAFTING; failure at
// PRD_REJECTED with a failure history entry. The create itself never fails
// because of drafting.
func (e Engine) CreateCase(ctx context.Context, opts CreateCaseOptions) (domain.BusinessCase, Outcome, error) {
	if opts.UserID == "" {
		return domain.BusinessCase{}, Outcome{}, errors.New("user_id required")
	}
	if opts.Title == "" {
		return domain.BusinessCase{}, Outcome{}, errors.New("title required")
	}
	if opts.ProblemStatement == "" {
		return domain.BusinessCase{}, Outcome{}, errors.New("problem_statement required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	c := domain.BusinessCase{
		ID:               uuid.New().String(),
		UserID:           opts.UserID,
		Title:            opts.Title,
		ProblemStatement: opts.ProblemStatement,
		RelevantLinks:    opts.RelevantLinks,
		Status:           domain.StatusIntake,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, Outcome{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCase(ctx, tx, c); err != nil {
		return c, Outcome{}, fmt.Errorf("insert case: %w", err)
	}
	if err := e.History.Append(ctx, tx, c.ID, history.Entry{
		Source:  domain.SourceUser,
		Type:    stage.TypeCaseCreated,
		Content: fmt.Sprintf("case %q created by %s", c.Title, c.UserID),
	}); err != nil {
		return c, Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return c, Outcome{}, err
	}

	c, genErr, err := e.applyGeneration(ctx, c, prdGeneration, domain.StatusPRDRejected)
	if err != nil {
		return c, Outcome{}, err
	}
	out := Outcome{
		CaseID:              c.ID,
		NewStatus:           c.Status,
		Message:             "case created",
		GenerationTriggered: true,
		GenerationError:     genErr,
	}
	if genErr != "" {
		out.Message = "case created; PRD drafting failed"
	}
	return c, out, nil
}

// ApproveOptions identify one approval action.
type ApproveOptions struct {
	CaseID string
	Stage  stage.Stage
	Actor  gate.Actor
}

// Approve records a stage approval and, where the stage gates a generation
// step, synchronously runs it. The approval write commits before generation
// starts, so the approval is durable even if generation fails or the process
// dies mid-call.
func (e Engine) Approve(ctx context.Context, opts ApproveOptions) (Outcome, error) {
	sp, err := stage.Lookup(opts.Stage)
	if err != nil {
		return Outcome{}, err
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.Gate.Allow(ctx, sp, opts.Actor, c.UserID); err != nil {
		return Outcome{}, err
	}
	if c.Status != sp.Review {
		return Outcome{}, InvalidTransitionError{Stage: sp.Stage, Expected: []domain.Status{sp.Review}, Actual: c.Status}
	}

	expected := c.Status
	c.Status = sp.Approved
	if sp.Stage == stage.CostEstimate {
		c.CostingApproved = true
	}
	if sp.Stage == stage.ValueProjection {
		c.ValueProjectionApproved = true
	}
	entry := history.Entry{
		Source:  domain.SourceUser,
		Type:    sp.ApprovalType,
		Content: fmt.Sprintf("approved by %s", opts.Actor.ID),
	}
	if err := e.commit(ctx, &c, expected, entry); err != nil {
		return Outcome{}, err
	}

	out := Outcome{CaseID: c.ID, NewStatus: c.Status, Message: fmt.Sprintf("%s approved", sp.Stage)}

	if sp.AutoAdvance != "" {
		expected = c.Status
		c.Status = sp.AutoAdvance
		adv := history.Entry{
			Source:  domain.SourceAgent,
			Type:    stage.TypeStatusAdvanced,
			Content: fmt.Sprintf("advanced to %s", sp.AutoAdvance),
		}
		if err := e.commit(ctx, &c, expected, adv); err != nil {
			return Outcome{}, err
		}
		out.NewStatus = c.Status
		return out, nil
	}

	if sp.JoinMember() {
		if !(c.CostingApproved && c.ValueProjectionApproved) {
			waiting := "value projection"
			if sp.Stage == stage.ValueProjection {
				waiting = "cost estimate"
			}
			out.Message = fmt.Sprintf("%s approved; waiting on %s approval", sp.Stage, waiting)
			return out, nil
		}
		c, genErr, err := e.applyGeneration(ctx, c, *sp.JoinGenerate, c.Status)
		if err != nil {
			return Outcome{}, err
		}
		out.NewStatus = c.Status
		out.GenerationTriggered = true
		out.GenerationError = genErr
		if genErr == "" {
			out.Message = "both branches approved; financial model generated"
		}
		return out, nil
	}

	for _, phase := range sp.Generate {
		next, genErr, err := e.applyGeneration(ctx, c, phase, c.Status)
		if err != nil {
			return Outcome{}, err
		}
		c = next
		out.NewStatus = c.Status
		out.GenerationTriggered = true
		if genErr != "" {
			out.GenerationError = genErr
			break
		}
	}
	return out, nil
}

// RejectOptions identify one rejection action.
type RejectOptions struct {
	CaseID string
	Stage  stage.Stage
	Actor  gate.Actor
	Reason string
}

// Reject records a stage rejection. Rejection returns control to the owner
// for editing and never cascades forward.
func (e Engine) Reject(ctx context.Context, opts RejectOptions) (Outcome, error) {
	sp, err := stage.Lookup(opts.Stage)
	if err != nil {
		return Outcome{}, err
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.Gate.Allow(ctx, sp, opts.Actor, c.UserID); err != nil {
		return Outcome{}, err
	}
	if c.Status != sp.Review {
		return Outcome{}, InvalidTransitionError{Stage: sp.Stage, Expected: []domain.Status{sp.Review}, Actual: c.Status}
	}
	reason := opts.Reason
	if reason == "" {
		reason = "rejected without comment"
	}
	expected := c.Status
	c.Status = sp.Rejected
	entry := history.Entry{
		Source:  domain.SourceUser,
		Type:    sp.RejectionType,
		Content: reason,
	}
	if err := e.commit(ctx, &c, expected, entry); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		CaseID:    c.ID,
		NewStatus: c.Status,
		Message:   fmt.Sprintf("%s rejected", sp.Stage),
	}, nil
}

// SubmitOptions identify one submit-for-review action.
type SubmitOptions struct {
	CaseID string
	Stage  stage.Stage
	Actor  gate.Actor
}

// SubmitForReview moves a drafted, complete or rejected stage artifact into
// its pending-review state. Only the owner (or an admin) submits.
func (e Engine) SubmitForReview(ctx context.Context, opts SubmitOptions) (Outcome, error) {
	sp, err := stage.Lookup(opts.Stage)
	if err != nil {
		return Outcome{}, err
	}
	if len(sp.SubmitFrom) == 0 {
		return Outcome{}, fmt.Errorf("stage %s has no submit step", sp.Stage)
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.requireOwnerOrAdmin(ctx, sp, opts.Actor, c.UserID); err != nil {
		return Outcome{}, err
	}
	if !sp.CanSubmitFrom(c.Status) {
		return Outcome{}, InvalidTransitionError{Stage: sp.Stage, Expected: sp.SubmitFrom, Actual: c.Status}
	}
	if !hasArtifact(c, sp.Stage) {
		return Outcome{}, fmt.Errorf("stage %s has no artifact to review", sp.Stage)
	}
	if branchApproved(c, sp.Stage) {
		return Outcome{}, InvalidTransitionError{Stage: sp.Stage, Expected: sp.SubmitFrom, Actual: c.Status}
	}
	expected := c.Status
	c.Status = sp.Review
	entry := history.Entry{
		Source:  domain.SourceUser,
		Type:    sp.SubmissionType,
		Content: fmt.Sprintf("submitted for review by %s", opts.Actor.ID),
	}
	if err := e.commit(ctx, &c, expected, entry); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		CaseID:    c.ID,
		NewStatus: c.Status,
		Message:   fmt.Sprintf("%s submitted for review", sp.Stage),
	}, nil
}

// RetryOptions identify one generation-retry action.
type RetryOptions struct {
	CaseID string
	Target stage.Stage
	Actor  gate.Actor
}

// RetryGeneration re-runs a previously failed generation phase from the
// status its failure reverted to.
func (e Engine) RetryGeneration(ctx context.Context, opts RetryOptions) (Outcome, error) {
	phase, ok := generationFor(opts.Target)
	if !ok {
		return Outcome{}, fmt.Errorf("stage %s is not generated", opts.Target)
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return Outcome{}, err
	}
	sp, err := stage.Lookup(opts.Target)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.requireOwnerOrAdmin(ctx, sp, opts.Actor, c.UserID); err != nil {
		return Outcome{}, err
	}
	allowed := false
	for _, s := range phase.RetryFrom {
		if c.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return Outcome{}, InvalidTransitionError{Stage: opts.Target, Expected: phase.RetryFrom, Actual: c.Status}
	}
	// An approved branch artifact is final; retrying it would discard the
	// approved content.
	if branchApproved(c, opts.Target) {
		return Outcome{}, InvalidTransitionError{Stage: opts.Target, Expected: phase.RetryFrom, Actual: c.Status}
	}
	if opts.Target == stage.FinancialModel && !(c.CostingApproved && c.ValueProjectionApproved) {
		return Outcome{}, InvalidTransitionError{Stage: opts.Target, Expected: phase.RetryFrom, Actual: c.Status}
	}
	revertTo := c.Status
	if opts.Target == stage.PRD {
		revertTo = domain.StatusPRDRejected
	}
	c, genErr, err := e.applyGeneration(ctx, c, phase, revertTo)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		CaseID:              c.ID,
		NewStatus:           c.Status,
		Message:             fmt.Sprintf("%s generation retried", opts.Target),
		GenerationTriggered: true,
		GenerationError:     genErr,
	}, nil
}

// generationFor finds the cascade phase producing the given stage's artifact.
func generationFor(target stage.Stage) (stage.Generation, bool) {
	if target == stage.PRD {
		return prdGeneration, true
	}
	for _, s := range stage.All() {
		sp, err := stage.Lookup(s)
		if err != nil {
			continue
		}
		for _, phase := range sp.Generate {
			if phase.Target == target {
				return phase, true
			}
		}
		if sp.JoinGenerate != nil && sp.JoinGenerate.Target == target {
			return *sp.JoinGenerate, true
		}
	}
	return stage.Generation{}, false
}

// GetCase returns the case with history, enforcing view authorization.
func (e Engine) GetCase(ctx context.Context, caseID string, actor gate.Actor) (domain.BusinessCase, error) {
	c, err := e.Repo.GetCase(ctx, caseID)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	ok, err := e.Gate.CanView(ctx, c, actor)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	if !ok {
		current, _ := stage.ForReviewStatus(c.Status)
		return domain.BusinessCase{}, gate.ForbiddenError{Stage: current, ActorID: actor.ID}
	}
	c.History, err = e.Repo.ListHistory(ctx, caseID)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	return c, nil
}

// UpdateIntakeOptions edit the user-supplied intake fields. Workflow state is
// untouched.
type UpdateIntakeOptions struct {
	CaseID           string
	Actor            gate.Actor
	Title            *string
	ProblemStatement *string
	RelevantLinks    []string
}

func (e Engine) UpdateIntake(ctx context.Context, opts UpdateIntakeOptions) (domain.BusinessCase, error) {
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	sp, _ := stage.Lookup(stage.PRD)
	if err := e.requireOwnerOrAdmin(ctx, sp, opts.Actor, c.UserID); err != nil {
		return domain.BusinessCase{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateIntake(ctx, opts.CaseID, opts.Title, opts.ProblemStatement, opts.RelevantLinks, now); err != nil {
		return domain.BusinessCase{}, err
	}
	return e.Repo.GetCase(ctx, opts.CaseID)
}

// UpdateArtifactOptions replace one stage artifact with an owner edit, e.g.
// before resubmitting a rejected stage. Workflow state is untouched.
type UpdateArtifactOptions struct {
	CaseID   string
	Stage    stage.Stage
	Actor    gate.Actor
	Artifact any
}

func (e Engine) UpdateArtifact(ctx context.Context, opts UpdateArtifactOptions) (domain.BusinessCase, error) {
	sp, err := stage.Lookup(opts.Stage)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return domain.BusinessCase{}, err
	}
	if err := e.requireOwnerOrAdmin(ctx, sp, opts.Actor, c.UserID); err != nil {
		return domain.BusinessCase{}, err
	}
	if branchApproved(c, sp.Stage) || c.Status.Terminal() {
		return domain.BusinessCase{}, InvalidTransitionError{Stage: sp.Stage, Expected: sp.SubmitFrom, Actual: c.Status}
	}
	if err := gen.Apply(&c, sp.Stage, opts.Artifact); err != nil {
		return domain.BusinessCase{}, err
	}
	entry := history.Entry{
		Source:  domain.SourceUser,
		Type:    stage.ArtifactType(sp.Stage) + "_EDITED",
		Content: fmt.Sprintf("artifact edited by %s", opts.Actor.ID),
	}
	if err := e.commit(ctx, &c, c.Status, entry); err != nil {
		return domain.BusinessCase{}, err
	}
	return c, nil
}

// applyGeneration invokes the generation function for a phase and commits the
// outcome: artifact plus Complete status on success, revertTo plus a failure
// entry otherwise. Generation failure is returned as a string, never as an
// error; the error return is for persistence failures only.
func (e Engine) applyGeneration(ctx context.Context, c domain.BusinessCase, phase stage.Generation, revertTo domain.Status) (domain.BusinessCase, string, error) {
	expected := c.Status
	fn, ok := e.Stages[phase.Target]
	var (
		res    gen.Result
		genErr error
	)
	if !ok {
		genErr = fmt.Errorf("no generator registered for stage %s", phase.Target)
	} else {
		timeout := e.Config.GenerationTimeout()
		in := gen.Input{Case: c}
		if e.Config != nil {
			in.Currency = e.Config.Generation.Currency
			in.RateCard = e.Config.Generation.RateCard
		}
		res, genErr = gen.WithTimeout(fn, timeout)(ctx, in)
	}
	if genErr != nil {
		e.logger().Printf("generation failed case=%s stage=%s: %v", c.ID, phase.Target, genErr)
		c.Status = revertTo
		entry := history.Entry{
			Source:  domain.SourceAgent,
			Type:    stage.FailureType(phase.Target),
			Content: genErr.Error(),
		}
		if err := e.commit(ctx, &c, expected, entry); err != nil {
			return c, "", err
		}
		return c, genErr.Error(), nil
	}
	if err := gen.Apply(&c, phase.Target, res.Artifact); err != nil {
		// A malformed artifact is a generation failure, same handling.
		c.Status = revertTo
		entry := history.Entry{
			Source:  domain.SourceAgent,
			Type:    stage.FailureType(phase.Target),
			Content: err.Error(),
		}
		if cerr := e.commit(ctx, &c, expected, entry); cerr != nil {
			return c, "", cerr
		}
		return c, err.Error(), nil
	}
	c.Status = phase.Complete
	entry := history.Entry{
		Source:  domain.SourceAgent,
		Type:    stage.ArtifactType(phase.Target),
		Content: res.Message,
	}
	if err := e.commit(ctx, &c, expected, entry); err != nil {
		return c, "", err
	}
	return c, "", nil
}

// commit persists the case guarded by the status observed at read time and
// appends one history entry, in a single transaction.
func (e Engine) commit(ctx context.Context, c *domain.BusinessCase, expected domain.Status, entry history.Entry) error {
	c.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCase(ctx, tx, *c, expected); err != nil {
		return err
	}
	if err := e.History.Append(ctx, tx, c.ID, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) requireOwnerOrAdmin(ctx context.Context, sp stage.Spec, actor gate.Actor, ownerID string) error {
	if actor.ID != "" && actor.ID == ownerID {
		return nil
	}
	roles, err := e.Repo.ActorRoles(ctx, actor.ID)
	if err != nil {
		return err
	}
	for _, r := range append(actor.Roles, roles...) {
		if r == domain.RoleAdmin {
			return nil
		}
	}
	return gate.ForbiddenError{Stage: sp.Stage, ActorID: actor.ID}
}

func hasArtifact(c domain.BusinessCase, s stage.Stage) bool {
	switch s {
	case stage.PRD:
		return c.PRDDraft != nil
	case stage.SystemDesign:
		return c.SystemDesign != nil
	case stage.EffortEstimate:
		return c.EffortEstimate != nil
	case stage.CostEstimate:
		return c.CostEstimate != nil
	case stage.ValueProjection:
		return c.ValueProjection != nil
	case stage.FinancialModel:
		return c.FinancialSummary != nil
	}
	return false
}

// branchApproved reports whether a cost/value branch stage was already
// approved; its review can then never be reopened.
func branchApproved(c domain.BusinessCase, s stage.Stage) bool {
	switch s {
	case stage.CostEstimate:
		return c.CostingApproved
	case stage.ValueProjection:
		return c.ValueProjectionApproved
	}
	return false
}
