package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"caseline/internal/domain"
)

// JobTypeCaseGeneration is the only job type: run the full case-creation
// pipeline from an external trigger and let the caller poll.
const JobTypeCaseGeneration = "CASE_GENERATION"

// StartCaseJob records a PENDING job for the given intake. The caller decides
// whether to run it inline or in a goroutine via RunCaseJob.
func (e Engine) StartCaseJob(ctx context.Context, opts CreateCaseOptions) (domain.Job, error) {
	if opts.UserID == "" {
		return domain.Job{}, errors.New("user_id required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	j := domain.Job{
		ID:        uuid.New().String(),
		JobType:   JobTypeCaseGeneration,
		Status:    domain.JobPending,
		UserID:    opts.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertJob(ctx, j); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// RunCaseJob executes a pending job: flips it IN_PROGRESS, runs CreateCase,
// then flips it COMPLETED with the case id or FAILED with the error message.
// A generation failure inside CreateCase still completes the job; the case
// itself records the failure.
func (e Engine) RunCaseJob(ctx context.Context, jobID string, opts CreateCaseOptions) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if j.Status != domain.JobPending {
		return j, errors.New("job already started")
	}
	j.Status = domain.JobInProgress
	j.Progress = 10
	j.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateJob(ctx, j); err != nil {
		return j, err
	}

	c, _, err := e.CreateCase(ctx, opts)
	j.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err != nil {
		j.Status = domain.JobFailed
		j.ErrorMessage = err.Error()
		if uerr := e.Repo.UpdateJob(ctx, j); uerr != nil {
			return j, uerr
		}
		return j, nil
	}
	j.Status = domain.JobCompleted
	j.Progress = 100
	j.BusinessCaseID = c.ID
	if err := e.Repo.UpdateJob(ctx, j); err != nil {
		return j, err
	}
	return j, nil
}

// CancelJob marks a still-pending job cancelled.
func (e Engine) CancelJob(ctx context.Context, jobID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if j.Status != domain.JobPending {
		return j, errors.New("only pending jobs can be cancelled")
	}
	j.Status = domain.JobCancelled
	j.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateJob(ctx, j); err != nil {
		return j, err
	}
	return j, nil
}
