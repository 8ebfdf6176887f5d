// Package gate decides who may approve or reject each pipeline stage.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"caseline/internal/config"
	"caseline/internal/domain"
	"caseline/internal/repo"
	"caseline/internal/stage"
)

// ForbiddenError indicates the actor may not act on the stage. The check is
// side-effect free; no case mutation has occurred when it is returned.
type ForbiddenError struct {
	Stage   stage.Stage
	ActorID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s may not act on stage %s", e.ActorID, e.Stage)
}

// Actor is the authenticated caller, with roles taken from the auth token.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Service evaluates the per-stage decision table. The final-approver role is a
// global runtime setting; it is cached and Invalidate must be called after an
// admin updates it (changes apply to subsequent calls only).
type Service struct {
	Repo   repo.Repo
	Config *config.Config

	mu        sync.RWMutex
	finalRole string
}

func New(r repo.Repo, cfg *config.Config) *Service {
	return &Service{Repo: r, Config: cfg}
}

// FinalApproverRole returns the configured final-approver role, from cache
// when warm, else from the settings store, else the config default.
func (s *Service) FinalApproverRole(ctx context.Context) (string, error) {
	s.mu.RLock()
	cached := s.finalRole
	s.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}
	role, err := s.Repo.GetSetting(ctx, repo.SettingFinalApproverRole)
	if errors.Is(err, repo.ErrNotFound) {
		role = ""
		err = nil
	}
	if err != nil {
		return "", err
	}
	if role == "" {
		if s.Config != nil {
			role = s.Config.Approvals.FinalApproverRole
		}
		if role == "" {
			role = domain.RoleFinalApprover
		}
	}
	s.mu.Lock()
	s.finalRole = role
	s.mu.Unlock()
	return role, nil
}

// SetFinalApproverRole persists the setting and invalidates the cache.
func (s *Service) SetFinalApproverRole(ctx context.Context, role string) error {
	if role == "" {
		return errors.New("role required")
	}
	if err := s.Repo.PutSetting(ctx, repo.SettingFinalApproverRole, role); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the cached final-approver role.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.finalRole = ""
	s.mu.Unlock()
}

// effectiveRoles merges token roles with server-side role grants.
func (s *Service) effectiveRoles(ctx context.Context, actor Actor) ([]string, error) {
	granted, err := s.Repo.ActorRoles(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return append(append([]string{}, actor.Roles...), granted...), nil
}

// Allow checks the stage's gate for the actor against the case owner. It
// returns ForbiddenError when the actor may not act, and never mutates state.
func (s *Service) Allow(ctx context.Context, sp stage.Spec, actor Actor, ownerID string) error {
	if actor.ID == "" {
		return ForbiddenError{Stage: sp.Stage, ActorID: actor.ID}
	}
	roles, err := s.effectiveRoles(ctx, actor)
	if err != nil {
		return err
	}
	has := func(role string) bool {
		for _, r := range roles {
			if r == role {
				return true
			}
		}
		return false
	}

	if sp.Gate.FinalApprover {
		finalRole, err := s.FinalApproverRole(ctx)
		if err != nil {
			return err
		}
		if has(finalRole) {
			return nil
		}
		return ForbiddenError{Stage: sp.Stage, ActorID: actor.ID}
	}

	if sp.Gate.Owner && actor.ID == ownerID {
		return nil
	}
	if sp.Gate.AdminOverride && has(domain.RoleAdmin) {
		return nil
	}
	for _, role := range sp.Gate.Roles {
		if has(role) {
			return nil
		}
	}
	if s.Config != nil {
		for _, role := range s.Config.Approvals.StageRoles[string(sp.Stage)] {
			if has(role) {
				return nil
			}
		}
	}
	return ForbiddenError{Stage: sp.Stage, ActorID: actor.ID}
}

// CanView reports whether the actor may read the case: the owner, an admin,
// or anyone whose role could approve the stage currently pending review.
func (s *Service) CanView(ctx context.Context, c domain.BusinessCase, actor Actor) (bool, error) {
	if actor.ID == c.UserID {
		return true, nil
	}
	roles, err := s.effectiveRoles(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == domain.RoleAdmin {
			return true, nil
		}
	}
	current, ok := stage.ForReviewStatus(c.Status)
	if !ok {
		return false, nil
	}
	sp, err := stage.Lookup(current)
	if err != nil {
		return false, err
	}
	if err := s.Allow(ctx, sp, actor, c.UserID); err != nil {
		var fe ForbiddenError
		if errors.As(err, &fe) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
