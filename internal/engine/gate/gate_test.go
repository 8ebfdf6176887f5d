package gate_test

import (
	"context"
	"errors"
	"testing"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine/gate"
	"caseline/internal/migrate"
	"caseline/internal/repo"
	"caseline/internal/stage"
)

func newGate(t *testing.T) (*gate.Service, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	return gate.New(r, config.Default("caseline")), r
}

func forbidden(err error) bool {
	var fe gate.ForbiddenError
	return errors.As(err, &fe)
}

func TestDecisionTable(t *testing.T) {
	g, _ := newGate(t)
	ctx := context.Background()
	ownerID := "owner"

	cases := []struct {
		stage stage.Stage
		actor gate.Actor
		allow bool
	}{
		// PRD: strictly owner, no admin override.
		{stage.PRD, gate.Actor{ID: "owner"}, true},
		{stage.PRD, gate.Actor{ID: "boss", Roles: []string{domain.RoleAdmin}}, false},
		{stage.PRD, gate.Actor{ID: "x", Roles: []string{domain.RoleFinanceApprover}}, false},

		// System design: owner, architect/developer, or admin.
		{stage.SystemDesign, gate.Actor{ID: "owner"}, true},
		{stage.SystemDesign, gate.Actor{ID: "d", Roles: []string{domain.RoleDeveloper}}, true},
		{stage.SystemDesign, gate.Actor{ID: "a", Roles: []string{domain.RoleTechnicalArchitect}}, true},
		{stage.SystemDesign, gate.Actor{ID: "boss", Roles: []string{domain.RoleAdmin}}, true},
		{stage.SystemDesign, gate.Actor{ID: "s", Roles: []string{domain.RoleSalesManagerApprover}}, false},

		// Cost: owner, finance, admin.
		{stage.CostEstimate, gate.Actor{ID: "f", Roles: []string{domain.RoleFinanceApprover}}, true},
		{stage.CostEstimate, gate.Actor{ID: "s", Roles: []string{domain.RoleSalesManagerApprover}}, false},

		// Value: owner, sales, admin.
		{stage.ValueProjection, gate.Actor{ID: "s", Roles: []string{domain.RoleSalesManagerApprover}}, true},
		{stage.ValueProjection, gate.Actor{ID: "f", Roles: []string{domain.RoleFinanceApprover}}, false},

		// Final: only the configured role; owner and admin excluded.
		{stage.Final, gate.Actor{ID: "e", Roles: []string{domain.RoleFinalApprover}}, true},
		{stage.Final, gate.Actor{ID: "owner"}, false},
		{stage.Final, gate.Actor{ID: "boss", Roles: []string{domain.RoleAdmin}}, false},
	}
	for _, tc := range cases {
		sp, err := stage.Lookup(tc.stage)
		if err != nil {
			t.Fatal(err)
		}
		err = g.Allow(ctx, sp, tc.actor, ownerID)
		if tc.allow && err != nil {
			t.Fatalf("stage %s actor %s roles %v: expected allow, got %v", tc.stage, tc.actor.ID, tc.actor.Roles, err)
		}
		if !tc.allow && !forbidden(err) {
			t.Fatalf("stage %s actor %s roles %v: expected ForbiddenError, got %v", tc.stage, tc.actor.ID, tc.actor.Roles, err)
		}
	}
}

func TestServerSideGrantsCount(t *testing.T) {
	g, r := newGate(t)
	ctx := context.Background()
	sp, _ := stage.Lookup(stage.CostEstimate)

	actor := gate.Actor{ID: "jane"}
	if !forbidden(g.Allow(ctx, sp, actor, "owner")) {
		t.Fatalf("expected forbidden before grant")
	}
	if err := r.GrantRole(ctx, "jane", domain.RoleFinanceApprover); err != nil {
		t.Fatal(err)
	}
	if err := g.Allow(ctx, sp, actor, "owner"); err != nil {
		t.Fatalf("expected allow after grant: %v", err)
	}
}

func TestFinalApproverRoleCaching(t *testing.T) {
	g, r := newGate(t)
	ctx := context.Background()

	role, err := g.FinalApproverRole(ctx)
	if err != nil || role != domain.RoleFinalApprover {
		t.Fatalf("expected config default, got %q (%v)", role, err)
	}

	// Writing through the repo bypasses the cache; the service keeps serving
	// the cached value until invalidated.
	if err := r.PutSetting(ctx, repo.SettingFinalApproverRole, "CFO"); err != nil {
		t.Fatal(err)
	}
	role, _ = g.FinalApproverRole(ctx)
	if role != domain.RoleFinalApprover {
		t.Fatalf("expected cached role, got %q", role)
	}
	g.Invalidate()
	role, _ = g.FinalApproverRole(ctx)
	if role != "CFO" {
		t.Fatalf("expected CFO after invalidate, got %q", role)
	}

	// SetFinalApproverRole persists and invalidates in one step.
	if err := g.SetFinalApproverRole(ctx, "CEO"); err != nil {
		t.Fatal(err)
	}
	role, _ = g.FinalApproverRole(ctx)
	if role != "CEO" {
		t.Fatalf("expected CEO, got %q", role)
	}
}

func TestCanView(t *testing.T) {
	g, _ := newGate(t)
	ctx := context.Background()
	c := domain.BusinessCase{ID: "c1", UserID: "owner", Status: domain.StatusCostingPendingReview}

	ok, err := g.CanView(ctx, c, gate.Actor{ID: "owner"})
	if err != nil || !ok {
		t.Fatalf("owner view: %v %v", ok, err)
	}
	ok, err = g.CanView(ctx, c, gate.Actor{ID: "boss", Roles: []string{domain.RoleAdmin}})
	if err != nil || !ok {
		t.Fatalf("admin view: %v %v", ok, err)
	}
	// A finance approver may see a case pending cost review.
	ok, err = g.CanView(ctx, c, gate.Actor{ID: "f", Roles: []string{domain.RoleFinanceApprover}})
	if err != nil || !ok {
		t.Fatalf("reviewer view: %v %v", ok, err)
	}
	// But not a case that is not awaiting their stage.
	c.Status = domain.StatusPRDDrafting
	ok, err = g.CanView(ctx, c, gate.Actor{ID: "f", Roles: []string{domain.RoleFinanceApprover}})
	if err != nil || ok {
		t.Fatalf("expected no view outside pending stage: %v %v", ok, err)
	}
}
