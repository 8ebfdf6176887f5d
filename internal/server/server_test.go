package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("caseline"))
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func signToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func createCase(t *testing.T, srv *testServer, token string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases", map[string]any{
		"title":             "Web portal",
		"problem_statement": "Tickets by email",
	}, authHeader(token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created CaseOutcomeResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Case.Status != domain.StatusPRDDrafting {
		t.Fatalf("expected PRD_DRAFTING, got %s", created.Case.Status)
	}
	return created.Case.ID
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %s", code)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, authHeader("garbage"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ownerTok := signToken(t, "owner")
	id := createCase(t, srv, ownerTok)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/submit", nil, authHeader(ownerTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}

	// A finance approver may not act on the PRD gate.
	finTok := signToken(t, "fin", domain.RoleFinanceApprover)
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/approve", nil, authHeader(finTok))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden code, got %s", code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/approve", nil, authHeader(ownerTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	var out engine.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if out.NewStatus != domain.StatusSystemDesignDrafted {
		t.Fatalf("expected SYSTEM_DESIGN_DRAFTED, got %s", out.NewStatus)
	}

	// Approving again is a state conflict, not a permission problem.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/approve", nil, authHeader(ownerTok))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_state_transition" {
		t.Fatalf("expected invalid_state_transition, got %s", code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+id+"/history", nil, authHeader(ownerTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var history []domain.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) < 4 {
		t.Fatalf("expected at least 4 history entries, got %d", len(history))
	}
}

func TestGetMissingCase(t *testing.T) {
	srv := newTestServer(t)
	tok := signToken(t, "owner")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/nope", nil, authHeader(tok))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("expected not_found, got %s", code)
	}
}

func TestRejectWithReason(t *testing.T) {
	srv := newTestServer(t)
	tok := signToken(t, "owner")
	id := createCase(t, srv, tok)
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/submit", nil, authHeader(tok))
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+id+"/stages/prd/reject", map[string]any{
		"reason": "needs more detail",
	}, authHeader(tok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject status %d: %s", res.StatusCode, string(data))
	}
	var out engine.Outcome
	_ = json.Unmarshal(data, &out)
	if out.NewStatus != domain.StatusPRDRejected {
		t.Fatalf("expected PRD_REJECTED, got %s", out.NewStatus)
	}
}

func TestJobEndpoints(t *testing.T) {
	srv := newTestServer(t)
	tok := signToken(t, "owner")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/jobs", map[string]any{
		"title":             "Async case",
		"problem_statement": "generated in the background",
	}, authHeader(tok))
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start job status %d: %s", res.StatusCode, string(data))
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/jobs/"+job.ID, nil, authHeader(tok))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("poll job status %d: %s", res.StatusCode, string(data))
		}
		_ = json.Unmarshal(data, &job)
		if job.Status == domain.JobCompleted || job.Status == domain.JobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", job)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if job.Status != domain.JobCompleted || job.BusinessCaseID == "" {
		t.Fatalf("expected completed job with case, got %+v", job)
	}

	// Another user may not read the job.
	other := signToken(t, "other")
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/jobs/"+job.ID, nil, authHeader(other))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if err := srv.Engine.Repo.EnsureActor(ctx, "bot"); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.Repo.CreateAPIKey(ctx, "bot", "ci", "raw-key"); err != nil {
		t.Fatal(err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, map[string]string{"X-Api-Key": "raw-key"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases", nil, map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", res.StatusCode)
	}
}

func TestSettingsRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	user := signToken(t, "user")
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/settings/final-approver-role", map[string]any{"value": "CFO"}, authHeader(user))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}

	adminTok := signToken(t, "boss", domain.RoleAdmin)
	res, data = doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/settings/final-approver-role", map[string]any{"value": "CFO"}, authHeader(adminTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set setting status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/settings/final-approver-role", nil, authHeader(adminTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get setting status %d: %s", res.StatusCode, string(data))
	}
	var setting SettingResponse
	_ = json.Unmarshal(data, &setting)
	if setting.Value != "CFO" {
		t.Fatalf("expected CFO, got %q", setting.Value)
	}
}

func TestRoleGrantEndpoints(t *testing.T) {
	srv := newTestServer(t)
	adminTok := signToken(t, "boss", domain.RoleAdmin)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/roles", map[string]any{
		"actor_id": "jane",
		"role":     domain.RoleFinanceApprover,
	}, authHeader(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("grant status %d: %s", res.StatusCode, string(data))
	}
	roles, err := srv.Engine.Repo.ActorRoles(context.Background(), "jane")
	if err != nil || len(roles) != 1 {
		t.Fatalf("roles after grant: %v %v", roles, err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/roles/jane/"+domain.RoleFinanceApprover, nil, authHeader(adminTok))
	if res.StatusCode >= 300 {
		t.Fatalf("revoke status %d: %s", res.StatusCode, string(data))
	}
}
