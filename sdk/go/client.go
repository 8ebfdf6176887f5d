package caselinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Caseline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Case represents the API business-case model (partial; artifacts are kept as
// raw JSON so SDK consumers can decode only what they need).
type Case struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Title            string          `json:"title"`
	ProblemStatement string          `json:"problem_statement"`
	RelevantLinks    []string        `json:"relevant_links,omitempty"`
	Status           string          `json:"status"`
	PRDDraft         json.RawMessage `json:"prd_draft,omitempty"`
	SystemDesign     json.RawMessage `json:"system_design_v1_draft,omitempty"`
	EffortEstimate   json.RawMessage `json:"effort_estimate_v1,omitempty"`
	CostEstimate     json.RawMessage `json:"cost_estimate_v1,omitempty"`
	ValueProjection  json.RawMessage `json:"value_projection_v1,omitempty"`
	FinancialSummary json.RawMessage `json:"financial_summary_v1,omitempty"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
	History          []HistoryEntry  `json:"history,omitempty"`
}

// HistoryEntry is one record of the append-only case history.
type HistoryEntry struct {
	ID      int64  `json:"id"`
	CaseID  string `json:"case_id"`
	TS      string `json:"ts"`
	Source  string `json:"source"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Outcome reports the result of a workflow transition.
type Outcome struct {
	CaseID              string `json:"case_id"`
	NewStatus           string `json:"new_status"`
	Message             string `json:"message"`
	GenerationTriggered bool   `json:"generation_triggered"`
	GenerationError     string `json:"generation_error,omitempty"`
}

// CaseOutcome pairs a created case with its transition outcome.
type CaseOutcome struct {
	Case    Case    `json:"case"`
	Outcome Outcome `json:"outcome"`
}

// Job tracks one async case-generation invocation.
type Job struct {
	ID             string `json:"id"`
	JobType        string `json:"job_type"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	BusinessCaseID string `json:"business_case_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCase creates a case and drafts its PRD.
func (c *Client) CreateCase(ctx context.Context, title, problemStatement string, links []string) (CaseOutcome, error) {
	body := map[string]any{
		"title":             title,
		"problem_statement": problemStatement,
	}
	if len(links) > 0 {
		body["relevant_links"] = links
	}
	var resp CaseOutcome
	err := c.do(ctx, http.MethodPost, "v0/cases", body, &resp)
	return resp, err
}

// GetCase fetches a case with its history.
func (c *Client) GetCase(ctx context.Context, id string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, "v0/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListCases returns the caller's cases.
func (c *Client) ListCases(ctx context.Context) ([]Case, error) {
	var resp []Case
	err := c.do(ctx, http.MethodGet, "v0/cases", nil, &resp)
	return resp, err
}

// History returns the append-only history for a case.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, "v0/cases/"+url.PathEscape(id)+"/history", nil, &resp)
	return resp, err
}

// Submit submits a stage document for review.
func (c *Client) Submit(ctx context.Context, caseID, stage string) (Outcome, error) {
	return c.stageAction(ctx, caseID, stage, "submit", nil)
}

// Approve approves a stage; generation of the next document runs before the
// call returns.
func (c *Client) Approve(ctx context.Context, caseID, stage string) (Outcome, error) {
	return c.stageAction(ctx, caseID, stage, "approve", nil)
}

// Reject rejects a stage back to the owner.
func (c *Client) Reject(ctx context.Context, caseID, stage, reason string) (Outcome, error) {
	return c.stageAction(ctx, caseID, stage, "reject", map[string]any{"reason": reason})
}

// Retry re-runs a failed generation step.
func (c *Client) Retry(ctx context.Context, caseID, stage string) (Outcome, error) {
	return c.stageAction(ctx, caseID, stage, "retry", nil)
}

func (c *Client) stageAction(ctx context.Context, caseID, stage, action string, body any) (Outcome, error) {
	endpoint := fmt.Sprintf("v0/cases/%s/stages/%s/%s", url.PathEscape(caseID), url.PathEscape(stage), action)
	var resp Outcome
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateArtifact replaces one stage artifact with an owner edit.
func (c *Client) UpdateArtifact(ctx context.Context, caseID, stage string, artifact any) (Case, error) {
	endpoint := fmt.Sprintf("v0/cases/%s/artifacts/%s", url.PathEscape(caseID), url.PathEscape(stage))
	var resp Case
	err := c.do(ctx, http.MethodPut, endpoint, artifact, &resp)
	return resp, err
}

// StartJob starts an async case-generation job.
func (c *Client) StartJob(ctx context.Context, title, problemStatement string, links []string) (Job, error) {
	body := map[string]any{
		"title":             title,
		"problem_statement": problemStatement,
	}
	if len(links) > 0 {
		body["relevant_links"] = links
	}
	var resp Job
	err := c.do(ctx, http.MethodPost, "v0/jobs", body, &resp)
	return resp, err
}

// GetJob polls a job.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, "v0/jobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// WaitForJob polls until the job leaves PENDING/IN_PROGRESS or ctx ends.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		j, err := c.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if j.Status != "PENDING" && j.Status != "IN_PROGRESS" {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
