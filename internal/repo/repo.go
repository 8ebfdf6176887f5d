package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrStaleCase means a compare-and-swap write found the stored status changed
// since the caller read the case.
var ErrStaleCase = errors.New("case status changed since read")

const caseColumns = `id,user_id,title,problem_statement,relevant_links_json,status,
prd_draft_json,system_design_json,effort_estimate_json,cost_estimate_json,
value_projection_json,financial_summary_json,costing_approved,value_projection_approved,
created_at,updated_at`

func scanCase(scan func(dest ...any) error) (domain.BusinessCase, error) {
	var (
		c                                        domain.BusinessCase
		links                                    sql.NullString
		prd, design, effort, cost, value, fin    sql.NullString
		costApproved, valueApproved              int
	)
	err := scan(&c.ID, &c.UserID, &c.Title, &c.ProblemStatement, &links, &c.Status,
		&prd, &design, &effort, &cost, &value, &fin, &costApproved, &valueApproved,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.CostingApproved = costApproved != 0
	c.ValueProjectionApproved = valueApproved != 0
	if links.Valid && links.String != "" {
		if err := json.Unmarshal([]byte(links.String), &c.RelevantLinks); err != nil {
			return c, fmt.Errorf("relevant_links: %w", err)
		}
	}
	if err := unmarshalArtifact(prd, &c.PRDDraft); err != nil {
		return c, err
	}
	if err := unmarshalArtifact(design, &c.SystemDesign); err != nil {
		return c, err
	}
	if err := unmarshalArtifact(effort, &c.EffortEstimate); err != nil {
		return c, err
	}
	if err := unmarshalArtifact(cost, &c.CostEstimate); err != nil {
		return c, err
	}
	if err := unmarshalArtifact(value, &c.ValueProjection); err != nil {
		return c, err
	}
	if err := unmarshalArtifact(fin, &c.FinancialSummary); err != nil {
		return c, err
	}
	return c, nil
}

func unmarshalArtifact[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func marshalArtifact[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func caseArgs(c domain.BusinessCase) ([]any, error) {
	var links any
	if len(c.RelevantLinks) > 0 {
		b, err := json.Marshal(c.RelevantLinks)
		if err != nil {
			return nil, err
		}
		links = string(b)
	}
	prd, err := marshalArtifact(c.PRDDraft)
	if err != nil {
		return nil, err
	}
	design, err := marshalArtifact(c.SystemDesign)
	if err != nil {
		return nil, err
	}
	effort, err := marshalArtifact(c.EffortEstimate)
	if err != nil {
		return nil, err
	}
	cost, err := marshalArtifact(c.CostEstimate)
	if err != nil {
		return nil, err
	}
	value, err := marshalArtifact(c.ValueProjection)
	if err != nil {
		return nil, err
	}
	fin, err := marshalArtifact(c.FinancialSummary)
	if err != nil {
		return nil, err
	}
	return []any{
		c.UserID, c.Title, c.ProblemStatement, links, string(c.Status),
		prd, design, effort, cost, value, fin,
		boolToInt(c.CostingApproved), boolToInt(c.ValueProjectionApproved),
		c.UpdatedAt,
	}, nil
}

func (r Repo) InsertCase(ctx context.Context, tx *sql.Tx, c domain.BusinessCase) error {
	args, err := caseArgs(c)
	if err != nil {
		return err
	}
	all := append([]any{c.ID}, args...)
	all = append(all[:len(all)-1], c.CreatedAt, c.UpdatedAt)
	_, err = tx.ExecContext(ctx, `INSERT INTO cases(
id,user_id,title,problem_statement,relevant_links_json,status,
prd_draft_json,system_design_json,effort_estimate_json,cost_estimate_json,
value_projection_json,financial_summary_json,costing_approved,value_projection_approved,
created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, all...)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.BusinessCase, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id)
	return scanCase(row.Scan)
}

// UpdateCase writes the full mutable portion of a case, guarded by the status
// observed at read time. ErrStaleCase is returned when a concurrent writer got
// there first; the caller must re-read and re-validate.
func (r Repo) UpdateCase(ctx context.Context, tx *sql.Tx, c domain.BusinessCase, expectedStatus domain.Status) error {
	args, err := caseArgs(c)
	if err != nil {
		return err
	}
	args = append(args, c.ID, string(expectedStatus))
	res, err := tx.ExecContext(ctx, `UPDATE cases SET
user_id=?,title=?,problem_statement=?,relevant_links_json=?,status=?,
prd_draft_json=?,system_design_json=?,effort_estimate_json=?,cost_estimate_json=?,
value_projection_json=?,financial_summary_json=?,costing_approved=?,value_projection_approved=?,
updated_at=?
WHERE id=? AND status=?`, args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE id=?`, c.ID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		return ErrStaleCase
	}
	return nil
}

// UpdateIntake edits the user-supplied intake fields without touching status.
func (r Repo) UpdateIntake(ctx context.Context, id string, title, problem *string, links []string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if problem != nil {
		fields = append(fields, "problem_statement=?")
		args = append(args, *problem)
	}
	if links != nil {
		b, err := json.Marshal(links)
		if err != nil {
			return err
		}
		fields = append(fields, "relevant_links_json=?")
		args = append(args, string(b))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE cases SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListCases(ctx context.Context, userID string) ([]domain.BusinessCase, error) {
	clauses := []string{}
	args := []any{}
	if userID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, userID)
	}
	query := `SELECT ` + caseColumns + ` FROM cases`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BusinessCase
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListHistory returns the case history oldest-first.
func (r Repo) ListHistory(ctx context.Context, caseID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,ts,source,type,content FROM case_history WHERE case_id=? ORDER BY id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.CaseID, &h.TS, &h.Source, &h.Type, &h.Content); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
