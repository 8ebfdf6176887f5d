package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

func scanJob(row interface{ Scan(dest ...any) error }) (domain.Job, error) {
	var (
		j      domain.Job
		caseID sql.NullString
		errMsg sql.NullString
	)
	err := row.Scan(&j.ID, &j.JobType, &j.Status, &j.UserID, &j.Progress, &caseID, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if caseID.Valid {
		j.BusinessCaseID = caseID.String
	}
	if errMsg.Valid {
		j.ErrorMessage = errMsg.String
	}
	return j, err
}

func (r Repo) InsertJob(ctx context.Context, j domain.Job) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO jobs(id,job_type,status,user_id,progress,business_case_id,error_message,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		j.ID, j.JobType, j.Status, j.UserID, j.Progress, nullable(j.BusinessCaseID), nullable(j.ErrorMessage), j.CreatedAt, j.UpdatedAt)
	return err
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,job_type,status,user_id,progress,business_case_id,error_message,created_at,updated_at FROM jobs WHERE id=?`, id)
	return scanJob(row)
}

func (r Repo) UpdateJob(ctx context.Context, j domain.Job) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE jobs SET status=?,progress=?,business_case_id=?,error_message=?,updated_at=? WHERE id=?`,
		j.Status, j.Progress, nullable(j.BusinessCaseID), nullable(j.ErrorMessage), j.UpdatedAt, j.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	query := `SELECT id,job_type,status,user_id,progress,business_case_id,error_message,created_at,updated_at FROM jobs`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
