package history

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends entries to the append-only case history. Entries are never
// updated or deleted.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry is one history record to append.
type Entry struct {
	Source  string
	Type    string
	Content string
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, caseID string, e Entry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO case_history(case_id,ts,source,type,content) VALUES (?,?,?,?,?)`,
		caseID, ts, e.Source, e.Type, e.Content)
	return err
}

// AppendAll appends entries in order within one transaction.
func (w Writer) AppendAll(ctx context.Context, tx *sql.Tx, caseID string, entries []Entry) error {
	for _, e := range entries {
		if err := w.Append(ctx, tx, caseID, e); err != nil {
			return err
		}
	}
	return nil
}
