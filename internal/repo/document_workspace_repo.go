package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/pkg/dbutil"
)

type DocumentWorkspaceRepo struct {
	db *sql.DB
}

func NewDocumentWorkspaceRepo(db *sql.DB) *DocumentWorkspaceRepo {
	return &DocumentWorkspaceRepo{db: db}
}

// ReplaceLinks rewrites the full workspace link set of a document in
// one transaction. Passing an empty slice unlinks the document
// everywhere.
func (r *DocumentWorkspaceRepo) ReplaceLinks(ctx context.Context, documentID int64, workspaceIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sqlStr, args := dbutil.Finalize("DELETE FROM document_workspaces WHERE document_id = ?", []interface{}{documentID})
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	if len(workspaceIDs) > 0 {
		now := time.Now().Unix()
		data := make([]map[string]interface{}, 0, len(workspaceIDs))
		for _, wsID := range workspaceIDs {
			data = append(data, map[string]interface{}{
				"document_id":  documentID,
				"workspace_id": wsID,
				"ctime":        now,
			})
		}
		sqlStr, args, err := builder.BuildInsert("document_workspaces", data)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *DocumentWorkspaceRepo) ListWorkspaceIDs(ctx context.Context, documentID int64) ([]int64, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT workspace_id FROM document_workspaces WHERE document_id = ? ORDER BY workspace_id ASC",
		[]interface{}{documentID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
