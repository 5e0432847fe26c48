package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

type WorkspaceRepo struct {
	db *sql.DB
}

func NewWorkspaceRepo(db *sql.DB) *WorkspaceRepo {
	return &WorkspaceRepo{db: db}
}

func (r *WorkspaceRepo) Create(ctx context.Context, ws *model.Workspace) error {
	data := map[string]interface{}{
		"group_id":    ws.GroupID,
		"name":        ws.Name,
		"description": ws.Description,
		"ctime":       ws.Ctime,
		"mtime":       ws.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("workspaces", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&ws.ID)
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id int64) (*model.Workspace, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("workspaces", where, []string{"id", "group_id", "name", "description", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	var ws model.Workspace
	if err := rows.Scan(&ws.ID, &ws.GroupID, &ws.Name, &ws.Description, &ws.Ctime, &ws.Mtime); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *WorkspaceRepo) List(ctx context.Context, groupID int64) ([]model.Workspace, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	if groupID > 0 {
		where["group_id"] = groupID
	}
	sqlStr, args, err := builder.BuildSelect("workspaces", where, []string{"id", "group_id", "name", "description", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.Workspace, 0)
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.GroupID, &ws.Name, &ws.Description, &ws.Ctime, &ws.Mtime); err != nil {
			return nil, err
		}
		list = append(list, ws)
	}
	return list, rows.Err()
}

func (r *WorkspaceRepo) Update(ctx context.Context, ws *model.Workspace) error {
	where := map[string]interface{}{
		"id": ws.ID,
	}
	update := map[string]interface{}{
		"name":        ws.Name,
		"description": ws.Description,
		"mtime":       ws.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("workspaces", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *WorkspaceRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM workspaces WHERE id = ?", []interface{}{id})
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// DocumentCounts returns, per workspace, how many documents are linked
// to it. Workspaces with no links are absent from the map.
func (r *WorkspaceRepo) DocumentCounts(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT workspace_id, COUNT(1) FROM document_workspaces GROUP BY workspace_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int64)
	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
