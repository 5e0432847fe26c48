package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

type WorkgroupRepo struct {
	db *sql.DB
}

func NewWorkgroupRepo(db *sql.DB) *WorkgroupRepo {
	return &WorkgroupRepo{db: db}
}

func (r *WorkgroupRepo) Create(ctx context.Context, group *model.Workgroup) error {
	data := map[string]interface{}{
		"name":        group.Name,
		"description": group.Description,
		"ctime":       group.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("workgroups", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&group.ID)
}

func (r *WorkgroupRepo) GetByID(ctx context.Context, id int64) (*model.Workgroup, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("workgroups", where, []string{"id", "name", "description", "ctime"})
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
	var group model.Workgroup
	if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.Ctime); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *WorkgroupRepo) List(ctx context.Context) ([]model.Workgroup, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("workgroups", where, []string{"id", "name", "description", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := make([]model.Workgroup, 0)
	for rows.Next() {
		var group model.Workgroup
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.Ctime); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (r *WorkgroupRepo) Update(ctx context.Context, group *model.Workgroup) error {
	where := map[string]interface{}{
		"id": group.ID,
	}
	update := map[string]interface{}{
		"name":        group.Name,
		"description": group.Description,
	}
	sqlStr, args, err := builder.BuildUpdate("workgroups", where, update)
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

func (r *WorkgroupRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM workgroups WHERE id = ?", []interface{}{id})
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
