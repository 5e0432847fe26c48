package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	data := map[string]interface{}{
		"workspace_id": conv.WorkspaceID,
		"title":        conv.Title,
		"ctime":        conv.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("conversations", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&conv.ID)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, []string{"id", "workspace_id", "title", "ctime"})
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
	var conv model.Conversation
	if err := rows.Scan(&conv.ID, &conv.WorkspaceID, &conv.Title, &conv.Ctime); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) List(ctx context.Context, workspaceID int64) ([]model.Conversation, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	if workspaceID > 0 {
		where["workspace_id"] = workspaceID
	}
	sqlStr, args, err := builder.BuildSelect("conversations", where, []string{"id", "workspace_id", "title", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.Conversation, 0)
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.WorkspaceID, &conv.Title, &conv.Ctime); err != nil {
			return nil, err
		}
		list = append(list, conv)
	}
	return list, rows.Err()
}

func (r *ConversationRepo) UpdateTitle(ctx context.Context, id int64, title string) error {
	where := map[string]interface{}{
		"id": id,
	}
	update := map[string]interface{}{
		"title": title,
	}
	sqlStr, args, err := builder.BuildUpdate("conversations", where, update)
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

func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM conversations WHERE id = ?", []interface{}{id})
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
