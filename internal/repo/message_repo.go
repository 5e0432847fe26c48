package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	data := map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"role":            msg.Role,
		"content":         msg.Content,
		"ctime":           msg.Ctime,
	}
	if len(msg.Citations) > 0 {
		blob, err := json.Marshal(msg.Citations)
		if err != nil {
			return err
		}
		data["citations"] = blob
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&msg.ID)
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int64) ([]model.Message, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, conversation_id, role, content, citations, ctime FROM messages WHERE conversation_id = ? ORDER BY ctime ASC, id ASC",
		[]interface{}{conversationID})
	return r.queryMessages(ctx, sqlStr, args)
}

// ListRecent returns the newest messages in chronological order, for
// building the model prompt from a bounded history window.
func (r *MessageRepo) ListRecent(ctx context.Context, conversationID int64, limit int) ([]model.Message, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, conversation_id, role, content, citations, ctime FROM messages WHERE conversation_id = ? ORDER BY ctime DESC, id DESC LIMIT ?",
		[]interface{}{conversationID, limit})
	msgs, err := r.queryMessages(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) queryMessages(ctx context.Context, sqlStr string, args []interface{}) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := make([]model.Message, 0)
	for rows.Next() {
		var msg model.Message
		var citations sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &citations, &msg.Ctime); err != nil {
			return nil, err
		}
		if citations.Valid && citations.String != "" {
			if err := json.Unmarshal([]byte(citations.String), &msg.Citations); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
