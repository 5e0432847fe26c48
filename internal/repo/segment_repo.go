package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

type SegmentRepo struct {
	db *sql.DB
}

func NewSegmentRepo(db *sql.DB) *SegmentRepo {
	return &SegmentRepo{db: db}
}

func (r *SegmentRepo) Create(ctx context.Context, seg *model.DocumentSegment) error {
	data := map[string]interface{}{
		"document_id": seg.DocumentID,
		"position":    seg.Position,
		"content":     seg.Content,
		"word_count":  seg.WordCount,
		"tokens":      seg.Tokens,
		"ctime":       seg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("document_segments", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&seg.ID)
}

// SetEmbedding stores a segment's vector after the provider returns it.
// The column stays NULL until then, which is what the progress counters
// key off.
func (r *SegmentRepo) SetEmbedding(ctx context.Context, segmentID int64, embedding []float32) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE document_segments SET embedding = $1 WHERE id = $2",
		pgvector.NewVector(embedding), segmentID)
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

func (r *SegmentRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.DocumentSegment, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, document_id, position, content, word_count, tokens, embedding IS NOT NULL, ctime FROM document_segments WHERE document_id = ? ORDER BY position ASC",
		[]interface{}{documentID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	segs := make([]model.DocumentSegment, 0)
	for rows.Next() {
		var seg model.DocumentSegment
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Position, &seg.Content,
			&seg.WordCount, &seg.Tokens, &seg.HasEmbedding, &seg.Ctime); err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// CountByDocument returns total segments and how many of them already
// carry an embedding.
func (r *SegmentRepo) CountByDocument(ctx context.Context, documentID int64) (int, int, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT COUNT(1), COUNT(embedding) FROM document_segments WHERE document_id = ?",
		[]interface{}{documentID})
	var total, embedded int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total, &embedded); err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

func (r *SegmentRepo) DeleteByDocument(ctx context.Context, documentID int64) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM document_segments WHERE document_id = ?", []interface{}{documentID})
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Search ranks segments of processed documents in a workspace by
// cosine similarity against the query embedding. Only segments that
// already have an embedding take part.
func (r *SegmentRepo) Search(ctx context.Context, workspaceID int64, embedding []float32, topK int) ([]model.SegmentHit, error) {
	const query = `
		SELECT s.id, s.document_id, d.name, s.content, 1 - (s.embedding <=> $1) AS similarity
		FROM document_segments s
		JOIN documents d ON d.id = s.document_id
		WHERE s.embedding IS NOT NULL
		  AND d.status = $2
		  AND s.document_id IN (SELECT document_id FROM document_workspaces WHERE workspace_id = $3)
		ORDER BY s.embedding <=> $1 ASC
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query,
		pgvector.NewVector(embedding), model.DocumentStatusProcessed, workspaceID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hits := make([]model.SegmentHit, 0, topK)
	for rows.Next() {
		var hit model.SegmentHit
		if err := rows.Scan(&hit.SegmentID, &hit.DocumentID, &hit.DocumentName, &hit.Content, &hit.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
