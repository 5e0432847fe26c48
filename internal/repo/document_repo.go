package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/dbutil"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
)

var documentFields = []string{"id", "name", "original_name", "mime_type", "size", "file_key", "file_hash", "version", "status", "error", "ctime", "mtime"}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	if err := rows.Scan(&doc.ID, &doc.Name, &doc.OriginalName, &doc.MimeType, &doc.Size, &doc.FileKey,
		&doc.FileHash, &doc.Version, &doc.Status, &doc.Error, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"name":          doc.Name,
		"original_name": doc.OriginalName,
		"mime_type":     doc.MimeType,
		"size":          doc.Size,
		"file_key":      doc.FileKey,
		"file_hash":     doc.FileHash,
		"version":       doc.Version,
		"status":        doc.Status,
		"error":         doc.Error,
		"ctime":         doc.Ctime,
		"mtime":         doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&doc.ID)
}

func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
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
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

// ListLatest keeps only the highest version per (file_hash,
// original_name) pair, newest first.
func (r *DocumentRepo) ListLatest(ctx context.Context) ([]model.Document, error) {
	const query = `
		SELECT id, name, original_name, mime_type, size, file_key, file_hash, version, status, error, ctime, mtime
		FROM (
			SELECT DISTINCT ON (file_hash, original_name) *
			FROM documents
			ORDER BY file_hash, original_name, version DESC
		) latest
		ORDER BY ctime DESC
	`
	return r.queryDocuments(ctx, query, nil)
}

func (r *DocumentRepo) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Document, error) {
	where := map[string]interface{}{
		"_custom_ws": builder.Custom("id IN (SELECT document_id FROM document_workspaces WHERE workspace_id = ?)", workspaceID),
		"_orderby":   "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

// ListPending returns the oldest documents still waiting for
// processing, up to batch.
func (r *DocumentRepo) ListPending(ctx context.Context, batch uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"status":   model.DocumentStatusPending,
		"_orderby": "ctime asc",
		"_limit":   []uint{0, batch},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

func (r *DocumentRepo) queryDocuments(ctx context.Context, sqlStr string, args []interface{}) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// NextVersion returns max(version)+1 among documents with the same
// content hash and original file name; 1 when none exist yet.
func (r *DocumentRepo) NextVersion(ctx context.Context, fileHash, originalName string) (int, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE file_hash = ? AND original_name = ?",
		[]interface{}{fileHash, originalName})
	var version int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// Claim flips a document from one status to the next only if it is
// still in the expected status, so two pollers never process the same
// document twice. mtime records when the transition happened.
func (r *DocumentRepo) Claim(ctx context.Context, id int64, from, to string) error {
	where := map[string]interface{}{
		"id":     id,
		"status": from,
	}
	update := map[string]interface{}{
		"status": to,
		"error":  "",
		"mtime":  time.Now().Unix(),
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
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
		return appErr.ErrConflict
	}
	return nil
}

// Finish moves a processing document to its terminal status. The
// transition only fires while the document is still processing; once
// the stale sweep (or anything else) moved it, the terminal status is
// final and Finish returns ErrConflict.
func (r *DocumentRepo) Finish(ctx context.Context, id int64, status, errMsg string) error {
	where := map[string]interface{}{
		"id":     id,
		"status": model.DocumentStatusProcessing,
	}
	update := map[string]interface{}{
		"status": status,
		"error":  errMsg,
		"mtime":  time.Now().Unix(),
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
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
		return appErr.ErrConflict
	}
	return nil
}

// MarkStaleProcessing fails documents whose processing claim predates
// the cutoff, so a crashed worker cannot leave them non-terminal
// forever. Staleness is keyed on mtime (set by Claim), not ctime, so a
// document that merely waited in pending a long time is never swept.
func (r *DocumentRepo) MarkStaleProcessing(ctx context.Context, before int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"UPDATE documents SET status = ?, error = ?, mtime = ? WHERE status = ? AND mtime < ?",
		[]interface{}{model.DocumentStatusError, "processing timed out", time.Now().Unix(), model.DocumentStatusProcessing, before})
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *DocumentRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args := dbutil.Finalize("DELETE FROM documents WHERE id = ?", []interface{}{id})
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
