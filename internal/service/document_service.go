package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/extract"
	"github.com/seenlim/docchat/internal/filestore"
	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
)

type DocumentService struct {
	docs     *repo.DocumentRepo
	segments *repo.SegmentRepo
	links    *repo.DocumentWorkspaceRepo
	spaces   *repo.WorkspaceRepo
	store    filestore.Store
	maxBytes int64
}

func NewDocumentService(docs *repo.DocumentRepo, segments *repo.SegmentRepo, links *repo.DocumentWorkspaceRepo,
	spaces *repo.WorkspaceRepo, store filestore.Store, maxBytes int64) *DocumentService {
	return &DocumentService{
		docs:     docs,
		segments: segments,
		links:    links,
		spaces:   spaces,
		store:    store,
		maxBytes: maxBytes,
	}
}

// Upload hashes and stores the original bytes, picks the next version
// for this exact file, and records a pending document for the process
// job to pick up.
func (s *DocumentService) Upload(ctx context.Context, originalName, declaredMime string, r io.Reader) (*model.Document, error) {
	originalName = strings.TrimSpace(originalName)
	if originalName == "" {
		return nil, appErr.ErrInvalid
	}
	mimeType := extract.MimeTypeFor(declaredMime, originalName)
	if !extract.Supported(mimeType) {
		return nil, appErr.ErrUnsupportedFile
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, appErr.ErrTooMany
	}
	if len(data) == 0 {
		return nil, appErr.ErrEmptyDocument
	}
	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	version, err := s.docs.NextVersion(ctx, fileHash, originalName)
	if err != nil {
		return nil, err
	}
	fileKey := buildFileKey(originalName, version, fileHash)
	if err := s.store.Save(ctx, fileKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	now := time.Now().Unix()
	doc := &model.Document{
		Name:         displayName(originalName, version),
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		FileKey:      fileKey,
		FileHash:     fileHash,
		Version:      version,
		Status:       model.DocumentStatusPending,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		dErr := s.store.Delete(ctx, fileKey)
		if dErr != nil {
			logutil.GetLogger(ctx).Warn("orphaned stored file after failed insert",
				zap.String("file_key", fileKey), zap.Error(dErr))
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("name", doc.OriginalName),
		zap.Int("version", doc.Version),
		zap.Int64("size", doc.Size))
	return doc, nil
}

// buildFileKey derives the storage key "base_vN_hash8.ext" from the
// upload's name, version and content hash. The key never contains path
// separators.
func buildFileKey(originalName string, version int, fileHash string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := sanitizeName(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	short := fileHash
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_v%d_%s%s", base, version, short, ext)
}

func displayName(originalName string, version int) string {
	if version <= 1 {
		return originalName
	}
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)
	return fmt.Sprintf("%s (v%d)%s", base, version, ext)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "file"
	}
	if len(out) > 80 {
		out = out[:80]
	}
	return out
}

func (s *DocumentService) List(ctx context.Context, allVersions bool) ([]model.Document, error) {
	if allVersions {
		return s.docs.List(ctx, 0, 0)
	}
	return s.docs.ListLatest(ctx)
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// Status reports the processing state of one document plus segment
// progress counters.
func (s *DocumentService) Status(ctx context.Context, id int64) (*model.DocumentStatus, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	total, embedded, err := s.segments.CountByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.DocumentStatus{
		Status:                 doc.Status,
		Error:                  doc.Error,
		Name:                   doc.Name,
		MimeType:               doc.MimeType,
		Segments:               total,
		SegmentsWithEmbeddings: embedded,
		CreatedAt:              time.Unix(doc.Ctime, 0).UTC().Format(time.RFC3339),
	}, nil
}

// Download streams the stored original. Caller closes the reader.
func (s *DocumentService) Download(ctx context.Context, id int64) (*model.Document, io.ReadCloser, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("failed to remove stored file",
			zap.String("file_key", doc.FileKey), zap.Error(err))
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.Int64("document_id", id))
	return nil
}

// LinkWorkspaces replaces the workspace link set for each listed
// document. All workspaces must exist before anything is written.
func (s *DocumentService) LinkWorkspaces(ctx context.Context, documentIDs, workspaceIDs []int64) error {
	if len(documentIDs) == 0 {
		return appErr.ErrInvalid
	}
	for _, wsID := range workspaceIDs {
		if _, err := s.spaces.GetByID(ctx, wsID); err != nil {
			return err
		}
	}
	for _, docID := range documentIDs {
		if _, err := s.docs.GetByID(ctx, docID); err != nil {
			return err
		}
		if err := s.links.ReplaceLinks(ctx, docID, workspaceIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *DocumentService) WorkspaceIDs(ctx context.Context, documentID int64) ([]int64, error) {
	return s.links.ListWorkspaceIDs(ctx, documentID)
}
