package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/ai"
	"github.com/seenlim/docchat/internal/extract"
	"github.com/seenlim/docchat/internal/filestore"
	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
	"github.com/seenlim/docchat/internal/splitter"
)

// ProcessService drives documents through the pipeline:
// pending -> processing -> processed | error. It is the only writer
// that moves a document out of pending, and terminal statuses are
// never reset.
type ProcessService struct {
	docs          *repo.DocumentRepo
	segments      *repo.SegmentRepo
	store         filestore.Store
	embedder      ai.IEmbedder
	splitCfg      splitter.Config
	maxInputChars int
}

func NewProcessService(docs *repo.DocumentRepo, segments *repo.SegmentRepo, store filestore.Store,
	embedder ai.IEmbedder, splitCfg splitter.Config, maxInputChars int) *ProcessService {
	return &ProcessService{
		docs:          docs,
		segments:      segments,
		store:         store,
		embedder:      embedder,
		splitCfg:      splitCfg,
		maxInputChars: maxInputChars,
	}
}

// ProcessBatch claims up to batch pending documents and processes them
// sequentially. A failed document is marked error and does not stop
// the rest of the batch.
func (s *ProcessService) ProcessBatch(ctx context.Context, batch int) (int, error) {
	pending, err := s.docs.ListPending(ctx, uint(batch))
	if err != nil {
		return 0, err
	}
	processed := 0
	for i := range pending {
		ok, err := s.claimAndProcess(ctx, &pending[i])
		if err != nil {
			return processed, err
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

// ProcessOne claims and processes a single pending document, for
// callers that drive the pipeline directly instead of via the job.
func (s *ProcessService) ProcessOne(ctx context.Context, id int64) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.claimAndProcess(ctx, doc)
	return err
}

func (s *ProcessService) claimAndProcess(ctx context.Context, doc *model.Document) (bool, error) {
	if err := s.docs.Claim(ctx, doc.ID, model.DocumentStatusPending, model.DocumentStatusProcessing); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	if err := s.processDocument(ctx, doc); err != nil {
		logutil.GetLogger(ctx).Error("document processing failed",
			zap.Int64("document_id", doc.ID), zap.Error(err))
		if sErr := s.docs.Finish(ctx, doc.ID, model.DocumentStatusError, err.Error()); sErr != nil {
			logutil.GetLogger(ctx).Error("failed to mark document error",
				zap.Int64("document_id", doc.ID), zap.Error(sErr))
		}
		return false, nil
	}
	if err := s.docs.Finish(ctx, doc.ID, model.DocumentStatusProcessed, ""); err != nil {
		// The stale sweep got there first; its error status stands.
		if errors.Is(err, appErr.ErrConflict) {
			logutil.GetLogger(ctx).Warn("document already finalized, keeping existing status",
				zap.Int64("document_id", doc.ID))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ProcessService) processDocument(ctx context.Context, doc *model.Document) error {
	logger := logutil.GetLogger(ctx).With(zap.Int64("document_id", doc.ID), zap.String("name", doc.OriginalName))
	rc, err := s.store.Open(ctx, doc.FileKey)
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read stored file: %w", err)
	}
	content, err := extract.Text(data, doc.MimeType)
	if err != nil {
		return err
	}
	if s.maxInputChars > 0 && len(content) > s.maxInputChars {
		logger.Warn("document content truncated", zap.Int("limit", s.maxInputChars), zap.Int("size", len(content)))
		content = truncateUTF8(content, s.maxInputChars)
	}
	pieces := splitter.Split(content, doc.MimeType, s.splitCfg)
	if len(pieces) == 0 {
		return appErr.ErrEmptyDocument
	}
	// Reprocessing a stuck document must not duplicate segments.
	if err := s.segments.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	now := time.Now().Unix()
	for i, piece := range pieces {
		seg := &model.DocumentSegment{
			DocumentID: doc.ID,
			Position:   i,
			Content:    piece,
			WordCount:  len(strings.Fields(piece)),
			Tokens:     estimateTokens(piece),
			Ctime:      now,
		}
		if err := s.segments.Create(ctx, seg); err != nil {
			return err
		}
		embedding, err := s.embedder.Embed(ctx, piece, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return fmt.Errorf("embed segment %d: %w", i, err)
		}
		if err := s.segments.SetEmbedding(ctx, seg.ID, embedding); err != nil {
			return err
		}
	}
	logger.Info("document processed", zap.Int("segments", len(pieces)))
	return nil
}

// MarkStale fails documents stuck in processing longer than maxAge.
func (s *ProcessService) MarkStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	return s.docs.MarkStaleProcessing(ctx, cutoff)
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func estimateTokens(s string) int {
	// Rough heuristic, close enough for progress reporting.
	return (len(s) + 3) / 4
}
