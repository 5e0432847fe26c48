package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/service"
)

// StaleDocumentJob fails documents that a crashed or interrupted
// worker left in processing.
type StaleDocumentJob struct {
	process *service.ProcessService
	maxAge  time.Duration
}

func NewStaleDocumentJob(process *service.ProcessService, maxAge time.Duration) *StaleDocumentJob {
	return &StaleDocumentJob{process: process, maxAge: maxAge}
}

func (j *StaleDocumentJob) Name() string {
	return "stale_document_cleanup"
}

func (j *StaleDocumentJob) Run(ctx context.Context) error {
	if j.process == nil || j.maxAge <= 0 {
		return nil
	}
	count, err := j.process.MarkStale(ctx, j.maxAge)
	if err != nil {
		return err
	}
	if count > 0 {
		logutil.GetLogger(ctx).Warn("stale processing documents failed", zap.Int64("count", count))
	}
	return nil
}
