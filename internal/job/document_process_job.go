package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/service"
)

type DocumentProcessJob struct {
	process *service.ProcessService
	batch   int
}

func NewDocumentProcessJob(process *service.ProcessService, batch int) *DocumentProcessJob {
	return &DocumentProcessJob{process: process, batch: batch}
}

func (j *DocumentProcessJob) Name() string {
	return "document_process"
}

func (j *DocumentProcessJob) Run(ctx context.Context) error {
	if j.process == nil {
		return nil
	}
	processed, err := j.process.ProcessBatch(ctx, j.batch)
	if processed > 0 {
		logutil.GetLogger(ctx).Info("documents processed", zap.Int("count", processed))
	}
	return err
}
