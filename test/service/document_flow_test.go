package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seenlim/docchat/internal/config"
	"github.com/seenlim/docchat/internal/filestore"
	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
	"github.com/seenlim/docchat/internal/service"
	"github.com/seenlim/docchat/internal/splitter"
	"github.com/seenlim/docchat/test/testutil"
)

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	emb := make([]float32, 768)
	emb[0] = 1
	return emb, nil
}

func (staticEmbedder) ModelName() string {
	return "static"
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return nil, context.DeadlineExceeded
}

func (failingEmbedder) ModelName() string {
	return "failing"
}

func newDocumentStack(t *testing.T) (*service.DocumentService, *repo.DocumentRepo, *repo.SegmentRepo, filestore.Store, func()) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	docRepo := repo.NewDocumentRepo(db)
	segmentRepo := repo.NewSegmentRepo(db)
	linkRepo := repo.NewDocumentWorkspaceRepo(db)
	workspaceRepo := repo.NewWorkspaceRepo(db)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	docs := service.NewDocumentService(docRepo, segmentRepo, linkRepo, workspaceRepo, store, 1024*1024)
	return docs, docRepo, segmentRepo, store, cleanup
}

func TestDocumentServiceUploadStoresAndVersions(t *testing.T) {
	docs, docRepo, _, store, cleanup := newDocumentStack(t)
	defer cleanup()
	ctx := context.Background()

	first, err := docs.Upload(ctx, "memo.txt", "text/plain", strings.NewReader("memo body"))
	require.NoError(t, err)
	defer docRepo.Delete(ctx, first.ID)
	require.Equal(t, model.DocumentStatusPending, first.Status)
	require.Equal(t, 1, first.Version)
	require.Len(t, first.FileHash, 64)

	rc, err := store.Open(ctx, first.FileKey)
	require.NoError(t, err)
	rc.Close()

	second, err := docs.Upload(ctx, "memo.txt", "text/plain", strings.NewReader("memo body"))
	require.NoError(t, err)
	defer docRepo.Delete(ctx, second.ID)
	require.Equal(t, 2, second.Version)
	require.Contains(t, second.Name, "(v2)")
}

func TestDocumentServiceUploadRejectsBadInput(t *testing.T) {
	docs, _, _, _, cleanup := newDocumentStack(t)
	defer cleanup()
	ctx := context.Background()

	_, err := docs.Upload(ctx, "tool.exe", "application/octet-stream", strings.NewReader("MZ"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedFile)

	_, err = docs.Upload(ctx, "empty.txt", "text/plain", strings.NewReader(""))
	require.ErrorIs(t, err, appErr.ErrEmptyDocument)

	_, err = docs.Upload(ctx, "", "text/plain", strings.NewReader("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProcessServiceMarksErrorOnEmbedFailure(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	docRepo := repo.NewDocumentRepo(db)
	segmentRepo := repo.NewSegmentRepo(db)
	linkRepo := repo.NewDocumentWorkspaceRepo(db)
	workspaceRepo := repo.NewWorkspaceRepo(db)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	docs := service.NewDocumentService(docRepo, segmentRepo, linkRepo, workspaceRepo, store, 1024*1024)
	doc, err := docs.Upload(ctx, "doomed.txt", "text/plain", strings.NewReader("some content to process"))
	require.NoError(t, err)
	defer docRepo.Delete(ctx, doc.ID)

	process := service.NewProcessService(docRepo, segmentRepo, store, failingEmbedder{}, splitter.DefaultConfig(), 100000)
	require.NoError(t, process.ProcessOne(ctx, doc.ID))

	fetched, err := docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusError, fetched.Status)
	require.NotEmpty(t, fetched.Error)
}

func TestProcessServiceProcessesPending(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	docRepo := repo.NewDocumentRepo(db)
	segmentRepo := repo.NewSegmentRepo(db)
	linkRepo := repo.NewDocumentWorkspaceRepo(db)
	workspaceRepo := repo.NewWorkspaceRepo(db)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	docs := service.NewDocumentService(docRepo, segmentRepo, linkRepo, workspaceRepo, store, 1024*1024)
	doc, err := docs.Upload(ctx, "ok.txt", "text/plain",
		strings.NewReader(strings.Repeat("A perfectly ordinary sentence about documents. ", 20)))
	require.NoError(t, err)
	defer docRepo.Delete(ctx, doc.ID)

	process := service.NewProcessService(docRepo, segmentRepo, store, staticEmbedder{}, splitter.DefaultConfig(), 100000)
	require.NoError(t, process.ProcessOne(ctx, doc.ID))

	fetched, err := docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusProcessed, fetched.Status)

	total, embedded, err := segmentRepo.CountByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Greater(t, total, 0)
	require.Equal(t, total, embedded)
}
