package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
	"github.com/seenlim/docchat/test/testutil"
)

func newTestDocument(name, hash string, version int) *model.Document {
	now := time.Now().Unix()
	return &model.Document{
		Name:         name,
		OriginalName: name,
		MimeType:     "text/plain",
		Size:         12,
		FileKey:      name + "_key",
		FileHash:     hash,
		Version:      version,
		Status:       model.DocumentStatusPending,
		Ctime:        now,
		Mtime:        now,
	}
}

func TestDocumentRepoVersioning(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	version, err := docs.NextVersion(ctx, "hash-v", "versioned.txt")
	require.NoError(t, err)
	require.Equal(t, 1, version)

	doc := newTestDocument("versioned.txt", "hash-v", version)
	require.NoError(t, docs.Create(ctx, doc))
	require.NotZero(t, doc.ID)
	defer docs.Delete(ctx, doc.ID)

	version, err = docs.NextVersion(ctx, "hash-v", "versioned.txt")
	require.NoError(t, err)
	require.Equal(t, 2, version)

	// A different name with the same bytes starts its own version line.
	version, err = docs.NextVersion(ctx, "hash-v", "renamed.txt")
	require.NoError(t, err)
	require.Equal(t, 1, version)
}

func TestDocumentRepoClaimIsExclusive(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	doc := newTestDocument("claim.txt", "hash-c", 1)
	require.NoError(t, docs.Create(ctx, doc))
	defer docs.Delete(ctx, doc.ID)

	require.NoError(t, docs.Claim(ctx, doc.ID, model.DocumentStatusPending, model.DocumentStatusProcessing))
	err := docs.Claim(ctx, doc.ID, model.DocumentStatusPending, model.DocumentStatusProcessing)
	require.ErrorIs(t, err, appErr.ErrConflict)

	require.NoError(t, docs.Finish(ctx, doc.ID, model.DocumentStatusProcessed, ""))
	fetched, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusProcessed, fetched.Status)

	// Terminal statuses are final; another Finish finds nothing to move.
	require.ErrorIs(t, docs.Finish(ctx, doc.ID, model.DocumentStatusError, "late"), appErr.ErrConflict)
}

func TestDocumentRepoStaleSweepKeyedOnClaimTime(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	// Uploaded long ago but only just claimed: the sweep must leave it
	// alone, however old the upload is.
	fresh := newTestDocument("fresh-claim.txt", "hash-sw1", 1)
	fresh.Ctime = time.Now().Add(-48 * time.Hour).Unix()
	fresh.Mtime = fresh.Ctime
	require.NoError(t, docs.Create(ctx, fresh))
	defer docs.Delete(ctx, fresh.ID)
	require.NoError(t, docs.Claim(ctx, fresh.ID, model.DocumentStatusPending, model.DocumentStatusProcessing))

	cutoff := time.Now().Add(-time.Hour).Unix()
	n, err := docs.MarkStaleProcessing(ctx, cutoff)
	require.NoError(t, err)
	require.Zero(t, n)

	fetched, err := docs.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusProcessing, fetched.Status)
	require.Greater(t, fetched.Mtime, fetched.Ctime)
}

func TestDocumentRepoStaleSweepWinsOverLateWorker(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	stuck := newTestDocument("stuck.txt", "hash-sw2", 1)
	stuck.Status = model.DocumentStatusProcessing
	stuck.Mtime = time.Now().Add(-2 * time.Hour).Unix()
	require.NoError(t, docs.Create(ctx, stuck))
	defer docs.Delete(ctx, stuck.ID)

	cutoff := time.Now().Add(-time.Hour).Unix()
	n, err := docs.MarkStaleProcessing(ctx, cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// A worker finishing after the sweep cannot overwrite the error.
	require.ErrorIs(t, docs.Finish(ctx, stuck.ID, model.DocumentStatusProcessed, ""), appErr.ErrConflict)

	fetched, err := docs.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusError, fetched.Status)
	require.Equal(t, "processing timed out", fetched.Error)
}

func TestDocumentRepoListLatest(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	v1 := newTestDocument("latest.txt", "hash-l", 1)
	require.NoError(t, docs.Create(ctx, v1))
	defer docs.Delete(ctx, v1.ID)
	v2 := newTestDocument("latest.txt", "hash-l", 2)
	require.NoError(t, docs.Create(ctx, v2))
	defer docs.Delete(ctx, v2.ID)

	latest, err := docs.ListLatest(ctx)
	require.NoError(t, err)
	seen := 0
	for _, doc := range latest {
		if doc.FileHash == "hash-l" && doc.OriginalName == "latest.txt" {
			seen++
			require.Equal(t, 2, doc.Version)
		}
	}
	require.Equal(t, 1, seen)
}

func TestDocumentRepoNotFound(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	docs := repo.NewDocumentRepo(db)
	ctx := context.Background()

	_, err := docs.GetByID(ctx, 1<<60)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, docs.Delete(ctx, 1<<60), appErr.ErrNotFound)
	require.ErrorIs(t, docs.Finish(ctx, 1<<60, model.DocumentStatusError, "x"), appErr.ErrConflict)
}
