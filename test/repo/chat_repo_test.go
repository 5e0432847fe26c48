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

func TestMessageRepoCitations(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	convs := repo.NewConversationRepo(db)
	msgs := repo.NewMessageRepo(db)

	conv := &model.Conversation{Title: "cite-test", Ctime: time.Now().Unix()}
	require.NoError(t, convs.Create(ctx, conv))
	defer convs.Delete(ctx, conv.ID)

	user := &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        "what is the margin?",
		Ctime:          time.Now().Unix(),
	}
	require.NoError(t, msgs.Create(ctx, user))

	assistant := &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        "The margin is 12% [1].",
		Citations: []model.Citation{
			{Index: 1, Text: "margin was 12%", DocumentID: 7, SegmentID: 42, DocumentName: "report.pdf", Similarity: 0.91},
		},
		Ctime: time.Now().Unix() + 1,
	}
	require.NoError(t, msgs.Create(ctx, assistant))

	list, err := msgs.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, model.RoleUser, list[0].Role)
	require.Empty(t, list[0].Citations)
	require.Len(t, list[1].Citations, 1)
	require.Equal(t, 1, list[1].Citations[0].Index)
	require.Equal(t, int64(42), list[1].Citations[0].SegmentID)
	require.Equal(t, "report.pdf", list[1].Citations[0].DocumentName)
	require.InDelta(t, 0.91, list[1].Citations[0].Similarity, 0.0001)
}

func TestMessageRepoListRecentKeepsOrder(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	convs := repo.NewConversationRepo(db)
	msgs := repo.NewMessageRepo(db)

	conv := &model.Conversation{Title: "recent-test", Ctime: time.Now().Unix()}
	require.NoError(t, convs.Create(ctx, conv))
	defer convs.Delete(ctx, conv.ID)

	base := time.Now().Unix()
	for i := 0; i < 6; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.NoError(t, msgs.Create(ctx, &model.Message{
			ConversationID: conv.ID,
			Role:           role,
			Content:        string(rune('a' + i)),
			Ctime:          base + int64(i),
		}))
	}

	recent, err := msgs.ListRecent(ctx, conv.ID, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	// The window keeps the newest four, oldest first.
	require.Equal(t, "c", recent[0].Content)
	require.Equal(t, "f", recent[3].Content)
}

func TestConversationRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	convs := repo.NewConversationRepo(db)
	conv := &model.Conversation{Title: "lifecycle", Ctime: time.Now().Unix()}
	require.NoError(t, convs.Create(ctx, conv))

	require.NoError(t, convs.UpdateTitle(ctx, conv.ID, "renamed"))
	fetched, err := convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", fetched.Title)

	require.NoError(t, convs.Delete(ctx, conv.ID))
	_, err = convs.GetByID(ctx, conv.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
