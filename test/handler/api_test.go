package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seenlim/docchat/internal/citation"
	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/errcode"
)

func TestWorkgroupAndWorkspaceFlow(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	var group model.Workgroup
	res := env.doJSON(t, http.MethodPost, "/api/v1/workgroups", map[string]interface{}{
		"name": "research", "description": "research docs",
	}, &group)
	require.Zero(t, res.Code)
	require.NotZero(t, group.ID)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/workgroups/%d", group.ID), nil, nil)

	var ws model.Workspace
	res = env.doJSON(t, http.MethodPost, "/api/v1/workspaces", map[string]interface{}{
		"name": "papers", "group_id": group.ID,
	}, &ws)
	require.Zero(t, res.Code)
	require.Equal(t, group.ID, ws.GroupID)

	var list []model.Workspace
	res = env.doJSON(t, http.MethodGet, pathID("/api/v1/workspaces?group_id=%d", group.ID), nil, &list)
	require.Zero(t, res.Code)
	require.Len(t, list, 1)
	require.Equal(t, "papers", list[0].Name)

	var updated model.Workspace
	res = env.doJSON(t, http.MethodPut, pathID("/api/v1/workspaces/%d", ws.ID), map[string]interface{}{
		"name": "papers-2026",
	}, &updated)
	require.Zero(t, res.Code)
	require.Equal(t, "papers-2026", updated.Name)

	res = env.doJSON(t, http.MethodDelete, pathID("/api/v1/workspaces/%d", ws.ID), nil, nil)
	require.Zero(t, res.Code)
}

func TestWorkgroupValidation(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	res := env.doJSON(t, http.MethodPost, "/api/v1/workgroups", map[string]interface{}{"name": "  "}, nil)
	require.EqualValues(t, errcode.ErrInvalid, res.Code)

	// Workspace creation requires an existing group.
	res = env.doJSON(t, http.MethodPost, "/api/v1/workspaces", map[string]interface{}{
		"name": "orphan", "group_id": 1 << 60,
	}, nil)
	require.EqualValues(t, errcode.ErrNotFound, res.Code)
}

func TestDocumentUploadProcessAndStatus(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	content := strings.Repeat("The quarterly revenue grew by twelve percent compared to last year. ", 10)
	var doc model.Document
	res := env.uploadFile(t, "report.txt", content, &doc)
	require.Zero(t, res.Code)
	require.Equal(t, model.DocumentStatusPending, doc.Status)
	require.Equal(t, 1, doc.Version)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/documents/%d", doc.ID), nil, nil)

	var status model.DocumentStatus
	res = env.doJSON(t, http.MethodGet, pathID("/api/v1/documents/%d/status", doc.ID), nil, &status)
	require.Zero(t, res.Code)
	require.Equal(t, model.DocumentStatusPending, status.Status)
	require.Zero(t, status.Segments)

	require.NoError(t, env.process.ProcessOne(context.Background(), doc.ID))

	res = env.doJSON(t, http.MethodGet, pathID("/api/v1/documents/%d/status", doc.ID), nil, &status)
	require.Zero(t, res.Code)
	require.Equal(t, model.DocumentStatusProcessed, status.Status)
	require.Greater(t, status.Segments, 0)
	require.Equal(t, status.Segments, status.SegmentsWithEmbeddings)

	rec := env.rawGet(t, pathID("/api/v1/documents/%d/download", doc.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "report.txt")
	require.Equal(t, content, rec.Body.String())
}

func TestDocumentUploadNewVersion(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	content := "same bytes every time"
	var first, second model.Document
	require.Zero(t, env.uploadFile(t, "dup.txt", content, &first).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/documents/%d", first.ID), nil, nil)
	require.Zero(t, env.uploadFile(t, "dup.txt", content, &second).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/documents/%d", second.ID), nil, nil)

	require.Equal(t, 1, first.Version)
	require.Equal(t, 2, second.Version)
	require.Equal(t, first.FileHash, second.FileHash)
}

func TestDocumentUploadUnsupportedType(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	res := env.uploadFile(t, "binary.exe", "MZ....", nil)
	require.EqualValues(t, errcode.ErrInvalidFile, res.Code)
}

func TestChatFlowWithCitations(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	var group model.Workgroup
	require.Zero(t, env.doJSON(t, http.MethodPost, "/api/v1/workgroups", map[string]interface{}{"name": "chat-g"}, &group).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/workgroups/%d", group.ID), nil, nil)
	var ws model.Workspace
	require.Zero(t, env.doJSON(t, http.MethodPost, "/api/v1/workspaces", map[string]interface{}{"name": "chat-ws", "group_id": group.ID}, &ws).Code)

	var doc model.Document
	require.Zero(t, env.uploadFile(t, "facts.txt", strings.Repeat("Revenue grew twelve percent in the last quarter of the year. ", 5), &doc).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/documents/%d", doc.ID), nil, nil)
	require.NoError(t, env.process.ProcessOne(context.Background(), doc.ID))

	require.Zero(t, env.doJSON(t, http.MethodPost, "/api/v1/documents/link-workspaces", map[string]interface{}{
		"document_ids": []int64{doc.ID}, "workspace_ids": []int64{ws.ID},
	}, nil).Code)

	var conv model.Conversation
	require.Zero(t, env.doJSON(t, http.MethodPost, "/api/v1/conversations", map[string]interface{}{
		"workspace_id": ws.ID,
	}, &conv).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/conversations/%d", conv.ID), nil, nil)

	type messageView struct {
		model.Message
		Segments []citation.Segment `json:"segments"`
	}

	var reply messageView
	require.Zero(t, env.doJSON(t, http.MethodPost, pathID("/api/v1/conversations/%d/messages", conv.ID), map[string]interface{}{
		"message": "how did revenue do?",
	}, &reply).Code)
	require.Equal(t, model.RoleAssistant, reply.Role)
	require.NotEmpty(t, reply.Citations)
	require.Equal(t, 1, reply.Citations[0].Index)
	require.Equal(t, doc.ID, reply.Citations[0].DocumentID)

	// The reply comes back pre-rendered: segments concatenate to the
	// stored content and the [1] marker resolves to its citation.
	require.NotEmpty(t, reply.Segments)
	var joined string
	var cited *model.Citation
	for _, seg := range reply.Segments {
		joined += seg.Text
		if seg.Citation != nil {
			cited = seg.Citation
		}
	}
	require.Equal(t, reply.Content, joined)
	require.NotNil(t, cited)
	require.Equal(t, doc.ID, cited.DocumentID)

	var detail struct {
		Conversation model.Conversation `json:"conversation"`
		Messages     []messageView      `json:"messages"`
		Documents    []model.Document   `json:"documents"`
	}
	require.Zero(t, env.doJSON(t, http.MethodGet, pathID("/api/v1/conversations/%d", conv.ID), nil, &detail).Code)
	require.Len(t, detail.Messages, 2)
	require.Equal(t, model.RoleUser, detail.Messages[0].Role)
	require.NotEmpty(t, detail.Messages[1].Segments)
	require.Len(t, detail.Documents, 1)
	require.Equal(t, doc.ID, detail.Documents[0].ID)
}

func TestChatWithoutWorkspaceHasNoCitations(t *testing.T) {
	env, cleanup := setupRouter(t)
	defer cleanup()

	var conv model.Conversation
	require.Zero(t, env.doJSON(t, http.MethodPost, "/api/v1/conversations", map[string]interface{}{}, &conv).Code)
	defer env.doJSON(t, http.MethodDelete, pathID("/api/v1/conversations/%d", conv.ID), nil, nil)

	var reply model.Message
	require.Zero(t, env.doJSON(t, http.MethodPost, pathID("/api/v1/conversations/%d/messages", conv.ID), map[string]interface{}{
		"message": "hello there",
	}, &reply).Code)
	require.Empty(t, reply.Citations)
	require.NotEmpty(t, reply.Content)
}
