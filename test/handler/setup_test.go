package handler_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/seenlim/docchat/internal/config"
	"github.com/seenlim/docchat/internal/filestore"
	"github.com/seenlim/docchat/internal/handler"
	"github.com/seenlim/docchat/internal/middleware"
	"github.com/seenlim/docchat/internal/repo"
	"github.com/seenlim/docchat/internal/service"
	"github.com/seenlim/docchat/internal/splitter"
	"github.com/seenlim/docchat/test/testutil"
)

// fakeGenerator returns a canned answer that cites the first context
// block.
type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Based on the documents, yes [1].", nil
}

// fakeEmbedder maps any text to a deterministic unit-ish vector so
// identical texts always land close together.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	emb := make([]float32, 768)
	for i := 0; i < 8; i++ {
		bits := binary.BigEndian.Uint32(sum[i*4 : i*4+4])
		// Small per-text jitter on a shared dominant axis keeps any
		// two texts above the retrieval score threshold.
		emb[i] = float32(bits%1000) / 10000.0
	}
	emb[0] = 1
	return emb, nil
}

func (fakeEmbedder) ModelName() string {
	return "fake-embedder"
}

type testEnv struct {
	handler http.Handler
	process *service.ProcessService
}

func setupRouter(t *testing.T) (*testEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	groupRepo := repo.NewWorkgroupRepo(db)
	workspaceRepo := repo.NewWorkspaceRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	segmentRepo := repo.NewSegmentRepo(db)
	linkRepo := repo.NewDocumentWorkspaceRepo(db)
	convRepo := repo.NewConversationRepo(db)
	msgRepo := repo.NewMessageRepo(db)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	chatCfg := config.ChatConfig{TopK: 3, ScoreThreshold: 0.5, MaxHistory: 5}
	splitCfg := splitter.DefaultConfig()

	workspaceService := service.NewWorkspaceService(groupRepo, workspaceRepo)
	documentService := service.NewDocumentService(docRepo, segmentRepo, linkRepo, workspaceRepo, store, 20*1024*1024)
	processService := service.NewProcessService(docRepo, segmentRepo, store, fakeEmbedder{}, splitCfg, 100000)
	chatService := service.NewChatService(convRepo, msgRepo, segmentRepo, workspaceRepo, docRepo, fakeGenerator{}, fakeEmbedder{}, chatCfg)

	deps := handler.RouterDeps{
		Workspaces: handler.NewWorkspaceHandler(workspaceService),
		Documents:  handler.NewDocumentHandler(documentService),
		Chat:       handler.NewChatHandler(chatService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return &testEnv{handler: engine, process: processService}, cleanup
}

type envelope struct {
	Code    uint32          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}, out interface{}) *envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil && env.Code == 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return &env
}

func (e *testEnv) uploadFile(t *testing.T, name, content string, out interface{}) *envelope {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil && env.Code == 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return &env
}

func (e *testEnv) rawGet(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func pathID(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
