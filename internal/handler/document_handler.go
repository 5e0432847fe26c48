package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seenlim/docchat/internal/pkg/errcode"
	"github.com/seenlim/docchat/internal/pkg/response"
	"github.com/seenlim/docchat/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file field required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot read upload")
		return
	}
	defer file.Close()
	doc, err := h.documents.Upload(c.Request.Context(), fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	allVersions := c.Query("all_versions") == "1"
	docs, err := h.documents.List(c.Request.Context(), allVersions)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Status(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	status, err := h.documents.Status(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	doc, rc, err := h.documents.Download(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalName))
	c.Header("Content-Type", doc.MimeType)
	c.Status(http.StatusOK)
	// Headers are already out; a copy failure here cannot be reported.
	_, _ = io.Copy(c.Writer, rc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

type linkWorkspacesRequest struct {
	DocumentIDs  []int64 `json:"document_ids"`
	WorkspaceIDs []int64 `json:"workspace_ids"`
}

func (h *DocumentHandler) LinkWorkspaces(c *gin.Context) {
	var req linkWorkspacesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.documents.LinkWorkspaces(c.Request.Context(), req.DocumentIDs, req.WorkspaceIDs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
