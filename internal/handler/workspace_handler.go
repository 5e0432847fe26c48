package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seenlim/docchat/internal/pkg/errcode"
	"github.com/seenlim/docchat/internal/pkg/response"
	"github.com/seenlim/docchat/internal/service"
)

type WorkspaceHandler struct {
	workspaces *service.WorkspaceService
}

func NewWorkspaceHandler(workspaces *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

type workgroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *WorkspaceHandler) CreateGroup(c *gin.Context) {
	var req workgroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	group, err := h.workspaces.CreateGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, group)
}

func (h *WorkspaceHandler) ListGroups(c *gin.Context) {
	groups, err := h.workspaces.ListGroups(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, groups)
}

func (h *WorkspaceHandler) UpdateGroup(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	var req workgroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	group, err := h.workspaces.UpdateGroup(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, group)
}

func (h *WorkspaceHandler) DeleteGroup(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.workspaces.DeleteGroup(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

type workspaceRequest struct {
	GroupID     int64  `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ws, err := h.workspaces.Create(c.Request.Context(), req.GroupID, req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ws)
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	groupID := int64(0)
	if value := c.Query("group_id"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			response.Error(c, errcode.ErrInvalid, "invalid group_id")
			return
		}
		groupID = parsed
	}
	list, err := h.workspaces.List(c.Request.Context(), groupID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *WorkspaceHandler) Update(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ws, err := h.workspaces.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ws)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.workspaces.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}
