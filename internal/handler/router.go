package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Workspaces *WorkspaceHandler
	Documents  *DocumentHandler
	Chat       *ChatHandler

	// UploadMiddleware is applied to the upload endpoint only.
	UploadMiddleware []gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/workgroups", deps.Workspaces.ListGroups)
	api.POST("/workgroups", deps.Workspaces.CreateGroup)
	api.PUT("/workgroups/:id", deps.Workspaces.UpdateGroup)
	api.DELETE("/workgroups/:id", deps.Workspaces.DeleteGroup)

	api.GET("/workspaces", deps.Workspaces.List)
	api.POST("/workspaces", deps.Workspaces.Create)
	api.PUT("/workspaces/:id", deps.Workspaces.Update)
	api.DELETE("/workspaces/:id", deps.Workspaces.Delete)

	upload := append([]gin.HandlerFunc{}, deps.UploadMiddleware...)
	upload = append(upload, deps.Documents.Upload)
	api.POST("/documents/upload", upload...)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id/status", deps.Documents.Status)
	api.GET("/documents/:id/download", deps.Documents.Download)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/link-workspaces", deps.Documents.LinkWorkspaces)

	api.GET("/conversations", deps.Chat.List)
	api.POST("/conversations", deps.Chat.Create)
	api.GET("/conversations/:id", deps.Chat.Get)
	api.DELETE("/conversations/:id", deps.Chat.Delete)
	api.POST("/conversations/:id/messages", deps.Chat.SendMessage)
}
