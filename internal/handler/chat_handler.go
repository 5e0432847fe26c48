package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seenlim/docchat/internal/citation"
	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/pkg/errcode"
	"github.com/seenlim/docchat/internal/pkg/response"
	"github.com/seenlim/docchat/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// messageView carries a stored message plus its content pre-rendered
// into display segments, so the front-end never parses [N] markers.
type messageView struct {
	model.Message
	Segments []citation.Segment `json:"segments"`
}

func viewMessage(msg model.Message) messageView {
	return messageView{
		Message:  msg,
		Segments: citation.Render(msg.Content, msg.Citations),
	}
}

func viewMessages(msgs []model.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, viewMessage(msg))
	}
	return views
}

type conversationRequest struct {
	WorkspaceID int64  `json:"workspace_id"`
	Title       string `json:"title"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	conv, err := h.chat.CreateConversation(c.Request.Context(), req.WorkspaceID, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conv)
}

func (h *ChatHandler) List(c *gin.Context) {
	workspaceID := int64(0)
	if value := c.Query("workspace_id"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			response.Error(c, errcode.ErrInvalid, "invalid workspace_id")
			return
		}
		workspaceID = parsed
	}
	list, err := h.chat.ListConversations(c.Request.Context(), workspaceID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *ChatHandler) Get(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	conv, msgs, docs, err := h.chat.GetConversation(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"conversation": conv, "messages": viewMessages(msgs), "documents": docs})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.chat.DeleteConversation(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, nil)
}

type sendMessageRequest struct {
	Message string `json:"message"`
	UseRAG  *bool  `json:"use_rag"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}
	msg, err := h.chat.SendMessage(c.Request.Context(), id, req.Message, useRAG)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, viewMessage(*msg))
}
