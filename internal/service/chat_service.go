package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/ai"
	"github.com/seenlim/docchat/internal/config"
	"github.com/seenlim/docchat/internal/model"
	appErr "github.com/seenlim/docchat/internal/pkg/errors"
	"github.com/seenlim/docchat/internal/repo"
)

const defaultConversationTitle = "New Conversation"

type ChatService struct {
	convs      *repo.ConversationRepo
	msgs       *repo.MessageRepo
	segments   *repo.SegmentRepo
	workspaces *repo.WorkspaceRepo
	docs       *repo.DocumentRepo
	generator  ai.IGenerator
	embedder   ai.IEmbedder
	cfg        config.ChatConfig
}

func NewChatService(convs *repo.ConversationRepo, msgs *repo.MessageRepo, segments *repo.SegmentRepo,
	workspaces *repo.WorkspaceRepo, docs *repo.DocumentRepo, generator ai.IGenerator, embedder ai.IEmbedder, cfg config.ChatConfig) *ChatService {
	return &ChatService{
		convs:      convs,
		msgs:       msgs,
		segments:   segments,
		workspaces: workspaces,
		docs:       docs,
		generator:  generator,
		embedder:   embedder,
		cfg:        cfg,
	}
}

func (s *ChatService) CreateConversation(ctx context.Context, workspaceID int64, title string) (*model.Conversation, error) {
	if workspaceID > 0 {
		if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
			return nil, err
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}
	conv := &model.Conversation{
		WorkspaceID: workspaceID,
		Title:       title,
		Ctime:       time.Now().Unix(),
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, workspaceID int64) ([]model.Conversation, error) {
	return s.convs.List(ctx, workspaceID)
}

// GetConversation returns the conversation, its messages and the
// documents its citations reference. Documents deleted since the
// citation was stored are left out.
func (s *ChatService) GetConversation(ctx context.Context, id int64) (*model.Conversation, []model.Message, []model.Document, error) {
	conv, err := s.convs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	docs, err := s.referencedDocuments(ctx, msgs)
	if err != nil {
		return nil, nil, nil, err
	}
	return conv, msgs, docs, nil
}

func (s *ChatService) referencedDocuments(ctx context.Context, msgs []model.Message) ([]model.Document, error) {
	seen := make(map[int64]bool)
	docs := make([]model.Document, 0)
	for _, msg := range msgs {
		for _, cit := range msg.Citations {
			if cit.DocumentID <= 0 || seen[cit.DocumentID] {
				continue
			}
			seen[cit.DocumentID] = true
			doc, err := s.docs.GetByID(ctx, cit.DocumentID)
			if err != nil {
				if errors.Is(err, appErr.ErrNotFound) {
					continue
				}
				return nil, err
			}
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, id int64) error {
	return s.convs.Delete(ctx, id)
}

// SendMessage stores the user's message, optionally retrieves workspace
// context, asks the model, and stores the reply with its citations.
func (s *ChatService) SendMessage(ctx context.Context, conversationID int64, content string, useRAG bool) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.Int64("conversation_id", conversationID))

	history, err := s.msgs.ListRecent(ctx, conversationID, s.cfg.MaxHistory*2)
	if err != nil {
		return nil, err
	}
	firstExchange := len(history) == 0

	userMsg := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        content,
		Ctime:          time.Now().Unix(),
	}
	if err := s.msgs.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	var hits []model.SegmentHit
	if useRAG && conv.WorkspaceID > 0 {
		hits, err = s.retrieve(ctx, conv.WorkspaceID, content)
		if err != nil {
			if !errors.Is(err, ai.ErrUnavailable) {
				return nil, err
			}
			logger.Warn("retrieval skipped, embedder unavailable")
			hits = nil
		}
	}
	citations := citationsFromHits(hits)

	prompt := buildPrompt(history, hits, content)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, appErr.ErrAIUnavailable
		}
		return nil, err
	}

	assistantMsg := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
		Citations:      citations,
		Ctime:          time.Now().Unix(),
	}
	if err := s.msgs.Create(ctx, assistantMsg); err != nil {
		return nil, err
	}
	logger.Info("message answered", zap.Int("citations", len(citations)))

	if firstExchange && conv.Title == defaultConversationTitle {
		s.generateTitle(ctx, conversationID, content)
	}
	return assistantMsg, nil
}

// retrieve embeds the question and ranks workspace segments, keeping
// only hits at or above the score threshold.
func (s *ChatService) retrieve(ctx context.Context, workspaceID int64, question string) ([]model.SegmentHit, error) {
	embedding, err := s.embedder.Embed(ctx, question, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	hits, err := s.segments.Search(ctx, workspaceID, embedding, s.cfg.TopK)
	if err != nil {
		return nil, err
	}
	kept := hits[:0]
	for _, hit := range hits {
		if hit.Similarity >= s.cfg.ScoreThreshold {
			kept = append(kept, hit)
		}
	}
	return kept, nil
}

// citationsFromHits numbers retrieval hits 1..n in rank order. The
// indices match the context block numbering in the prompt, so a reply
// marker [N] resolves to its source segment.
func citationsFromHits(hits []model.SegmentHit) []model.Citation {
	citations := make([]model.Citation, 0, len(hits))
	for i, hit := range hits {
		citations = append(citations, model.Citation{
			Index:        i + 1,
			Text:         hit.Content,
			DocumentID:   hit.DocumentID,
			SegmentID:    hit.SegmentID,
			DocumentName: hit.DocumentName,
			Similarity:   hit.Similarity,
		})
	}
	return citations
}

func buildPrompt(history []model.Message, hits []model.SegmentHit, question string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the user's documents.\n")
	if len(hits) > 0 {
		b.WriteString("Use the numbered context below. When a statement comes from the context, cite it with its bracketed number, like [1].\n\nContext:\n")
		for i, hit := range hits {
			fmt.Fprintf(&b, "[%d] From document '%s':\n%s\n\n", i+1, hit.DocumentName, hit.Content)
		}
	} else {
		b.WriteString("No document context is available; answer from general knowledge.\n\n")
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", question)
	return b.String()
}

// generateTitle replaces the placeholder title after the first
// exchange. Failures only log; the conversation keeps its default.
func (s *ChatService) generateTitle(ctx context.Context, conversationID int64, firstMessage string) {
	title, err := s.generator.Generate(ctx,
		fmt.Sprintf("Write a title of at most five words for a conversation starting with: %q\nReply with the title only.", firstMessage))
	if err != nil {
		title = ""
	}
	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" {
		title = truncateTitle(firstMessage, 50)
	}
	if err := s.convs.UpdateTitle(ctx, conversationID, truncateTitle(title, 255)); err != nil {
		logutil.GetLogger(ctx).Warn("failed to update conversation title",
			zap.Int64("conversation_id", conversationID), zap.Error(err))
	}
}

func truncateTitle(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
