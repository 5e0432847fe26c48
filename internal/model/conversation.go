package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id,omitempty"`
	Title       string `json:"title"`
	Ctime       int64  `json:"ctime"`
}

type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	Citations      []Citation `json:"citations"`
	Ctime          int64      `json:"ctime"`
}

// Citation ties a bracketed marker in assistant message content back to
// the document segment it was retrieved from. Index is 1-based and
// unique within a message.
type Citation struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	DocumentID   int64   `json:"document_id"`
	SegmentID    int64   `json:"segment_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Similarity   float64 `json:"similarity"`
}
