package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusProcessed  = "processed"
	DocumentStatusError      = "error"
)

// IsTerminalStatus reports whether a document has left the processing
// pipeline. Once terminal, a document's status never changes again;
// re-uploading the same file creates a new version instead.
func IsTerminalStatus(status string) bool {
	return status == DocumentStatusProcessed || status == DocumentStatusError
}

type Document struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	FileKey      string `json:"-"`
	FileHash     string `json:"file_hash"`
	Version      int    `json:"version"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Ctime        int64  `json:"ctime"`
	// Mtime tracks the last status transition, not the upload time.
	Mtime int64 `json:"mtime"`
}

type DocumentSegment struct {
	ID           int64     `json:"id"`
	DocumentID   int64     `json:"document_id"`
	Position     int       `json:"position"`
	Content      string    `json:"content"`
	WordCount    int       `json:"word_count"`
	Tokens       int       `json:"tokens"`
	Embedding    []float32 `json:"-"`
	HasEmbedding bool      `json:"has_embedding"`
	Ctime        int64     `json:"ctime"`
}

type DocumentWorkspace struct {
	DocumentID  int64 `json:"document_id"`
	WorkspaceID int64 `json:"workspace_id"`
	Ctime       int64 `json:"ctime"`
}

// SegmentHit is one retrieval result: a stored segment joined with its
// document, scored by cosine similarity against a query embedding.
type SegmentHit struct {
	SegmentID    int64   `json:"segment_id"`
	DocumentID   int64   `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// DocumentStatus is the wire shape of GET /documents/:id/status. The
// segment counters let a client show embedding progress while the
// document is still non-terminal.
type DocumentStatus struct {
	Status                 string `json:"status"`
	Error                  string `json:"error,omitempty"`
	Name                   string `json:"name"`
	MimeType               string `json:"mime_type"`
	Segments               int    `json:"segments"`
	SegmentsWithEmbeddings int    `json:"segments_with_embeddings"`
	CreatedAt              string `json:"created_at,omitempty"`
}
