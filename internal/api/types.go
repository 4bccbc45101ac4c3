package api

// Request and response types for the document-chat backend.

// Attachment is a file sent alongside a message. Data is base64-encoded.
// The streaming core treats attachments as opaque.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type
	Size int64  `json:"size"`
	Data string `json:"data"`
}

// MessageRequest is the body for both the streaming and plain message
// endpoints. SessionID is empty for a brand-new conversation; the server
// then assigns one and reports it in the start frame.
type MessageRequest struct {
	Content   string       `json:"content"`
	SessionID string       `json:"session_id,omitempty"`
	Files     []Attachment `json:"files,omitempty"`
}

// MessageResponse is a persisted message as returned by the non-streaming
// endpoint and session detail lookups.
type MessageResponse struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	SourcesJSON string `json:"sources_json,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// SessionInfo is a server-side conversation record.
type SessionInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SessionDetail is a session with its full transcript.
type SessionDetail struct {
	SessionInfo
	Messages []MessageResponse `json:"messages"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

// DocumentUploadResponse acknowledges a processed upload.
type DocumentUploadResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	ChunkCount int    `json:"chunk_count"`
}
