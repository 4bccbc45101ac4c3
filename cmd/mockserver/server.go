package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/youruser/docchat/internal/api"
	"github.com/youruser/docchat/internal/stream"
)

// server is an in-memory stand-in for the document-chat backend, good
// enough to develop and demo the client without the real service.
type server struct {
	chunkDelay time.Duration

	mu        sync.Mutex
	sessions  map[string]*mockSession
	order     []string
	documents []api.DocumentInfo
	cancelled map[string]bool
}

type mockSession struct {
	info     api.SessionInfo
	messages []api.MessageResponse
}

func newServer(chunkDelay time.Duration) *server {
	return &server{
		chunkDelay: chunkDelay,
		sessions:   make(map[string]*mockSession),
		cancelled:  make(map[string]bool),
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/message/stream", s.handleStream)
		r.Post("/message/cancel/{streamID}", s.handleCancel)
		r.Post("/message", s.handleMessage)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
	})
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Post("/upload", s.handleUpload)
		r.Delete("/{documentID}", s.handleDeleteDocument)
	})
	return r
}

// handleStream answers a message as a frame feed: start, one chunk per
// word, then done. A cancel notice for the stream handle stops the feed
// between chunks.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req api.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sess, created := s.resolveSession(req.SessionID, req.Content)
	if sess == nil {
		writeFrame(w, flusher, stream.Frame{Type: stream.FrameError, Message: "session not found"})
		return
	}
	streamID := uuid.NewString()

	start := stream.Frame{Type: stream.FrameStart, StreamID: streamID}
	if created {
		start.SessionID = sess.info.ID
	}
	writeFrame(w, flusher, start)

	s.appendMessage(sess, "user", req.Content, "")

	answer := cannedAnswer(req.Content)
	var sent strings.Builder
	finished := true
	for _, word := range splitChunks(answer) {
		if s.isCancelled(streamID) {
			finished = false
			break
		}
		writeFrame(w, flusher, stream.Frame{Type: stream.FrameChunk, Content: word})
		sent.WriteString(word)
		if s.chunkDelay > 0 {
			time.Sleep(s.chunkDelay)
		}
	}

	if !finished {
		// The client has already stopped reading; nothing else to send.
		return
	}

	sources := s.fakeSources()
	sourcesJSON, _ := json.Marshal(sources)
	msg := s.appendMessage(sess, "assistant", sent.String(), string(sourcesJSON))

	writeFrame(w, flusher, stream.Frame{
		Type:      stream.FrameDone,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
		Sources:   sources,
	})
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	s.mu.Lock()
	s.cancelled[streamID] = true
	s.mu.Unlock()
	writeJSON(w, map[string]string{"message": "cancelled"})
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req api.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, _ := s.resolveSession(req.SessionID, req.Content)
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.appendMessage(sess, "user", req.Content, "")

	sourcesJSON, _ := json.Marshal(s.fakeSources())
	msg := s.appendMessage(sess, "assistant", cannedAnswer(req.Content), string(sourcesJSON))
	writeJSON(w, msg)
}

func (s *server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	infos := make([]api.SessionInfo, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		infos = append(infos, s.sessions[s.order[i]].info)
	}
	s.mu.Unlock()
	writeJSON(w, infos)
}

func (s *server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.createSession("")
	writeJSON(w, sess.info)
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	var detail api.SessionDetail
	if ok {
		detail = api.SessionDetail{SessionInfo: sess.info, Messages: sess.messages}
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"message": "Session deleted"})
}

func (s *server) handleListDocuments(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	docs := make([]api.DocumentInfo, len(s.documents))
	copy(docs, s.documents)
	s.mu.Unlock()
	writeJSON(w, docs)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := header.Filename
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "pdf", "txt", "md", "docx":
	default:
		http.Error(w, "File type not supported. Allowed: pdf, txt, md, docx", http.StatusBadRequest)
		return
	}

	size, _ := io.Copy(io.Discard, file)
	doc := api.DocumentInfo{
		ID:         uuid.NewString(),
		Name:       name,
		FileType:   ext,
		FileSize:   size,
		ChunkCount: int(size/500) + 1,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	s.documents = append(s.documents, doc)
	s.mu.Unlock()

	writeJSON(w, api.DocumentUploadResponse{
		ID:         doc.ID,
		Name:       doc.Name,
		Message:    "Document uploaded and processed successfully",
		ChunkCount: doc.ChunkCount,
	})
}

func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	s.mu.Lock()
	found := false
	for i, doc := range s.documents {
		if doc.ID == id {
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"message": "Document deleted"})
}

func (s *server) resolveSession(id, firstMessage string) (*mockSession, bool) {
	if id == "" {
		return s.createSession(firstMessage), true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], false
}

func (s *server) createSession(title string) *mockSession {
	if len(title) > 50 {
		title = title[:50]
	}
	sess := &mockSession{info: api.SessionInfo{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}}
	s.mu.Lock()
	s.sessions[sess.info.ID] = sess
	s.order = append(s.order, sess.info.ID)
	s.mu.Unlock()
	return sess
}

func (s *server) appendMessage(sess *mockSession, role, content, sourcesJSON string) api.MessageResponse {
	msg := api.MessageResponse{
		ID:          uuid.NewString(),
		SessionID:   sess.info.ID,
		Role:        role,
		Content:     content,
		SourcesJSON: sourcesJSON,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Lock()
	sess.messages = append(sess.messages, msg)
	s.mu.Unlock()
	return msg
}

func (s *server) isCancelled(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[streamID]
}

// fakeSources references the first uploaded document, if any.
func (s *server) fakeSources() []stream.SourceRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.documents) == 0 {
		return nil
	}
	doc := s.documents[0]
	return []stream.SourceRef{{
		DocumentID: doc.ID,
		ChunkIndex: 0,
		Preview:    "excerpt from " + doc.Name,
	}}
}

func cannedAnswer(question string) string {
	return fmt.Sprintf("Based on the indexed documents, here is what I found about %q. "+
		"This is a canned answer from the mock backend; point the client at a real "+
		"deployment for grounded responses.", strings.TrimSpace(question))
}

// splitChunks breaks an answer into word-sized deltas, keeping the
// separating spaces so concatenation reproduces the original text.
func splitChunks(answer string) []string {
	words := strings.SplitAfter(answer, " ")
	return words
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame stream.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
