// Package state persists finished conversations to disk so transcripts
// survive the process and can be reviewed offline.
package state

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/youruser/docchat/internal/conversation"
)

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrNothingToSave      = errors.New("conversation has no messages")
)

// Transcript is one saved conversation.
type Transcript struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	SessionID string                  `json:"session_id,omitempty"`
	Created   time.Time               `json:"created"`
	Messages  []*conversation.Message `json:"messages"`
}

// Summary is the listing view of a transcript.
type Summary struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// Store reads and writes transcripts under baseDir/transcripts.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir (typically ~/.docchat).
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) transcriptsDir() string {
	return filepath.Join(s.baseDir, "transcripts")
}

func (s *Store) transcriptPath(id string) string {
	return filepath.Join(s.transcriptsDir(), id+".json")
}

// generateID creates a random 6-character hex ID.
func generateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Save writes the conversation as a new transcript and returns its id.
// An empty title is derived from the first user message.
func (s *Store) Save(c *conversation.Conversation, title string) (string, error) {
	messages := c.Messages()
	if len(messages) == 0 {
		return "", ErrNothingToSave
	}

	if title == "" {
		title = deriveTitle(messages)
	}

	id, err := generateID()
	if err != nil {
		return "", err
	}

	t := &Transcript{
		ID:        id,
		Title:     title,
		SessionID: c.SessionID(),
		Created:   time.Now().UTC(),
		Messages:  messages,
	}

	if err := os.MkdirAll(s.transcriptsDir(), 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.transcriptPath(id), data, 0644); err != nil {
		return "", err
	}
	return id, nil
}

// Load reads one transcript by id.
func (s *Store) Load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.transcriptPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a transcript by id.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.transcriptPath(id))
	if os.IsNotExist(err) {
		return ErrTranscriptNotFound
	}
	return err
}

// List returns summaries of all transcripts, newest first.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.transcriptsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		summary, err := s.loadSummary(id)
		if err != nil {
			// A corrupt file should not hide the rest of the history.
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Created.After(summaries[j].Created)
	})
	return summaries, nil
}

// loadSummary reads only the summary fields of a transcript file.
func (s *Store) loadSummary(id string) (Summary, error) {
	file, err := os.Open(s.transcriptPath(id))
	if err != nil {
		return Summary{}, err
	}
	defer file.Close()

	var summary Summary
	if err := json.NewDecoder(file).Decode(&summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

const maxTitleLen = 50

func deriveTitle(messages []*conversation.Message) string {
	for _, m := range messages {
		if m.Role != conversation.RoleUser {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if len(title) > maxTitleLen {
			title = title[:maxTitleLen]
		}
		if title != "" {
			return title
		}
	}
	return "Chat " + time.Now().UTC().Format("2006-01-02 15:04")
}
