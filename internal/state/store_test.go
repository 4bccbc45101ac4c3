package state

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/youruser/docchat/internal/conversation"
)

func sampleConversation() *conversation.Conversation {
	return conversation.NewFromTranscript("sess-1", []*conversation.Message{
		{ID: "u1", Role: conversation.RoleUser, Content: "what is OAuth?", Timestamp: time.Now().UTC()},
		{ID: "m1", Role: conversation.RoleAssistant, Content: "OAuth is an authorization framework.", Timestamp: time.Now().UTC()},
	})
}

func TestStoreRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	id, err := store.Save(sampleConversation(), "oauth basics")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(id) != 6 {
		t.Errorf("id = %q, want 6 hex chars", id)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "oauth basics" {
		t.Errorf("Title = %q", loaded.Title)
	}
	if loaded.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", loaded.SessionID)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(loaded.Messages))
	}
	if loaded.Messages[0].Role != conversation.RoleUser {
		t.Errorf("first message role = %q", loaded.Messages[0].Role)
	}
	if loaded.Messages[1].Content != "OAuth is an authorization framework." {
		t.Errorf("assistant content = %q", loaded.Messages[1].Content)
	}
}

func TestStoreList(t *testing.T) {
	store := New(t.TempDir())

	first, err := store.Save(sampleConversation(), "first")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Creation times order the listing; make them distinguishable.
	time.Sleep(10 * time.Millisecond)
	second, err := store.Save(sampleConversation(), "second")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[0].ID != second || summaries[1].ID != first {
		t.Errorf("order = %s, %s; want newest first", summaries[0].ID, summaries[1].ID)
	}
}

func TestStoreListEmpty(t *testing.T) {
	store := New(t.TempDir())
	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("len(summaries) = %d, want 0", len(summaries))
	}
}

func TestStoreDelete(t *testing.T) {
	store := New(t.TempDir())
	id, err := store.Save(sampleConversation(), "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Load after delete = %v, want ErrTranscriptNotFound", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("second Delete = %v, want ErrTranscriptNotFound", err)
	}
}

func TestStoreDerivedTitle(t *testing.T) {
	store := New(t.TempDir())

	longQuestion := strings.Repeat("why ", 30)
	conv := conversation.NewFromTranscript("", []*conversation.Message{
		{ID: "u1", Role: conversation.RoleUser, Content: longQuestion},
	})

	id, err := store.Save(conv, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Title) > maxTitleLen {
		t.Errorf("len(Title) = %d, want <= %d", len(loaded.Title), maxTitleLen)
	}
	if !strings.HasPrefix(longQuestion, loaded.Title) {
		t.Errorf("Title = %q, want prefix of the first user message", loaded.Title)
	}
}

func TestStoreSaveEmpty(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Save(conversation.New(""), ""); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("err = %v, want ErrNothingToSave", err)
	}
}
