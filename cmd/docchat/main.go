// docchat is an interactive terminal client for a document-grounded chat
// backend. Answers stream in as they are generated; Ctrl-C while an
// answer is streaming cancels it without quitting the program.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/youruser/docchat/internal/api"
	"github.com/youruser/docchat/internal/config"
	"github.com/youruser/docchat/internal/conversation"
	"github.com/youruser/docchat/internal/logging"
	"github.com/youruser/docchat/internal/state"
	"github.com/youruser/docchat/internal/stream"
)

var log = logging.Get()

const helpText = `commands:
  /help            show this help
  /new             start a fresh conversation
  /sessions        list server-side conversations
  /resume <id>     continue a server-side conversation
  /docs            list indexed documents
  /upload <path>   upload a document for indexing
  /history         list locally saved transcripts
  /save            save the current conversation locally
  /tokens          estimate the transcript's token footprint
  /quit            exit`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer log.Close()

	client := api.NewClient(cfg.BaseURL, cfg.TopK, *cfg.IncludeSources)
	store := state.New(cfg.HistoryDir)
	conv := conversation.New("")

	fmt.Printf("docchat — connected to %s (type /help for commands)\n", cfg.BaseURL)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runCommand(client, store, &conv, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := streamAnswer(client, conv, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// streamAnswer submits one question and prints the reply incrementally.
// SIGINT during streaming cancels the in-flight generation only.
func streamAnswer(client *api.Client, conv *conversation.Conversation, content string) error {
	ex, err := conv.Send(context.Background(), client, content, nil)
	if err != nil {
		return err
	}

	// Route Ctrl-C to the exchange while it streams.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	finished := make(chan struct{})
	go func() {
		select {
		case <-sig:
			fmt.Print("\n[stopping]")
			ex.Cancel()
		case <-finished:
		}
	}()

	err = conv.Reconcile(ex, func(delta string) {
		fmt.Print(delta)
	})
	close(finished)
	signal.Stop(sig)
	fmt.Println()

	if err != nil {
		return err
	}
	if ex.Assistant.Cancelled {
		fmt.Println("[generation stopped]")
		return nil
	}
	printSources(ex.Assistant.Sources)
	return nil
}

func printSources(sources []stream.SourceRef) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("sources:")
	for _, src := range sources {
		fmt.Printf("  %s #%d: %s\n", src.DocumentID, src.ChunkIndex, src.Preview)
	}
}

func runCommand(client *api.Client, store *state.Store, conv **conversation.Conversation, line string) (quit bool, err error) {
	ctx := context.Background()
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(helpText)

	case "/quit", "/exit":
		return true, nil

	case "/new":
		*conv = conversation.New("")
		fmt.Println("started a new conversation")

	case "/sessions":
		sessions, err := client.ListSessions(ctx)
		if err != nil {
			return false, err
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return false, nil
		}
		for _, s := range sessions {
			fmt.Printf("  %s  %s  %s\n", s.ID, s.CreatedAt, s.Title)
		}

	case "/resume":
		if arg == "" {
			return false, fmt.Errorf("usage: /resume <session-id>")
		}
		detail, err := client.GetSession(ctx, arg)
		if err != nil {
			return false, err
		}
		history := conversation.FromHistory(detail.Messages)
		for _, m := range history {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
		*conv = conversation.NewFromTranscript(detail.ID, history)
		fmt.Printf("resumed session %s (%d messages)\n", detail.ID, len(history))

	case "/docs":
		docs, err := client.ListDocuments(ctx)
		if err != nil {
			return false, err
		}
		if len(docs) == 0 {
			fmt.Println("no documents")
			return false, nil
		}
		for _, d := range docs {
			fmt.Printf("  %s  %s (%d chunks)\n", d.ID, d.Name, d.ChunkCount)
		}

	case "/upload":
		if arg == "" {
			return false, fmt.Errorf("usage: /upload <path>")
		}
		f, err := os.Open(arg)
		if err != nil {
			return false, err
		}
		defer f.Close()
		uploaded, err := client.UploadDocument(ctx, arg, f)
		if err != nil {
			return false, err
		}
		fmt.Printf("uploaded %s (%d chunks)\n", uploaded.Name, uploaded.ChunkCount)

	case "/history":
		summaries, err := store.List()
		if err != nil {
			return false, err
		}
		if len(summaries) == 0 {
			fmt.Println("no saved transcripts")
			return false, nil
		}
		for _, s := range summaries {
			fmt.Printf("  %s  %s  %s\n", s.ID, s.Created.Format("2006-01-02 15:04"), s.Title)
		}

	case "/save":
		id, err := store.Save(*conv, "")
		if err != nil {
			return false, err
		}
		fmt.Printf("saved transcript %s\n", id)

	case "/tokens":
		fmt.Printf("~%d tokens in transcript\n", (*conv).TokenEstimate())

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}
