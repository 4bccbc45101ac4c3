// mockserver is a local stand-in for the document-chat backend: it
// serves the same endpoints with canned streamed answers so the client
// can be developed and demoed offline.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	delay := flag.Duration("delay", 40*time.Millisecond, "delay between streamed chunks")
	flag.Parse()

	srv := newServer(*delay)
	fmt.Printf("mockserver listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, srv.routes()); err != nil {
		fmt.Fprintf(os.Stderr, "mockserver: %v\n", err)
		os.Exit(1)
	}
}
