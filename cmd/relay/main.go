// The relay accepts peer connections, assigns network identities, and fans
// every envelope out to all other peers in arrival order. It understands
// only the lobby frames; game packets pass through opaque.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	port := flag.Uint("port", 7373, "Relay port")
	name := flag.String("name", "Spraytag Relay", "Relay display name")
	version := flag.String("version", "", "Required client version (empty = accept any)")
	flag.Parse()

	hub := NewHub(*name, *version)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[relay] shutting down...")
		_ = server.Close()
		os.Exit(0)
	}()

	log.Printf("[relay] %q listening on port %d", *name, *port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[relay] server error: %v", err)
	}
}
