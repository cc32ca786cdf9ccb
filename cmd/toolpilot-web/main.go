// cmd/toolpilot-web serves the ask API and the exchange progress feed over
// HTTP for one MCP session.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/internal/server"
	"github.com/scrypster/toolpilot/web/handlers"
)

func main() {
	log.SetPrefix("toolpilot-web: ")
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "Path to YAML config file (default: $TOOLPILOT_CONFIG)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Security.SecurityMode == "development" {
		log.Println("Running in development mode: API token not enforced")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := mcp.Open(ctx, cfg.MCP)
	if err != nil {
		log.Fatalf("Failed to open MCP session: %v", err)
	}
	defer session.Disconnect()

	hub := handlers.NewEventHub(server.AllowedOrigins(cfg)...)
	answerer, err := engine.NewFromConfig(cfg, session, engine.WithEventHandler(hub.Publish))
	if err != nil {
		log.Fatalf("Failed to create answerer: %v", err)
	}

	addr, err := server.Start(ctx, cfg, session, answerer, hub)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("toolpilot web running at http://%s (%d tools)", addr, len(session.Tools()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
