// cmd/toolpilot answers questions from the command line with the tools of
// one MCP server.
//
// Startup sequence:
//  1. Load configuration (optional YAML file, then TOOLPILOT_* env vars).
//  2. Open the SSE stream and wait for the endpoint event.
//  3. Initialize the session and capture the tool set.
//  4. Pick the answering strategy (function calling or delegated).
//  5. Answer the prompt given as arguments, or each line read from stdin.
//
// Answers go to stdout, one per line; all logging goes to stderr.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/scrypster/toolpilot/internal/api/mcp"
	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/internal/engine"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("toolpilot: ")
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "Path to YAML config file (default: $TOOLPILOT_CONFIG)")
	verbose := flag.Bool("v", false, "Log exchange progress events to stderr")
	userID := flag.String("user-id", "", "Caller id passed to the hosted assistant")
	userRole := flag.String("user-role", "", "Caller role passed to the hosted assistant")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := mcp.Open(ctx, cfg.MCP)
	if err != nil {
		log.Fatalf("failed to open MCP session: %v", err)
	}
	defer session.Disconnect()

	var opts []engine.Option
	if *verbose {
		opts = append(opts, engine.WithEventHandler(logEvent))
	}
	answerer, err := engine.NewFromConfig(cfg, session, opts...)
	if err != nil {
		log.Fatalf("failed to create answerer: %v", err)
	}

	q := engine.Question{UserID: *userID, UserRole: *userRole}
	if err := run(ctx, answerer, q, flag.Args(), os.Stdin, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// run answers the joined args when present, otherwise every non-blank
// line of in until EOF or cancellation.
func run(ctx context.Context, answerer engine.Answerer, q engine.Question, args []string, in io.Reader, out io.Writer) error {
	if len(args) > 0 {
		q.Prompt = strings.Join(args, " ")
		_, err := fmt.Fprintln(out, answerer.Answer(ctx, q).Text)
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		q.Prompt = line
		if _, err := fmt.Fprintln(out, answerer.Answer(ctx, q).Text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read prompts: %w", err)
	}
	return nil
}

func logEvent(e engine.Event) {
	switch {
	case e.Tool != "":
		log.Printf("[%s] %s %s %s", e.ExchangeID, e.Kind, e.Tool, e.Detail)
	case e.FinishReason != "":
		log.Printf("[%s] %s round %d: %s", e.ExchangeID, e.Kind, e.Iteration, e.FinishReason)
	default:
		log.Printf("[%s] %s %s", e.ExchangeID, e.Kind, e.Detail)
	}
}
