// Package server provides HTTP server initialization and lifecycle management
// for the toolpilot web surface.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/scrypster/toolpilot/internal/config"
	"github.com/scrypster/toolpilot/internal/engine"
	"github.com/scrypster/toolpilot/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// AllowedOrigins returns the host:port origins the event feed accepts for
// the configured listen address.
func AllowedOrigins(cfg *config.Config) []string {
	port := strconv.Itoa(cfg.Server.Port)
	origins := []string{net.JoinHostPort("localhost", port), net.JoinHostPort("127.0.0.1", port)}
	if h := cfg.Server.Host; h != "" && h != "localhost" && h != "127.0.0.1" && h != "0.0.0.0" {
		origins = append(origins, net.JoinHostPort(h, port))
	}
	return origins
}

// NewHandler builds the routed handler without binding a listener.
//
//	POST /api/ask     answer one question (auth, rate limited)
//	GET  /api/tools   the session's tool snapshot (auth)
//	GET  /api/health  session status (no auth)
//	GET  /ws          exchange progress feed (auth)
func NewHandler(cfg *config.Config, session handlers.Session, answerer engine.Answerer, hub *handlers.EventHub) http.Handler {
	apiHandlers := handlers.NewAPIHandlers(session, answerer)
	rateLimiter := handlers.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	mux := http.NewServeMux()
	mux.Handle("/api/ask", handlers.RequireAuth(
		handlers.RateLimitMiddleware(http.HandlerFunc(apiHandlers.Ask), rateLimiter), cfg))
	mux.Handle("/api/tools", handlers.RequireAuth(http.HandlerFunc(apiHandlers.ListTools), cfg))
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiHandlers.Health(w, r)
	})
	if hub != nil {
		mux.Handle("/ws", handlers.RequireAuth(hub, cfg))
	}

	return securityHeadersMiddleware(mux)
}

// Start binds the configured address and serves until ctx is cancelled.
// Returns the actual address being listened on (useful for testing with
// port 0). The hub, when given, is run alongside the server and stopped
// with it.
func Start(ctx context.Context, cfg *config.Config, session handlers.Session, answerer engine.Answerer, hub *handlers.EventHub) (string, error) {
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      NewHandler(cfg, session, answerer, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: (cfg.LLM.Timeout + cfg.MCP.RequestTimeout) * engine.MaxIterations,
		IdleTimeout:  60 * time.Second,
	}

	if hub != nil {
		go hub.Run()
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if hub != nil {
			hub.Stop()
		}
	}()

	return listener.Addr().String(), nil
}
