// Package server is the HTTP scaffold of the campaigns service: a chi
// router with the standard middleware stack, a /health endpoint and
// graceful shutdown.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server owns the router and the shutdown hooks.
type Server struct {
	Router *chi.Mux
	srv    *http.Server
	onStop []func()
}

// New creates a Server with middleware applied. allowedOrigins controls
// CORS on the JSON API; "*" allows any origin, empty disables CORS headers.
func New(allowedOrigins ...string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})

	return &Server{Router: r}
}

// OnStop registers a function to run after the server has drained on
// shutdown. Hooks run in registration order.
func (s *Server) OnStop(fn func()) {
	s.onStop = append(s.onStop, fn)
}

// ListenAndServe serves on addr until SIGINT or SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		for _, fn := range s.onStop {
			fn()
		}
	}()

	log.Printf("server starting on %s", addr)
	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	log.Println("Server stopped")
	return nil
}

func cors(allowed []string) func(http.Handler) http.Handler {
	anyOrigin := false
	set := make(map[string]bool)
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (anyOrigin || set[origin]) {
				if anyOrigin {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
