// Package devserver is a local stand-in for the answering service. It
// serves the same four endpoints the client talks to, answering from a
// keyword index over uploaded documents.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/docchat/internal/title"
	"github.com/user/docchat/pkg/backend"
)

// NoResultsReply is the /chat reply when nothing in the index matches.
const NoResultsReply = "Sorry, I found no results in the documents."

// maxUploadBytes bounds a single /upload request.
const maxUploadBytes = 32 << 20

// basicCommands are matched in order against the lowercased message.
var basicCommands = []struct {
	trigger string
	reply   string
}{
	{"how are you", "I'm doing great! Thanks for asking."},
	{"hello", "Hi there! How's your day going?"},
	{"help", "I can answer questions from your uploaded documents or chat with you."},
	{"hi", "Hello! How can I help you today?"},
}

// Server implements the backend HTTP API.
type Server struct {
	uploadDir string
	index     *Index
	router    chi.Router
}

// NewServer creates a Server that stores uploads in uploadDir and indexes
// whatever text documents are already there.
func NewServer(uploadDir string) (*Server, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	s := &Server{
		uploadDir: uploadDir,
		index:     NewIndex(),
	}
	n, err := s.index.LoadDir(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("index upload dir: %w", err)
	}
	slog.Info("devserver index loaded", "dir", uploadDir, "documents", n, "chunks", s.index.Len())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/generate_title", s.handleGenerateTitle)
	r.Post("/ask", s.handleAsk)
	r.Post("/chat", s.handleChat)
	r.Post("/upload", s.handleUpload)
	s.router = r
	return s, nil
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("devserver listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "chunks": s.index.Len()})
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req backend.TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	respondJSON(w, http.StatusOK, backend.TitleResponse{Title: title.Fallback(req.Text)})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req backend.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	hits := s.index.Search(req.Query, 3)
	respondJSON(w, http.StatusOK, backend.AskResponse{Answer: strings.Join(hits, "\n\n")})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req backend.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	respondJSON(w, http.StatusOK, backend.ChatResponse{Reply: s.chatReply(req.Message)})
}

func (s *Server) chatReply(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(msg)
	for _, cmd := range basicCommands {
		if containsPhrase(words, cmd.trigger) {
			return cmd.reply
		}
	}
	if hits := s.index.Search(msg, 3); len(hits) > 0 {
		return strings.Join(hits, "\n\n")
	}
	return NoResultsReply
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	headers := r.MultipartForm.File[backend.UploadField]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files")
		return
	}

	saved := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0644); err != nil {
			slog.Error("save upload failed", "file", name, "error", err)
			respondError(w, http.StatusInternalServerError, "save failed")
			return
		}
		if !s.index.Add(name, data) {
			slog.Debug("upload not indexed", "file", name)
		}
		saved = append(saved, name)
	}

	respondJSON(w, http.StatusOK, backend.UploadResponse{Message: fmt.Sprintf("Uploaded files: %v", saved)})
}

// containsPhrase reports whether the space-separated phrase occurs as a run
// of whole words.
func containsPhrase(words []string, phrase string) bool {
	want := strings.Fields(phrase)
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j, w := range want {
			if strings.Trim(words[i+j], "!?.,;:") != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
