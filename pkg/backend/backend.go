package backend

import (
	"context"
	"time"
)

// Backend defines the interface for the remote answering service. The
// service owns answer generation, document indexing and title generation;
// the client only moves requests and replies.
type Backend interface {
	// GenerateTitle asks the service for a short title describing text.
	GenerateTitle(ctx context.Context, text string) (string, error)

	// Ask queries the document-grounded endpoint.
	Ask(ctx context.Context, query string) (*AskResponse, error)

	// Chat sends a message to the generic conversational endpoint.
	Chat(ctx context.Context, message string) (*ChatResponse, error)

	// Upload submits documents for indexing.
	Upload(ctx context.Context, files []File) (*UploadResponse, error)
}

// Config holds connection settings for a Backend implementation.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// File is a single document part of an upload.
type File struct {
	Name string
	Data []byte
}

// TitleRequest is the /generate_title request body.
type TitleRequest struct {
	Text string `json:"text"`
}

// TitleResponse is the /generate_title response body.
type TitleResponse struct {
	Title string `json:"title,omitempty"`
}

// AskRequest is the /ask request body.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the /ask response body. Either field may be absent.
type AskResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ChatRequest is the /chat request body.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Reply string `json:"reply,omitempty"`
}

// UploadResponse is the /upload response body.
type UploadResponse struct {
	Message string `json:"message,omitempty"`
}

// UploadField is the multipart field name every uploaded file is sent under.
const UploadField = "files"
