package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/user/docchat/pkg/backend"
)

// DefaultTimeout applies when the config leaves Timeout unset.
const DefaultTimeout = 60 * time.Second

// Client implements backend.Backend over the service's JSON/HTTP API.
type Client struct {
	config     *backend.Config
	httpClient *http.Client
}

var _ backend.Backend = (*Client)(nil)

// New creates a client for the service at config.BaseURL.
func New(config *backend.Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError reports a non-2xx reply from the service.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error on %s (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// GenerateTitle calls POST /generate_title.
func (c *Client) GenerateTitle(ctx context.Context, text string) (string, error) {
	var resp backend.TitleResponse
	if err := c.postJSON(ctx, "/generate_title", backend.TitleRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Title, nil
}

// Ask calls POST /ask.
func (c *Client) Ask(ctx context.Context, query string) (*backend.AskResponse, error) {
	var resp backend.AskResponse
	if err := c.postJSON(ctx, "/ask", backend.AskRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat calls POST /chat.
func (c *Client) Chat(ctx context.Context, message string) (*backend.ChatResponse, error) {
	var resp backend.ChatResponse
	if err := c.postJSON(ctx, "/chat", backend.ChatRequest{Message: message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload calls POST /upload with one multipart part per file.
func (c *Client) Upload(ctx context.Context, files []backend.File) (*backend.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(backend.UploadField, f.Name)
		if err != nil {
			return nil, fmt.Errorf("creating form part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("writing form part %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var resp backend.UploadResponse
	if err := c.do(ctx, "/upload", mw.FormDataContentType(), &buf, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	url := strings.TrimRight(c.config.BaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	return nil
}
