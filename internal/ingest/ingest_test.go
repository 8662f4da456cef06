package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/backend"
)

type mockBackend struct {
	backend.Backend
	upload func(ctx context.Context, files []backend.File) (*backend.UploadResponse, error)
	calls  int
}

func (m *mockBackend) Upload(ctx context.Context, files []backend.File) (*backend.UploadResponse, error) {
	m.calls++
	return m.upload(ctx, files)
}

type recordingAppender struct {
	msgs []types.Message
}

func (a *recordingAppender) AppendMessage(id types.SessionID, msg types.Message) (int, bool) {
	a.msgs = append(a.msgs, msg)
	return 0, true
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestUsesServerMessage(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	b := writeFile(t, dir, "b.txt", "beta")

	var got []backend.File
	mb := &mockBackend{upload: func(_ context.Context, files []backend.File) (*backend.UploadResponse, error) {
		got = files
		return &backend.UploadResponse{Message: "Uploaded files: [a.txt b.txt]"}, nil
	}}
	app := &recordingAppender{}

	out := New(mb, app).Ingest(context.Background(), "s1", []Source{FileSource(a), FileSource(b)})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Text != "Uploaded files: [a.txt b.txt]" {
		t.Errorf("unexpected text %q", out.Text)
	}
	if len(got) != 2 || got[0].Name != "a.txt" || string(got[1].Data) != "beta" {
		t.Errorf("unexpected uploaded files: %+v", got)
	}
	if len(app.msgs) != 1 || app.msgs[0].Role != types.RoleAssistant || app.msgs[0].Text != out.Text {
		t.Errorf("expected one assistant message, got %+v", app.msgs)
	}
}

func TestIngestDefaultMessage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "alpha")
	mb := &mockBackend{upload: func(context.Context, []backend.File) (*backend.UploadResponse, error) {
		return &backend.UploadResponse{}, nil
	}}
	app := &recordingAppender{}

	out := New(mb, app).Ingest(context.Background(), "s1", []Source{FileSource(path)})
	if out.Text != UploadedReply {
		t.Errorf("expected %q, got %q", UploadedReply, out.Text)
	}
}

func TestIngestFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", "alpha")
	mb := &mockBackend{upload: func(context.Context, []backend.File) (*backend.UploadResponse, error) {
		return nil, errors.New("connection refused")
	}}
	app := &recordingAppender{}

	out := New(mb, app).Ingest(context.Background(), "s1", []Source{FileSource(path)})
	if out.Err == nil {
		t.Error("expected error")
	}
	if out.Text != UploadFailedReply {
		t.Errorf("expected %q, got %q", UploadFailedReply, out.Text)
	}
	if len(app.msgs) != 1 || app.msgs[0].Text != UploadFailedReply {
		t.Errorf("expected one failure message, got %+v", app.msgs)
	}
}

func TestIngestUnreadableSourceSkipsUpload(t *testing.T) {
	mb := &mockBackend{upload: func(context.Context, []backend.File) (*backend.UploadResponse, error) {
		return &backend.UploadResponse{}, nil
	}}
	app := &recordingAppender{}

	out := New(mb, app).Ingest(context.Background(), "s1", []Source{FileSource("/does/not/exist.txt")})
	if out.Text != UploadFailedReply {
		t.Errorf("expected %q, got %q", UploadFailedReply, out.Text)
	}
	if mb.calls != 0 {
		t.Errorf("expected no upload call, got %d", mb.calls)
	}
	if len(app.msgs) != 1 {
		t.Errorf("expected exactly one message, got %d", len(app.msgs))
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	if err := Validate(nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
	if err := Validate([]Source{FileSource(path)}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := Validate([]Source{FileSource(path), FileSource(filepath.Join(dir, "missing"))}); err == nil {
		t.Error("expected error for missing file")
	}
	if err := Validate([]Source{FileSource(dir)}); err == nil {
		t.Error("expected error for directory")
	}
	if err := Validate([]Source{URLSource("ftp://example.com/x")}); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if err := Validate([]Source{URLSource("https://example.com/docs")}); err != nil {
		t.Errorf("expected valid url, got %v", err)
	}
}

func TestParseSources(t *testing.T) {
	sources := ParseSources([]string{"notes.txt", " ", "https://example.com/page", "dir/report.pdf"})
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	names := []string{"notes.txt", "example.com.md", "report.pdf"}
	for i, want := range names {
		if sources[i].Name() != want {
			t.Errorf("source %d: expected name %q, got %q", i, want, sources[i].Name())
		}
	}
}

func TestParseURLSources(t *testing.T) {
	sources, err := ParseURLSources([]string{"https://example.com/a", "http://example.org/b"})
	if err != nil || len(sources) != 2 {
		t.Fatalf("expected 2 url sources, got %d, %v", len(sources), err)
	}

	sources, err = ParseURLSources([]string{"https://example.com/a", "/etc/hostname"})
	if !errors.Is(err, ErrLocalPath) {
		t.Errorf("expected ErrLocalPath, got %v", err)
	}
	if sources != nil {
		t.Errorf("expected no sources on rejection, got %d", len(sources))
	}
}

func TestURLSourceConvertsToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Hello World</h1><p>This is a test.</p></body></html>`))
	}))
	defer server.Close()

	f, err := URLSource(server.URL).Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "127.0.0.1.md" {
		t.Errorf("expected name '127.0.0.1.md', got %q", f.Name)
	}
	md := string(f.Data)
	if !strings.Contains(md, "Hello World") || !strings.Contains(md, "This is a test") {
		t.Errorf("unexpected markdown %q", md)
	}
}

func TestURLSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := URLSource(server.URL).Read(context.Background()); err == nil {
		t.Error("expected error for 404")
	}
}
