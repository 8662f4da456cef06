package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/docchat/pkg/backend"
)

// maxURLBytes caps how much of a fetched page is read.
const maxURLBytes = 10 << 20

// Source produces one file part of an upload.
type Source interface {
	// Name is the filename the part is uploaded under.
	Name() string
	// Validate checks the source without reading it.
	Validate() error
	// Read loads the part's contents.
	Read(ctx context.Context) (backend.File, error)
}

// ParseSources turns command arguments into sources: http(s) URLs become
// URL sources, everything else is a local path.
func ParseSources(args []string) []Source {
	sources := make([]Source, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			sources = append(sources, URLSource(arg))
		} else {
			sources = append(sources, FileSource(arg))
		}
	}
	return sources
}

// ErrLocalPath is returned by ParseURLSources for an argument that is not
// an http(s) URL.
var ErrLocalPath = errors.New("only http(s) URLs can be attached here")

// ParseURLSources is ParseSources for front ends whose users must not reach
// the host's filesystem. Any argument that is not an http(s) URL rejects the
// whole set.
func ParseURLSources(args []string) ([]Source, error) {
	sources := ParseSources(args)
	for _, s := range sources {
		if _, ok := s.(*urlSource); !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocalPath, s.Name())
		}
	}
	return sources, nil
}

type fileSource struct {
	path string
}

// FileSource uploads the local file at path under its base name.
func FileSource(path string) Source {
	return &fileSource{path: path}
}

func (f *fileSource) Name() string { return filepath.Base(f.path) }

func (f *fileSource) Validate() error {
	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", f.path)
	}
	return nil
}

func (f *fileSource) Read(_ context.Context) (backend.File, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return backend.File{}, fmt.Errorf("read %s: %w", f.path, err)
	}
	return backend.File{Name: f.Name(), Data: data}, nil
}

type urlSource struct {
	raw    string
	client *http.Client
}

// URLSource fetches a web page, converts it to markdown and uploads it as
// <host>.md.
func URLSource(raw string) Source {
	return &urlSource{
		raw:    raw,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *urlSource) Name() string {
	parsed, err := url.Parse(u.raw)
	if err != nil || parsed.Host == "" {
		return "page.md"
	}
	return parsed.Hostname() + ".md"
}

func (u *urlSource) Validate() error {
	parsed, err := url.Parse(u.raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

func (u *urlSource) Read(ctx context.Context) (backend.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.raw, nil)
	if err != nil {
		return backend.File{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "docchat/1.0")

	resp, err := u.client.Do(req)
	if err != nil {
		return backend.File{}, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return backend.File{}, fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLBytes))
	if err != nil {
		return backend.File{}, fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return backend.File{}, fmt.Errorf("convert to markdown: %w", err)
	}

	return backend.File{Name: u.Name(), Data: []byte(md)}, nil
}
