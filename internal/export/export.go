// Package export writes a session transcript in a portable format.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/docchat/internal/types"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session types.Session, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// JSONExporter writes the session in its stored JSON form, pretty-printed.
type JSONExporter struct{}

func (e *JSONExporter) Export(session types.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

func (e *JSONExporter) Extension() string { return "json" }

// YAMLExporter writes the session as YAML.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session types.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return enc.Encode(session)
}

func (e *YAMLExporter) Extension() string { return "yaml" }

// MarkdownExporter writes a human-readable transcript.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(session types.Session, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", session.Title)
	fmt.Fprintf(&b, "**Created:** %s  \n", session.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", len(session.Messages))
	b.WriteString("---\n\n")

	for i, msg := range session.Messages {
		speaker := "You"
		if msg.Role == types.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "**%s** (%s)\n\n%s\n\n", speaker, msg.Timestamp.Format(time.Kitchen), escapeMarkdown(msg.Text))
		if i < len(session.Messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (e *MarkdownExporter) Extension() string { return "md" }

// escapeMarkdown escapes bold/underline markers outside fenced code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}
