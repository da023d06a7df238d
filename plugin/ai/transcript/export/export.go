// Package export writes a transcript in downloadable formats.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/elva/plugin/ai/transcript"
)

// Document is the exported conversation.
type Document struct {
	SessionID  string               `json:"session_id" yaml:"session_id"`
	ExportedAt time.Time            `json:"exported_at" yaml:"exported_at"`
	Messages   []transcript.Message `json:"messages" yaml:"messages"`
}

// Exporter defines the interface for all export formats.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates a new exporter based on format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "", "txt", "text":
		return &TextExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, errors.Errorf("unsupported format: %s (supported: txt, md, json, yaml)", format)
	}
}

// FileName is the download name for a document exported on day.
func FileName(e Exporter, day time.Time) string {
	return fmt.Sprintf("elva-chat-%s.%s", day.Format("2006-01-02"), e.Extension())
}

func speaker(m transcript.Message) string {
	if m.IsUser() {
		return "User"
	}
	return "AI"
}

// TextExporter writes "User: ..." / "AI: ..." paragraphs.
type TextExporter struct{}

func (e *TextExporter) Export(doc *Document, w io.Writer) error {
	for i, m := range doc.Messages {
		sep := "\n\n"
		if i == len(doc.Messages)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%s: %s%s", speaker(m), m.Text, sep); err != nil {
			return errors.Wrap(err, "writing text export")
		}
	}
	return nil
}

func (e *TextExporter) Extension() string   { return "txt" }
func (e *TextExporter) ContentType() string { return "text/plain; charset=utf-8" }

// MarkdownExporter writes one section per message.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", doc.SessionID)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n---\n\n", len(doc.Messages))
	for i, m := range doc.Messages {
		_, err := fmt.Fprintf(w, "**%s** (%s, %s)\n\n%s\n\n", speaker(m), m.Kind, m.Timestamp.Format(time.RFC3339), m.Text)
		if err != nil {
			return errors.Wrap(err, "writing markdown export")
		}
		if i < len(doc.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

func (e *MarkdownExporter) Extension() string   { return "md" }
func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }

// JSONExporter writes the document as indented JSON.
type JSONExporter struct{}

func (e *JSONExporter) Export(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "writing json export")
}

func (e *JSONExporter) Extension() string   { return "json" }
func (e *JSONExporter) ContentType() string { return "application/json" }

// YAMLExporter writes the document as YAML.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(doc *Document, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return errors.Wrap(enc.Encode(doc), "writing yaml export")
}

func (e *YAMLExporter) Extension() string   { return "yaml" }
func (e *YAMLExporter) ContentType() string { return "application/yaml" }
