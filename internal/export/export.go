// Package export renders labeled sentences as CSV, JSON or Markdown.
//
// CSV carries exactly the columns speaker, text, start_time in that order,
// which is what spreadsheet users of the minutes download expect.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"minutes/internal/config"
	"minutes/internal/history"
	"minutes/internal/turns"
)

// DefaultFileName is the download name used when none is configured.
const DefaultFileName = "議事録.csv"

// Header lists the CSV columns.
var Header = []string{"speaker", "text", "start_time"}

// Format names an export encoding.
type Format string

// Supported formats.
const (
	CSV      Format = config.FormatCSV
	JSON     Format = config.FormatJSON
	Markdown Format = config.FormatMarkdown
)

// ParseFormat accepts csv, json, markdown and md, case-insensitively.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// Extension returns the file extension for f including the dot.
func (f Format) Extension() string {
	switch f {
	case JSON:
		return ".json"
	case Markdown:
		return ".md"
	default:
		return ".csv"
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName swaps the extension of base for the one matching f.
func FileName(base string, f Format) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultFileName
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + f.Extension()
}

// Document is the exportable view of a finished run.
type Document struct {
	JobID      string                  `json:"job_id,omitempty"`
	SourceName string                  `json:"source_name,omitempty"`
	Transcript string                  `json:"transcript"`
	Sentences  []turns.LabeledSentence `json:"sentences"`
	Backend    string                  `json:"backend,omitempty"`
	CreatedAt  time.Time               `json:"created_at,omitzero"`
}

// FromJob converts a stored run into its exportable form.
func FromJob(job *history.Job) Document {
	return Document{
		JobID:      job.ID,
		SourceName: job.SourceName,
		Transcript: job.Transcript,
		Sentences:  job.Sentences,
		Backend:    job.Backend,
		CreatedAt:  job.CreatedAt,
	}
}

// Write encodes doc to w in format f.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case JSON:
		return WriteJSON(w, doc)
	case Markdown:
		_, err := io.WriteString(w, RenderMarkdown(doc))
		return err
	default:
		return WriteCSV(w, doc.Sentences)
	}
}

// WriteCSV writes the header and one row per sentence.
func WriteCSV(w io.Writer, sentences []turns.LabeledSentence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range sentences {
		if err := cw.Write([]string{s.Speaker, s.Text, s.StartTime}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes doc as indented JSON. A nil sentence list encodes as [].
func WriteJSON(w io.Writer, doc Document) error {
	if doc.Sentences == nil {
		doc.Sentences = []turns.LabeledSentence{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// RenderMarkdown renders a heading, metadata bullets, the full transcript and
// one "**Speaker** (HH:MM:SS): text" line per sentence.
func RenderMarkdown(doc Document) string {
	var b strings.Builder
	if doc.SourceName != "" {
		fmt.Fprintf(&b, "# 議事録: %s\n\n", doc.SourceName)
	} else {
		b.WriteString("# 議事録\n\n")
	}
	if doc.JobID != "" {
		fmt.Fprintf(&b, "- Job: `%s`\n", doc.JobID)
	}
	if doc.Backend != "" {
		fmt.Fprintf(&b, "- Backend: `%s`\n", doc.Backend)
	}
	if !doc.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", doc.CreatedAt.Format(time.RFC3339))
	}
	if speakers := turns.Speakers(doc.Sentences); len(speakers) > 0 {
		fmt.Fprintf(&b, "- Speakers: %s\n", strings.Join(speakers, ", "))
	}
	b.WriteString("\n## Transcript\n\n")
	if text := strings.TrimSpace(doc.Transcript); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString("\n## Minutes\n\n")
	for _, s := range doc.Sentences {
		fmt.Fprintf(&b, "**%s** (%s): %s\n\n", s.Speaker, s.StartTime, s.Text)
	}
	return b.String()
}
