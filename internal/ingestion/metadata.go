package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// InferredMetadata holds the document format and origin host inferred from a
// source's location. It is attached to every chunk so query results can be
// traced back to what kind of document they came from.
type InferredMetadata struct {
	// Format is the document format (text, markdown, html, pdf).
	Format string
	// Host is the lowercase hostname for URL sources, empty otherwise.
	Host string
}

// extensionFormats maps a lowercase file extension to a format label.
var extensionFormats = map[string]string{
	".txt":      "text",
	".text":     "text",
	".md":       "markdown",
	".markdown": "markdown",
	".mdx":      "markdown",
	".html":     "html",
	".htm":      "html",
	".pdf":      "pdf",
}

// InferMetadata inspects a source and returns best-effort metadata. Unknown
// extensions fall back to "text", and URLs without one fall back to "html".
func InferMetadata(src Source) InferredMetadata {
	switch src.Kind {
	case KindInline:
		return InferredMetadata{Format: "text"}
	case KindPDF:
		return InferredMetadata{Format: "pdf"}
	case KindURL:
		return inferURL(src.Location)
	default:
		return InferredMetadata{Format: formatFor(filepath.Ext(src.Location), "text")}
	}
}

// inferURL derives the host and format from the URL path extension.
func inferURL(rawURL string) InferredMetadata {
	m := InferredMetadata{Format: "html"}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return m
	}
	m.Host = strings.ToLower(parsed.Hostname())
	m.Format = formatFor(path.Ext(parsed.Path), "html")

	// Raw files served from source hosts are plain text whatever the extension.
	if m.Host == "raw.githubusercontent.com" && m.Format == "html" {
		m.Format = "text"
	}
	return m
}

func formatFor(ext, fallback string) string {
	if f, ok := extensionFormats[strings.ToLower(ext)]; ok {
		return f
	}
	return fallback
}
