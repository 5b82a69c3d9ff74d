package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Kind identifies how a source's text is obtained.
type Kind string

const (
	// KindInline is text supplied directly in memory.
	KindInline Kind = "inline"
	// KindFile is a local text or markdown file.
	KindFile Kind = "file"
	// KindPDF is a local PDF whose text layer is extracted.
	KindPDF Kind = "pdf"
	// KindURL is an HTTP(S) document fetched at build time.
	KindURL Kind = "url"
)

// DefaultCorpus is indexed when `ragdemo build` is given no sources.
var DefaultCorpus = []string{
	"Agentic AI systems can autonomously decide which tools to call.",
	"RAG combines retrieval from a vector store with generation from an LLM.",
	"Chroma is an open-source vector database optimized for AI applications.",
}

// Source is one document to index. It is immutable once created.
type Source struct {
	// Kind selects the loader.
	Kind Kind
	// Location is the file path or URL, or a synthetic "inline:<n>" label.
	Location string
	// Text holds the content of inline sources.
	Text string
}

// InlineSources wraps in-memory texts as sources labelled inline:0, inline:1, ...
func InlineSources(texts ...string) []Source {
	out := make([]Source, len(texts))
	for i, t := range texts {
		out[i] = Source{Kind: KindInline, Location: fmt.Sprintf("inline:%d", i), Text: t}
	}
	return out
}

// FileSource returns a file source, choosing the PDF loader by extension.
func FileSource(path string) Source {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return Source{Kind: KindPDF, Location: path}
	}
	return Source{Kind: KindFile, Location: path}
}

// URLSource returns a source fetched over HTTP(S).
func URLSource(rawURL string) Source {
	return Source{Kind: KindURL, Location: rawURL}
}

// load returns the raw text of src.
func (p *Pipeline) load(ctx context.Context, src Source) (string, error) {
	switch src.Kind {
	case KindInline:
		return src.Text, nil
	case KindFile:
		b, err := os.ReadFile(src.Location)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(b), nil
	case KindPDF:
		return readPDF(src.Location)
	case KindURL:
		return p.fetch(ctx, src.Location)
	default:
		return "", fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// readPDF extracts the plain-text layer of a PDF file.
func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}
