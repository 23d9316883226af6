// Package librarian provides the shared document-retrieval step serving
// all experts' information needs. One librarian instance serves every
// expert in an episode; it keeps no per-call state beyond the store.
package librarian

import (
	"context"
	"fmt"
	"strings"

	"github.com/colloquyhq/colloquy/internal/api"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// Librarian retrieves a document summary plus relevant source documents
// for a natural-language request.
type Librarian interface {
	Retrieve(ctx context.Context, requesterID, request string) (summary string, docs []models.Document, err error)
}

// Retriever is the store-backed Librarian: keyword search over the
// library followed by an LLM summary of the top hits.
type Retriever struct {
	store *Store
	gen   api.Generator
	limit int
}

// NewRetriever creates a Retriever over a store. gen may be nil, in
// which case summaries degrade to concatenated snippets.
func NewRetriever(store *Store, gen api.Generator) *Retriever {
	return &Retriever{store: store, gen: gen, limit: 5}
}

// SetLimit caps how many documents a single request returns.
func (r *Retriever) SetLimit(n int) {
	if n > 0 {
		r.limit = n
	}
}

const summarySystem = `You are a research librarian. Summarize the supplied source
documents as they relate to the request. Be factual and concise; cite the
source name for each point. Do not add analysis of your own.`

// Retrieve searches the library and summarizes the hits.
func (r *Retriever) Retrieve(ctx context.Context, requesterID, request string) (string, []models.Document, error) {
	docs, err := r.store.Search(request, r.limit)
	if err != nil {
		return "", nil, fmt.Errorf("search library: %w", err)
	}
	if len(docs) == 0 {
		return "No relevant documents were found in the library.", nil, nil
	}

	summary, err := r.summarize(ctx, request, docs)
	if err != nil {
		// A failed summary degrades to raw snippets rather than failing
		// the requesting expert's turn.
		return snippetFallback(docs), docs, nil
	}
	return summary, docs, nil
}

func (r *Retriever) summarize(ctx context.Context, request string, docs []models.Document) (string, error) {
	if r.gen == nil {
		return "", fmt.Errorf("no generator configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nDocuments:\n", request)
	for _, d := range docs {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", d.Source, truncateDoc(d.PageContent, 4000))
	}
	return r.gen.Generate(ctx, summarySystem, b.String())
}

// snippetFallback builds a plain-text stand-in for the LLM summary.
func snippetFallback(docs []models.Document) string {
	var b strings.Builder
	b.WriteString("Document excerpts (summary unavailable):\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Source, truncateDoc(d.PageContent, 300))
	}
	return b.String()
}

func truncateDoc(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
