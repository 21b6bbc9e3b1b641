// Package testutil provides shared test doubles for the retrieval pipeline.
package testutil

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// KeywordEmbedder is a deterministic ai.Embedder for tests. Each configured
// keyword owns one axis of the embedding space; a text's vector has a 1 on
// the axis of every keyword it contains (case-insensitive) and falls back to
// a dedicated "other" axis when none match. Texts sharing keywords therefore
// get high cosine similarity and unrelated texts get zero, without any
// network calls.
type KeywordEmbedder struct {
	Keywords []string

	// Dim, when larger than len(Keywords)+1, zero-pads vectors to that
	// dimension. Backends with a fixed column width need this; padding
	// does not change cosine similarities.
	Dim int

	// FailSubstring, when non-empty, makes Embed fail on any input
	// containing it. Used to exercise ingestion rollback paths.
	FailSubstring string

	// Calls counts Embed invocations.
	Calls int
}

// Name implements ai.Embedder.
func (*KeywordEmbedder) Name() string { return "keyword-embedder" }

// Register implements ai.Embedder.
func (*KeywordEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *KeywordEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.Calls++

	out := make([]*ai.Embedding, 0, len(req.Input))
	for _, doc := range req.Input {
		text := docText(doc)
		if e.FailSubstring != "" && strings.Contains(text, e.FailSubstring) {
			return nil, fmt.Errorf("embedding rejected for %q", e.FailSubstring)
		}
		out = append(out, &ai.Embedding{Embedding: e.vector(text)})
	}
	return &ai.EmbedResponse{Embeddings: out}, nil
}

func (e *KeywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	dim := len(e.Keywords) + 1
	if e.Dim > dim {
		dim = e.Dim
	}
	v := make([]float32, dim)

	matched := false
	for i, kw := range e.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			v[i] = 1
			matched = true
		}
	}
	if !matched {
		v[len(v)-1] = 1
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func docText(d *ai.Document) string {
	var b strings.Builder
	for _, p := range d.Content {
		b.WriteString(p.Text)
	}
	return b.String()
}
