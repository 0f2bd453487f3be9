// Package vectorstore is an in-process similarity index over the beer corpus.
// It implements the eino retriever contract so it can be swapped for a hosted
// vector database.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	logx "github.com/cyber-bartender/server/pkg/logger"
)

// DefaultTopK matches the number of documents the stuff chain was tuned for.
const DefaultTopK = 4

// Predicate selects documents by metadata.
type Predicate interface {
	Match(metadata map[string]any) bool
}

type options struct {
	Filter Predicate
}

// WithFilter restricts a search to documents whose metadata satisfies p.
// A nil predicate means no filtering.
func WithFilter(p Predicate) retriever.Option {
	return retriever.WrapImplSpecificOptFn(func(o *options) {
		o.Filter = p
	})
}

type entry struct {
	doc    *schema.Document
	vector []float64
}

// Store holds documents and their embeddings. It is read-only after Load.
type Store struct {
	embedder embedding.Embedder
	entries  []entry
}

// New builds a store over pre-embedded documents.
func New(embedder embedding.Embedder, docs []*schema.Document, vectors [][]float64) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("documents (%d) and vectors (%d) differ in length", len(docs), len(vectors))
	}
	s := &Store{embedder: embedder, entries: make([]entry, len(docs))}
	for i := range docs {
		s.entries[i] = entry{doc: docs[i], vector: vectors[i]}
	}
	return s, nil
}

// Len returns the number of indexed documents.
func (s *Store) Len() int {
	return len(s.entries)
}

// Retrieve embeds the query, applies the metadata filter and returns the
// top-K documents by cosine similarity. Equal scores keep corpus order.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	common := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if common.TopK != nil && *common.TopK > 0 {
		topK = *common.TopK
	}
	impl := retriever.GetImplSpecificOptions(&options{}, opts...)

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	qv := vectors[0]

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0, len(s.entries))
	for i, e := range s.entries {
		if impl.Filter != nil && !impl.Filter.Match(e.doc.MetaData) {
			continue
		}
		hits = append(hits, scored{idx: i, score: cosine(qv, e.vector)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		src := s.entries[h.idx].doc
		doc := &schema.Document{ID: src.ID, Content: src.Content, MetaData: copyMeta(src.MetaData)}
		out = append(out, doc.WithScore(h.score))
	}

	logx.Debug().
		Str("query", query).
		Bool("filtered", impl.Filter != nil).
		Int("matches", len(out)).
		Msg("vector search")
	return out, nil
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ retriever.Retriever = (*Store)(nil)
