package selfquery

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/retrieval/vectorstore"
)

// Retriever answers a question by constructing a structured query and running
// it against an underlying filterable retriever.
type Retriever struct {
	constructor *Constructor
	store       retriever.Retriever
	topK        int
}

var _ retriever.Retriever = (*Retriever)(nil)

// NewRetriever wires a constructor to a store. topK <= 0 means the store default.
func NewRetriever(constructor *Constructor, store retriever.Retriever, topK int) *Retriever {
	return &Retriever{constructor: constructor, store: store, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, opts ...retriever.Option) ([]*schema.Document, error) {
	sq, err := r.constructor.Construct(ctx, question)
	if err != nil {
		return nil, err
	}

	all := make([]retriever.Option, 0, len(opts)+2)
	if r.topK > 0 {
		all = append(all, retriever.WithTopK(r.topK))
	}
	all = append(all, opts...)
	if sq.Filter != nil {
		all = append(all, vectorstore.WithFilter(sq.Filter))
	}

	docs, err := r.store.Retrieve(ctx, sq.Query, all...)
	if err != nil {
		return nil, fmt.Errorf("self-query retrieve: %w", err)
	}
	return docs, nil
}
