package vectorstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	logx "github.com/cyber-bartender/server/pkg/logger"
)

// Metadata keys of a beer document. -1 marks an unavailable value.
const (
	MetaABV = "abv"
	MetaIBU = "ibu"
	MetaSRM = "srm"

	Unavailable = -1
)

const embedBatchSize = 64

// Record is one line of the JSON-lines corpus.
type Record struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	ABV       *float64  `json:"abv"`
	IBU       *float64  `json:"ibu"`
	SRM       *int      `json:"srm"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Document converts the record into a beer document.
func (r Record) Document() *schema.Document {
	abv, ibu, srm := float64(Unavailable), float64(Unavailable), Unavailable
	if r.ABV != nil {
		abv = *r.ABV
	}
	if r.IBU != nil {
		ibu = *r.IBU
	}
	if r.SRM != nil {
		srm = *r.SRM
	}
	return &schema.Document{
		ID:      r.ID,
		Content: r.Text,
		MetaData: map[string]any{
			MetaABV: abv,
			MetaIBU: ibu,
			MetaSRM: srm,
		},
	}
}

// ReadCorpus parses a JSON-lines corpus file.
func ReadCorpus(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if r.ID == "" {
			r.ID = strconv.Itoa(line)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return records, nil
}

// Load reads the corpus, embeds records that carry no vector, and builds a
// store. The returned records include the computed embeddings.
func Load(ctx context.Context, path string, embedder embedding.Embedder) (*Store, []Record, error) {
	records, err := ReadCorpus(path)
	if err != nil {
		return nil, nil, err
	}

	var pending []int
	for i := range records {
		if len(records[i].Embedding) == 0 {
			pending = append(pending, i)
		}
	}
	for start := 0; start < len(pending); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pending))
		texts := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			texts = append(texts, records[idx].Text)
		}
		vectors, err := embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, nil, fmt.Errorf("embed corpus batch %d: %w", start/embedBatchSize, err)
		}
		if len(vectors) != len(texts) {
			return nil, nil, fmt.Errorf("embed corpus batch %d: expected %d vectors, got %d", start/embedBatchSize, len(texts), len(vectors))
		}
		for j, idx := range pending[start:end] {
			records[idx].Embedding = vectors[j]
		}
	}

	docs := make([]*schema.Document, len(records))
	vectors := make([][]float64, len(records))
	for i, r := range records {
		docs[i] = r.Document()
		vectors[i] = r.Embedding
	}
	store, err := New(embedder, docs, vectors)
	if err != nil {
		return nil, nil, err
	}

	logx.Info().
		Str("path", path).
		Int("documents", len(records)).
		Int("embedded", len(pending)).
		Msg("beer corpus loaded")
	return store, records, nil
}

// Persist writes records, embeddings included, to path atomically.
func Persist(path string, records []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".corpus-*")
	if err != nil {
		return fmt.Errorf("persist corpus: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			tmp.Close()
			return fmt.Errorf("persist corpus: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist corpus: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
