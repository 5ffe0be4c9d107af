package chromemdb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"condo-rag/internal/models"
)

const compress = false

// Store is a chromem-go backed chunk store and similarity retriever for
// single-node or offline deployments. Every tenant gets its own collection,
// so searches cannot cross tenant boundaries by construction.
type Store struct {
	db *chromem.DB
}

// NewStore opens the local vector database. With inMemory set, nothing is
// persisted between runs.
func NewStore(dbPath string, inMemory bool) (*Store, error) {
	if inMemory {
		return &Store{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) collection(tenantID string) (*chromem.Collection, error) {
	c, err := s.db.GetOrCreateCollection("tenant-"+tenantID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return c, nil
}

// SaveChunk adds one embedded chunk to the owning tenant's collection.
func (s *Store) SaveChunk(ctx context.Context, doc models.DocumentInfo, chunk models.Chunk, embedding []float32) error {
	c, err := s.collection(doc.TenantID)
	if err != nil {
		return err
	}
	chromemDoc := chromem.Document{
		ID:      fmt.Sprintf("%s-%d", doc.ID, chunk.ChunkIndex),
		Content: chunk.Content,
		Metadata: map[string]string{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"page":        strconv.Itoa(chunk.PageNumber),
			"chunk_index": strconv.Itoa(chunk.ChunkIndex),
		},
		Embedding: embedding,
	}
	if err := c.AddDocuments(ctx, []chromem.Document{chromemDoc}, 1); err != nil {
		return fmt.Errorf("failed to add document: %v", err)
	}
	return nil
}

// Search returns the tenant's closest chunks by cosine similarity. A tenant
// with no chunks yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, tenantID string, limit int) ([]models.RetrievedChunk, error) {
	c, err := s.collection(tenantID)
	if err != nil {
		return nil, err
	}

	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		chunks = append(chunks, models.RetrievedChunk{
			Text:       res.Content,
			PageNumber: page,
			Filename:   res.Metadata["filename"],
			Similarity: float64(res.Similarity),
		})
	}
	return chunks, nil
}
