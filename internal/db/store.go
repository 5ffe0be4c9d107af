package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"condo-rag/internal/helper"
	"condo-rag/internal/models"
)

// Store is the Postgres-backed document and chunk store. It carries both
// sides of the pipeline: chunk writes during ingestion and tenant-scoped
// similarity reads at query time.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateDocument inserts a new document record in the uploading state.
func (s *Store) CreateDocument(ctx context.Context, filename, tenantID, uploadedBy string, fileSize int64) (*Document, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		ID:         id,
		Filename:   filename,
		FileType:   "pdf",
		FileSize:   fileSize,
		Status:     models.StatusUploading,
		TenantID:   tenantID,
		UploadedBy: uploadedBy,
	}
	if _, err := s.db.NewInsert().Model(doc).Exec(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument loads a document scoped to its tenant. A missing row returns
// (nil, nil), not an error.
func (s *Store) GetDocument(ctx context.Context, documentID, tenantID string) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().
		Model(doc).
		Where("d.id = ?", documentID).
		Where("d.tenant_id = ?", tenantID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// UpdateStatus advances a document through the pipeline. Each call commits
// on its own so a client polling the document observes progress. Backward
// moves and moves out of a terminal state are refused.
func (s *Store) UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus) error {
	doc := new(Document)
	if err := s.db.NewSelect().Model(doc).Where("d.id = ?", documentID).Scan(ctx); err != nil {
		return err
	}
	if !models.CanTransition(doc.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s for document %s", doc.Status, status, documentID)
	}
	_, err := s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("status = ?", status).
		Where("id = ?", documentID).
		Exec(ctx)
	if err == nil {
		log.Debug().Str("document_id", documentID).Str("status", string(status)).Msg("Document status updated")
	}
	return err
}

// SaveChunk writes one embedded chunk. Writes are independent by design; a
// failure partway through ingestion leaves earlier chunks in place.
func (s *Store) SaveChunk(ctx context.Context, doc models.DocumentInfo, chunk models.Chunk, embedding []float32) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	row := &DocumentChunk{
		ID:         id,
		ChunkText:  chunk.Content,
		ChunkIndex: chunk.ChunkIndex,
		PageNumber: chunk.PageNumber,
		Embedding:  embedding,
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
	}
	_, err = s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

// Search ranks the tenant's chunks by cosine distance to the query embedding
// and returns the closest limit chunks with similarity = 1 - distance. An
// empty corpus for the tenant yields an empty slice.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, tenantID string, limit int) ([]models.RetrievedChunk, error) {
	vec := VectorLiteral(queryEmbedding)

	var rows []struct {
		ChunkText  string  `bun:"chunk_text"`
		PageNumber int     `bun:"page_number"`
		Filename   string  `bun:"filename"`
		Similarity float64 `bun:"similarity"`
	}
	err := s.db.NewSelect().
		Model((*DocumentChunk)(nil)).
		ColumnExpr("dc.chunk_text").
		ColumnExpr("dc.page_number").
		ColumnExpr("d.filename").
		ColumnExpr("1 - (dc.embedding <=> ?::vector) AS similarity", vec).
		Join("JOIN documents AS d ON d.id = dc.document_id").
		Where("dc.tenant_id = ?", tenantID).
		OrderExpr("dc.embedding <=> ?::vector", vec).
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, models.RetrievedChunk{
			Text:       row.ChunkText,
			PageNumber: row.PageNumber,
			Filename:   row.Filename,
			Similarity: row.Similarity,
		})
	}
	return chunks, nil
}

// VectorLiteral renders an embedding in pgvector's input format.
func VectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
