package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"condo-rag/internal/config"
	"condo-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string                `bun:"id,pk"`
	Filename      string                `bun:"filename,notnull"`
	FileType      string                `bun:"file_type,notnull,default:'pdf'"`
	FileSize      int64                 `bun:"file_size"`
	UploadDate    time.Time             `bun:"upload_date,nullzero,default:now()"`
	Status        models.DocumentStatus `bun:"status,notnull"`
	TenantID      string                `bun:"tenant_id,notnull"`
	UploadedBy    string                `bun:"uploaded_by,notnull"`
}

type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`
	ID            string    `bun:"id,pk"`
	ChunkText     string    `bun:"chunk_text,notnull"`
	ChunkIndex    int       `bun:"chunk_index,notnull"`
	PageNumber    int       `bun:"page_number"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
	DocumentID    string    `bun:"document_id,notnull"`
	TenantID      string    `bun:"tenant_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:now()"`
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the tables and the ivfflat cosine index so similarity
// search does not degrade to a sequential scan as the corpus grows.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	if _, err := db.NewCreateTable().Model((*DocumentChunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx ON document_chunks USING ivfflat (embedding vector_cosine_ops)")
	return err
}
