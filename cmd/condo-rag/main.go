package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"condo-rag/internal/cache"
	"condo-rag/internal/chromemdb"
	"condo-rag/internal/config"
	"condo-rag/internal/db"
	"condo-rag/internal/embedding"
	"condo-rag/internal/helper"
	"condo-rag/internal/ingest"
	"condo-rag/internal/kv"
	"condo-rag/internal/llmservice"
	"condo-rag/internal/models"
	"condo-rag/internal/parser"
	"condo-rag/internal/rag"
	"condo-rag/internal/ratelimit"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	filePath := flag.String("file", "", "Path to a PDF to ingest")
	query := flag.String("query", "", "Question to be answered")
	tenantID := flag.String("tenant", "", "Tenant id the operation is scoped to")
	userID := flag.String("user", "", "Acting user id")
	maxChunks := flag.Int("chunks", 0, "Number of chunks to retrieve (0 = configured default)")
	usage := flag.Bool("usage", false, "Show the user's daily AI usage")
	cacheStats := flag.Bool("cache-stats", false, "Show response cache stats")
	invalidate := flag.Bool("invalidate", false, "Invalidate all cached responses (admin)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	app, err := buildApp(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring services")
	}
	defer app.close()

	ctx := context.Background()
	switch {
	case *filePath != "":
		requireFlag(*tenantID, "tenant")
		requireFlag(*userID, "user")
		ingestFile(ctx, app, *filePath, *tenantID, *userID)
	case *query != "":
		requireFlag(*tenantID, "tenant")
		requireFlag(*userID, "user")
		askQuestion(ctx, app, *query, *tenantID, *userID, *maxChunks)
	case *usage:
		requireFlag(*userID, "user")
		helper.PrettyPrint(app.svc.UsageSnapshot(ctx, *userID))
	case *cacheStats:
		fmt.Printf("total_cached_responses: %d\n", app.svc.CacheStats(ctx))
	case *invalidate:
		deleted, err := app.svc.InvalidateCache(ctx, true)
		if err != nil {
			log.Fatal().Err(err).Msg("Error invalidating cache")
		}
		fmt.Printf("deleted_entries: %d\n", deleted)
	default:
		log.Fatal().Msg("Provide -file to ingest a document or -query to ask a question")
	}
}

type app struct {
	svc       *rag.Service
	processor *ingest.Processor
	docs      *db.Store
	redis     *kv.RedisStore
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

// buildApp constructs the service graph explicitly: no package-level client
// state, lifecycle tied to the process.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	redisStore := kv.NewRedisStore(&cfg.Redis)
	gate := ratelimit.NewGate(redisStore, cfg.RAG.DailyLimit)
	responseCache := cache.NewCache(redisStore, time.Duration(cfg.RAG.CacheTTLSecs)*time.Second)

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	generator, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}
	splitter := parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)

	a := &app{redis: redisStore}

	switch cfg.RAG.Storage {
	case "local":
		local, err := chromemdb.NewStore(cfg.RAG.LocalDBPath, false)
		if err != nil {
			return nil, err
		}
		a.processor = ingest.NewProcessor(statusLogger{}, local, embedder, splitter)
		a.svc = rag.NewService(gate, responseCache, embedder, local, generator, cfg.RAG.MaxChunks)
	default:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB); err != nil {
			return nil, err
		}
		store := db.NewStore(bunDB)
		a.docs = store
		a.processor = ingest.NewProcessor(store, store, embedder, splitter)
		a.svc = rag.NewService(gate, responseCache, embedder, store, generator, cfg.RAG.MaxChunks)
	}
	return a, nil
}

// ingestFile runs the pipeline synchronously so the process can report the
// final document status before exiting. Server deployments use
// Processor.ProcessDetached instead.
func ingestFile(ctx context.Context, a *app, filePath, tenantID, userID string) {
	stat, err := os.Stat(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading file")
	}

	doc := models.DocumentInfo{TenantID: tenantID, Filename: filepath.Base(filePath)}
	if a.docs != nil {
		record, err := a.docs.CreateDocument(ctx, doc.Filename, tenantID, userID, stat.Size())
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating document record")
		}
		doc.ID = record.ID
	} else {
		id, err := helper.GenerateUUID()
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating document id")
		}
		doc.ID = id
	}

	if err := a.processor.Process(ctx, doc, filePath); err != nil {
		log.Fatal().Err(err).Str("document_id", doc.ID).Msg("Error processing document")
	}
	fmt.Printf("document %s ingested\n", doc.ID)
}

func askQuestion(ctx context.Context, a *app, question, tenantID, userID string, maxChunks int) {
	answer, err := a.svc.Chat(ctx, question, tenantID, userID, maxChunks)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", question)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	helper.PrettyPrint(answer.Sources)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Answer)
}

func requireFlag(value, name string) {
	if value == "" {
		log.Fatal().Msgf("Please provide the -%s flag", name)
	}
}

// statusLogger stands in for the relational status store when the local
// vector database is used; progress is only logged.
type statusLogger struct{}

func (statusLogger) UpdateStatus(_ context.Context, documentID string, status models.DocumentStatus) error {
	log.Info().Str("document_id", documentID).Str("status", string(status)).Msg("Document status")
	return nil
}
