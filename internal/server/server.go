package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctxeco/backend/internal/ingest"
	"github.com/ctxeco/backend/internal/queue"
	mid "github.com/ctxeco/backend/internal/server/middleware"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/internal/util"
	"github.com/ctxeco/backend/pkg/ai"
	"github.com/ctxeco/backend/pkg/ai/ollama"
	"github.com/ctxeco/backend/pkg/ai/openai"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/classify"
	"github.com/ctxeco/backend/pkg/common"
	"github.com/ctxeco/backend/pkg/extract"
	"github.com/ctxeco/backend/pkg/graph"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/search"
	pgxstore "github.com/ctxeco/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.MustGetEnv("DATABASE_URL")
	runMigrations(databaseURL)

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.Setup(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)

	aiClient := newAIClient()
	var embedder ai.EmbeddingClient
	if util.GetEnv("AI_EMBED_MODEL") != "" {
		embedder = aiClient
	}

	router, err := extract.DefaultRouter(int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 500)))
	if err != nil {
		logger.Fatal("Failed to build extraction router", "err", err)
	}

	st := pgxstore.NewDBStorage(conn)
	classifier := classify.New(classify.DefaultConfig())
	builder := graph.NewBuilder(st, graph.NewExtractorFromEnv(aiClient))
	auditor := audit.NewRecorder(st)

	ingestOpts := []ingest.Option{ingest.WithAuditor(auditor)}
	if embedder != nil {
		ingestOpts = append(ingestOpts, ingest.WithEmbedder(embedder))
	}
	ingestor := ingest.New(st, classifier, router, builder, ingestOpts...)

	app := &mid.App{
		Store:          st,
		Queue:          ch,
		Key:            &k,
		S3:             s3,
		Search:         search.NewEngine(st, embedder),
		Ingestor:       ingestor,
		Builder:        builder,
		Classifier:     classifier,
		Auditor:        auditor,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterTenantID: util.GetEnv("MASTER_TENANT_ID"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Error("[HTTP] Request failed",
					"method", v.Method, "uri", v.URI, "status", v.Status, "err", v.Error)
				return nil
			}
			logger.Info("[HTTP] Request handled",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1G"))

	RegisterRoutes(e)

	auditor.Record(ctx, common.SecurityContext{UserID: common.SystemOwnerID}, audit.Event{
		Type:    audit.SystemStartup,
		Details: map[string]any{"component": "server"},
	})

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	auditor.Record(shutdownCtx, common.SecurityContext{UserID: common.SystemOwnerID}, audit.Event{
		Type:    audit.SystemShutdown,
		Details: map[string]any{"component": "server"},
	})
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// newAIClient builds the embedding and extraction client selected by
// AI_ADAPTER.
func newAIClient() ai.Client {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := ollama.NewClient(ollama.NewClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
			TimeoutMin:            int64(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return openai.NewClient(openai.NewClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
			TimeoutMin:            int64(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
		})
	}
}

func runMigrations(databaseURL string) {
	sourceURL := util.GetEnvString("MIGRATIONS_PATH", "file://internal/migrations")
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize migrations", "err", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to apply migrations", "err", err)
	}
	logger.Info("[Server] Database migrations applied")
}
