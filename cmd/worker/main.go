package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctxeco/backend/internal/ingest"
	"github.com/ctxeco/backend/internal/queue"
	"github.com/ctxeco/backend/internal/storage"
	"github.com/ctxeco/backend/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ctxeco/backend/pkg/ai"
	"github.com/ctxeco/backend/pkg/ai/ollama"
	"github.com/ctxeco/backend/pkg/ai/openai"
	"github.com/ctxeco/backend/pkg/audit"
	"github.com/ctxeco/backend/pkg/classify"
	"github.com/ctxeco/backend/pkg/extract"
	"github.com/ctxeco/backend/pkg/graph"
	"github.com/ctxeco/backend/pkg/leaselock"
	"github.com/ctxeco/backend/pkg/logger"
	"github.com/ctxeco/backend/pkg/logger/console"
	pgxstore "github.com/ctxeco/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Service: "worker",
		Debug:   debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client := storage.NewS3Client(ctx)

	// Embedding and extraction client
	var aiClient ai.Client
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
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		aiClient = openai.NewClient(openai.NewClientParams{
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

	// Init pgx client
	poolCfg, err := pgxpool.ParseConfig(util.MustGetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to parse database config", "err", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.Setup(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Pipeline dependencies shared by both processors
	st := pgxstore.NewDBStorage(pgConn)
	locks := leaselock.New(pgConn)
	auditor := audit.NewRecorder(st)

	router, err := extract.DefaultRouter(int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 500)))
	if err != nil {
		logger.Fatal("Failed to build extraction router", "err", err)
	}

	var embedder ai.EmbeddingClient
	if util.GetEnv("AI_EMBED_MODEL") != "" {
		embedder = aiClient
	}

	ingestOpts := []ingest.Option{ingest.WithAuditor(auditor)}
	if embedder != nil {
		ingestOpts = append(ingestOpts, ingest.WithEmbedder(embedder))
	}
	ingestor := ingest.New(
		st,
		classify.New(classify.DefaultConfig()),
		router,
		graph.NewBuilder(st, graph.NewExtractorFromEnv(aiClient)),
		ingestOpts...,
	)

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues() {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				qName+"_consumer",
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.SyncQueue:
					processingErr = queue.ProcessSyncMessage(ctx, st, s3Client, locks, auditor, ch, string(qm.msg.Body))
				case queue.IngestQueue:
					processingErr = queue.ProcessIngestMessage(ctx, st, s3Client, ingestor, string(qm.msg.Body))
				}

				// On failure park the message for retry or dead-letter it,
				// otherwise ack
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.RetryOrDead(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully",
						"queue", qm.queueName,
						"duration", time.Since(startTime).Round(time.Millisecond),
					)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
