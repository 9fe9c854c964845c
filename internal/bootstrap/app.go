package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"policyqa/internal/ai"
	"policyqa/internal/cache"
	"policyqa/internal/config"
	"policyqa/internal/model"
	mysqlClient "policyqa/internal/platform/mysql"
	rabbitmqClient "policyqa/internal/platform/rabbitmq"
	redisClient "policyqa/internal/platform/redis"
	"policyqa/internal/pkg/pdfextract"
	"policyqa/internal/rag"
	"policyqa/internal/repository"
	"policyqa/internal/storage"
	"policyqa/internal/vectorindex"
	"policyqa/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Files        *storage.FileStore
	Index        vectorindex.Index
	Embedder     *ai.EmbeddingClient
	Completer    *ai.CompletionClient
	HistoryCache *cache.HistoryCache

	IngestWorker  *worker.IngestWorker
	HistoryWorker *worker.HistoryPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Document{}, &model.DocumentChunk{}, &model.ChatHistory{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	files, err := storage.NewFileStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	completer := ai.NewCompletionClient(ai.CompletionConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	index := vectorindex.NewGormIndex(mysqlDB)
	docRepo := repository.NewDocumentRepository(mysqlDB)
	historyRepo := repository.NewChatHistoryRepository(mysqlDB)
	historyCache := cache.NewHistoryCache(redisCli, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	ingestLock := cache.NewIngestLock(redisCli, time.Duration(cfg.Redis.IngestLockTTLSeconds)*time.Second)

	ingestor := rag.NewIngestor(docRepo, files, pdfextract.ExtractText, embedder, index, rag.IngestOptions{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		BatchSize:    cfg.RAG.EmbedBatchSize,
	})

	ingestWorker := worker.NewIngestWorker(mqConn, ingestor, docRepo, ingestLock, cfg.RabbitMQ.IngestQueue, cfg.RAG.IngestMaxAttempts)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	historyWorker := worker.NewHistoryPersistWorker(mqConn, historyRepo, historyCache, cfg.RabbitMQ.HistoryPersistQueue)
	if err := historyWorker.Start(ctx); err != nil {
		ingestWorker.Close()
		return nil, fmt.Errorf("start history worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		Files:         files,
		Index:         index,
		Embedder:      embedder,
		Completer:     completer,
		HistoryCache:  historyCache,
		IngestWorker:  ingestWorker,
		HistoryWorker: historyWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.HistoryWorker != nil {
		a.HistoryWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
