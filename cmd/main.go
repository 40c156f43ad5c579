package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	appconfig "github.com/fyerfyer/manual-ingest/config"
	"github.com/fyerfyer/manual-ingest/internal/cache"
	"github.com/fyerfyer/manual-ingest/internal/database"
	"github.com/fyerfyer/manual-ingest/internal/document"
	"github.com/fyerfyer/manual-ingest/internal/models"
	"github.com/fyerfyer/manual-ingest/internal/repository"
	"github.com/fyerfyer/manual-ingest/internal/segment"
	"github.com/fyerfyer/manual-ingest/internal/services"
	"github.com/fyerfyer/manual-ingest/pkg/storage"
	"github.com/fyerfyer/manual-ingest/pkg/taskqueue"
)

// cliFlags are the command line options. Infrastructure settings come
// from the config file; the flags select what this invocation does.
type cliFlags struct {
	ConfigFile string // config file path
	Input      string // source file or directory to ingest
	TotalPages int    // page count hint for flat sources
	Force      bool   // re-ingest known content hashes
	Workers    int    // concurrent documents for directory runs
	Enqueue    bool   // enqueue tasks instead of ingesting inline
	Worker     bool   // run as a queue worker
	LogLevel   string // log level override
}

func main() {
	flags := parseFlags()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := appconfig.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.Workers > 0 {
		cfg.Ingest.Workers = flags.Workers
	}
	if flags.TotalPages > 0 {
		cfg.Ingest.TotalPages = flags.TotalPages
	}
	if flags.Force {
		cfg.Ingest.Force = true
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("Starting manual ingestion")

	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	assetStore, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	dedupCache, err := setupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	service := buildIngestService(cfg, assetStore, dedupCache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.Worker:
		err = runWorker(ctx, cfg, service, logger)
	case flags.Enqueue:
		err = runEnqueue(ctx, cfg, flags, logger)
	default:
		err = runSync(ctx, cfg, flags, service, logger)
	}

	if err != nil {
		logger.Fatalf("Ingestion failed: %v", err)
	}
	logger.Info("Done")
}

// parseFlags parses the command line.
func parseFlags() cliFlags {
	flags := cliFlags{}

	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&flags.Input, "input", "", "Source file or directory to ingest")
	flag.IntVar(&flags.TotalPages, "pages", 0, "Page count hint for flat sources")
	flag.BoolVar(&flags.Force, "force", false, "Re-ingest documents with known content hashes")
	flag.IntVar(&flags.Workers, "workers", 0, "Concurrent documents for directory ingestion")
	flag.BoolVar(&flags.Enqueue, "enqueue", false, "Enqueue ingestion tasks instead of running inline")
	flag.BoolVar(&flags.Worker, "worker", false, "Run as a queue worker")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")

	flag.Parse()
	return flags
}

// buildIngestService wires the pipeline from the loaded configuration.
func buildIngestService(cfg *appconfig.Config, assetStore storage.Storage, dedupCache cache.Cache, logger *logrus.Logger) *services.IngestService {
	repo := repository.NewDocumentRepository()
	counter := segment.NewTokenCounter()

	segmentOpts := []segment.AssemblerOption{segment.WithChunkSize(cfg.Segment.ChunkSize)}
	if cfg.Segment.EnforceMinUnitSize {
		segmentOpts = append(segmentOpts, segment.WithMinUnitSize(cfg.Segment.MinUnitSize))
	}

	chunker := document.NewSemanticChunker(document.ChunkerConfig{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		MinChunkSize: cfg.Chunking.MinChunkSize,
		MaxChunkSize: cfg.Chunking.MaxChunkSize,
	}, counter, document.WithChunkerLogger(logger))

	opts := []services.IngestOption{
		services.WithLogger(logger),
		services.WithTokenCounter(counter),
		services.WithAssemblerOptions(segmentOpts...),
		services.WithChunker(chunker),
		services.WithDedupTTL(time.Duration(cfg.Cache.TTL) * time.Second),
	}
	if assetStore != nil {
		opts = append(opts, services.WithStorage(assetStore))
	}
	if dedupCache != nil {
		opts = append(opts, services.WithCache(dedupCache))
	}

	return services.NewIngestService(repo, opts...)
}

// runSync ingests the input inline: a directory through the bounded
// batch runner, a single file through the pipeline its extension selects.
func runSync(ctx context.Context, cfg *appconfig.Config, flags cliFlags, service *services.IngestService, logger *logrus.Logger) error {
	if flags.Input == "" {
		return fmt.Errorf("no input specified, use -input")
	}

	info, err := os.Stat(flags.Input)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}

	if info.IsDir() {
		batch := services.NewBatchIngestor(service,
			services.WithWorkers(cfg.Ingest.Workers),
			services.WithForce(cfg.Ingest.Force),
			services.WithFlatTotalPages(cfg.Ingest.TotalPages),
			services.WithBatchLogger(logger),
		)
		result, err := batch.IngestDirectory(ctx, flags.Input)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed", result.Failed, result.Processed+result.Skipped+result.Failed)
		}
		return nil
	}

	switch modeForInput(flags.Input) {
	case models.ModeLayout:
		_, err = service.ProcessLayoutDocument(ctx, flags.Input, cfg.Ingest.Force)
	case models.ModeFlat:
		_, err = service.ProcessFlatDocument(ctx, flags.Input, cfg.Ingest.TotalPages, cfg.Ingest.Force)
	default:
		err = fmt.Errorf("unrecognized source file: %s", flags.Input)
	}
	return err
}

// runEnqueue pushes ingestion tasks onto the queue and returns.
func runEnqueue(ctx context.Context, cfg *appconfig.Config, flags cliFlags, logger *logrus.Logger) error {
	if flags.Input == "" {
		return fmt.Errorf("no input specified, use -input")
	}

	queue, err := setupQueue(cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	var taskID string
	docID := fileStemDocID(flags.Input)
	switch modeForInput(flags.Input) {
	case models.ModeLayout:
		payload := taskqueue.IngestLayoutPayload{ExtractPath: flags.Input, Force: cfg.Ingest.Force}
		taskID, err = queue.Enqueue(ctx, taskqueue.TaskIngestLayout, docID, payload)
	case models.ModeFlat:
		payload := taskqueue.IngestFlatPayload{FilePath: flags.Input, TotalPages: cfg.Ingest.TotalPages, Force: cfg.Ingest.Force}
		taskID, err = queue.Enqueue(ctx, taskqueue.TaskIngestFlat, docID, payload)
	default:
		return fmt.Errorf("unrecognized source file: %s", flags.Input)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"doc_id":  docID,
	}).Info("Task enqueued")
	return nil
}

// runWorker consumes queued ingestion tasks until a signal arrives.
func runWorker(ctx context.Context, cfg *appconfig.Config, service *services.IngestService, logger *logrus.Logger) error {
	queue, err := setupQueue(cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return fmt.Errorf("worker mode requires the redis queue")
	}

	worker := taskqueue.NewRedisWorker(redisQueue, queueConfig(cfg))
	handler := services.NewIngestTaskHandler(service, queue, logger)
	for _, taskType := range handler.GetTaskTypes() {
		worker.RegisterHandler(taskType, handler)
	}

	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("Worker started, waiting for tasks")

	<-ctx.Done()
	logger.Info("Shutting down worker")
	worker.Stop()
	return nil
}

// fileStemDocID derives the doc_id a worker will use for the source.
func fileStemDocID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// modeForInput maps a file extension to the pipeline that handles it.
func modeForInput(path string) models.IngestMode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return models.ModeLayout
	case ".md", ".markdown", ".txt":
		return models.ModeFlat
	}
	return ""
}

// setupLogger builds the process logger, with optional file rotation.
func setupLogger(cfg appconfig.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}

	return logger
}

// setupDatabase opens the metadata database and runs migrations.
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN
	return database.Setup(dbConfig, logger)
}

// setupStorage creates the image asset store.
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Path})
	}
}

// setupCache creates the dedup cache, or nothing when disabled.
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	if !cfg.Enable {
		return nil, nil
	}

	cacheConfig := cache.Config{
		Type:            cfg.Type,
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupQueue creates the task queue from the configuration.
func setupQueue(cfg *appconfig.Config) (taskqueue.Queue, error) {
	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig(cfg))
}

// queueConfig maps app configuration onto queue settings.
func queueConfig(cfg *appconfig.Config) *taskqueue.Config {
	qc := taskqueue.DefaultConfig()
	qc.RedisAddr = cfg.Queue.RedisAddr
	qc.RedisPassword = cfg.Queue.RedisPassword
	qc.RedisDB = cfg.Queue.RedisDB
	if cfg.Queue.Concurrency > 0 {
		qc.Concurrency = cfg.Queue.Concurrency
	}
	if cfg.Queue.RetryLimit > 0 {
		qc.RetryLimit = cfg.Queue.RetryLimit
	}
	if cfg.Queue.RetryDelay > 0 {
		qc.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second
	}
	return qc
}
