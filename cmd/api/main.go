package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/reviq/backend/internal/api/handlers"
	"github.com/reviq/backend/internal/cache/redis"
	"github.com/reviq/backend/internal/encoding"
	"github.com/reviq/backend/internal/evaluation"
	"github.com/reviq/backend/internal/ingest"
	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/middleware/ratelimit"
	"github.com/reviq/backend/internal/middleware/security"
	"github.com/reviq/backend/internal/middleware/validation"
	"github.com/reviq/backend/internal/pipeline"
	"github.com/reviq/backend/internal/predict"
	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage/sqlite"
	"github.com/reviq/backend/internal/vector/milvus"
	"github.com/reviq/backend/pkg/config"
	appLogger "github.com/reviq/backend/pkg/logger"
	"github.com/reviq/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting REVIQ adherence scoring API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = appLogger.Log

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		err = retry.Do(context.Background(), retryCfg, func() error {
			var connErr error
			cacheClient, connErr = redis.NewClient(
				cfg.Redis.Host,
				cfg.Redis.Port,
				cfg.Redis.Password,
				cfg.Redis.DB,
				time.Duration(cfg.Redis.TTLSec)*time.Second,
			)
			return connErr
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, running without score cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	var vectorClient *milvus.Client
	if cfg.Milvus.Enabled {
		vectorDim := (&encoding.Schema{Columns: encoding.CategoricalColumns}).Dim()
		err = retry.Do(context.Background(), retryCfg, func() error {
			var connErr error
			vectorClient, connErr = milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, vectorDim)
			if connErr != nil {
				return connErr
			}
			return vectorClient.EnsureCollection(context.Background())
		})
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer vectorClient.Close()
	}

	scoringPipeline := pipeline.New(
		sqliteClient,
		cacheClient,
		vectorClient,
		scoring.NewRateStrategy(),
		scoring.NewLookupStrategy(),
	)

	var predictor *predict.Predictor
	var evaluator *evaluation.Evaluator
	if vectorClient != nil {
		predictor = predict.NewPredictor(sqliteClient, vectorClient, cfg.Scoring.Neighbors)
		evaluator = evaluation.NewEvaluator(sqliteClient, predictor, cfg.Scoring.EvalTolerance)
		scoringPipeline.OnRunComplete(predictor.InvalidateSchema)
	}

	loader := ingest.NewLoader(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{MaxBodySize: cfg.Server.BodyLimit}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.Log})
	app.Use(limiter.Middleware())

	scoreHandler := handlers.NewScoreHandler(scoringPipeline, sqliteClient, cacheClient, cfg.Scoring.DefaultStrategy)
	ingestHandler := handlers.NewIngestHandler(loader)

	api := app.Group("/api/v1")

	api.Post("/score/run", scoreHandler.RunScore)
	api.Get("/score/runs", scoreHandler.ListRuns)
	api.Get("/patients/:id/scores", scoreHandler.GetPatientScores)
	api.Post("/ingest/:table", ingestHandler.UploadTable)

	if predictor != nil {
		predictHandler := handlers.NewPredictHandler(predictor, cacheClient)
		api.Post("/predict", predictHandler.HandlePredict)
	}
	if evaluator != nil {
		evaluateHandler := handlers.NewEvaluateHandler(evaluator)
		api.Post("/evaluate", evaluateHandler.HandleEvaluate)
	}

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	wsHandler := handlers.NewWebSocketHandler(scoringPipeline, cfg.Scoring.DefaultStrategy)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/score", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
