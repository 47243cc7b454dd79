package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/api"
	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/db/mongodb"
	"github.com/boulevardgame/backend/internal/db/redis"
	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/manager"
	"github.com/boulevardgame/backend/internal/game/state"
	"github.com/boulevardgame/backend/internal/game/websocket"
	"github.com/boulevardgame/backend/internal/queue"
)

// The server keeps running when MongoDB or Redis are unreachable: games
// then live in memory only and intents are applied inline instead of
// through the queue. Both backends reattach on the next restart.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mongoClient *mongo.Client
		gameStore   *mongodb.GameStore
	)
	mongoClient, err = mongodb.Connect(ctx, cfg.MongoDB.URI, sugar)
	if err != nil {
		sugar.Warnf("MongoDB unavailable, games will not be persisted: %v", err)
		mongoClient = nil
	} else {
		defer func() {
			if err := mongoClient.Disconnect(ctx); err != nil {
				sugar.Errorf("Failed to disconnect from MongoDB: %v", err)
			}
		}()
		gameStore = mongodb.NewGameStore(mongoClient.Database(cfg.MongoDB.Database), cfg.MongoDB.GamesColl)
		if err := gameStore.EnsureIndexes(ctx); err != nil {
			sugar.Warnf("Failed to ensure MongoDB indexes: %v", err)
		}
		sugar.Info("Connected to MongoDB")
	}

	var (
		redisClient *goredis.Client
		stateStore  state.Store
		actionQueue state.ActionQueue
		redisQueue  *queue.RedisQueue
	)
	guarded, err := redis.CreateGuardedClient(ctx, cfg.Redis.URI, cfg.Redis.Password, cfg.Redis.DB, sugar)
	if err != nil {
		sugar.Warnf("Redis unavailable, state sync and intent queue disabled: %v", err)
	} else {
		redisClient = guarded.Client()
		defer func() {
			if err := redisClient.Close(); err != nil {
				sugar.Errorf("Failed to close Redis connection: %v", err)
			}
		}()
		stateStore = state.NewRedisStore(guarded)
		redisQueue = queue.NewRedisQueue(redisClient, logger)
		actionQueue = redisQueue
		sugar.Info("Connected to Redis")
	}

	gameManager := manager.NewGameManager(ctx, cfg, gameStore, stateStore, actionQueue, nil, engine.TimerScheduler{}, sugar)
	sugar.Info("Game manager initialized")

	hub := websocket.NewHub(ctx, gameManager, sugar)
	gameManager.SetHub(hub)
	sugar.Info("WebSocket hub wired to game manager")

	var worker *queue.Worker
	if redisQueue != nil {
		worker = queue.NewWorker(redisQueue, gameManager, logger)
		worker.CleanupStaleQueues()
		worker.Start()
		sugar.Info("Intent queue worker started")
	}

	server := api.NewServer(cfg, gameManager, hub, mongoClient, redisClient, sugar)

	go func() {
		if err := server.Start(); err != nil {
			sugar.Fatalf("Failed to start the server: %v", err)
		}
	}()
	sugar.Infof("Server started on %s:%d", cfg.Server.Host, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if worker != nil {
		worker.Stop()
		sugar.Info("Intent queue worker stopped")
	}

	sugar.Info("Shutting down server...")
	if err := server.Shutdown(ctx); err != nil {
		sugar.Fatalf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server exited properly")
}
