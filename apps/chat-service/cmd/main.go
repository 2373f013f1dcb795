package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"gochat-server/apps/chat-service/dao"
	"gochat-server/apps/chat-service/handler"
	"gochat-server/apps/chat-service/model"
	"gochat-server/apps/chat-service/service"
	"gochat-server/pkg/config"
	"gochat-server/pkg/database"
	"gochat-server/pkg/imagestore"
	"gochat-server/pkg/kafka"
	"gochat-server/pkg/logger"
	"gochat-server/pkg/middleware"
	"gochat-server/pkg/presence"
	"gochat-server/pkg/redis"
	"gochat-server/pkg/room"
	"gochat-server/pkg/server"
	"gochat-server/pkg/snowflake"
	"gochat-server/pkg/telemetry"
)

const serviceName = "chat-service"

func main() {
	cfg := config.LoadConfig(serviceName)

	if err := logger.Init(cfg.App.LogLevel); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	kratosLogger := logger.NewKratosStdLogger(cfg.App.Name, cfg.App.Version)

	ctx := context.Background()

	tele, err := telemetry.NewProvider(telemetry.DefaultConfig(cfg.App.Name))
	if err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	mongoDB, err := database.NewMongoDB(cfg.Database.MongoDB)
	if err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	for _, ensure := range []func(context.Context, *database.MongoDB) error{
		dao.EnsureUserIndexes,
		dao.EnsureGroupIndexes,
		dao.EnsureMessageIndexes,
	} {
		if err := ensure(ctx, mongoDB); err != nil {
			kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to ensure indexes", "error", err)
			os.Exit(1)
		}
	}

	redisClient := redis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Ping(ctx); err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// kafka不可用时降级为不发事件，不阻塞启动
	var events service.EventPublisher
	if producer, err := kafka.InitProducer(cfg.Kafka.Brokers); err != nil {
		kratosLogger.Log(kratoslog.LevelWarn, "msg", "Kafka unavailable, group events disabled", "error", err)
	} else {
		events = producer
		defer producer.Close()
	}

	images, err := imagestore.NewDiskStore(cfg.Avatar.Dir, cfg.Avatar.BaseURL)
	if err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to initialize image store", "error", err)
		os.Exit(1)
	}

	idgen, err := snowflake.NewSnowflake(0)
	if err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	userDAO := dao.NewUserDAO(mongoDB)
	groupDAO := dao.NewGroupDAO(mongoDB)
	messageDAO := dao.NewMessageDAO(mongoDB)

	reg := presence.NewRegistry(redisClient)
	hub := room.NewHub()

	svc := service.NewService(userDAO, groupDAO, messageDAO, reg, hub, events, images, idgen, cfg.Kafka.Topic, log)

	if err := ensureDefaultGroup(ctx, groupDAO); err != nil {
		kratosLogger.Log(kratoslog.LevelFatal, "msg", "Failed to ensure default group", "error", err)
		os.Exit(1)
	}

	authMW := middleware.NewAuthMiddleware(kratosLogger, cfg.App.JWTSecret)
	loggingMW := middleware.NewLoggingMiddleware(kratosLogger)

	httpServer := server.NewHTTPServerWrapper(cfg, kratosLogger)
	httpServer.RegisterRoutes(func(engine *gin.Engine) {
		engine.Use(loggingMW.GinLogging())
		engine.Use(middleware.Recovery(log))
		engine.Use(middleware.RequestTimeout(10 * time.Second))
		engine.Static(cfg.Avatar.BaseURL, cfg.Avatar.Dir)

		httpHandler := handler.NewHTTPHandler(svc, hub, reg, authMW, cfg.App.JWTSecret, log)
		httpHandler.RegisterRoutes(engine)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			kratosLogger.Log(kratoslog.LevelError, "msg", "HTTP server failed", "error", err)
		}
	case sig := <-quit:
		kratosLogger.Log(kratoslog.LevelInfo, "msg", "Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		kratosLogger.Log(kratoslog.LevelError, "msg", "HTTP server shutdown failed", "error", err)
	}
	if err := tele.Shutdown(shutdownCtx); err != nil {
		kratosLogger.Log(kratoslog.LevelError, "msg", "Telemetry shutdown failed", "error", err)
	}
	_ = redisClient.Close()
	_ = mongoDB.Close(shutdownCtx)
}

// ensureDefaultGroup 保证系统内有且仅有一个默认群，新注册用户自动加入
func ensureDefaultGroup(ctx context.Context, groups dao.GroupDAO) error {
	_, err := groups.GetDefaultGroup(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	name := os.Getenv("DEFAULT_GROUP_NAME")
	if name == "" {
		name = "聊天室"
	}
	_, err = groups.CreateGroup(ctx, &model.Group{
		Name:      name,
		IsDefault: true,
		Members:   []string{},
	})
	if err != nil && !errors.Is(err, model.ErrDuplicateName) {
		return err
	}
	return nil
}
