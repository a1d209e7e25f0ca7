package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/madhesh935/HS---Health-Smart/internal/assistant"
	"github.com/madhesh935/HS---Health-Smart/internal/common/database"
	"github.com/madhesh935/HS---Health-Smart/internal/common/logger"
	mqttcommon "github.com/madhesh935/HS---Health-Smart/internal/common/mqtt"
	rediscommon "github.com/madhesh935/HS---Health-Smart/internal/common/redis"
	"github.com/madhesh935/HS---Health-Smart/internal/config"
	"github.com/madhesh935/HS---Health-Smart/internal/consumer"
	httpapi "github.com/madhesh935/HS---Health-Smart/internal/http"
	"github.com/madhesh935/HS---Health-Smart/internal/repository"
	"github.com/madhesh935/HS---Health-Smart/internal/service"
	"github.com/madhesh935/HS---Health-Smart/internal/sms"
	"github.com/madhesh935/HS---Health-Smart/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 本地开发用 .env，生产环境直接注入环境变量
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "healthsmart-portal")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting healthsmart portal",
		zap.String("addr", cfg.Portal.Addr),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
	)

	// 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rediscommon.Close(redisClient)

	// MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	// 存储
	kv := store.NewRedisKV(redisClient)
	otpStore := store.NewOTPStore(kv, time.Duration(cfg.Portal.OTPTTLSeconds)*time.Second)
	tokenStore := store.NewTokenStore(kv, time.Duration(cfg.Portal.TokenTTLHours)*time.Hour)
	vitalsCache := store.NewVitalsCache(kv, time.Duration(cfg.Portal.VitalsTTLSecond)*time.Second)

	// 仓库
	hospitalRepo := repository.NewHospitalRepository(db, zapLogger)
	patientRepo := repository.NewPatientRepository(db, zapLogger)
	reportRepo := repository.NewReportRepository(db, zapLogger)
	chatRepo := repository.NewChatRepository(db, zapLogger)

	// 外部客户端
	smsClient := sms.NewClient(cfg.SMS.BaseURL, cfg.SMS.APIKey, zapLogger)
	var assistantClient service.AssistantClient
	if cfg.Assistant.Enabled {
		assistantClient = assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey, zapLogger)
	}

	// 服务
	authSvc := service.NewAuthService(otpStore, tokenStore, patientRepo, smsClient, zapLogger)
	patientSvc := service.NewPatientService(patientRepo, hospitalRepo, zapLogger)
	reportSvc := service.NewReportService(reportRepo, patientRepo, zapLogger)
	chatSvc := service.NewChatService(chatRepo, patientRepo, assistantClient, zapLogger)
	scanSvc := service.NewScanService(patientRepo, reportSvc, vitalsCache, redisClient, zapLogger)

	// MQTT 帧消费者
	frameConsumer := consumer.NewFrameConsumer(mqttClient, patientRepo, scanSvc, cfg.Portal.Scan.FrameTopic, zapLogger)
	if err := frameConsumer.Start(context.Background()); err != nil {
		zapLogger.Fatal("Failed to start frame consumer", zap.Error(err))
	}

	// HTTP 路由
	router := httpapi.NewRouter(zapLogger)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authSvc, zapLogger))
	router.RegisterPortalRoutes(
		httpapi.NewAuthMiddleware(tokenStore),
		httpapi.NewPatientHandler(patientSvc, hospitalRepo, zapLogger),
		httpapi.NewReportHandler(reportSvc, zapLogger),
		httpapi.NewChatHandler(chatSvc, zapLogger),
		httpapi.NewScanHandler(scanSvc, zapLogger),
	)

	server := service.NewServer(cfg.Portal.Addr, router, zapLogger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := frameConsumer.Stop(); err != nil {
		zapLogger.Error("Error stopping frame consumer", zap.Error(err))
	}
	if err := server.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
