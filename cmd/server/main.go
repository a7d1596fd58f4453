// Package main is the entry point of the Doubtiq API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/internal/handler"
	"doubtiq-go/internal/pipeline"
	"doubtiq-go/internal/repository"
	"doubtiq-go/internal/service"
	"doubtiq-go/pkg/database"
	"doubtiq-go/pkg/es"
	"doubtiq-go/pkg/kafka"
	"doubtiq-go/pkg/llm"
	"doubtiq-go/pkg/log"
	"doubtiq-go/pkg/mail"
	"doubtiq-go/pkg/storage"
	"doubtiq-go/pkg/tika"
	"doubtiq-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	defaultConfig := os.Getenv("DOUBTIQ_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "./configs/config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to the YAML config file")
	flag.Parse()

	// 1. configuration and logging
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialised")

	if cfg.JWT.Secret == "" {
		log.Warnf("jwt.secret is empty; register, login and authenticated routes will fail")
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 2. storage
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database", err)
	}
	rdb, err := database.NewRedis(rootCtx, cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to redis", err)
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	doubtRepo := repository.NewDoubtRepository(db)
	otpRepo := repository.NewOTPRepository(rdb)

	// 3. clients
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	llmClient := llm.NewClient(cfg.AI)
	if cfg.AI.APIKey == "" {
		log.Warnf("ai.api_key is empty; chat and doubt answers will return 503")
	}

	var extractor service.TextExtractor
	if cfg.Tika.ServerURL != "" {
		extractor = tika.NewClient(cfg.Tika)
	}

	var archive service.AttachmentArchive
	if cfg.MinIO.Enabled {
		a, err := storage.NewAttachmentArchive(rootCtx, cfg.MinIO)
		if err != nil {
			log.Error("attachment archive unavailable, continuing without it", err)
		} else {
			archive = a
		}
	}

	var index service.DoubtIndex
	if cfg.Elasticsearch.Enabled {
		idx, err := es.NewDoubtIndex(cfg.Elasticsearch)
		if err != nil {
			log.Error("doubt index unavailable, continuing without it", err)
		} else {
			index = idx
		}
	}

	// 4. mail transport
	var mailer mail.Sender = mail.NopSender{}
	switch cfg.Mail.Transport {
	case "smtp":
		mailer = mail.NewSMTPSender(cfg.Mail)
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		mailer = mail.NewOutboxSender(producer)

		processor := pipeline.NewMailProcessor(mail.NewSMTPSender(cfg.Mail), cfg.Mail.Timeout)
		consumer := kafka.NewConsumer(cfg.Kafka, rdb, processor)
		go consumer.Run(rootCtx)
	case "", "none":
	default:
		log.Warnf("unknown mail.transport %q, password-reset mail disabled", cfg.Mail.Transport)
	}
	if !mailer.Configured() {
		log.Warnf("mail transport is not configured; OTP codes are only returned in debug mode")
	}

	// 5. services
	authService := service.NewAuthService(userRepo, otpRepo, jwtManager, mailer, service.AuthOptions{
		OTPTTL:      cfg.Auth.OTPTTL,
		MailTimeout: cfg.Mail.Timeout,
		Diagnostic:  cfg.Diagnostic(),
		AdminEmails: cfg.Auth.AdminEmails,
	})
	chatService := service.NewChatService(chatRepo, llmClient, extractor, archive, service.ChatOptions{
		AITimeout:          cfg.AI.Timeout,
		MaxAttachmentBytes: cfg.Server.MaxUploadBytes,
		DefaultPDFPrompt:   cfg.AI.DefaultPDFPrompt,
		DefaultImagePrompt: cfg.AI.DefaultImagePrompt,
	})
	doubtService := service.NewDoubtService(doubtRepo, llmClient, index, cfg.AI.Timeout)
	adminService := service.NewAdminService(userRepo)

	// 6. HTTP
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		AuthService:    authService,
		ChatService:    chatService,
		DoubtService:   doubtService,
		AdminService:   adminService,
		ClientOrigin:   cfg.Server.ClientOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AuthRateRPS:    cfg.Server.AuthRateRPS,
		AuthRateBurst:  cfg.Server.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	// stop the mail consumer before the HTTP server drains
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped")
}
