package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"zapdesk/internal/infrastructure"
	"zapdesk/internal/interfaces/http"
	"zapdesk/internal/repository"
	"zapdesk/internal/usecases"
)

func main() {
	// Load .env file; absent is fine in containerized deployments.
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment as-is")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(mustEnv("DATABASE_URL"))
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	// Initialize repositories
	triggerRepo := repository.NewTriggerRepository(pgClient.Pool)
	chatLogRepo := repository.NewChatLogRepository(pgClient.Pool)
	contactRepo := repository.NewContactRepository(pgClient.Pool)
	instanceRepo := repository.NewInstanceRepository(pgClient.Pool)
	operatorRepo := repository.NewOperatorRepository(pgClient.Pool)

	// The handoff registry can live on local disk instead of Postgres for
	// single-box installs where the shared database gets recycled.
	var handoffs repository.HandoffRegistry = repository.NewHandoffRepository(pgClient.Pool)
	if path := os.Getenv("HANDOFF_DB"); path != "" {
		sqliteHandoffs, err := repository.NewSQLiteHandoffRepository(path)
		if err != nil {
			logrus.Fatalf("failed to open handoff database %s: %v", path, err)
		}
		defer sqliteHandoffs.Shutdown()
		handoffs = sqliteHandoffs
		logrus.Infof("handoff registry on local sqlite: %s", path)
	}

	// Gateway and notifications
	gateway := infrastructure.NewGatewayClient(mustEnv("GATEWAY_URL"), mustEnv("GATEWAY_API_KEY"))
	telegramChatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	notifier := infrastructure.NewTelegramNotifier(os.Getenv("TELEGRAM_BOT_TOKEN"), telegramChatID)

	// Media pipeline
	uploadDir := envOr("UPLOAD_DIR", "arquivos")
	publicURL := strings.TrimSuffix(envOr("PUBLIC_URL", "http://localhost:8080"), "/")
	decryptor := &usecases.MediaDecryptor{VerifyMAC: os.Getenv("MEDIA_VERIFY_MAC") == "true"}
	mediaService := usecases.NewMediaService(gateway, decryptor, uploadDir, publicURL)

	// Engine
	sessions := infrastructure.NewSessionManager()
	router := usecases.NewRouter(triggerRepo, handoffs, sessions, gateway)
	router.Notifier = notifier
	router.Media = mediaService
	router.History = chatLogRepo
	router.Contacts = contactRepo
	router.Flags = instanceRepo
	if kw := os.Getenv("HANDOFF_KEYWORDS"); kw != "" {
		router.HandoffKeywords = splitTrimmed(kw)
	}

	// Management API
	authUsecase := usecases.NewAuthUsecase(operatorRepo, mustEnv("JWT_SECRET"))
	if err := authUsecase.EnsureAdmin(context.Background(),
		envOr("ADMIN_USERNAME", "admin"), envOr("ADMIN_PASSWORD", "admin123")); err != nil {
		logrus.Warnf("failed to ensure admin user: %v", err)
	}

	maxTriggers, _ := strconv.Atoi(os.Getenv("MAX_TRIGGERS_PER_INSTANCE"))
	webhookURL := envOr("WEBHOOK_URL", publicURL+"/webhook/whatsapp")
	adminHandler := http.NewAdminHandler(triggerRepo, handoffs, chatLogRepo, contactRepo,
		instanceRepo, operatorRepo, authUsecase, gateway, uploadDir, webhookURL, maxTriggers)
	middleware := http.NewMiddleware(mustEnv("JWT_SECRET"))

	// Setup HTTP server
	r := gin.Default()
	http.SetupRoutes(r, router, authUsecase, adminHandler, middleware, uploadDir)

	addr := "0.0.0.0:" + envOr("PORT", "8080")
	logrus.Infof("engine listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logrus.Fatalf("failed to start HTTP server: %v", err)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logrus.Fatalf("required environment variable %s is not set", key)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitTrimmed(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
