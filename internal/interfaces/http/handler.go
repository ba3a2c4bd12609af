package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zapdesk/internal/usecases"
)

// webhookTimeout bounds one delivery end to end. The gateway expects a
// fast acknowledgement; a slow branch degrades instead of hanging.
const webhookTimeout = 25 * time.Second

type Handler struct {
	router *usecases.Router
}

func NewHandler(router *usecases.Router) *Handler {
	return &Handler{router: router}
}

// HandleWebhook is the single inbound entry point. It always answers 200
// with a small status body: the gateway does not retry meaningfully on
// non-200, and a 5xx for one bad event would only invite a retry storm.
func (h *Handler) HandleWebhook(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("webhook handler panic: %v", r)
			c.JSON(http.StatusOK, gin.H{"status": "error"})
		}
	}()

	var env webhookEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "detail": "unreadable payload"})
		return
	}

	if env.Event != "" && env.Event != "messages.upsert" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored_event"})
		return
	}
	if env.Instance == "" || env.Data.Key.RemoteJID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "detail": "missing instance or conversation"})
		return
	}

	ev := parseInboundEvent(&env)

	ctx, cancel := context.WithTimeout(c.Request.Context(), webhookTimeout)
	defer cancel()

	outcome := h.router.Handle(ctx, ev)
	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}

// SetupRoutes wires the public webhook, the static media dir and the
// JWT-protected management API.
func SetupRoutes(r *gin.Engine, router *usecases.Router, auth *usecases.AuthUsecase, admin *AdminHandler, middleware *Middleware, uploadDir string) {
	h := NewHandler(router)

	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(25 << 20)) // media uploads included
	r.Use(middleware.CORSMiddleware())

	// Public surface.
	r.POST("/webhook/whatsapp", h.HandleWebhook)
	r.Static("/arquivos", uploadDir)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	// Management API.
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.GET("/triggers/:instance", admin.ListTriggers)
		api.POST("/triggers", admin.SaveTrigger)
		api.DELETE("/triggers/:id", admin.DeleteTrigger)
		api.GET("/triggers/:instance/usage", admin.TriggerUsage)

		api.GET("/handoffs/:instance", admin.ListHandoffs)
		api.GET("/handoffs/:instance/closed", admin.ListClosedHandoffs)
		api.POST("/handoffs/open", admin.OpenHandoff)
		api.POST("/handoffs/:id/finalize", admin.FinalizeHandoff)

		api.GET("/chat/:instance/:conversation", admin.ChatHistory)
		api.POST("/chat/send", admin.OperatorSend)

		api.GET("/contacts/:instance", admin.ListContacts)
		api.PUT("/contacts/:instance/:conversation/name", admin.RenameContact)

		api.GET("/metrics/:instance", admin.InstanceMetrics)
		api.PUT("/instances/:instance/bot", admin.SetBotEnabled)
		api.POST("/upload", admin.UploadMedia)

		api.GET("/team/:instance", admin.ListTeam)
	}

	// Admin-only surface.
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.AuthRequired())
	adminGroup.Use(middleware.AdminRequired())
	{
		adminGroup.POST("/operators", admin.CreateOperator)
		adminGroup.POST("/instances/:instance/provision", admin.ProvisionInstance)
		adminGroup.GET("/instances/:instance/qr", admin.InstanceQR)
	}
}
