package http

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"zapdesk/internal/entities"
	"zapdesk/internal/infrastructure"
	"zapdesk/internal/repository"
	"zapdesk/internal/usecases"
)

// AdminHandler is the management surface: trigger catalog CRUD, the
// operator's handoff queue, chat history, contacts, metrics and instance
// provisioning. The engine itself only reads what this writes.
type AdminHandler struct {
	triggers   *repository.TriggerRepository
	handoffs   repository.HandoffRegistry
	chatLogs   *repository.ChatLogRepository
	contacts   *repository.ContactRepository
	instances  *repository.InstanceRepository
	operators  *repository.OperatorRepository
	auth       *usecases.AuthUsecase
	gateway    *infrastructure.GatewayClient
	uploadDir  string
	webhookURL string
	maxTrigger int
}

func NewAdminHandler(
	triggers *repository.TriggerRepository,
	handoffs repository.HandoffRegistry,
	chatLogs *repository.ChatLogRepository,
	contacts *repository.ContactRepository,
	instances *repository.InstanceRepository,
	operators *repository.OperatorRepository,
	auth *usecases.AuthUsecase,
	gateway *infrastructure.GatewayClient,
	uploadDir, webhookURL string,
	maxTriggersPerInstance int,
) *AdminHandler {
	return &AdminHandler{
		triggers:   triggers,
		handoffs:   handoffs,
		chatLogs:   chatLogs,
		contacts:   contacts,
		instances:  instances,
		operators:  operators,
		auth:       auth,
		gateway:    gateway,
		uploadDir:  uploadDir,
		webhookURL: webhookURL,
		maxTrigger: maxTriggersPerInstance,
	}
}

// ---- Trigger catalog ----

func (h *AdminHandler) ListTriggers(c *gin.Context) {
	instance := c.Param("instance")
	nodes, err := h.triggers.ListByInstance(c.Request.Context(), instance)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list triggers"})
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (h *AdminHandler) SaveTrigger(c *gin.Context) {
	var payload struct {
		Instance     string `json:"instance"`
		Keyword      string `json:"keyword"`
		ResponseText string `json:"response_text"`
		MenuLabel    string `json:"menu_label"`
		Category     string `json:"category"`
		ParentID     *int64 `json:"parent_id"`
		MediaRef     string `json:"media_ref"`
		MediaKind    string `json:"media_kind"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidSlug(payload.Instance) || strings.TrimSpace(payload.Keyword) == "" || payload.ResponseText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instance, keyword and response_text are required"})
		return
	}

	if h.maxTrigger > 0 {
		count, err := h.triggers.CountByInstance(c.Request.Context(), payload.Instance)
		if err == nil && count >= h.maxTrigger {
			c.JSON(http.StatusForbidden, gin.H{"error": "Trigger limit reached for this instance"})
			return
		}
	}

	node := &entities.TriggerNode{
		Instance:     payload.Instance,
		Keyword:      strings.TrimSpace(payload.Keyword),
		ResponseText: payload.ResponseText,
		MenuLabel:    payload.MenuLabel,
		Category:     payload.Category,
		ParentID:     payload.ParentID,
		MediaRef:     payload.MediaRef,
		MediaKind:    payload.MediaKind,
	}
	if node.MenuLabel == "" {
		node.MenuLabel = "Geral"
	}
	if node.MediaKind == "" {
		node.MediaKind = entities.MediaText
	}

	if err := h.triggers.Upsert(c.Request.Context(), node); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save trigger"})
		return
	}
	c.JSON(http.StatusOK, node)
}

// DeleteTrigger removes a node and, via cascade, its whole subtree.
func (h *AdminHandler) DeleteTrigger(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trigger ID"})
		return
	}
	if err := h.triggers.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete trigger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *AdminHandler) TriggerUsage(c *gin.Context) {
	instance := c.Param("instance")
	count, err := h.triggers.CountByInstance(c.Request.Context(), instance)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count triggers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   count,
		"limit":   h.maxTrigger,
		"blocked": h.maxTrigger > 0 && count >= h.maxTrigger,
	})
}

// ---- Handoff queue ----

func (h *AdminHandler) ListHandoffs(c *gin.Context) {
	records, err := h.handoffs.ListOpen(c.Request.Context(), c.Param("instance"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list handoffs"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *AdminHandler) ListClosedHandoffs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.handoffs.ListClosed(c.Request.Context(), c.Param("instance"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list handoffs"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// OpenHandoff lets an operator take a conversation manually, silencing the
// bot for it.
func (h *AdminHandler) OpenHandoff(c *gin.Context) {
	var payload struct {
		Instance       string `json:"instance"`
		ConversationID string `json:"conversation_id"`
		ContactName    string `json:"contact_name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.handoffs.Open(c.Request.Context(), payload.Instance, payload.ConversationID, payload.ContactName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open handoff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "opened"})
}

func (h *AdminHandler) FinalizeHandoff(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid handoff ID"})
		return
	}
	var payload struct {
		AttendedBy string `json:"attended_by"`
	}
	c.ShouldBindJSON(&payload)

	if err := h.handoffs.Finalize(c.Request.Context(), id, payload.AttendedBy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finalize handoff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "finalized"})
}

// ---- Conversation view ----

func (h *AdminHandler) ChatHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.chatLogs.History(c.Request.Context(), c.Param("instance"), c.Param("conversation"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// OperatorSend delivers a manual operator reply through the gateway and
// records it in the thread.
func (h *AdminHandler) OperatorSend(c *gin.Context) {
	var payload struct {
		Instance       string `json:"instance"`
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
		OperatorName   string `json:"operator_name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	text := payload.Text
	if payload.OperatorName != "" {
		text = "*" + payload.OperatorName + ":*\n" + payload.Text
	}
	if err := h.gateway.SendText(c.Request.Context(), payload.Instance, payload.ConversationID, text); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Gateway send failed"})
		return
	}

	h.chatLogs.Insert(c.Request.Context(), &entities.ChatLog{
		Instance:       payload.Instance,
		ConversationID: payload.ConversationID,
		FromMe:         true,
		Kind:           entities.MediaText,
		Content:        payload.Text,
	})
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ---- Contacts ----

func (h *AdminHandler) ListContacts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := 50
	contacts, err := h.contacts.ListByInstance(c.Request.Context(), c.Param("instance"), perPage, (page-1)*perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *AdminHandler) RenameContact(c *gin.Context) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.contacts.Rename(c.Request.Context(), c.Param("instance"), c.Param("conversation"), payload.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename contact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

// ---- Instance management ----

func (h *AdminHandler) InstanceMetrics(c *gin.Context) {
	metrics, err := h.chatLogs.Metrics(c.Request.Context(), c.Param("instance"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute metrics"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *AdminHandler) SetBotEnabled(c *gin.Context) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.instances.SetBotEnabled(c.Request.Context(), c.Param("instance"), payload.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update instance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "enabled": payload.Enabled})
}

// ProvisionInstance creates the account on the gateway and points its
// event stream at our webhook.
func (h *AdminHandler) ProvisionInstance(c *gin.Context) {
	instance := c.Param("instance")
	if !ValidSlug(instance) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid instance name"})
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	c.ShouldBindJSON(&payload)
	if payload.Token == "" {
		payload.Token = uuid.NewString()
	}

	ctx := c.Request.Context()
	if err := h.gateway.CreateInstance(ctx, instance, payload.Token); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Gateway refused instance creation"})
		return
	}
	if err := h.gateway.ConfigureWebhook(ctx, instance, h.webhookURL); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Instance created but webhook setup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "provisioned", "instance": instance})
}

// InstanceQR renders the gateway pairing code as a PNG.
func (h *AdminHandler) InstanceQR(c *gin.Context) {
	code, err := h.gateway.PairingCode(c.Request.Context(), c.Param("instance"))
	if err != nil || code == "" {
		c.String(http.StatusAccepted, "Pairing code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// UploadMedia stores a trigger attachment and returns the reference the
// catalog should save.
func (h *AdminHandler) UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"media_ref": name, "url": "/arquivos/" + name})
}

// ---- Team ----

func (h *AdminHandler) ListTeam(c *gin.Context) {
	team, err := h.operators.ListByInstance(c.Request.Context(), c.Param("instance"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list team"})
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *AdminHandler) CreateOperator(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Instance string `json:"instance"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidSlug(payload.Username) || len(payload.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
		return
	}
	if payload.Role != "admin" {
		payload.Role = "operator"
	}

	if err := h.auth.Register(c.Request.Context(), payload.Username, payload.Password, payload.Name, payload.Role, payload.Instance); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created", "username": payload.Username})
}
