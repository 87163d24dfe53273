package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberbot/internal/domain"
	"memberbot/internal/line"
	"memberbot/internal/telegram"
)

const maxWebhookBody = 1 << 20

// EventProcessor es lo que los webhooks necesitan del servicio de registro.
type EventProcessor interface {
	HandleBatch(ctx context.Context, events []domain.Event) error
}

// CallbackAcker cierra el spinner de un boton inline de Telegram.
type CallbackAcker interface {
	AckCallback(callbackID string)
}

// WebhookHandler recibe los webhooks de LINE y Telegram.
type WebhookHandler struct {
	logger *zap.Logger
	events EventProcessor
	acker  CallbackAcker
}

func NewWebhookHandler(logger *zap.Logger, events EventProcessor, acker CallbackAcker) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{logger: logger, events: events, acker: acker}
}

// LINE maneja POST /webhook/line.
func (h *WebhookHandler) LINE(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	req, err := line.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("invalid line webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	events := make([]domain.Event, 0, len(req.Events))
	for _, raw := range req.Events {
		events = append(events, line.Classify(raw))
	}
	h.dispatch(c, events)
}

// Telegram maneja POST /webhook/telegram; Telegram envia un update por request.
func (h *WebhookHandler) Telegram(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("invalid telegram update", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if update.CallbackQuery != nil && h.acker != nil {
		h.acker.AckCallback(update.CallbackQuery.ID)
	}
	h.dispatch(c, []domain.Event{telegram.Classify(update)})
}

// dispatch procesa y siempre responde 200: un reenvio de la plataforma no
// arregla un colaborador caido y el usuario puede repetir su mensaje.
func (h *WebhookHandler) dispatch(c *gin.Context, events []domain.Event) {
	// Si la plataforma corta la conexion la operacion en curso igual termina.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.events.HandleBatch(ctx, events); err != nil {
		h.logger.Warn("webhook batch finished with errors", zap.Int("events", len(events)), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
