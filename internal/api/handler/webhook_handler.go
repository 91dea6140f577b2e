package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/botforge/miniapp-system/internal/api/metrics"
	"github.com/botforge/miniapp-system/internal/core/ports"
	"github.com/botforge/miniapp-system/internal/verify"
)

// WebhookHandler guards the messaging-platform webhook channel: the
// shared-secret header is verified before the body is read, duplicates
// are dropped, and accepted updates are enqueued for ordered processing.
type WebhookHandler struct {
	secret     string
	headerName string
	dedup      ports.UpdateDedup
	queue      ports.UpdateEnqueuer
	log        zerolog.Logger
}

func NewWebhookHandler(secret, headerName string, dedup ports.UpdateDedup, queue ports.UpdateEnqueuer, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		headerName: headerName,
		dedup:      dedup,
		queue:      queue,
		log:        log,
	}
}

// updatePayload is the minimal shape of a platform update the trust
// boundary needs; the full body travels opaque to the bot logic.
type updatePayload struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Receive handles POST /webhook/bot.
//
// @Summary      Receive a bot webhook update
// @Tags         webhook
// @Router       /webhook/bot [post]
func (h *WebhookHandler) Receive(c echo.Context) error {
	if err := verify.VerifySecretToken(c.Request().Header.Get(h.headerName), h.secret); err != nil {
		metrics.VerificationsTotal.WithLabelValues("bot_webhook", verifyResult(err)).Inc()
		return err
	}
	metrics.VerificationsTotal.WithLabelValues("bot_webhook", "valid").Inc()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	var update updatePayload
	if err := json.Unmarshal(body, &update); err != nil || update.UpdateID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	}

	dup, err := h.dedup.IsDuplicate(c.Request().Context(), update.UpdateID)
	if err != nil {
		// Dedup store down: accept the update rather than lose it.
		h.log.Warn().Err(err).Msg("dedup check failed, processing anyway")
	}
	if dup {
		metrics.UpdatesDedupTotal.WithLabelValues("hit").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}
	metrics.UpdatesDedupTotal.WithLabelValues("miss").Inc()

	if err := h.dedup.Mark(c.Request().Context(), update.UpdateID); err != nil {
		h.log.Warn().Err(err).Msg("dedup mark failed")
	}

	h.queue.Enqueue(ports.BotUpdate{
		UpdateID: update.UpdateID,
		SenderID: update.Message.From.ID,
		ChatID:   update.Message.Chat.ID,
		Text:     update.Message.Text,
		Payload:  body,
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}
