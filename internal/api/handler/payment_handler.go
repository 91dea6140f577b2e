package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/botforge/miniapp-system/internal/api/metrics"
	"github.com/botforge/miniapp-system/internal/core/ports"
	"github.com/botforge/miniapp-system/internal/verify"
)

// PaymentHandler guards the payment-provider webhook channel. The raw
// body is verified against the provider signature before any business
// logic sees it; on failure the body is never processed.
type PaymentHandler struct {
	secret     string
	headerName string
	processor  ports.PaymentProcessor
}

func NewPaymentHandler(secret, headerName string, processor ports.PaymentProcessor) *PaymentHandler {
	return &PaymentHandler{secret: secret, headerName: headerName, processor: processor}
}

// Receive handles POST /webhook/payment.
//
// @Summary      Receive a payment provider webhook
// @Tags         webhook
// @Router       /webhook/payment [post]
func (h *PaymentHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	signature := c.Request().Header.Get(h.headerName)
	if err := verify.VerifyPaymentSignature(body, signature, h.secret); err != nil {
		metrics.VerificationsTotal.WithLabelValues("payment_webhook", verifyResult(err)).Inc()
		return err
	}
	metrics.VerificationsTotal.WithLabelValues("payment_webhook", "valid").Inc()

	if err := h.processor.Process(c.Request().Context(), ports.PaymentEvent{
		Signature: signature,
		Body:      body,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
}
