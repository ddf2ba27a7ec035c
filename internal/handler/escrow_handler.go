package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/teranga-booking/escrow-service/internal/dto"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"github.com/teranga-booking/escrow-service/internal/service"
)

type EscrowHandler struct {
	svc      Coordinator
	payments repository.PaymentRepository
}

func NewEscrowHandler(svc Coordinator, payments repository.PaymentRepository) *EscrowHandler {
	return &EscrowHandler{svc: svc, payments: payments}
}

func (h *EscrowHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/payments")
	g.POST("/webhook/capture", h.GatewayCapture)
	g.POST("/:id/accept", h.OwnerAccept)
	g.POST("/:id/token", h.ReissueToken)
	g.POST("/qr-code/scan", h.Scan)
	g.GET("/:id", h.GetPayment)
}

// GatewayCapture receives the external gateway's capture confirmation.
// Duplicate deliveries are expected and converge to the same response.
func (h *EscrowHandler) GatewayCapture(c echo.Context) error {
	var req dto.GatewayCaptureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.GatewayReference == "" || req.PaymentID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "gateway_reference and payment_id are required")
	}

	payment, err := h.svc.OnGatewayCaptured(c.Request().Context(), service.GatewayCapture{
		GatewayReference: req.GatewayReference,
		PaymentID:        req.PaymentID,
		Amount:           req.Amount,
		Currency:         req.Currency,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}

// OwnerAccept confirms the booking on the establishment side and returns
// the freshly minted release token for receipt embedding.
func (h *EscrowHandler) OwnerAccept(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, token, err := h.svc.OnOwnerAccepted(c.Request().Context(), uint(id))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"payment": dto.ToPaymentResponse(payment),
		"token":   dto.ToTokenResponse(token),
	})
}

func (h *EscrowHandler) ReissueToken(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	token, err := h.svc.ReissueToken(c.Request().Context(), uint(id))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToTokenResponse(token))
}

func (h *EscrowHandler) Scan(c echo.Context) error {
	var req dto.ScanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	scanner := req.ScannerID
	if scanner == "" {
		scanner = "anonymous:" + uuid.NewString()
	}

	result, err := h.svc.OnQrScanned(c.Request().Context(), req.Token, scanner)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *EscrowHandler) GetPayment(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.payments.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}

	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}
