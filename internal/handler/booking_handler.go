package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/teranga-booking/escrow-service/internal/dto"
	"github.com/teranga-booking/escrow-service/internal/models"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"github.com/teranga-booking/escrow-service/internal/service"
	"gorm.io/gorm"
)

// Coordinator is the slice of the reconciler the handlers drive.
type Coordinator interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*models.Booking, *models.Payment, error)
	OnGatewayCaptured(ctx context.Context, in service.GatewayCapture) (*models.Payment, error)
	OnOwnerAccepted(ctx context.Context, paymentID uint) (*models.Payment, *models.QRReleaseToken, error)
	ReissueToken(ctx context.Context, paymentID uint) (*models.QRReleaseToken, error)
	OnQrScanned(ctx context.Context, rawToken, scanner string) (*service.ReleaseResult, error)
	OnCancellationRequested(ctx context.Context, bookingID uint, actor service.Actor) (*models.Booking, error)
}

type BookingHandler struct {
	svc      Coordinator
	bookings repository.BookingRepository
	payments repository.PaymentRepository
}

func NewBookingHandler(svc Coordinator, bookings repository.BookingRepository, payments repository.PaymentRepository) *BookingHandler {
	return &BookingHandler{svc: svc, bookings: bookings, payments: payments}
}

func (h *BookingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/bookings")
	g.POST("", h.CreateBooking)
	g.GET("/:id", h.GetBooking)
	g.GET("/reference/:ref", h.GetBookingByReference)
	g.POST("/:id/cancel", h.CancelBooking)
}

func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req dto.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CustomerID == "" || req.OwnerID == "" || req.BookableID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_id, owner_id and bookable_id are required")
	}

	booking, payment, err := h.svc.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		CustomerID:   req.CustomerID,
		OwnerID:      req.OwnerID,
		BookableType: models.BookableType(req.BookableType),
		BookableID:   req.BookableID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Guests:       req.Guests,
		Amount:       req.Amount,
		Currency:     req.Currency,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, dto.ToBookingResponse(booking, payment))
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	booking, err := h.bookings.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking, h.activePayment(c, booking.ID)))
}

func (h *BookingHandler) GetBookingByReference(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing booking reference")
	}

	booking, err := h.bookings.FindByReference(c.Request().Context(), ref)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking, h.activePayment(c, booking.ID)))
}

func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var req dto.CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	actor := service.Actor(req.Actor)
	if actor != service.ActorCustomer && actor != service.ActorAdmin {
		return echo.NewHTTPError(http.StatusBadRequest, "actor must be customer or admin")
	}

	booking, err := h.svc.OnCancellationRequested(c.Request().Context(), uint(id), actor)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, dto.ToBookingResponse(booking, nil))
}

// activePayment resolves the booking's current payment attempt for
// read-only projections; absence is not an error.
func (h *BookingHandler) activePayment(c echo.Context, bookingID uint) *models.Payment {
	if h.payments == nil {
		return nil
	}
	db := h.payments.GetDB()
	if db == nil {
		return nil
	}
	payment, err := h.payments.FindActiveByBookingID(c.Request().Context(), db, bookingID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return payment
}
