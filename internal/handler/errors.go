package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/teranga-booking/escrow-service/internal/service"
	"gorm.io/gorm"
)

// toHTTPError maps service errors onto distinct HTTP responses. Scan-time
// token errors keep separate codes so staff can tell "invalid code" from
// "funds already released".
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrBookingNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, service.ErrTokenAlreadyConsumed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrDuplicateReference):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrCancellationNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrGatewayMismatch):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
