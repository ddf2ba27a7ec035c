package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/teranga-booking/escrow-service/internal/dto"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"github.com/teranga-booking/escrow-service/internal/service"
)

type WalletHandler struct {
	wallets repository.WalletRepository
	ledger  *service.LedgerService
}

func NewWalletHandler(wallets repository.WalletRepository, ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{wallets: wallets, ledger: ledger}
}

func (h *WalletHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/wallets")
	g.GET("/:id", h.GetWallet)
	g.GET("/:id/transactions", h.ListTransactions)
}

// GetWallet returns the cached balance alongside the balance recomputed
// from the ledger, so a drift is immediately visible.
func (h *WalletHandler) GetWallet(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid wallet id")
	}

	account, err := h.wallets.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "wallet account not found")
	}

	ledgerBalance, err := h.ledger.Balance(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.WalletResponse{
		ID:            account.ID,
		Kind:          account.Kind,
		OwnerRef:      account.OwnerRef,
		Balance:       account.Balance,
		LedgerBalance: ledgerBalance,
	})
}

func (h *WalletHandler) ListTransactions(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid wallet id")
	}

	txs, err := h.wallets.ListTransactions(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]dto.TransactionResponse, len(txs))
	for i := range txs {
		resp[i] = dto.ToTransactionResponse(&txs[i])
	}

	return c.JSON(http.StatusOK, resp)
}
