package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goddeus/caixa-premiada-sub004/internal/api"
	"github.com/goddeus/caixa-premiada-sub004/internal/auth"
	"github.com/goddeus/caixa-premiada-sub004/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

// GetBalance godoc
// @Summary      Current balances
// @Description  Returns both balances and the active account mode, served from the wallet projection.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Balance
// @Failure      404  {object}  gin.H
// @Router       /me/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	balance, err := h.repo.GetBalance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Deposit godoc
// @Summary      Deposit into wallet
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      DepositRequest  true  "Amount in cents"
// @Success      200      {object}  api.BalanceResponse
// @Failure      400      {object}  gin.H
// @Router       /wallet/deposit [post]
func (h *Handler) Deposit(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newBalance, err := h.repo.Deposit(c.Request.Context(), userID, req.AmountCents)
	if err != nil {
		if errors.Is(err, ErrUserInactive) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process deposit"})
		return
	}

	metrics.RecordDeposit()
	c.JSON(http.StatusOK, api.BalanceResponse{BalanceCents: newBalance})
}

// Withdraw godoc
// @Summary      Withdraw from wallet
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      WithdrawRequest  true  "Amount in cents"
// @Success      200      {object}  api.BalanceResponse
// @Failure      400      {object}  gin.H
// @Failure      402      {object}  gin.H
// @Router       /wallet/withdraw [post]
func (h *Handler) Withdraw(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newBalance, err := h.repo.Withdraw(c.Request.Context(), userID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient funds"})
		case errors.Is(err, ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process withdrawal"})
		}
		return
	}

	metrics.RecordWithdrawal()
	c.JSON(http.StatusOK, api.BalanceResponse{BalanceCents: newBalance})
}

// GetTransactions godoc
// @Summary      Ledger history
// @Description  Paginated append-only ledger entries, newest first.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   LedgerTransaction
// @Router       /transactions [get]
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.GetTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
