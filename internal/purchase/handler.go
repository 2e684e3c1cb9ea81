package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goddeus/caixa-premiada-sub004/internal/auth"
	"github.com/goddeus/caixa-premiada-sub004/internal/draw"
	"github.com/goddeus/caixa-premiada-sub004/internal/logger"
	"github.com/goddeus/caixa-premiada-sub004/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create godoc
// @Summary      Open boxes
// @Description  Debits the basket total, draws one prize per unit and credits winnings atomically. Reusing a purchase_id replays the original response.
// @Tags         purchases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseRequest  true  "Basket and optional purchase_id"
// @Success      200      {object}  PurchaseResponse
// @Failure      400      {object}  gin.H
// @Failure      402      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /purchases [post]
func (h *Handler) Create(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Callers that want retry safety send their own purchase_id. One
	// is generated otherwise, so the response always carries it.
	if req.PurchaseID == "" {
		req.PurchaseID = uuid.NewString()
	}

	in := Input{
		UserID:     userID,
		SessionID:  auth.GetSessionID(c),
		PurchaseID: req.PurchaseID,
		Basket:     req.Basket,
	}

	result, err := h.service.ProcessPurchase(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, in, err)
		return
	}

	c.JSON(http.StatusOK, PurchaseResponse{Success: true, Result: *result})
}

func (h *Handler) writeError(c *gin.Context, in Input, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient funds"})
	case errors.Is(err, ErrInactiveResource):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, draw.ErrNoEligiblePrizes):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Box has no prizes available"})
	case errors.Is(err, ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Purchase already in progress"})
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
	default:
		logger.Error("purchase failed",
			"purchase_id", in.PurchaseID, "user_id", in.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process purchase"})
	}
}

// Get godoc
// @Summary      Purchase audit record
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        purchaseID  path      string  true  "Purchase id"
// @Success      200         {object}  Audit
// @Failure      404         {object}  gin.H
// @Router       /purchases/{purchaseID} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	audit, err := h.service.GetAudit(c.Request.Context(), c.Param("purchaseID"))
	if err != nil {
		if errors.Is(err, ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	role, _ := c.Get("user_role")
	if audit.UserID != userID && role != "admin" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
		return
	}

	c.JSON(http.StatusOK, audit)
}

// List godoc
// @Summary      Purchase history
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   Audit
// @Router       /purchases [get]
func (h *Handler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	audits, err := h.service.ListAudits(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, audits)
}
