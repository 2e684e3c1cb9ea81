package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	repo    Repository
	service *Service
}

// NewHandler takes the shared cache service so handler and purchase
// engine read the same cached pools.
func NewHandler(db *sqlx.DB, service *Service) *Handler {
	return &Handler{
		repo:    NewRepository(db),
		service: service,
	}
}

// ListBoxes godoc
// @Summary      List active boxes
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Box
// @Router       /boxes [get]
func (h *Handler) ListBoxes(c *gin.Context) {
	boxes, err := h.repo.ListActiveBoxes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, boxes)
}

// GetBox godoc
// @Summary      Box detail with display pool
// @Description  Returns the box and every prize, illustrative entries included.
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        boxID  path      int  true  "Box ID"
// @Success      200    {object}  BoxWithPrizes
// @Failure      404    {object}  gin.H
// @Router       /boxes/{boxID} [get]
func (h *Handler) GetBox(c *gin.Context) {
	boxID, err := strconv.Atoi(c.Param("boxID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid box ID"})
		return
	}

	box, err := h.service.GetBoxWithPrizes(c.Request.Context(), boxID)
	if err != nil {
		if errors.Is(err, ErrBoxNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Box not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, box)
}

// CreateBox godoc
// @Summary      Create box
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateBoxRequest  true  "Box data"
// @Success      201      {object}  Box
// @Failure      400      {object}  gin.H
// @Router       /admin/boxes [post]
func (h *Handler) CreateBox(c *gin.Context) {
	var req CreateBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	box, err := h.repo.CreateBox(c.Request.Context(), req.Name, req.PriceCents)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create box"})
		return
	}

	c.JSON(http.StatusCreated, box)
}

// UpdateBox godoc
// @Summary      Update box
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        boxID    path      int               true  "Box ID"
// @Param        request  body      UpdateBoxRequest  true  "Box data"
// @Success      200      {object}  Box
// @Failure      404      {object}  gin.H
// @Router       /admin/boxes/{boxID} [put]
func (h *Handler) UpdateBox(c *gin.Context) {
	boxID, err := strconv.Atoi(c.Param("boxID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid box ID"})
		return
	}

	var req UpdateBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	box, err := h.repo.UpdateBox(c.Request.Context(), boxID, req.Name, req.PriceCents, *req.Active)
	if err != nil {
		if errors.Is(err, ErrBoxNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Box not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update box"})
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), boxID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Box updated but cache invalidation failed"})
		return
	}

	c.JSON(http.StatusOK, box)
}

// CreatePrize godoc
// @Summary      Add prize to box
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        boxID    path      int                 true  "Box ID"
// @Param        request  body      CreatePrizeRequest  true  "Prize data"
// @Success      201      {object}  Prize
// @Failure      400      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Router       /admin/boxes/{boxID}/prizes [post]
func (h *Handler) CreatePrize(c *gin.Context) {
	boxID, err := strconv.Atoi(c.Param("boxID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid box ID"})
		return
	}

	if _, err := h.repo.GetBoxByID(c.Request.Context(), boxID); err != nil {
		if errors.Is(err, ErrBoxNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Box not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	var req CreatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prize, err := h.repo.CreatePrize(c.Request.Context(), boxID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create prize"})
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), boxID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prize created but cache invalidation failed"})
		return
	}

	c.JSON(http.StatusCreated, prize)
}

// InvalidateCache godoc
// @Summary      Drop cached pool for a box
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        boxID  path      int  true  "Box ID"
// @Success      200    {object}  gin.H
// @Router       /admin/boxes/{boxID}/cache/invalidate [post]
func (h *Handler) InvalidateCache(c *gin.Context) {
	boxID, err := strconv.Atoi(c.Param("boxID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid box ID"})
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), boxID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache invalidation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cache invalidated"})
}
