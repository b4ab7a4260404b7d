// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/labstack/echo/v4"
)

type generateBatchRequest struct {
	Quantity   int    `json:"quantity"`
	PhotoLimit int    `json:"photoLimit"`
	Prefix     string `json:"prefix"`
	Premium    bool   `json:"premium"`
}

// GenerateBatch creates a batch of fresh unused tokens for tag writing.
func (h *Handlers) GenerateBatch(c echo.Context) error {
	var req generateBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	batch, err := h.inventory.GenerateBatch(c.Request().Context(), req.Quantity, req.PhotoLimit, req.Prefix, req.Premium)
	if err != nil {
		return respondError(c, err)
	}

	views := make([]models.AdminView, len(batch))
	for i := range batch {
		views[i] = batch[i].AdminView()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"count":   len(views),
		"batch":   views,
	})
}

// NextUnused claims the oldest unused token for the calling operator.
// Each call hands out a different token, also under concurrent callers.
func (h *Handlers) NextUnused(c echo.Context) error {
	token, err := h.inventory.ClaimNextUnused(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, token.AdminView())
}

// MarkWritten records that a claimed token's tag has been written.
func (h *Handlers) MarkWritten(c echo.Context) error {
	token, err := h.inventory.MarkWritten(c.Request().Context(), c.Param("memoryId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"memory":  token.AdminView(),
	})
}

type assignOrderRequest struct {
	MemoryID      string  `json:"memoryId"`
	OrderID       string  `json:"orderId"`
	CustomerName  *string `json:"customerName"`
	CustomerEmail *string `json:"customerEmail"`
}

// AssignOrder links an order to a written token and marks it shipped.
func (h *Handlers) AssignOrder(c echo.Context) error {
	var req assignOrderRequest
	if err := c.Bind(&req); err != nil || req.MemoryID == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "memoryId is required"})
	}

	token, err := h.lifecycle.AssignOrder(c.Request().Context(), req.MemoryID, req.OrderID, req.CustomerName, req.CustomerEmail)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"memory":  token.AdminView(),
	})
}

// Stats returns the dashboard aggregation.
func (h *Handlers) Stats(c echo.Context) error {
	counts, err := h.repo.CountTokensByStatus(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}

// Inventory lists tokens filtered by status and tier, paginated in
// creation order.
func (h *Handlers) Inventory(c echo.Context) error {
	filter := repository.TokenFilter{}

	if status := c.QueryParam("status"); status != "" {
		if !models.ValidStatus(status) {
			return c.JSON(http.StatusBadRequest, map[string]any{"message": "unknown status"})
		}
		filter.Status = &status
	}
	if premiumParam := c.QueryParam("premium"); premiumParam != "" {
		premium, err := strconv.ParseBool(premiumParam)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"message": "premium must be a boolean"})
		}
		filter.Premium = &premium
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	tokens, total, err := h.repo.ScanTokens(c.Request().Context(), filter, page, limit)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]models.AdminView, len(tokens))
	for i := range tokens {
		items[i] = tokens[i].AdminView()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}
