// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/gallery"
	"github.com/aiueoka/smartlocket/internal/services/inventory"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/services/passcode"
	"github.com/labstack/echo/v4"
)

// respondError maps service errors to distinct response signals. Each
// error kind keeps its own status so clients can branch; there is no
// generic catch-all besides true internal failures.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]any{"message": "SmartLocket not found"})

	case errors.Is(err, inventory.ErrOutOfStock):
		return c.JSON(http.StatusConflict, map[string]any{
			"message": "No unused SmartLockets available. Generate a new batch first.",
		})

	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]any{"message": err.Error()})

	case errors.Is(err, gallery.ErrEditDenied):
		return c.JSON(http.StatusUnauthorized, map[string]any{"message": "Passcode verification required"})

	case errors.Is(err, gallery.ErrUnknownImage):
		return c.JSON(http.StatusNotFound, map[string]any{"message": "Image not found"})

	case errors.Is(err, inventory.ErrInvalidBatch),
		errors.Is(err, lifecycle.ErrOrderRequired),
		errors.Is(err, passcode.ErrInvalidPasscode),
		errors.Is(err, gallery.ErrEmptyUpdate),
		errors.Is(err, gallery.ErrPhotoLimit),
		errors.Is(err, gallery.ErrPhotoFloor),
		errors.Is(err, gallery.ErrPremiumRequired),
		errors.Is(err, gallery.ErrFavoriteLimit):
		return c.JSON(http.StatusBadRequest, map[string]any{"message": err.Error()})

	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"message": "Internal error"})
	}
}
