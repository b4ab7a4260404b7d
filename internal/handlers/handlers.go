// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON HTTP surface of the token service.
package handlers

import (
	"net/http"

	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/aiueoka/smartlocket/internal/services/gallery"
	"github.com/aiueoka/smartlocket/internal/services/inventory"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/services/passcode"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo          *repository.Repository
	inventory     *inventory.Service
	lifecycle     *lifecycle.Service
	passcodes     *passcode.Service
	gallery       *gallery.Service
	sessions      *editsession.Manager
	secureCookies bool
}

// New creates a new Handlers instance.
func New(
	repo *repository.Repository,
	inv *inventory.Service,
	lc *lifecycle.Service,
	pc *passcode.Service,
	gal *gallery.Service,
	sessions *editsession.Manager,
	secureCookies bool,
) *Handlers {
	return &Handlers{
		repo:          repo,
		inventory:     inv,
		lifecycle:     lc,
		passcodes:     pc,
		gallery:       gal,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
