// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/aiueoka/smartlocket/internal/services/gallery"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/services/passcode"
	"github.com/labstack/echo/v4"
)

// GetMemory returns the public-safe view of a token. A token that exists
// but is not activated yields an explicit activation signal instead of
// content; a true unknown ID stays a 404.
func (h *Handlers) GetMemory(c echo.Context) error {
	memoryID := c.Param("memoryId")

	token, err := h.gallery.AuthorizeRead(c.Request().Context(), memoryID)
	if errors.Is(err, gallery.ErrActivationRequired) {
		return c.JSON(http.StatusOK, map[string]any{
			"memoryId":           token.TokenID,
			"status":             token.Status,
			"activationRequired": true,
			"activationUrl":      "/activate?id=" + token.TokenID,
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, token.PublicView())
}

type updateMemoryRequest struct {
	GalleryTitle  *string           `json:"galleryTitle"`
	LetterContent *string           `json:"letterContent"`
	Images        *models.ImageList `json:"images"`
	SpotifyTrack  models.JSONMap    `json:"spotifyTrack"`
	ThemeSettings models.JSONMap    `json:"themeSettings"`
}

// UpdateMemory merges a partial content update into the gallery.
func (h *Handlers) UpdateMemory(c echo.Context) error {
	memoryID := c.Param("memoryId")

	var req updateMemoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "No update data"})
	}

	update := gallery.ContentUpdate{
		GalleryTitle:  req.GalleryTitle,
		LetterContent: req.LetterContent,
		Images:        req.Images,
		SpotifyTrack:  req.SpotifyTrack,
		ThemeSettings: req.ThemeSettings,
	}
	if update.Empty() {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "No update data"})
	}

	token, err := h.gallery.SaveContent(c.Request().Context(), memoryID, update, editProof(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"memory":  token.PublicView(),
	})
}

type activateRequest struct {
	GalleryTitle *string `json:"galleryTitle"`
	Passcode     *string `json:"passcode"`
}

// ActivateMemory performs the customer-side activation transition,
// optionally setting an initial gallery title and passcode in one step.
func (h *Handlers) ActivateMemory(c echo.Context) error {
	memoryID := c.Param("memoryId")

	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
	}

	input := lifecycle.ActivateInput{GalleryTitle: req.GalleryTitle}
	if req.Passcode != nil {
		hash, err := passcode.Hash(*req.Passcode)
		if err != nil {
			return respondError(c, err)
		}
		input.PasscodeHash = &hash
	}

	token, err := h.lifecycle.Activate(c.Request().Context(), memoryID, input)
	if err != nil {
		return respondError(c, err)
	}

	// Activation with a passcode counts as a verification; the customer
	// keeps edit access for the session.
	if req.Passcode != nil {
		if cookie, cookieErr := h.sessions.Cookie(memoryID, h.secureCookies); cookieErr == nil {
			c.SetCookie(cookie)
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"memory":  token.PublicView(),
	})
}

type verifyPasscodeRequest struct {
	MemoryID string `json:"memoryId"`
	Passcode string `json:"passcode"`
}

// VerifyPasscode checks a passcode and, on success, issues the edit
// session used by later content writes. Unknown tokens report invalid
// instead of not-found so valid IDs cannot be enumerated here.
func (h *Handlers) VerifyPasscode(c echo.Context) error {
	var req verifyPasscodeRequest
	if err := c.Bind(&req); err != nil || req.MemoryID == "" || req.Passcode == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"valid": false})
	}

	valid, err := h.passcodes.Verify(c.Request().Context(), req.MemoryID, req.Passcode)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{"valid": false})
	}

	if valid {
		if cookie, cookieErr := h.sessions.Cookie(req.MemoryID, h.secureCookies); cookieErr == nil {
			c.SetCookie(cookie)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"valid": valid})
}

type requestResetRequest struct {
	MemoryID string `json:"memoryId"`
	Email    string `json:"email"`
}

// RequestReset starts the passcode recovery flow. The rejection body is
// identical for unknown tokens and mismatched emails.
func (h *Handlers) RequestReset(c echo.Context) error {
	var req requestResetRequest
	if err := c.Bind(&req); err != nil || req.MemoryID == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false})
	}

	err := h.passcodes.RequestReset(c.Request().Context(), req.MemoryID, req.Email)
	if errors.Is(err, passcode.ErrRejected) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Unable to process the reset request",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

type resetPasscodeRequest struct {
	MemoryID    string `json:"memoryId"`
	Code        string `json:"code"`
	NewPasscode string `json:"newPasscode"`
}

// ResetPasscode completes the recovery flow. Wrong and expired codes get
// the same rejection.
func (h *Handlers) ResetPasscode(c echo.Context) error {
	var req resetPasscodeRequest
	if err := c.Bind(&req); err != nil || req.MemoryID == "" || req.Code == "" || req.NewPasscode == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"success": false})
	}

	err := h.passcodes.ConfirmReset(c.Request().Context(), req.MemoryID, req.Code, req.NewPasscode)
	if errors.Is(err, passcode.ErrRejected) || errors.Is(err, passcode.ErrInvalidPasscode) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Unable to reset the passcode",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// ToggleFavorite flips the favorite flag on a gallery image.
func (h *Handlers) ToggleFavorite(c echo.Context) error {
	memoryID := c.Param("memoryId")
	imageID := c.Param("imageId")

	token, err := h.gallery.ToggleFavorite(c.Request().Context(), memoryID, imageID, editProof(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"favorites": token.Images.FavoriteCount(),
	})
}

// editProof extracts the edit-session proof from the cookie or header.
func editProof(c echo.Context) string {
	if cookie, err := c.Cookie(editsession.CookieName); err == nil {
		return cookie.Value
	}
	return c.Request().Header.Get("X-Edit-Session")
}
