// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models defines the persistent records of the token service.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Token lifecycle statuses. The order is linear; a token never moves
// backwards. "claimed" is the allocator's in-progress marker between
// unused and written.
const (
	StatusUnused    = "unused"
	StatusClaimed   = "claimed"
	StatusWritten   = "written"
	StatusShipped   = "shipped"
	StatusActivated = "activated"
)

// Content policy constants, shared with the gallery clients.
const (
	// FreePhotoLimit is the photo ceiling for non-premium tokens.
	FreePhotoLimit = 5
	// PremiumPhotoLimit is the photo ceiling for premium tokens.
	PremiumPhotoLimit = 100
	// MinPhotos is the floor below which images cannot be deleted.
	MinPhotos = 3
	// MaxFavorites caps the slideshow favorites on premium tokens.
	MaxFavorites = 5
)

var statusRank = map[string]int{
	StatusUnused:    0,
	StatusClaimed:   1,
	StatusWritten:   2,
	StatusShipped:   3,
	StatusActivated: 4,
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// PhotoCeiling returns the maximum photo limit allowed for a token tier.
func PhotoCeiling(premium bool) int {
	if premium {
		return PremiumPhotoLimit
	}
	return FreePhotoLimit
}

// Image is one gallery entry. Only the object-storage URL is kept here;
// the bytes live in external storage.
type Image struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ImageList stores the gallery images as a JSON column.
type ImageList []Image

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ImageList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into ImageList", src)
	}
}

// FavoriteCount returns the number of images marked as favorite.
func (l ImageList) FavoriteCount() int {
	n := 0
	for _, img := range l {
		if img.IsFavorite {
			n++
		}
	}
	return n
}

// JSONMap stores loosely structured customer data (theme settings,
// Spotify track metadata) as a JSON column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
}

// Token is one NFC-linked gallery identity. One row per physical tag;
// rows are never deleted, even after use.
type Token struct { //nolint:govet // fieldalignment: readability over optimization
	TokenID         string     `db:"token_id"`
	Status          string     `db:"status"`
	Premium         bool       `db:"premium"`
	PhotoLimit      int        `db:"photo_limit"`
	PhotoCount      int        `db:"photo_count"`
	OrderID         *string    `db:"order_id"`
	CustomerName    *string    `db:"customer_name"`
	CustomerEmail   *string    `db:"customer_email"`
	PasscodeHash    *string    `db:"passcode_hash"`
	ResetCode       *string    `db:"reset_code"`
	ResetCodeExpiry *time.Time `db:"reset_code_expiry"`
	GalleryTitle    *string    `db:"gallery_title"`
	LetterContent   *string    `db:"letter_content"`
	Images          ImageList  `db:"images"`
	SpotifyTrack    JSONMap    `db:"spotify_track"`
	ThemeSettings   JSONMap    `db:"theme_settings"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	ActivatedAt     *time.Time `db:"activated_at"`
}

// HasPasscode reports whether edit access is gated. A token without a
// passcode is editable by anyone holding the token ID; this is the
// intended default-open behavior.
func (t *Token) HasPasscode() bool {
	return t.PasscodeHash != nil && *t.PasscodeHash != ""
}

// Activated reports whether the customer has unlocked the gallery.
func (t *Token) Activated() bool {
	return t.Status == StatusActivated
}

// PublicView is the client-facing shape of an activated token. The
// passcode hash and any in-flight reset fields never appear here.
type PublicView struct { //nolint:govet // fieldalignment: readability over optimization
	MemoryID      string     `json:"memoryId"`
	Status        string     `json:"status"`
	Premium       bool       `json:"premium"`
	PhotoLimit    int        `json:"photoLimit"`
	PhotoCount    int        `json:"photoCount"`
	GalleryTitle  *string    `json:"galleryTitle,omitempty"`
	LetterContent *string    `json:"letterContent,omitempty"`
	Images        ImageList  `json:"images"`
	SpotifyTrack  JSONMap    `json:"spotifyTrack,omitempty"`
	ThemeSettings JSONMap    `json:"themeSettings,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
}

// PublicView builds the client-facing representation of the token.
func (t *Token) PublicView() PublicView {
	images := t.Images
	if images == nil {
		images = ImageList{}
	}
	return PublicView{
		MemoryID:      t.TokenID,
		Status:        t.Status,
		Premium:       t.Premium,
		PhotoLimit:    t.PhotoLimit,
		PhotoCount:    t.PhotoCount,
		GalleryTitle:  t.GalleryTitle,
		LetterContent: t.LetterContent,
		Images:        images,
		SpotifyTrack:  t.SpotifyTrack,
		ThemeSettings: t.ThemeSettings,
		CreatedAt:     t.CreatedAt,
		ActivatedAt:   t.ActivatedAt,
	}
}

// AdminView is the inventory representation shown on the admin surface.
// It includes order metadata but, like PublicView, never the passcode
// hash or reset fields.
type AdminView struct { //nolint:govet // fieldalignment: readability over optimization
	MemoryID      string     `json:"memoryId"`
	Status        string     `json:"status"`
	Premium       bool       `json:"premium"`
	PhotoLimit    int        `json:"photoLimit"`
	PhotoCount    int        `json:"photoCount"`
	OrderID       *string    `json:"orderId,omitempty"`
	CustomerName  *string    `json:"customerName,omitempty"`
	CustomerEmail *string    `json:"customerEmail,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
}

// AdminView builds the admin-facing representation of the token.
func (t *Token) AdminView() AdminView {
	return AdminView{
		MemoryID:      t.TokenID,
		Status:        t.Status,
		Premium:       t.Premium,
		PhotoLimit:    t.PhotoLimit,
		PhotoCount:    t.PhotoCount,
		OrderID:       t.OrderID,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ActivatedAt:   t.ActivatedAt,
	}
}
