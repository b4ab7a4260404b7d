// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aiueoka/smartlocket/internal/database"
	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestFileDB creates a file-backed SQLite database in a temp directory.
// Use it for tests that exercise concurrent access, where each pooled
// connection to ":memory:" would otherwise see its own empty database.
func NewTestFileDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// TokenOpt mutates a token fixture before it is inserted.
type TokenOpt func(*models.Token)

// Premium marks the fixture as a premium token with the premium ceiling.
func Premium() TokenOpt {
	return func(tok *models.Token) {
		tok.Premium = true
		tok.PhotoLimit = models.PremiumPhotoLimit
	}
}

// WithStatus overrides the fixture status.
func WithStatus(status string) TokenOpt {
	return func(tok *models.Token) {
		tok.Status = status
	}
}

// WithPhotoLimit overrides the fixture photo limit.
func WithPhotoLimit(limit int) TokenOpt {
	return func(tok *models.Token) {
		tok.PhotoLimit = limit
	}
}

// CreatedAt overrides the fixture creation time, for ordering tests.
func CreatedAt(ts time.Time) TokenOpt {
	return func(tok *models.Token) {
		tok.CreatedAt = ts
	}
}

// NewTestToken creates a token record in the database.
func NewTestToken(t *testing.T, repo *repository.Repository, tokenID string, opts ...TokenOpt) *models.Token {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	token := &models.Token{
		TokenID:    tokenID,
		Status:     models.StatusUnused,
		PhotoLimit: models.FreePhotoLimit,
		Images:     models.ImageList{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(token)
	}

	require.NoError(t, repo.CreateToken(ctx, token))

	created, err := repo.GetToken(ctx, token.TokenID)
	require.NoError(t, err)
	return created
}

// SetCustomerEmail stores the recovery email on a token fixture.
func SetCustomerEmail(t *testing.T, repo *repository.Repository, tokenID, email string) {
	t.Helper()
	require.NoError(t, repo.UpdateToken(context.Background(), tokenID, map[string]any{
		"customer_email": email,
	}))
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
