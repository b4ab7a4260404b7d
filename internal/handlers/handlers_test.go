// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aiueoka/smartlocket/internal/handlers"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/aiueoka/smartlocket/internal/services/gallery"
	"github.com/aiueoka/smartlocket/internal/services/inventory"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/services/passcode"
	"github.com/aiueoka/smartlocket/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	To       string
	MemoryID string
	Code     string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendResetCode(_ context.Context, to, memoryID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, MemoryID: memoryID, Code: code})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	handlers *handlers.Handlers
	repo     *repository.Repository
	sessions *editsession.Manager
	mailer   *fakeMailer
	echo     *echo.Echo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	sessions, err := editsession.NewManager("", "", time.Hour)
	require.NoError(t, err)
	mailer := &fakeMailer{}

	h := handlers.New(
		repo,
		inventory.NewService(repo),
		lifecycle.NewService(repo),
		passcode.NewService(repo, mailer),
		gallery.NewService(repo, sessions),
		sessions,
		false,
	)
	return &testEnv{
		handlers: h,
		repo:     repo,
		sessions: sessions,
		mailer:   mailer,
		echo:     echo.New(),
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
