// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package editsession issues signed, token-scoped proofs that a passcode
// was verified. The proof travels as a cookie (or header) on later edit
// requests; there is no shared server-side session state.
package editsession

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// CookieName is the cookie carrying the edit-session proof.
const CookieName = "_edit_session"

// DefaultTTL is how long a verified passcode stays usable for edits.
const DefaultTTL = time.Hour

type payload struct {
	MemoryID  string `json:"memoryId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Manager encodes and validates edit-session proofs.
type Manager struct {
	sc  *securecookie.SecureCookie
	ttl time.Duration
}

// NewManager creates a manager from hex-encoded keys. The hash key is
// required for HMAC signing; the block key is optional and adds
// encryption. Empty keys are generated randomly, which invalidates
// outstanding proofs on restart.
func NewManager(hashKeyHex, blockKeyHex string, ttl time.Duration) (*Manager, error) {
	hashKey, err := keyBytes(hashKeyHex, 32)
	if err != nil {
		return nil, fmt.Errorf("session hash key: %w", err)
	}

	var blockKey []byte
	if blockKeyHex != "" {
		blockKey, err = keyBytes(blockKeyHex, 32)
		if err != nil {
			return nil, fmt.Errorf("session block key: %w", err)
		}
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl.Seconds()))
	return &Manager{sc: sc, ttl: ttl}, nil
}

// Issue returns an encoded proof scoped to one token.
func (m *Manager) Issue(memoryID string) (string, error) {
	return m.sc.Encode(CookieName, payload{
		MemoryID:  memoryID,
		ExpiresAt: time.Now().Add(m.ttl).Unix(),
	})
}

// Validate reports whether the encoded proof is intact, unexpired and
// scoped to the given token.
func (m *Manager) Validate(encoded, memoryID string) bool {
	if encoded == "" {
		return false
	}
	var p payload
	if err := m.sc.Decode(CookieName, encoded, &p); err != nil {
		return false
	}
	if p.MemoryID != memoryID {
		return false
	}
	return time.Now().Unix() < p.ExpiresAt
}

// Cookie builds the Set-Cookie value carrying a fresh proof.
func (m *Manager) Cookie(memoryID string, secure bool) (*http.Cookie, error) {
	value, err := m.Issue(memoryID)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// keyBytes decodes a hex key or generates a random one of size bytes.
func keyBytes(hexKey string, size int) ([]byte, error) {
	if hexKey == "" {
		key := make([]byte, size)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return key, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("not valid hex: %w", err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("must be %d bytes, got %d", size, len(key))
	}
	return key, nil
}
