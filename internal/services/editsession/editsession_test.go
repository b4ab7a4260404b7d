// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package editsession_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestIssueAndValidate(t *testing.T) {
	m, err := editsession.NewManager(testHashKey, "", time.Hour)
	require.NoError(t, err)

	proof, err := m.Issue("LKT23456")
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	assert.True(t, m.Validate(proof, "LKT23456"))
}

func TestValidate_WrongToken(t *testing.T) {
	m, err := editsession.NewManager(testHashKey, "", time.Hour)
	require.NoError(t, err)

	proof, err := m.Issue("LKT23456")
	require.NoError(t, err)

	// A proof is scoped to exactly one token
	assert.False(t, m.Validate(proof, "LKT99999"))
}

func TestValidate_Tampered(t *testing.T) {
	m, err := editsession.NewManager(testHashKey, "", time.Hour)
	require.NoError(t, err)

	proof, err := m.Issue("LKT23456")
	require.NoError(t, err)

	tampered := strings.ToUpper(proof)
	if tampered == proof {
		tampered = proof + "x"
	}
	assert.False(t, m.Validate(tampered, "LKT23456"))
	assert.False(t, m.Validate("", "LKT23456"))
}

func TestValidate_Expired(t *testing.T) {
	m, err := editsession.NewManager(testHashKey, "", time.Nanosecond)
	require.NoError(t, err)

	proof, err := m.Issue("LKT23456")
	require.NoError(t, err)

	assert.False(t, m.Validate(proof, "LKT23456"))
}

func TestValidate_DifferentKeys(t *testing.T) {
	issuer, err := editsession.NewManager(testHashKey, "", time.Hour)
	require.NoError(t, err)
	other, err := editsession.NewManager("", "", time.Hour)
	require.NoError(t, err)

	proof, err := issuer.Issue("LKT23456")
	require.NoError(t, err)

	assert.False(t, other.Validate(proof, "LKT23456"))
}

func TestNewManager_BadKeys(t *testing.T) {
	_, err := editsession.NewManager("not-hex", "", time.Hour)
	assert.Error(t, err)

	_, err = editsession.NewManager("abcd", "", time.Hour)
	assert.Error(t, err)

	_, err = editsession.NewManager(testHashKey, "deadbeef", time.Hour)
	assert.Error(t, err)
}

func TestCookie(t *testing.T) {
	m, err := editsession.NewManager(testHashKey, "", time.Hour)
	require.NoError(t, err)

	cookie, err := m.Cookie("LKT23456", true)
	require.NoError(t, err)
	assert.Equal(t, editsession.CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.True(t, m.Validate(cookie.Value, "LKT23456"))
}
