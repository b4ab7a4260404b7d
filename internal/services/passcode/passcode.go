// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package passcode gates gallery edit access behind a 6-digit secret and
// supports self-service recovery over email.
package passcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/aiueoka/smartlocket/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Length of passcodes and reset codes, digits only.
	Length = 6
	// ResetCodeTTL is the absolute expiry of an issued reset code.
	ResetCodeTTL = 10 * time.Minute
	// bcryptCost is the cost factor for passcode hashes.
	bcryptCost = 10
)

var (
	// ErrRejected covers every recovery failure: unknown token, email
	// mismatch, wrong code, expired code. Callers must not be able to
	// tell which check failed.
	ErrRejected = errors.New("passcode request rejected")
	// ErrInvalidPasscode is returned when the secret is not 6 digits.
	ErrInvalidPasscode = errors.New("passcode must be 6 digits")
)

// Mailer delivers reset codes. The SMTP implementation lives in the email
// service; tests substitute a fake.
type Mailer interface {
	SendResetCode(ctx context.Context, to, memoryID, code string) error
}

// Service manages passcode ownership for tokens.
type Service struct {
	repo   *repository.Repository
	mailer Mailer
}

// NewService creates a new passcode service.
func NewService(repo *repository.Repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Hash validates and hashes a raw passcode for storage. The raw value is
// never persisted.
func Hash(raw string) (string, error) {
	if !isDigits(raw, Length) {
		return "", ErrInvalidPasscode
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing passcode: %w", err)
	}
	return string(hash), nil
}

// Set stores a salted one-way hash of the passcode on the token.
func (s *Service) Set(ctx context.Context, tokenID, raw string) error {
	hash, err := Hash(raw)
	if err != nil {
		return err
	}
	return s.repo.UpdateToken(ctx, tokenID, map[string]any{
		"passcode_hash": hash,
	})
}

// Verify checks a raw passcode against the stored hash. A token without a
// passcode verifies successfully for any input; that default-open behavior
// is intentional. The bcrypt comparison is constant-time, so response
// latency does not leak correctness.
func (s *Service) Verify(ctx context.Context, tokenID, raw string) (bool, error) {
	token, err := s.repo.GetToken(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if !token.HasPasscode() {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(*token.PasscodeHash), []byte(raw)) == nil, nil
}

// RequestReset issues a fresh 6-digit reset code when the supplied email
// exactly matches the token's stored recovery email, overwriting any code
// issued earlier, and dispatches it. Every failure is ErrRejected.
func (s *Service) RequestReset(ctx context.Context, tokenID, email string) error {
	token, err := s.repo.GetToken(ctx, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRejected
	}
	if err != nil {
		return err
	}
	if token.CustomerEmail == nil || *token.CustomerEmail != email {
		return ErrRejected
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	expiry := time.Now().UTC().Add(ResetCodeTTL)

	if err := s.repo.SetResetCode(ctx, tokenID, code, expiry); err != nil {
		return err
	}
	return s.mailer.SendResetCode(ctx, email, tokenID, code)
}

// ConfirmReset installs a new passcode when the code matches and has not
// expired. The hash update and the clearing of both reset fields happen in
// one conditional statement; a half-applied reset is not observable.
func (s *Service) ConfirmReset(ctx context.Context, tokenID, code, newPasscode string) error {
	hash, err := Hash(newPasscode)
	if err != nil {
		return err
	}

	ok, err := s.repo.ConfirmPasscodeReset(ctx, tokenID, code, hash, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

// generateCode returns a random 6-digit numeric code.
func generateCode() (string, error) {
	digits := make([]byte, Length)
	if _, err := rand.Read(digits); err != nil {
		return "", err
	}
	for i := range digits {
		digits[i] = '0' + digits[i]%10
	}
	return string(digits), nil
}

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
