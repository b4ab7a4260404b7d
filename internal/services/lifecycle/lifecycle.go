// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package lifecycle validates and applies token state transitions.
//
// The order is linear: unused → claimed → written → shipped → activated.
// Shipped is skippable; activated is terminal. A transition whose guard
// fails leaves the record untouched and fails loudly, so a double-submit
// is visible to the operator instead of silently succeeding.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
)

var (
	// ErrInvalidTransition is returned when a lifecycle guard fails.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrOrderRequired is returned when an order assignment lacks an
	// order ID.
	ErrOrderRequired = errors.New("order id is required")
)

// Service applies lifecycle transitions through the store's conditional
// update, so concurrent transition attempts on the same token serialize.
type Service struct {
	repo *repository.Repository
}

// NewService creates a new lifecycle service.
func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// AssignOrder links an order to a token and moves it to shipped. Legal
// predecessors are written and shipped (re-assignment is allowed until the
// customer activates).
func (s *Service) AssignOrder(ctx context.Context, tokenID, orderID string, customerName, customerEmail *string) (*models.Token, error) {
	if orderID == "" {
		return nil, ErrOrderRequired
	}

	fields := map[string]any{
		"status":   models.StatusShipped,
		"order_id": orderID,
	}
	if customerName != nil {
		fields["customer_name"] = *customerName
	}
	if customerEmail != nil {
		fields["customer_email"] = *customerEmail
	}

	updated, err := s.repo.UpdateTokenWhereStatus(ctx, tokenID,
		[]string{models.StatusWritten, models.StatusShipped}, fields)
	if err != nil {
		return nil, err
	}
	if !updated {
		if _, getErr := s.repo.GetToken(ctx, tokenID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	return s.repo.GetToken(ctx, tokenID)
}

// ActivateInput carries the optional content set during activation.
type ActivateInput struct {
	GalleryTitle *string
	// PasscodeHash is an already-hashed passcode; the raw secret never
	// reaches this package.
	PasscodeHash *string
}

// Activate performs the customer-side transition that unlocks content
// editing. activated_at is set exactly once, here, and never cleared. A
// second activation attempt fails with ErrInvalidTransition.
func (s *Service) Activate(ctx context.Context, tokenID string, input ActivateInput) (*models.Token, error) {
	fields := map[string]any{
		"status":       models.StatusActivated,
		"activated_at": time.Now().UTC(),
	}
	if input.GalleryTitle != nil {
		fields["gallery_title"] = *input.GalleryTitle
	}
	if input.PasscodeHash != nil {
		fields["passcode_hash"] = *input.PasscodeHash
	}

	updated, err := s.repo.UpdateTokenWhereStatus(ctx, tokenID,
		[]string{models.StatusWritten, models.StatusShipped}, fields)
	if err != nil {
		return nil, err
	}
	if !updated {
		token, getErr := s.repo.GetToken(ctx, tokenID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: token is %s", ErrInvalidTransition, token.Status)
	}
	return s.repo.GetToken(ctx, tokenID)
}
