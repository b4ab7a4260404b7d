// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package inventory hands out unused tokens to admin operators and
// generates new batches. Claims go through the store's conditional
// update, so two concurrent operators never receive the same tag.
package inventory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
)

var (
	// ErrOutOfStock is returned when no unused token is available.
	ErrOutOfStock = errors.New("no unused tokens available")
	// ErrInvalidBatch is returned for malformed batch parameters.
	ErrInvalidBatch = errors.New("invalid batch parameters")
)

const (
	// suffix alphabet excludes characters that are easy to misread on a
	// printed tag (0, O, 1, I, L).
	idAlphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	idSuffixLen  = 8
	maxPrefixLen = 8
	maxBatchSize = 1000

	// claimWindow is how many oldest-unused candidates one claim attempt
	// walks before re-querying the store.
	claimWindow = 10
	// claimRounds bounds re-queries under heavy contention.
	claimRounds = 5
)

// Service allocates tokens from inventory.
type Service struct {
	repo *repository.Repository
}

// NewService creates a new inventory service.
func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// GenerateBatch creates quantity new unused tokens. IDs are the uppercased
// prefix plus a random suffix, collision-checked against the store.
func (s *Service) GenerateBatch(ctx context.Context, quantity, photoLimit int, prefix string, premium bool) ([]models.Token, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidBatch)
	}
	if quantity > maxBatchSize {
		return nil, fmt.Errorf("%w: quantity exceeds %d", ErrInvalidBatch, maxBatchSize)
	}

	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) > maxPrefixLen {
		return nil, fmt.Errorf("%w: prefix longer than %d characters", ErrInvalidBatch, maxPrefixLen)
	}
	for _, r := range prefix {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return nil, fmt.Errorf("%w: prefix must be uppercase alphanumeric", ErrInvalidBatch)
		}
	}

	ceiling := models.PhotoCeiling(premium)
	if photoLimit <= 0 {
		photoLimit = ceiling
	}
	if photoLimit > ceiling {
		return nil, fmt.Errorf("%w: photo limit %d exceeds ceiling %d", ErrInvalidBatch, photoLimit, ceiling)
	}

	batch := make([]models.Token, 0, quantity)
	for i := 0; i < quantity; i++ {
		id, err := s.newTokenID(ctx, prefix)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		token := models.Token{
			TokenID:    id,
			Status:     models.StatusUnused,
			Premium:    premium,
			PhotoLimit: photoLimit,
			PhotoCount: 0,
			Images:     models.ImageList{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.CreateToken(ctx, &token); err != nil {
			return nil, fmt.Errorf("creating token %s: %w", id, err)
		}
		batch = append(batch, token)
	}
	return batch, nil
}

// ClaimNextUnused atomically claims the oldest unused token. A candidate
// that loses its conditional update to a concurrent claimer is skipped and
// the next oldest is tried; the race never surfaces to the caller.
func (s *Service) ClaimNextUnused(ctx context.Context) (*models.Token, error) {
	for round := 0; round < claimRounds; round++ {
		candidates, err := s.repo.ListUnusedOldest(ctx, claimWindow)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, ErrOutOfStock
		}

		for i := range candidates {
			claimed, err := s.repo.UpdateTokenWhereStatus(ctx, candidates[i].TokenID,
				[]string{models.StatusUnused},
				map[string]any{"status": models.StatusClaimed})
			if err != nil {
				return nil, err
			}
			if claimed {
				return s.repo.GetToken(ctx, candidates[i].TokenID)
			}
		}

		// Every candidate in the window was taken by other claimers. If
		// the window was not full the pool is exhausted.
		if len(candidates) < claimWindow {
			return nil, ErrOutOfStock
		}
	}
	return nil, ErrOutOfStock
}

// MarkWritten records that the token has been written to its physical tag.
// Legal predecessors are unused and claimed; anything later fails loudly so
// operators notice double-submits.
func (s *Service) MarkWritten(ctx context.Context, tokenID string) (*models.Token, error) {
	updated, err := s.repo.UpdateTokenWhereStatus(ctx, tokenID,
		[]string{models.StatusUnused, models.StatusClaimed},
		map[string]any{"status": models.StatusWritten})
	if err != nil {
		return nil, err
	}
	if !updated {
		if _, getErr := s.repo.GetToken(ctx, tokenID); getErr != nil {
			return nil, getErr
		}
		return nil, lifecycle.ErrInvalidTransition
	}
	return s.repo.GetToken(ctx, tokenID)
}

// newTokenID generates a fresh collision-checked token ID.
func (s *Service) newTokenID(ctx context.Context, prefix string) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		suffix, err := randomSuffix(idSuffixLen)
		if err != nil {
			return "", err
		}
		id := prefix + suffix

		exists, err := s.repo.TokenExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique token id")
}

func randomSuffix(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	for i := range bytes {
		bytes[i] = idAlphabet[int(bytes[i])%len(idAlphabet)]
	}
	return string(bytes), nil
}
