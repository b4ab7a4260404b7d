// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package gallery decides whether customer content is visible or editable
// and enforces the per-token content ceilings.
package gallery

import (
	"context"
	"errors"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/google/uuid"
)

var (
	// ErrActivationRequired signals that the token exists but the
	// customer has not activated it yet. This is an expected flow, not a
	// failure; the client is redirected to activation.
	ErrActivationRequired = errors.New("token not activated")
	// ErrEditDenied is returned when a passcode-protected token is
	// written without a valid edit-session proof.
	ErrEditDenied = errors.New("edit access denied")
	// ErrEmptyUpdate is returned for a content save with no fields.
	ErrEmptyUpdate = errors.New("no update data")
	// ErrPhotoLimit is returned when an update exceeds the photo ceiling.
	ErrPhotoLimit = errors.New("photo limit exceeded")
	// ErrPhotoFloor is returned when a deletion would drop the gallery
	// below the minimum photo count.
	ErrPhotoFloor = errors.New("cannot delete below the minimum photo count")
	// ErrPremiumRequired is returned when a non-premium token uses
	// favorites.
	ErrPremiumRequired = errors.New("favorites require a premium token")
	// ErrFavoriteLimit is returned when a toggle would exceed the
	// favorites cap.
	ErrFavoriteLimit = errors.New("favorite limit reached")
	// ErrUnknownImage is returned when a toggle names a missing image.
	ErrUnknownImage = errors.New("unknown image")
)

// Service gates gallery reads and writes.
type Service struct {
	repo     *repository.Repository
	sessions *editsession.Manager
}

// NewService creates a new gallery service.
func NewService(repo *repository.Repository, sessions *editsession.Manager) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// AuthorizeRead loads a token for a content read. When the token is not
// activated it is returned together with ErrActivationRequired so the
// caller can build the redirect signal; true not-found stays distinct.
func (s *Service) AuthorizeRead(ctx context.Context, tokenID string) (*models.Token, error) {
	token, err := s.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.Activated() {
		return token, ErrActivationRequired
	}
	return token, nil
}

// AuthorizeWrite checks edit access. Tokens without a passcode are
// editable by anyone holding the token ID.
func (s *Service) AuthorizeWrite(token *models.Token, proof string) error {
	if !token.HasPasscode() {
		return nil
	}
	if s.sessions.Validate(proof, token.TokenID) {
		return nil
	}
	return ErrEditDenied
}

// ContentUpdate is a partial content save. Nil fields are left untouched.
type ContentUpdate struct {
	GalleryTitle  *string
	LetterContent *string
	Images        *models.ImageList
	SpotifyTrack  models.JSONMap
	ThemeSettings models.JSONMap
}

// Empty reports whether the update carries no fields at all.
func (u ContentUpdate) Empty() bool {
	return u.GalleryTitle == nil && u.LetterContent == nil &&
		u.Images == nil && u.SpotifyTrack == nil && u.ThemeSettings == nil
}

// SaveContent persists a content update after the write gate and the
// content ceilings pass. Ceilings are checked before any mutation.
func (s *Service) SaveContent(ctx context.Context, tokenID string, update ContentUpdate, proof string) (*models.Token, error) {
	if update.Empty() {
		return nil, ErrEmptyUpdate
	}

	token, err := s.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeWrite(token, proof); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.GalleryTitle != nil {
		fields["gallery_title"] = *update.GalleryTitle
	}
	if update.LetterContent != nil {
		fields["letter_content"] = *update.LetterContent
	}
	if update.SpotifyTrack != nil {
		fields["spotify_track"] = update.SpotifyTrack
	}
	if update.ThemeSettings != nil {
		fields["theme_settings"] = update.ThemeSettings
	}
	if update.Images != nil {
		images, imgErr := s.checkImages(token, *update.Images)
		if imgErr != nil {
			return nil, imgErr
		}
		fields["images"] = images
		fields["photo_count"] = len(images)
	}

	if err := s.repo.UpdateToken(ctx, tokenID, fields); err != nil {
		return nil, err
	}
	return s.repo.GetToken(ctx, tokenID)
}

// ToggleFavorite flips the favorite flag on one image. Premium only, and
// at most models.MaxFavorites images may be marked at any time.
func (s *Service) ToggleFavorite(ctx context.Context, tokenID, imageID, proof string) (*models.Token, error) {
	token, err := s.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeWrite(token, proof); err != nil {
		return nil, err
	}
	if !token.Premium {
		return nil, ErrPremiumRequired
	}

	images := token.Images
	idx := -1
	for i := range images {
		if images[i].ID == imageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrUnknownImage
	}

	if !images[idx].IsFavorite && images.FavoriteCount() >= models.MaxFavorites {
		return nil, ErrFavoriteLimit
	}
	images[idx].IsFavorite = !images[idx].IsFavorite

	if err := s.repo.UpdateToken(ctx, tokenID, map[string]any{"images": images}); err != nil {
		return nil, err
	}
	return s.repo.GetToken(ctx, tokenID)
}

// checkImages validates an incoming image list against the token's
// ceilings and fills in IDs and upload times for new entries.
func (s *Service) checkImages(token *models.Token, images models.ImageList) (models.ImageList, error) {
	if len(images) > token.PhotoLimit {
		return nil, ErrPhotoLimit
	}
	if len(images) < len(token.Images) && len(images) < models.MinPhotos {
		return nil, ErrPhotoFloor
	}

	favorites := 0
	for i := range images {
		if images[i].ID == "" {
			images[i].ID = uuid.NewString()
		}
		if images[i].UploadedAt.IsZero() {
			images[i].UploadedAt = time.Now().UTC()
		}
		if images[i].IsFavorite {
			favorites++
		}
	}

	if favorites > 0 && !token.Premium {
		return nil, ErrPremiumRequired
	}
	if favorites > models.MaxFavorites {
		return nil, ErrFavoriteLimit
	}
	return images, nil
}
