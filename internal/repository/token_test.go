// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	token := testutil.NewTestToken(t, repo, "LKT23456789")

	assert.Equal(t, "LKT23456789", token.TokenID)
	assert.Equal(t, models.StatusUnused, token.Status)
	assert.Equal(t, models.FreePhotoLimit, token.PhotoLimit)
	assert.Zero(t, token.PhotoCount)
	assert.False(t, token.Premium)
	assert.NotZero(t, token.CreatedAt)
}

func TestGetToken_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetToken(context.Background(), "MISSING")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTokenExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "EXISTS23")

	exists, err := repo.TokenExists(ctx, "EXISTS23")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.TokenExists(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateToken_MergesFields(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	created := testutil.NewTestToken(t, repo, "MERGE234")

	err := repo.UpdateToken(ctx, "MERGE234", map[string]any{
		"gallery_title": "Our Trip",
		"photo_count":   2,
	})
	require.NoError(t, err)

	token, err := repo.GetToken(ctx, "MERGE234")
	require.NoError(t, err)
	require.NotNil(t, token.GalleryTitle)
	assert.Equal(t, "Our Trip", *token.GalleryTitle)
	assert.Equal(t, 2, token.PhotoCount)
	// Untouched fields survive the merge
	assert.Equal(t, created.Status, token.Status)
	assert.False(t, token.UpdatedAt.Before(created.UpdatedAt))
}

func TestUpdateToken_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateToken(context.Background(), "MISSING", map[string]any{
		"gallery_title": "x",
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateToken_RejectsUnknownColumn(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	testutil.NewTestToken(t, repo, "COLS2345")

	err := repo.UpdateToken(context.Background(), "COLS2345", map[string]any{
		"token_id": "EVIL",
	})

	assert.Error(t, err)
}

func TestUpdateTokenWhereStatus_ConditionHolds(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "CAS23456")

	updated, err := repo.UpdateTokenWhereStatus(ctx, "CAS23456",
		[]string{models.StatusUnused},
		map[string]any{"status": models.StatusClaimed})
	require.NoError(t, err)
	assert.True(t, updated)

	token, err := repo.GetToken(ctx, "CAS23456")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, token.Status)
}

func TestUpdateTokenWhereStatus_ConditionFails(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "CAS23457", testutil.WithStatus(models.StatusWritten))

	updated, err := repo.UpdateTokenWhereStatus(ctx, "CAS23457",
		[]string{models.StatusUnused},
		map[string]any{"status": models.StatusClaimed})
	require.NoError(t, err)
	assert.False(t, updated)

	// The losing update must not mutate the record
	token, err := repo.GetToken(ctx, "CAS23457")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWritten, token.Status)
}

func TestListUnusedOldest_Ordering(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testutil.NewTestToken(t, repo, "NEWER234", testutil.CreatedAt(base.Add(time.Hour)))
	testutil.NewTestToken(t, repo, "OLDER234", testutil.CreatedAt(base))
	testutil.NewTestToken(t, repo, "TAKEN234", testutil.WithStatus(models.StatusWritten), testutil.CreatedAt(base.Add(-time.Hour)))

	tokens, err := repo.ListUnusedOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "OLDER234", tokens[0].TokenID)
	assert.Equal(t, "NEWER234", tokens[1].TokenID)
}

func TestScanTokens_FilterAndPagination(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"SCAN2341", "SCAN2342", "SCAN2343"} {
		testutil.NewTestToken(t, repo, id, testutil.CreatedAt(base.Add(time.Duration(i)*time.Minute)))
	}
	testutil.NewTestToken(t, repo, "SCAN2344", testutil.Premium(), testutil.CreatedAt(base.Add(time.Hour)))

	unused := models.StatusUnused
	tokens, total, err := repo.ScanTokens(ctx, repository.TokenFilter{Status: &unused}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, tokens, 2)
	assert.Equal(t, "SCAN2341", tokens[0].TokenID)
	assert.Equal(t, "SCAN2342", tokens[1].TokenID)

	tokens, _, err = repo.ScanTokens(ctx, repository.TokenFilter{Status: &unused}, 2, 2)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "SCAN2343", tokens[0].TokenID)

	premium := true
	tokens, total, err = repo.ScanTokens(ctx, repository.TokenFilter{Premium: &premium}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tokens, 1)
	assert.Equal(t, "SCAN2344", tokens[0].TokenID)
}

func TestCountTokensByStatus(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "CNT23451")
	testutil.NewTestToken(t, repo, "CNT23452")
	testutil.NewTestToken(t, repo, "CNT23453", testutil.WithStatus(models.StatusWritten))
	testutil.NewTestToken(t, repo, "CNT23454", testutil.WithStatus(models.StatusActivated), testutil.Premium())

	counts, err := repo.CountTokensByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts.Total)
	assert.Equal(t, int64(2), counts.Unused)
	assert.Equal(t, int64(1), counts.Written)
	assert.Equal(t, int64(1), counts.Activated)
	assert.Equal(t, int64(1), counts.Premium)
	assert.Zero(t, counts.Claimed)
}

func TestConfirmPasscodeReset(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "RST23456")
	require.NoError(t, repo.SetResetCode(ctx, "RST23456", "123456", time.Now().UTC().Add(10*time.Minute)))

	ok, err := repo.ConfirmPasscodeReset(ctx, "RST23456", "123456", "new-hash", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	token, err := repo.GetToken(ctx, "RST23456")
	require.NoError(t, err)
	require.NotNil(t, token.PasscodeHash)
	assert.Equal(t, "new-hash", *token.PasscodeHash)
	assert.Nil(t, token.ResetCode)
	assert.Nil(t, token.ResetCodeExpiry)
}

func TestConfirmPasscodeReset_WrongCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "RST23457")
	require.NoError(t, repo.SetResetCode(ctx, "RST23457", "123456", time.Now().UTC().Add(10*time.Minute)))

	ok, err := repo.ConfirmPasscodeReset(ctx, "RST23457", "654321", "new-hash", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	token, err := repo.GetToken(ctx, "RST23457")
	require.NoError(t, err)
	assert.Nil(t, token.PasscodeHash)
	require.NotNil(t, token.ResetCode)
	assert.Equal(t, "123456", *token.ResetCode)
}

func TestConfirmPasscodeReset_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "RST23458")
	// Expired one second ago
	require.NoError(t, repo.SetResetCode(ctx, "RST23458", "123456", time.Now().UTC().Add(-time.Second)))

	ok, err := repo.ConfirmPasscodeReset(ctx, "RST23458", "123456", "new-hash", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	token, err := repo.GetToken(ctx, "RST23458")
	require.NoError(t, err)
	assert.Nil(t, token.PasscodeHash)
}

func TestSetResetCode_OverwritesPrevious(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "RST23459")
	require.NoError(t, repo.SetResetCode(ctx, "RST23459", "111111", time.Now().UTC().Add(10*time.Minute)))
	require.NoError(t, repo.SetResetCode(ctx, "RST23459", "222222", time.Now().UTC().Add(10*time.Minute)))

	// The first code is no longer confirmable
	ok, err := repo.ConfirmPasscodeReset(ctx, "RST23459", "111111", "h", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ConfirmPasscodeReset(ctx, "RST23459", "222222", "h", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)
}
