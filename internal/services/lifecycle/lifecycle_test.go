// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/aiueoka/smartlocket/internal/models"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAssignOrder(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "ORD23456", testutil.WithStatus(models.StatusWritten))

	token, err := svc.AssignOrder(ctx, "ORD23456", "order-1001", strPtr("Mia Sato"), strPtr("mia@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, token.Status)
	require.NotNil(t, token.OrderID)
	assert.Equal(t, "order-1001", *token.OrderID)
	require.NotNil(t, token.CustomerName)
	assert.Equal(t, "Mia Sato", *token.CustomerName)
	require.NotNil(t, token.CustomerEmail)
	assert.Equal(t, "mia@example.com", *token.CustomerEmail)
}

func TestAssignOrder_Reassignment(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "ORD23457", testutil.WithStatus(models.StatusWritten))

	_, err := svc.AssignOrder(ctx, "ORD23457", "order-1", nil, nil)
	require.NoError(t, err)

	// Shipped tokens accept a corrected order until activation
	token, err := svc.AssignOrder(ctx, "ORD23457", "order-2", nil, strPtr("fixed@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "order-2", *token.OrderID)
	assert.Equal(t, "fixed@example.com", *token.CustomerEmail)
}

func TestAssignOrder_RequiresOrderID(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)

	testutil.NewTestToken(t, repo, "ORD23458", testutil.WithStatus(models.StatusWritten))

	_, err := svc.AssignOrder(context.Background(), "ORD23458", "", nil, nil)
	assert.ErrorIs(t, err, lifecycle.ErrOrderRequired)
}

func TestAssignOrder_InvalidState(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "ORD23459")

	_, err := svc.AssignOrder(ctx, "ORD23459", "order-1", nil, nil)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	token, err := repo.GetToken(ctx, "ORD23459")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnused, token.Status)
	assert.Nil(t, token.OrderID)
}

func TestAssignOrder_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)

	_, err := svc.AssignOrder(context.Background(), "MISSING", "order-1", nil, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestActivate_FromShipped(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "ACT23456", testutil.WithStatus(models.StatusShipped))

	before := time.Now().UTC().Add(-time.Second)
	token, err := svc.Activate(ctx, "ACT23456", lifecycle.ActivateInput{
		GalleryTitle: strPtr("Summer 2025"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActivated, token.Status)
	require.NotNil(t, token.GalleryTitle)
	assert.Equal(t, "Summer 2025", *token.GalleryTitle)
	require.NotNil(t, token.ActivatedAt)
	assert.True(t, token.ActivatedAt.After(before))
}

func TestActivate_SkipsShipped(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)

	// Written tokens may activate directly when shipping was never recorded
	testutil.NewTestToken(t, repo, "ACT23457", testutil.WithStatus(models.StatusWritten))

	token, err := svc.Activate(context.Background(), "ACT23457", lifecycle.ActivateInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActivated, token.Status)
}

func TestActivate_Twice(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)
	ctx := context.Background()

	testutil.NewTestToken(t, repo, "ACT23458", testutil.WithStatus(models.StatusShipped))

	first, err := svc.Activate(ctx, "ACT23458", lifecycle.ActivateInput{})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "ACT23458", lifecycle.ActivateInput{})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	// activated_at is set once and never moves
	token, err := repo.GetToken(ctx, "ACT23458")
	require.NoError(t, err)
	require.NotNil(t, token.ActivatedAt)
	assert.True(t, token.ActivatedAt.Equal(*first.ActivatedAt))
}

func TestActivate_FromUnused(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)

	testutil.NewTestToken(t, repo, "ACT23459")

	_, err := svc.Activate(context.Background(), "ACT23459", lifecycle.ActivateInput{})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestActivate_StoresPasscodeHash(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := lifecycle.NewService(repo)

	testutil.NewTestToken(t, repo, "ACT23460", testutil.WithStatus(models.StatusShipped))

	token, err := svc.Activate(context.Background(), "ACT23460", lifecycle.ActivateInput{
		PasscodeHash: strPtr("hashed"),
	})
	require.NoError(t, err)
	require.NotNil(t, token.PasscodeHash)
	assert.Equal(t, "hashed", *token.PasscodeHash)
}
