package repository

import (
	"context"
	"testing"

	"github.com/openfleet/delivery-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDriverRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Driver{
		SupplierID: 1,
		Name:       "Aino K",
		Phone:      "+358401234567",
		Vehicle:    model.VehicleVan,
		Active:     true,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VehicleVan, got.Vehicle)
	assert.True(t, got.Active)

	_, err = repo.GetByID(ctx, 42424)
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestDriverRepository_Deactivate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDriverRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Driver{
		SupplierID: 1,
		Name:       "Mikko L",
		Vehicle:    model.VehicleBike,
		Active:     true,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Deactivate(ctx, created.ID))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := repo.ListBySupplier(ctx, 1, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListBySupplier(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, repo.Deactivate(ctx, 987654), ErrDriverNotFound)
}
