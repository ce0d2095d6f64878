package cart

import (
	"context"
	"testing"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (CartRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)

	mongoRepo := repo.(*mongoRepository)
	err = mongoRepo.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAddItem_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"
	item := domain.CartItem{
		ProductID:   1,
		ProductName: "Rose bouquet",
		Quantity:    3,
		UnitPrice:   250000,
	}
	err := repo.AddItem(ctx, token, item)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, token, cart.CustomerToken)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(750000), cart.Total())
}

func TestAddItem_ExistingItem_UpdatesQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"

	err := repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 2, UnitPrice: 100})
	require.NoError(t, err)

	// Same product again sets the quantity rather than appending a row.
	err = repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 5, UnitPrice: 100})
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, token)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItem_DifferentProductsAccumulate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"

	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 1, UnitPrice: 100}))
	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 2, Quantity: 2, UnitPrice: 200}))

	cart, err := repo.GetCart(ctx, token)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestRemoveItem(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"

	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 1}))
	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 2, Quantity: 1}))

	err := repo.RemoveItem(ctx, token, 1)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, token)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)
}

func TestRemoveItem_AbsentItem(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"

	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 1}))

	err := repo.RemoveItem(ctx, token, 42)
	assert.ErrorIs(t, err, ErrItemNotFound)

	cart, err := repo.GetCart(ctx, token)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1, "removing an absent item must not touch the cart")
}

func TestRemoveItem_NoCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.RemoveItem(context.Background(), "nonexistent", 1)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	token := "tok-abc"

	require.NoError(t, repo.AddItem(ctx, token, domain.CartItem{ProductID: 1, Quantity: 1}))
	require.NoError(t, repo.DeleteCart(ctx, token))

	_, err := repo.GetCart(ctx, token)
	assert.ErrorIs(t, err, ErrCartNotFound)

	err = repo.DeleteCart(ctx, token)
	assert.ErrorIs(t, err, ErrCartNotFound)
}
