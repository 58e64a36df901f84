package service

import (
	"context"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductService_CreateRequiresName(t *testing.T) {
	f := setup(t)

	_, err := f.productService.CreateProduct(context.Background(), &ProductRequest{Name: "  ", Price: 3})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Empty(t, f.products.GetProducts(context.Background()))
}

func TestProductService_LifecyclePublishesEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.productService.CreateProduct(ctx, &ProductRequest{Name: "Lamp", Price: 20, Category: "Home", Stock: 4})
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)

	price := 18.0
	p, err = f.productService.UpdateProduct(ctx, p.ID, store.ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 18.0, p.Price)
	assert.Equal(t, "Lamp", p.Name)

	require.NoError(t, f.productService.DeleteProduct(ctx, p.ID))

	require.Equal(t, 3, f.publisher.count())
	types := make([]string, 0, 3)
	for _, e := range f.publisher.events {
		types = append(types, e.(*models.ProductEvent).EventType)
	}
	assert.Equal(t, []string{
		models.EventTypeProductCreated,
		models.EventTypeProductUpdated,
		models.EventTypeProductDeleted,
	}, types)
}

func TestProductService_UpdateRejectsBlankName(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Lamp", 1, 1)

	blank := ""
	_, err := f.productService.UpdateProduct(context.Background(), p.ID, store.ProductPatch{Name: &blank})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestProductService_ListFiltersByCategory(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, req := range []ProductRequest{
		{Name: "Lamp", Category: "Home"},
		{Name: "Shirt", Category: "Apparel"},
		{Name: "Rug", Category: "home"},
	} {
		req := req
		_, err := f.productService.CreateProduct(ctx, &req)
		require.NoError(t, err)
	}

	assert.Len(t, f.productService.ListProducts(ctx, ""), 3)
	home := f.productService.ListProducts(ctx, "HOME")
	require.Len(t, home, 2)
	assert.Equal(t, "Lamp", home[0].Name)
	assert.Equal(t, "Rug", home[1].Name)
}

func TestCartService_AddClampsToStockAndPersists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "Widget", 2.5, 3, "w.png")

	view, out, err := f.cartService.AddItem(ctx, "s1", p.ID, 5)
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, 7.5, view.Total)

	again := f.cartService.GetCart(ctx, "s1")
	assert.Equal(t, view, again)
	assert.Empty(t, f.cartService.GetCart(ctx, "other").Items)
}

func TestCartService_AddUnknownProduct(t *testing.T) {
	f := setup(t)

	_, _, err := f.cartService.AddItem(context.Background(), "s1", "404", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCartService_AddInvalidQuantity(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Widget", 1, 5)

	_, _, err := f.cartService.AddItem(context.Background(), "s1", p.ID, 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity", verr.Field)
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.product(t, "A", 1, 10)
	b := f.product(t, "B", 2, 10)

	_, _, err := f.cartService.AddItem(ctx, "s1", a.ID, 1)
	require.NoError(t, err)
	_, _, err = f.cartService.AddItem(ctx, "s1", b.ID, 1)
	require.NoError(t, err)

	view, out := f.cartService.UpdateItem(ctx, "s1", a.ID, 4)
	assert.Equal(t, 4, out.Quantity)
	assert.Equal(t, 5, view.ItemCount)

	view, out = f.cartService.RemoveItem(ctx, "s1", b.ID)
	assert.True(t, out.Removed)
	assert.Equal(t, 4, view.ItemCount)

	f.cartService.Clear(ctx, "s1")
	assert.Equal(t, 0, f.cartService.GetCart(ctx, "s1").ItemCount)
}

func TestInventoryService_AppliesOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.product(t, "A", 1, 10)
	b := f.product(t, "B", 1, 1)

	order, err := f.orderService.CreateOrder(ctx, validRequest(
		OrderItemRequest{ProductID: a.ID, Quantity: 3},
		OrderItemRequest{ProductID: b.ID, Quantity: 2},
		OrderItemRequest{ProductID: "gone", Quantity: 1, Name: "Gone", Price: 1},
	))
	require.NoError(t, err)

	require.NoError(t, f.inventoryService.ApplyOrder(ctx, order.ID))
	require.NoError(t, f.inventoryService.ApplyOrder(ctx, order.ID))

	gotA, err := f.products.GetProductByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, gotA.Stock)

	gotB, err := f.products.GetProductByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotB.Stock)

	stored, err := f.orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.InventoryApplied)
}

func TestInventoryService_UnknownOrder(t *testing.T) {
	f := setup(t)

	err := f.inventoryService.ApplyOrder(context.Background(), "404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInventoryService_HandleOrderCreated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.product(t, "A", 1, 5)

	order, err := f.orderService.CreateOrder(ctx, validRequest(OrderItemRequest{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	require.NoError(t, f.inventoryService.HandleOrderCreated(ctx, &models.OrderCreatedEvent{OrderID: order.ID}))

	got, err := f.products.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}
